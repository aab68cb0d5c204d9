/*
Package memsafe provides a way for applications to keep secret information (like cryptographic keys) in an area of memory
that is secure.

	package main

	import (
		"fmt"

		"github.com/memsafe/memsafe/guarded"
	)

	func main() {
		factory := new(guarded.SecretFactory)

		secret, err := factory.New(getSecretFromStore())
		if err != nil {
			panic("unexpected error!")
		}
		defer secret.Close()

		g, err := secret.Read()
		if err != nil {
			panic("unexpected error!")
		}
		defer g.Release()

		doSomethingWithSecretBytes(g.Bytes())
	}
*/
package memsafe
