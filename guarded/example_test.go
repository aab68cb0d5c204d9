package guarded_test

import (
	"encoding/base64"
	"fmt"
	"io"
	"os"

	"github.com/memsafe/memsafe/guarded"
)

func ExampleSecretFactory_New() {
	factory := new(guarded.SecretFactory)

	secret, err := factory.New([]byte("some really secret value"))
	if err != nil {
		panic("unexpected error!")
	}

	defer secret.Close()

	// do something with the secret...
	fmt.Println(secret.IsClosed())
	// Output: false
}

func ExampleSecretFactory_CreateRandom() {
	factory := new(guarded.SecretFactory)

	secret, err := factory.CreateRandom(32)
	if err != nil {
		panic("unexpected error!")
	}

	defer secret.Close()

	// do something with the secret...
	fmt.Println(secret.IsClosed())
	// Output: false
}

// ExampleSecret_Read demonstrates scoped read access through a guard.
func ExampleSecret_Read() {
	factory := new(guarded.SecretFactory)

	secret, err := factory.CreateRandom(32)
	if err != nil {
		panic("unexpected error!")
	}

	defer secret.Close()

	g, err := secret.Read()
	if err != nil {
		panic("unexpected error!")
	}

	defer g.Release()

	// You obviously shouldn't ever print a secret but this is just an example
	fmt.Printf("my secret is %d bytes long", len(g.Bytes()))
	// Output: my secret is 32 bytes long
}

// ExampleSecret_Write demonstrates updating a secret in place through a
// write guard.
func ExampleSecret_Write() {
	factory := new(guarded.SecretFactory)

	secret, err := factory.New(make([]byte, 5))
	if err != nil {
		panic("unexpected error!")
	}

	defer secret.Close()

	w, err := secret.Write()
	if err != nil {
		panic("unexpected error!")
	}

	copy(w.Bytes(), "hello")

	if err := w.Release(); err != nil {
		panic("unexpected error!")
	}

	r, err := secret.Read()
	if err != nil {
		panic("unexpected error!")
	}

	defer r.Release()

	fmt.Printf("%s", r.Bytes())
	// Output: hello
}

// ExampleSecret_withBytesFunc demonstrates the use of WithBytesFunc to access a secret's protected byte slice.
func ExampleSecret_withBytesFunc() {
	factory := new(guarded.SecretFactory)

	secret, err := factory.CreateRandom(32)
	if err != nil {
		panic("unexpected error!")
	}

	defer secret.Close()

	// In this example we're encoding our underlying secret data using base64
	encodedBytes, err := secret.WithBytesFunc(func(bytes []byte) ([]byte, error) {
		return []byte(base64.StdEncoding.EncodeToString(bytes)), nil
	})
	if err != nil {
		panic("unexpected error!")
	}

	decodedBytes, err := base64.StdEncoding.DecodeString(string(encodedBytes))
	if err != nil {
		panic("unexpected error!")
	}

	fmt.Printf("my decoded payload is %d bytes long", len(decodedBytes))
	// Output:
	// my decoded payload is 32 bytes long
}

// ExampleSecret_newReader demonstrates working with a secret using the standard io.Reader interface.
func ExampleSecret_newReader() {
	factory := new(guarded.SecretFactory)

	// ignoring errors for simplicity
	s1, _ := factory.New([]byte("first "))
	s2, _ := factory.New([]byte("second "))
	s3, _ := factory.New([]byte("third"))

	defer s1.Close()
	defer s2.Close()
	defer s3.Close()

	r := io.MultiReader(s1.NewReader(), s2.NewReader(), s3.NewReader())

	if _, err := io.Copy(os.Stdout, r); err != nil {
		fmt.Println(err)
	}

	// Output: first second third
}
