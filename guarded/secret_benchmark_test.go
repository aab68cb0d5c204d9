package guarded

import (
	"bytes"
	"testing"
)

func BenchmarkGuardedSecret_WithBytes_Sequential(b *testing.B) {
	factory := &SecretFactory{}

	orig := []byte("thisismy32bytesecretthatiwilluse")
	copyBytes := make([]byte, len(orig))
	copy(copyBytes, orig)

	s, err := factory.New(orig)
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		err := s.WithBytes(func(gotBytes []byte) error {
			if !bytes.Equal(copyBytes, gotBytes) {
				b.Fatal("bytes don't match")
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkGuardedSecret_ReadGuard_Sequential(b *testing.B) {
	factory := &SecretFactory{}

	orig := []byte("thisismy32bytesecretthatiwilluse")
	copyBytes := make([]byte, len(orig))
	copy(copyBytes, orig)

	s, err := factory.New(orig)
	if err != nil {
		b.Fatal(err)
	}
	defer s.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		g, err := s.Read()
		if err != nil {
			b.Fatal(err)
		}

		if !bytes.Equal(copyBytes, g.Bytes()) {
			b.Fatal("bytes don't match")
		}

		if err := g.Release(); err != nil {
			b.Fatal(err)
		}
	}
}
