package secrets

// BytesWrapper contains the WithBytes method that provides scoped read
// access to an internal byte slice.
type BytesWrapper interface {
	WithBytes(action func([]byte) error) (err error)
}
