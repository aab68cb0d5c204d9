package guarded

// ReadGuard is a live shared read grant over a secret's memory. Releasing
// the last outstanding read guard returns the pages to the no-access rest
// state.
type ReadGuard struct {
	s        *secretInternal
	released bool
}

// Bytes returns the readable view of the secret. The slice is only valid
// until the guard is released; it returns nil afterwards. A reference MUST
// not be kept past Release as the underlying array will no longer be
// readable.
func (g *ReadGuard) Bytes() []byte {
	if g.released {
		return nil
	}

	return g.s.region.Bytes()
}

// Release gives up the read grant. Releasing the last guard restores the
// no-access state; this runs on every exit path, normal or not, when paired
// with defer. Release is idempotent.
func (g *ReadGuard) Release() error {
	if g.released {
		return nil
	}

	g.released = true

	return g.s.releaseRead()
}

// WriteGuard is a live exclusive write grant over a secret's memory.
// Releasing it returns the pages to the no-access rest state.
type WriteGuard struct {
	s        *secretInternal
	released bool
}

// Bytes returns the writable view of the secret. The slice is only valid
// until the guard is released; it returns nil afterwards. A reference MUST
// not be kept past Release as the underlying array will no longer be
// accessible.
func (g *WriteGuard) Bytes() []byte {
	if g.released {
		return nil
	}

	return g.s.region.Bytes()
}

// Release gives up the write grant and restores the no-access state. It
// runs on every exit path, normal or not, when paired with defer. Release
// is idempotent.
func (g *WriteGuard) Release() error {
	if g.released {
		return nil
	}

	g.released = true

	return g.s.releaseWrite()
}
