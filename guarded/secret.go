// Package guarded implements the runtime-checked secret API: access to the
// protected bytes is granted through scoped read and write guards and
// checked when a guard is requested.
//
// A Secret and its guards belong to a single owner. The package performs no
// internal locking; sharing a Secret across goroutines requires external
// synchronization.
package guarded

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/awnumar/memguard/core"
	"github.com/pkg/errors"
	"github.com/rcrowley/go-metrics"

	"github.com/memsafe/memsafe"
	"github.com/memsafe/memsafe/internal/memcall"
	"github.com/memsafe/memsafe/internal/region"
	"github.com/memsafe/memsafe/internal/secrets"
	"github.com/memsafe/memsafe/log"
)

// AllocTimer is used to record the time taken to allocate a secret.
var AllocTimer = metrics.GetOrRegisterTimer("secret.guarded.alloctimer", nil)

// Secret contains sensitive memory held in protected page(s). The pages are
// inaccessible except while a guard is outstanding. Always call Close after
// use to avoid memory leaks.
type Secret struct {
	*secretInternal
	// dummy is used for attaching a finalizer since attaching one to the secret itself results in it always having a reference.
	dummy *bool
}

var _ memsafe.Secret = (*Secret)(nil)

// secretInternal is an abstraction needed to allow us to close the secret without referencing it directly in a finalizer.
type secretInternal struct {
	region  *region.Region
	readers int
	writing bool
	closing bool

	// stack contains a formatted stack trace collected when the secret was created, only set if DebugEnabled.
	stack        []byte
	externalAddr string
}

// Read grants shared read access to the secret. The first outstanding read
// guard makes the pages readable; any number of read guards may be live at
// once. Read fails with memsafe.ErrWriteHeld while a write guard is
// outstanding and with memsafe.ErrClosed after Close.
func (s *Secret) Read() (*ReadGuard, error) {
	if err := s.acquireRead(); err != nil {
		return nil, err
	}

	return &ReadGuard{s: s.secretInternal}, nil
}

// Write grants exclusive write access to the secret. Write fails while any
// other guard is outstanding; this is a synchronous error, never a block.
func (s *Secret) Write() (*WriteGuard, error) {
	if err := s.acquireWrite(); err != nil {
		return nil, err
	}

	return &WriteGuard{s: s.secretInternal}, nil
}

// WithBytes makes the underlying bytes readable and passes them to the function provided.
// A reference MUST not be kept to the bytes passed to the function as the underlying array will no
// longer be readable after the function exits.
func (s *Secret) WithBytes(action func([]byte) error) (err error) {
	g, err := s.Read()
	if err != nil {
		return err
	}

	defer func() {
		if err2 := g.Release(); err2 != nil {
			if err == nil {
				err = err2
				return
			}

			err = errors.WithMessage(err, err2.Error())

			return
		}
	}()

	return action(g.Bytes())
}

// WithBytesFunc makes the underlying bytes readable and passes them to the function provided.
// A reference MUST not be kept to the bytes passed to the function as the underlying array will no
// longer be readable after the function exits.
func (s *Secret) WithBytesFunc(action func([]byte) ([]byte, error)) (ret []byte, err error) {
	g, err := s.Read()
	if err != nil {
		return nil, err
	}

	defer func() {
		if err2 := g.Release(); err2 != nil {
			if err == nil {
				err = err2
				return
			}

			err = errors.WithMessage(err, err2.Error())

			return
		}
	}()

	return action(g.Bytes())
}

// IsClosed returns true if the underlying data container has already been closed
func (s *Secret) IsClosed() bool {
	return s.isClosed()
}

// Pinned returns true if the secret's pages are locked into physical
// memory. See PinError for the cause when they are not.
func (s *Secret) Pinned() bool {
	return s.region.Pinned()
}

// PinError returns the error recorded when pinning the secret's pages was
// attempted, or nil.
func (s *Secret) PinError() error {
	return s.region.PinError()
}

// NewReader returns a new io.Reader capable of reading from s.
func (s *Secret) NewReader() io.Reader {
	return secrets.NewReader(s)
}

// acquireRead makes the data region's memory pages readable, if needed.
func (s *secretInternal) acquireRead() error {
	if s.closing || s.region.IsClosed() {
		return errors.WithStack(memsafe.ErrClosed)
	}

	if s.writing {
		return errors.WithStack(memsafe.ErrWriteHeld)
	}

	// Only change protection if we're the first reader of this secret.
	if s.readers == 0 {
		if err := s.region.ToReadOnly(); err != nil {
			// Shouldn't happen but return the err if it does
			return errors.WithMessage(err, "unable to mark memory as read-only")
		}
	}
	s.readers++

	return nil
}

// acquireWrite makes the data region's memory pages writable. Write access
// is exclusive: no other guard of either kind may be outstanding.
func (s *secretInternal) acquireWrite() error {
	if s.closing || s.region.IsClosed() {
		return errors.WithStack(memsafe.ErrClosed)
	}

	if s.writing {
		return errors.WithStack(memsafe.ErrWriteHeld)
	}

	if s.readers > 0 {
		return errors.WithStack(memsafe.ErrReadHeld)
	}

	if err := s.region.ToReadWrite(); err != nil {
		// Shouldn't happen but return the err if it does
		return errors.WithMessage(err, "unable to mark memory as read-write")
	}
	s.writing = true

	return nil
}

// releaseRead revokes access to the data region's memory pages once the
// last read guard is released.
func (s *secretInternal) releaseRead() error {
	if s.region.IsClosed() {
		// The secret was torn down with the guard still outstanding; there
		// is nothing left to protect.
		return nil
	}

	s.readers--
	if s.readers == 0 {
		if err := s.region.ToNoAccess(); err != nil {
			// Shouldn't happen but return the err if it does
			return errors.WithMessage(err, "unable to mark memory as no-access")
		}
	}

	return nil
}

// releaseWrite revokes access to the data region's memory pages.
func (s *secretInternal) releaseWrite() error {
	if s.region.IsClosed() {
		return nil
	}

	s.writing = false

	if err := s.region.ToNoAccess(); err != nil {
		// Shouldn't happen but return the err if it does
		return errors.WithMessage(err, "unable to mark memory as no-access")
	}

	return nil
}

// isClosed is the actual implementation of secret.IsClosed. It needs to be implemented at this level in order
// to unit test the finalizer (to avoid a reference to the secret).
func (s *secretInternal) isClosed() bool {
	return s.region.IsClosed()
}

func (s *secretInternal) Finalize() {
	if !s.closing {
		log.Debugf("finalized before closed: secret(%s){inner(%p)}\n%s\n", s.externalAddr, s, s.stack)
	}

	_ = s.Close()
}

// Close destroys the secret: the pages are made writable, zeroed, unpinned,
// and released, in that order. Close is idempotent. Any guards still
// outstanding become inert; releasing them is a no-op.
func (s *secretInternal) Close() error {
	if s.region.IsClosed() {
		return nil
	}

	s.closing = true

	err := s.region.Close()

	memsafe.InUseCounter.Dec(1)

	return err
}

// SecretFactory is used to create guarded Secrets.
type SecretFactory struct {
	mc memcall.Interface
}

func (f *SecretFactory) memcall() memcall.Interface {
	if f.mc == nil {
		f.mc = defaultBackend()
	}

	return f.mc
}

// New takes in a byte slice and returns a protected memory backed Secret containing that data.
// The underlying array will be wiped after the function exits.
func (f *SecretFactory) New(b []byte) (*Secret, error) {
	defer AllocTimer.UpdateSince(time.Now())

	secret, err := newSecret(len(b), f.memcall())
	if err != nil {
		return nil, err
	}

	if err := secret.fill(func(dst []byte) error {
		// copy b into dst and wipe the source
		subtle.ConstantTimeCopy(1, dst, b)
		core.Wipe(b)
		return nil
	}); err != nil {
		return nil, err
	}

	memsafe.AllocCounter.Inc(1)
	memsafe.InUseCounter.Inc(1)

	return secret, nil
}

// CreateRandom returns a protected memory backed Secret that contains a random byte slice of the specified size.
func (f *SecretFactory) CreateRandom(size int) (*Secret, error) {
	return f.createRandom(size, rand.Read)
}

func (f *SecretFactory) createRandom(size int, readFunc func(b []byte) (n int, err error)) (*Secret, error) {
	defer AllocTimer.UpdateSince(time.Now())

	secret, err := newSecret(size, f.memcall())
	if err != nil {
		return nil, err
	}

	if err := secret.fill(func(dst []byte) error {
		_, err := readFunc(dst)
		return err
	}); err != nil {
		return nil, err
	}

	memsafe.AllocCounter.Inc(1)
	memsafe.InUseCounter.Inc(1)

	return secret, nil
}

// fill writes the initial payload while the region is briefly writable and
// restores the no-access rest state afterwards. On any failure the secret
// is torn down. We intentionally ignore the errors from that cleanup beyond
// wrapping them onto the reason we got here.
func (s *secretInternal) fill(write func(dst []byte) error) (err error) {
	defer func() {
		if err != nil {
			s.closing = true

			if err2 := s.region.Close(); err2 != nil {
				err = errors.Wrap(err, err2.Error())
			}
		}
	}()

	if err := s.region.ToReadWrite(); err != nil {
		return err
	}

	if err := write(s.region.Bytes()); err != nil {
		return err
	}

	return s.region.ToNoAccess()
}

// newSecret handles the core allocation/setup of a new secret of the given size.
func newSecret(size int, mc memcall.Interface) (*Secret, error) {
	r, err := region.New(size, mc)
	if err != nil {
		return nil, err
	}

	// We have to use a wrapper structure with a dummy reference for the finalizer to trigger properly
	internal := &secretInternal{
		region: r,
	}

	secret := &Secret{
		secretInternal: internal,
		dummy:          new(bool),
	}

	if log.DebugEnabled() {
		internal.externalAddr = fmt.Sprintf("%p", secret)
		internal.stack = debug.Stack()
	}

	// Finalizer attaches to dummy reference so we can cleanup secret when it goes out of scope. We have to use
	// secretInternal to call close to avoid keeping the secret in scope by virtue of the finalizer setup. The
	// finalizer only fires once the secret is unreachable, so it never races caller access.
	runtime.SetFinalizer(secret.dummy, func(_ *bool) {
		go internal.Finalize()
	})

	return secret, nil
}
