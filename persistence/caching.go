package persistence

import (
	"sync/atomic"

	"github.com/kbukum/serverkit/environment"
)

type cell struct {
	persister Persister
}

// CachingFactory delegates to another factory once and returns that
// persister on every later call, whatever arguments the later call passes.
//
// The first caller claims construction; concurrent callers wait for it to
// finish instead of contending on a lock held across the delegate.
type CachingFactory struct {
	delegate Factory
	claimed  atomic.Bool
	cached   atomic.Pointer[cell]
	ready    chan struct{}
}

// NewCachingFactory wraps delegate.
func NewCachingFactory(delegate Factory) *CachingFactory {
	return &CachingFactory{
		delegate: delegate,
		ready:    make(chan struct{}),
	}
}

// CreatePersister returns the cached persister, building it through the
// delegate on the first call.
func (f *CachingFactory) CreatePersister(env *environment.ServerEnvironment, exec Executor) Persister {
	if c := f.cached.Load(); c != nil {
		return c.persister
	}

	if f.claimed.CompareAndSwap(false, true) {
		defer close(f.ready)
		p := f.delegate.CreatePersister(env, exec)
		f.cached.Store(&cell{persister: p})
		return p
	}

	<-f.ready
	c := f.cached.Load()
	if c == nil {
		panic("persistence: delegate factory panicked while building the persister")
	}
	return c.persister
}

// Cached returns the persister if one has been built.
func (f *CachingFactory) Cached() (Persister, bool) {
	if c := f.cached.Load(); c != nil {
		return c.persister, true
	}
	return nil, false
}
