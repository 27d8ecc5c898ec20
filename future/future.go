// Package future provides a typed result handle for work that completes
// asynchronously. A Promise is the writing side; a Future is what callers
// hold, poll, wait on with a bound, or cancel.
package future

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/serverkit/errors"
)

// State is the completion state of a Future.
type State int

const (
	Pending State = iota
	Resolved
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Future is a read-only handle on a value that becomes available later.
// Once it leaves Pending it never changes again.
type Future[T any] struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	state     State
	value     T
	err       error
	callbacks []func(T, error)
}

// Promise completes exactly one Future. The first completion wins; later
// ones are ignored.
type Promise[T any] struct {
	f *Future[T]
}

// New creates a linked promise and future. cancel is the cancellation
// token Future.Cancel invokes; it may be nil.
func New[T any](cancel context.CancelFunc) (*Promise[T], *Future[T]) {
	f := &Future[T]{
		id:     uuid.New().String(),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	return &Promise[T]{f: f}, f
}

// Go runs fn in a new goroutine and returns a Future for its result. The
// context passed to fn is canceled when the Future is canceled.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	return GoWithDiscard(ctx, fn, nil)
}

// GoWithDiscard is Go for results that own resources. A value fn produces
// after the Future was already completed, typically by Cancel, is passed to
// discard instead of being dropped. discard may be nil.
func GoWithDiscard[T any](ctx context.Context, fn func(ctx context.Context) (T, error), discard func(T)) *Future[T] {
	ctx, cancel := context.WithCancel(ctx)
	p, f := New[T](cancel)
	go func() {
		defer cancel()
		v, err := fn(ctx)
		if err != nil {
			p.Fail(err)
			return
		}
		if !p.Resolve(v) && discard != nil {
			discard(v)
		}
	}()
	return f
}

// Future returns the future this promise completes.
func (p *Promise[T]) Future() *Future[T] {
	return p.f
}

// Resolve completes the future with v. It reports whether this call
// completed the future.
func (p *Promise[T]) Resolve(v T) bool {
	return p.f.complete(v, nil)
}

// Fail completes the future with err. A nil err is reported as internal.
func (p *Promise[T]) Fail(err error) bool {
	if err == nil {
		err = errors.Internal(nil)
	}
	var zero T
	return p.f.complete(zero, err)
}

func (f *Future[T]) complete(v T, err error) bool {
	f.mu.Lock()
	if f.state != Pending {
		f.mu.Unlock()
		return false
	}
	if err != nil {
		f.state = Failed
	} else {
		f.state = Resolved
	}
	f.value, f.err = v, err
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn(v, err)
	}
	return true
}

// ID returns a unique identifier for log correlation.
func (f *Future[T]) ID() string {
	return f.id
}

// State returns the current state without blocking.
func (f *Future[T]) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Done is closed when the future leaves Pending.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Get waits for completion or for ctx to end, whichever comes first. An
// expired wait returns TIMEOUT or CANCELED and leaves the future pending.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result()
	default:
	}

	select {
	case <-f.done:
		return f.result()
	case <-ctx.Done():
		var zero T
		if ctx.Err() == context.DeadlineExceeded {
			return zero, errors.Timeout("await result").WithCause(ctx.Err())
		}
		return zero, errors.Canceled("await result").WithCause(ctx.Err())
	}
}

// GetWithTimeout waits at most d for completion.
func (f *Future[T]) GetWithTimeout(d time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return f.Get(ctx)
}

// Cancel fails a pending future with CANCELED, then invokes the
// cancellation token. Work already under way may still run to completion;
// its result is discarded. Cancel reports whether it completed the future.
func (f *Future[T]) Cancel() bool {
	var zero T
	completed := f.complete(zero, errors.Canceled("future"))
	if f.cancel != nil {
		f.cancel()
	}
	return completed
}

// OnComplete registers fn to run once the future completes. If it already
// has, fn runs immediately on the calling goroutine.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mu.Lock()
	if f.state == Pending {
		f.callbacks = append(f.callbacks, fn)
		f.mu.Unlock()
		return
	}
	v, err := f.value, f.err
	f.mu.Unlock()
	fn(v, err)
}

func (f *Future[T]) result() (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err
}
