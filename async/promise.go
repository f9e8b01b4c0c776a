// Package async provides a single-resolution promise used to hand results
// computed on an event loop back to other goroutines.
package async

import (
	"context"
	"errors"
	"sync"
)

var (
	ErrAlreadySettled = errors.New("async: promise already settled")
	ErrNoPromise      = errors.New("async: resolver has no promise")
	ErrRejected       = errors.New("async: promise rejected")
)

type State int32

const (
	Pending State = iota
	Fulfilled
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Fulfilled:
		return "fulfilled"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Promise is settled exactly once, either with a value or an error. All
// methods are safe for concurrent use.
type Promise[T any] struct {
	mu        sync.Mutex
	state     State
	value     T
	err       error
	done      chan struct{}
	callbacks []func()
}

// Resolver fulfils its promise. The zero Resolver is unusable.
type Resolver[T any] struct {
	p *Promise[T]
}

// Rejection rejects the promise it was created with. It is untyped so that
// code which only cancels work does not need to know the result type.
type Rejection struct {
	reject func(error) error
}

func New[T any]() (*Promise[T], Resolver[T], Rejection) {
	p := &Promise[T]{done: make(chan struct{})}
	return p, Resolver[T]{p: p}, Rejection{reject: p.reject}
}

// NewPromise runs fn synchronously with the promise's resolver and rejection.
func NewPromise[T any](fn func(Resolver[T], Rejection)) *Promise[T] {
	p, resolve, reject := New[T]()
	fn(resolve, reject)
	return p
}

func Resolved[T any](v T) *Promise[T] {
	p, resolve, _ := New[T]()
	_ = resolve.Resolve(v)
	return p
}

func RejectedPromise[T any](err error) *Promise[T] {
	p, _, reject := New[T]()
	_ = reject.Reject(err)
	return p
}

func (r Resolver[T]) Resolve(v T) error {
	if r.p == nil {
		return ErrNoPromise
	}
	return r.p.settle(Fulfilled, v, nil)
}

// Promise returns the promise this resolver settles.
func (r Resolver[T]) Promise() *Promise[T] {
	return r.p
}

func (r Rejection) Reject(err error) error {
	if r.reject == nil {
		return ErrNoPromise
	}
	return r.reject(err)
}

func (p *Promise[T]) reject(err error) error {
	if err == nil {
		err = ErrRejected
	}
	var zero T
	return p.settle(Rejected, zero, err)
}

func (p *Promise[T]) settle(state State, v T, err error) error {
	p.mu.Lock()
	if p.state != Pending {
		p.mu.Unlock()
		return ErrAlreadySettled
	}
	p.state, p.value, p.err = state, v, err
	callbacks := p.callbacks
	p.callbacks = nil
	close(p.done)
	p.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
	return nil
}

// Done is closed once the promise is settled.
func (p *Promise[T]) Done() <-chan struct{} {
	return p.done
}

func (p *Promise[T]) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Promise[T]) result() (State, T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state, p.value, p.err
}

func (p *Promise[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		_, v, err := p.result()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then registers callbacks run once the promise settles, on the goroutine
// that settles it, or immediately if it already has. Either may be nil.
func (p *Promise[T]) Then(onFulfilled func(T), onRejected func(error)) {
	fn := func() {
		state, v, err := p.result()
		if state == Rejected {
			if onRejected != nil {
				onRejected(err)
			}
			return
		}
		if onFulfilled != nil {
			onFulfilled(v)
		}
	}

	p.mu.Lock()
	if p.state == Pending {
		p.callbacks = append(p.callbacks, fn)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()
	fn()
}

// AwaitAll waits for every promise in order and returns the values. The
// first rejection (in slice order) is returned as the error.
func AwaitAll[T any](ctx context.Context, promises []*Promise[T]) ([]T, error) {
	values := make([]T, len(promises))
	for i, p := range promises {
		v, err := p.Await(ctx)
		if err != nil {
			return values, err
		}
		values[i] = v
	}
	return values, nil
}
