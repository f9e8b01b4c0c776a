package async

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveOnce(t *testing.T) {
	p, resolve, reject := New[int]()
	assert.Equal(t, Pending, p.State())

	require.NoError(t, resolve.Resolve(1))
	assert.ErrorIs(t, resolve.Resolve(2), ErrAlreadySettled)
	assert.ErrorIs(t, reject.Reject(errors.New("late")), ErrAlreadySettled)

	v, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.Equal(t, Fulfilled, p.State())
}

func TestRejectOnce(t *testing.T) {
	boom := errors.New("boom")
	p, resolve, reject := New[string]()

	require.NoError(t, reject.Reject(boom))
	assert.ErrorIs(t, resolve.Resolve("x"), ErrAlreadySettled)

	_, err := p.Await(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, Rejected, p.State())
}

func TestRejectNilError(t *testing.T) {
	p := RejectedPromise[int](nil)
	_, err := p.Await(context.Background())
	assert.ErrorIs(t, err, ErrRejected)
}

func TestZeroValues(t *testing.T) {
	assert.ErrorIs(t, Resolver[int]{}.Resolve(1), ErrNoPromise)
	assert.ErrorIs(t, Rejection{}.Reject(nil), ErrNoPromise)
}

func TestConcurrentSettleSingleWinner(t *testing.T) {
	p, resolve, reject := New[int]()
	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = resolve.Resolve(i)
			} else {
				err = reject.Reject(errors.New("x"))
			}
			if err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
	assert.NotEqual(t, Pending, p.State())
}

func TestAwaitContext(t *testing.T) {
	p, _, _ := New[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := p.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestThen(t *testing.T) {
	p, resolve, _ := New[int]()
	got := make(chan int, 2)
	p.Then(func(v int) { got <- v }, nil)
	require.NoError(t, resolve.Resolve(5))
	p.Then(func(v int) { got <- v * 2 }, nil)
	assert.Equal(t, 5, <-got)
	assert.Equal(t, 10, <-got)

	boom := errors.New("boom")
	var seen error
	RejectedPromise[int](boom).Then(func(int) { t.Fatal("fulfilled") }, func(err error) { seen = err })
	assert.ErrorIs(t, seen, boom)
}

func TestNewPromiseAndAwaitAll(t *testing.T) {
	ps := []*Promise[int]{
		Resolved(1),
		NewPromise(func(resolve Resolver[int], _ Rejection) {
			go func() { _ = resolve.Resolve(2) }()
		}),
	}
	values, err := AwaitAll(context.Background(), ps)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, values)

	boom := errors.New("boom")
	_, err = AwaitAll(context.Background(), append(ps, RejectedPromise[int](boom)))
	assert.ErrorIs(t, err, boom)
}

func TestResolverPromise(t *testing.T) {
	p, resolve, _ := New[int]()
	assert.Same(t, p, resolve.Promise())
	assert.Equal(t, "pending", Pending.String())
}
