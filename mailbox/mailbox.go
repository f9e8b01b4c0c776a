// Package mailbox is a multi-producer, single-consumer queue whose pending
// state is visible to a poller through an eventfd.
package mailbox

import (
	"errors"
	"sync"

	"github.com/eapache/queue"

	"github.com/dreamans/evio/poller"
)

var ErrClosed = errors.New("mailbox: closed")

type Mailbox[T any] struct {
	mu       sync.Mutex
	q        *queue.Queue
	notifier *poller.NotifyFd
	closed   bool
}

func New[T any]() (*Mailbox[T], error) {
	n, err := poller.NewNotifyFd()
	if err != nil {
		return nil, err
	}
	return &Mailbox[T]{
		q:        queue.New(),
		notifier: n,
	}, nil
}

// Fd is readable whenever messages were posted since the last Drain.
func (m *Mailbox[T]) Fd() int {
	return m.notifier.Fd()
}

func (m *Mailbox[T]) Post(msg T) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.q.Add(msg)
	return m.notifier.Notify()
}

// Notify wakes the consumer without posting a message.
func (m *Mailbox[T]) Notify() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return m.notifier.Notify()
}

func (m *Mailbox[T]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q.Length()
}

// Drain clears the notifier and returns queued messages in post order.
// Only the consumer may call it.
func (m *Mailbox[T]) Drain() []T {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	_, _ = m.notifier.Drain()
	return m.popAll()
}

// Close releases the notifier and hands back messages nobody consumed.
func (m *Mailbox[T]) Close() ([]T, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	m.closed = true
	msgs := m.popAll()
	return msgs, m.notifier.Close()
}

func (m *Mailbox[T]) popAll() []T {
	n := m.q.Length()
	if n == 0 {
		return nil
	}
	msgs := make([]T, 0, n)
	for m.q.Length() > 0 {
		msgs = append(msgs, m.q.Remove().(T))
	}
	return msgs
}
