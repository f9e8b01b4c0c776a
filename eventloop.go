package evio

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dreamans/evio/async"
	"github.com/dreamans/evio/evlog"
	"github.com/dreamans/evio/mailbox"
	"github.com/dreamans/evio/poller"
)

type loopState uint8

const (
	stateIdle loopState = iota
	stateRunning
	stateStopping
	stateStopped
)

// EventLoop owns a poller, a mailbox and at most one timer, and dispatches
// readiness to its Handler on a single locked OS thread.
type EventLoop struct {
	index   int
	mu      sync.Mutex
	state   loopState
	tid     atomic.Int64
	poll    poller.Poller
	mailbox *mailbox.Mailbox[message]
	timerFd *poller.TimerFd
	timer   *timer
	handler Handler
	events  []poller.Event
	started chan struct{}
	done    chan struct{}

	// settlements run after loop state is updated and l.mu is released
	settlements []func()
}

// message is work marshaled into the loop through the mailbox.
type message interface {
	run(l *EventLoop)
	cancel(err error)
}

type callMsg struct {
	fn      func() error
	resolve async.Resolver[struct{}]
	reject  async.Rejection
}

func (m *callMsg) run(*EventLoop) {
	if err := m.fn(); err != nil {
		_ = m.reject.Reject(err)
		return
	}
	_ = m.resolve.Resolve(struct{}{})
}

func (m *callMsg) cancel(err error) { _ = m.reject.Reject(err) }

type loadMsg struct {
	resolve async.Resolver[Load]
	reject  async.Rejection
}

func (m *loadMsg) run(*EventLoop) {
	ld, err := sampleLoad()
	if err != nil {
		_ = m.reject.Reject(err)
		return
	}
	_ = m.resolve.Resolve(ld)
}

func (m *loadMsg) cancel(err error) { _ = m.reject.Reject(err) }

func NewEventLoop(prototype Handler) (*EventLoop, error) {
	return newEventLoop(0, prototype, defaultEventsHint)
}

func newEventLoop(index int, prototype Handler, eventsHint int) (*EventLoop, error) {
	if prototype == nil {
		return nil, ErrNilHandler
	}
	h, err := prototype.Clone()
	if err != nil {
		return nil, fmt.Errorf("evio: clone handler: %w", err)
	}
	if h == nil {
		return nil, ErrNilHandler
	}

	l := &EventLoop{
		index:   index,
		events:  make([]poller.Event, 0, eventsHint),
		started: make(chan struct{}),
		done:    make(chan struct{}),
	}
	ok := false
	defer func() {
		if !ok {
			l.closeResources()
		}
	}()

	if l.poll, err = poller.New(); err != nil {
		return nil, err
	}
	if l.mailbox, err = mailbox.New[message](); err != nil {
		return nil, err
	}
	if err = l.poll.Add(l.mailbox.Fd(), poller.NotifyRead, poller.NextTag(), poller.Level); err != nil {
		return nil, &PollRegistrationError{Op: "register", Fd: l.mailbox.Fd(), Err: err}
	}

	h.bind(l)
	l.handler = h
	if err = h.RegisterPoller(l.poll); err != nil {
		return nil, fmt.Errorf("evio: register poller: %w", err)
	}

	ok = true
	return l, nil
}

func (l *EventLoop) Index() int { return l.index }

func (l *EventLoop) Handler() Handler { return l.handler }

// ThreadID is the OS thread running the loop, 0 when it is not running.
func (l *EventLoop) ThreadID() int64 { return l.tid.Load() }

// Poller gives direct access to the loop's poller. It may only be used on
// the loop thread, typically from Handler.OnReady.
func (l *EventLoop) Poller() poller.Poller { return l.poll }

func (l *EventLoop) inLoop() bool {
	tid := l.tid.Load()
	return tid != 0 && tid == gettid()
}

func (l *EventLoop) logger() evlog.Logger {
	return evlog.WithFields(evlog.Fields{"loop": l.index})
}

// Register adds fd with a freshly generated tag.
func (l *EventLoop) Register(fd int, interest poller.NotifyOn, mode poller.Mode) (poller.Tag, error) {
	tag := poller.NextTag()
	if err := l.RegisterTag(fd, interest, tag, mode); err != nil {
		return 0, err
	}
	return tag, nil
}

func (l *EventLoop) RegisterTag(fd int, interest poller.NotifyOn, tag poller.Tag, mode poller.Mode) error {
	return l.exec(func() error {
		if err := l.poll.Add(fd, interest, tag, mode); err != nil {
			return &PollRegistrationError{Op: "register", Fd: fd, Err: err}
		}
		return nil
	})
}

// RegisterOneShot registers fd so that it reports readiness once and then
// stays silent until Modify re-arms it.
func (l *EventLoop) RegisterOneShot(fd int, interest poller.NotifyOn) (poller.Tag, error) {
	return l.Register(fd, interest, poller.OneShot)
}

func (l *EventLoop) RegisterOneShotTag(fd int, interest poller.NotifyOn, tag poller.Tag) error {
	return l.RegisterTag(fd, interest, tag, poller.OneShot)
}

// Modify changes interest and mode and keeps the current tag.
func (l *EventLoop) Modify(fd int, interest poller.NotifyOn, mode poller.Mode) error {
	return l.exec(func() error {
		tag, ok := l.poll.Tag(fd)
		if !ok {
			return &PollRegistrationError{Op: "modify", Fd: fd, Err: poller.ErrNotRegistered}
		}
		return l.modify(fd, interest, tag, mode)
	})
}

func (l *EventLoop) ModifyTag(fd int, interest poller.NotifyOn, tag poller.Tag, mode poller.Mode) error {
	return l.exec(func() error {
		return l.modify(fd, interest, tag, mode)
	})
}

func (l *EventLoop) modify(fd int, interest poller.NotifyOn, tag poller.Tag, mode poller.Mode) error {
	if err := l.poll.Modify(fd, interest, tag, mode); err != nil {
		return &PollRegistrationError{Op: "modify", Fd: fd, Err: err}
	}
	return nil
}

func (l *EventLoop) Remove(fd int) error {
	return l.exec(func() error {
		if err := l.poll.Remove(fd); err != nil {
			return &PollRegistrationError{Op: "remove", Fd: fd, Err: err}
		}
		return nil
	})
}

// exec runs fn where it may touch loop-owned state: directly on the loop
// thread or before Run, otherwise inside the loop via the mailbox, waiting
// for the result.
func (l *EventLoop) exec(fn func() error) error {
	if l.inLoop() {
		err := fn()
		runSettlements(l.takeSettlements())
		return err
	}

	l.mu.Lock()
	state := l.state
	if state == stateIdle {
		err := fn()
		settlements := l.takeSettlements()
		l.mu.Unlock()
		runSettlements(settlements)
		return err
	}
	l.mu.Unlock()
	if state != stateRunning {
		return ErrLoopClosed
	}

	p, resolve, reject := async.New[struct{}]()
	if err := l.mailbox.Post(&callMsg{fn: fn, resolve: resolve, reject: reject}); err != nil {
		return ErrLoopClosed
	}
	_, err := p.Await(context.Background())
	return err
}

// settle queues a promise settlement to run once the current update is
// finished and l.mu is released.
func (l *EventLoop) settle(fn func()) {
	l.settlements = append(l.settlements, fn)
}

func (l *EventLoop) takeSettlements() []func() {
	s := l.settlements
	l.settlements = nil
	return s
}

func runSettlements(s []func()) {
	for _, fn := range s {
		fn()
	}
}

// Load samples the resource usage of the loop thread from inside the loop.
// Every call gets its own promise; it is rejected with ErrCancelled if the
// loop shuts down first.
func (l *EventLoop) Load() *async.Promise[Load] {
	p, resolve, reject := async.New[Load]()
	if err := l.mailbox.Post(&loadMsg{resolve: resolve, reject: reject}); err != nil {
		_ = reject.Reject(ErrCancelled)
	}
	return p
}

// Run locks the calling goroutine to its OS thread and polls until Shutdown.
func (l *EventLoop) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.mu.Lock()
	switch l.state {
	case stateIdle:
	case stateRunning, stateStopping:
		l.mu.Unlock()
		return ErrLoopRunning
	default:
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.state = stateRunning
	l.tid.Store(gettid())
	l.mu.Unlock()
	close(l.started)

	l.logger().Debugf("[EventLoop.Run]: started on thread %d", l.tid.Load())
	defer func() {
		l.release()
		close(l.done)
		l.logger().Debugf("[EventLoop.Run]: stopped")
	}()

	var tempDelay time.Duration
	for !l.stopRequested() {
		events, err := l.poll.Wait(l.events, l.pollTimeout())
		if err != nil {
			if err == poller.ErrClosed {
				return err
			}
			if tempDelay == 0 {
				tempDelay = 5 * time.Millisecond
			} else {
				tempDelay *= 2
			}
			if max := 500 * time.Millisecond; tempDelay >= max {
				tempDelay = max
			}

			l.logger().Errorf("[poller.Wait]: %s", err.Error())
			time.Sleep(tempDelay)
			continue
		}
		tempDelay = 0

		l.dispatch(events)
		l.events = events[:0]
	}
	return nil
}

func (l *EventLoop) dispatch(events []poller.Event) {
	var notified, expired bool
	var ready []poller.Event
	for _, ev := range events {
		switch {
		case ev.Fd == l.mailbox.Fd():
			notified = true
		case l.timerFd != nil && ev.Fd == l.timerFd.Fd():
			expired = true
		default:
			ready = append(ready, ev)
		}
	}

	if notified {
		l.handleNotify()
	}
	if expired || l.timerDue() {
		l.handleTimeout()
	}
	if len(ready) == 0 || l.stopRequested() {
		return
	}
	l.onReady(newFdSet(ready))
}

func (l *EventLoop) handleNotify() {
	for _, msg := range l.mailbox.Drain() {
		msg.run(l)
		runSettlements(l.takeSettlements())
	}
}

func (l *EventLoop) onReady(fds FdSet) {
	defer func() {
		if r := recover(); r != nil {
			l.logger().Errorf("[Handler.OnReady]: panic: %v", r)
		}
	}()
	l.handler.OnReady(fds)
}

func (l *EventLoop) stopRequested() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state != stateRunning
}

// Shutdown stops the loop and releases its descriptors. It may be called
// from any goroutine, any number of times. Unless called from the loop's own
// thread it returns only after Run has returned, so no handler call happens
// afterwards.
func (l *EventLoop) Shutdown() error {
	l.requestStop()
	if !l.inLoop() {
		<-l.done
	}
	return nil
}

// requestStop starts the shutdown without waiting for Run to return. An
// idle loop is released right away.
func (l *EventLoop) requestStop() {
	l.mu.Lock()
	switch l.state {
	case stateIdle:
		l.state = stateStopped
		l.mu.Unlock()
		l.closeResources()
		close(l.done)
	case stateRunning:
		l.state = stateStopping
		l.mu.Unlock()
		_ = l.mailbox.Notify()
	default:
		l.mu.Unlock()
	}
}

// Done is closed once the loop has released its resources.
func (l *EventLoop) Done() <-chan struct{} {
	return l.done
}

func (l *EventLoop) release() {
	l.mu.Lock()
	l.state = stateStopped
	l.mu.Unlock()
	l.tid.Store(0)
	l.closeResources()
}

func (l *EventLoop) closeResources() {
	if l.mailbox != nil {
		left, _ := l.mailbox.Close()
		for _, msg := range left {
			msg.cancel(ErrCancelled)
		}
	}
	if t := l.timer; t != nil {
		l.timer = nil
		_ = t.reject.Reject(ErrCancelled)
	}
	runSettlements(l.takeSettlements())
	if l.timerFd != nil {
		_ = l.timerFd.Close()
	}
	if l.poll != nil {
		_ = l.poll.Close()
	}
}
