package evio

import (
	"time"

	"github.com/dreamans/evio/async"
	"github.com/dreamans/evio/poller"
)

type timer struct {
	duration time.Duration
	deadline time.Time
	resolve  async.Resolver[uint64]
	reject   async.Rejection
}

// ArmTimer schedules the loop's single one-shot timer. When it fires,
// resolve receives the number of expirations observed (at least 1). A timer
// that is still pending is rejected with ErrSuperseded. If arming fails the
// error is returned and also passed to reject.
func (l *EventLoop) ArmTimer(d time.Duration, resolve async.Resolver[uint64], reject async.Rejection) error {
	t := &timer{duration: d, resolve: resolve, reject: reject}
	err := l.exec(func() error { return l.armTimer(t) })
	if err != nil {
		_ = reject.Reject(err)
	}
	return err
}

// Timeout arms the timer and returns its promise.
func (l *EventLoop) Timeout(d time.Duration) (*async.Promise[uint64], error) {
	p, resolve, reject := async.New[uint64]()
	return p, l.ArmTimer(d, resolve, reject)
}

// DisarmTimer cancels the pending timer, rejecting it with ErrCancelled.
func (l *EventLoop) DisarmTimer() error {
	return l.exec(l.disarmTimer)
}

func (l *EventLoop) armTimer(t *timer) error {
	if l.timerFd == nil {
		tf, err := poller.NewTimerFd()
		if err != nil {
			return &TimerError{Op: "create", Err: err}
		}
		if err := l.poll.Add(tf.Fd(), poller.NotifyRead, poller.NextTag(), poller.Level); err != nil {
			_ = tf.Close()
			return &TimerError{Op: "register", Err: err}
		}
		l.timerFd = tf
	}
	if err := l.timerFd.Arm(t.duration); err != nil {
		return &TimerError{Op: "arm", Err: err}
	}

	if prev := l.timer; prev != nil {
		l.timer = nil
		l.settle(func() { _ = prev.reject.Reject(ErrSuperseded) })
	}
	t.deadline = time.Now().Add(t.duration)
	l.timer = t
	return nil
}

func (l *EventLoop) disarmTimer() error {
	t := l.timer
	if t == nil {
		return nil
	}
	l.timer = nil

	var err error
	if derr := l.timerFd.Disarm(); derr != nil {
		err = &TimerError{Op: "disarm", Err: derr}
	}
	l.settle(func() { _ = t.reject.Reject(ErrCancelled) })
	return err
}

func (l *EventLoop) timerDue() bool {
	return l.timer != nil && !time.Now().Before(l.timer.deadline)
}

func (l *EventLoop) pollTimeout() time.Duration {
	if l.timer == nil {
		return -1
	}
	if d := time.Until(l.timer.deadline); d > 0 {
		return d
	}
	return 0
}

// handleTimeout fires the pending timer once. The timerfd and the poll
// deadline may both report the same expiration; whichever is seen first
// resolves it.
func (l *EventLoop) handleTimeout() {
	if l.timerFd == nil {
		return
	}
	n, err := l.timerFd.Read()
	if err != nil {
		l.logger().Errorf("[TimerFd.Read]: %s", err.Error())
	}

	t := l.timer
	if t == nil {
		return
	}
	// expirations of a superseded setting were cleared by the re-arm
	if n == 0 && time.Now().Before(t.deadline) {
		return
	}
	if n == 0 {
		n = 1
	}
	l.timer = nil
	if err := l.timerFd.Disarm(); err != nil {
		l.logger().Errorf("[TimerFd.Disarm]: %s", err.Error())
	}
	_ = t.resolve.Resolve(n)
}
