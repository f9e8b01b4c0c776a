//go:build linux

package poller

import (
	"encoding/binary"
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

// TimerFd is a one-shot CLOCK_MONOTONIC timerfd.
type TimerFd struct {
	fd int
}

func NewTimerFd() (*TimerFd, error) {
	fd, err := unix.TimerfdCreate(unix.CLOCK_MONOTONIC, unix.TFD_NONBLOCK|unix.TFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("timerfd create: %w", err)
	}
	return &TimerFd{fd: fd}, nil
}

func (t *TimerFd) Fd() int {
	return t.fd
}

// Arm schedules a single expiration d from now, replacing any previous
// setting. A zero value would disarm the timer, so d is at least 1ns.
func (t *TimerFd) Arm(d time.Duration) error {
	if d <= 0 {
		d = time.Nanosecond
	}
	its := unix.ItimerSpec{Value: unix.NsecToTimespec(d.Nanoseconds())}
	if err := unix.TimerfdSettime(t.fd, 0, &its, nil); err != nil {
		return fmt.Errorf("timerfd settime: %w", err)
	}
	return nil
}

// Disarm stops the timer and clears pending expirations.
func (t *TimerFd) Disarm() error {
	var its unix.ItimerSpec
	if err := unix.TimerfdSettime(t.fd, 0, &its, nil); err != nil {
		return fmt.Errorf("timerfd settime: %w", err)
	}
	return nil
}

// Read returns the number of expirations since the last read, 0 if none.
func (t *TimerFd) Read() (uint64, error) {
	var buf [8]byte
	_, err := unix.Read(t.fd, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, fmt.Errorf("timerfd read: %w", err)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

func (t *TimerFd) Close() error {
	return unix.Close(t.fd)
}
