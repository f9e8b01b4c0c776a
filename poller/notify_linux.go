//go:build linux

package poller

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/sys/unix"
)

// NotifyFd is an eventfd used to wake a blocked Wait from another goroutine.
// Notify may be called concurrently; Drain and Close belong to the owner.
type NotifyFd struct {
	fd int
}

func NewNotifyFd() (*NotifyFd, error) {
	fd, err := unix.Eventfd(0, unix.EFD_NONBLOCK|unix.EFD_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	return &NotifyFd{fd: fd}, nil
}

func (n *NotifyFd) Fd() int {
	return n.fd
}

func (n *NotifyFd) Notify() error {
	var buf [8]byte
	binary.NativeEndian.PutUint64(buf[:], 1)
	_, err := unix.Write(n.fd, buf[:])
	// EAGAIN means the counter is saturated: the fd is readable anyway.
	if err != nil && err != unix.EAGAIN {
		return fmt.Errorf("eventfd write: %w", err)
	}
	return nil
}

// Drain resets the counter and returns how many notifications it held.
func (n *NotifyFd) Drain() (uint64, error) {
	var buf [8]byte
	_, err := unix.Read(n.fd, buf[:])
	if err != nil {
		if err == unix.EAGAIN {
			return 0, nil
		}
		return 0, fmt.Errorf("eventfd read: %w", err)
	}
	return binary.NativeEndian.Uint64(buf[:]), nil
}

func (n *NotifyFd) Close() error {
	return unix.Close(n.fd)
}
