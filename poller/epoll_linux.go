//go:build linux

package poller

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
)

const (
	readEvents     = unix.EPOLLIN | unix.EPOLLPRI
	writeEvents    = unix.EPOLLOUT
	hangupEvents   = unix.EPOLLHUP
	shutdownEvents = unix.EPOLLRDHUP
)

type Epoll struct {
	fd     int
	tags   map[int]Tag
	events []unix.EpollEvent
	closed bool
}

func New() (Poller, error) {
	ep, err := EpollCreate()
	if err != nil {
		return nil, err
	}
	return ep, nil
}

func EpollCreate() (*Epoll, error) {
	fd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &Epoll{
		fd:     fd,
		tags:   make(map[int]Tag),
		events: make([]unix.EpollEvent, waitEventsBeginNum),
	}, nil
}

func (ep *Epoll) Add(fd int, interest NotifyOn, tag Tag, mode Mode) error {
	if ep.closed {
		return ErrClosed
	}
	if fd < 0 {
		return ErrInvalidFd
	}
	if _, ok := ep.tags[fd]; ok {
		return ErrAlreadyRegistered
	}
	if err := ep.ctl(unix.EPOLL_CTL_ADD, fd, interest, mode); err != nil {
		return err
	}
	ep.tags[fd] = tag
	return nil
}

func (ep *Epoll) Modify(fd int, interest NotifyOn, tag Tag, mode Mode) error {
	if ep.closed {
		return ErrClosed
	}
	if _, ok := ep.tags[fd]; !ok {
		return ErrNotRegistered
	}
	if err := ep.ctl(unix.EPOLL_CTL_MOD, fd, interest, mode); err != nil {
		return err
	}
	ep.tags[fd] = tag
	return nil
}

func (ep *Epoll) Remove(fd int) error {
	if ep.closed {
		return ErrClosed
	}
	if _, ok := ep.tags[fd]; !ok {
		return ErrNotRegistered
	}
	delete(ep.tags, fd)
	if err := unix.EpollCtl(ep.fd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (ep *Epoll) Tag(fd int) (Tag, bool) {
	tag, ok := ep.tags[fd]
	return tag, ok
}

func (ep *Epoll) Wait(events []Event, timeout time.Duration) ([]Event, error) {
	events = events[:0]
	if ep.closed {
		return events, ErrClosed
	}

	n, err := unix.EpollWait(ep.fd, ep.events, timeoutMs(timeout))
	if err != nil {
		if err == unix.EINTR {
			return events, nil
		}
		return events, fmt.Errorf("epoll wait: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(ep.events[i].Fd)
		tag, ok := ep.tags[fd]
		if !ok {
			continue
		}
		events = append(events, Event{
			Fd:    fd,
			Tag:   tag,
			Flags: fromEpoll(ep.events[i].Events),
		})
	}
	if n == len(ep.events) {
		ep.events = make([]unix.EpollEvent, int(float64(n)*1.5))
	}
	return events, nil
}

func (ep *Epoll) Close() error {
	if ep.closed {
		return ErrClosed
	}
	ep.closed = true
	ep.tags = nil
	return unix.Close(ep.fd)
}

func (ep *Epoll) ctl(op int, fd int, interest NotifyOn, mode Mode) error {
	ev := &unix.EpollEvent{
		Fd:     int32(fd),
		Events: toEpoll(interest, mode),
	}
	if err := unix.EpollCtl(ep.fd, op, fd, ev); err != nil {
		return fmt.Errorf("epoll ctl: %w", err)
	}
	return nil
}

func toEpoll(interest NotifyOn, mode Mode) uint32 {
	var events uint32
	if interest.Has(NotifyRead) {
		events |= readEvents
	}
	if interest.Has(NotifyWrite) {
		events |= writeEvents
	}
	if interest.Has(NotifyHangup) {
		events |= hangupEvents
	}
	if interest.Has(NotifyShutdown) {
		events |= shutdownEvents
	}
	switch mode {
	case Edge:
		events |= unix.EPOLLET
	case OneShot:
		events |= unix.EPOLLONESHOT
	}
	return events
}

// fromEpoll reports EPOLLERR as a hangup: both end the usefulness of the fd.
func fromEpoll(events uint32) NotifyOn {
	var flags NotifyOn
	if events&readEvents != 0 {
		flags |= NotifyRead
	}
	if events&writeEvents != 0 {
		flags |= NotifyWrite
	}
	if events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
		flags |= NotifyHangup
	}
	if events&shutdownEvents != 0 {
		flags |= NotifyShutdown
	}
	return flags
}
