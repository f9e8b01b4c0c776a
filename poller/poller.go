package poller

import (
	"errors"
	"math"
	"strings"
	"sync/atomic"
	"time"
)

type (
	// NotifyOn is the set of conditions a registrant wants reported.
	NotifyOn uint8

	Mode uint8

	// Tag pairs with a descriptor so that events for a reused descriptor
	// value can be told apart from events of an earlier registration.
	Tag uint64
)

const (
	NotifyRead NotifyOn = 1 << iota
	NotifyWrite
	NotifyHangup
	NotifyShutdown
)

const (
	Level Mode = iota
	Edge
	// OneShot reports readiness once, then stays silent until the
	// descriptor is modified again.
	OneShot
)

const (
	waitEventsBeginNum = 128
)

var (
	ErrClosed            = errors.New("poller is not running")
	ErrAlreadyRegistered = errors.New("poller: fd already registered")
	ErrNotRegistered     = errors.New("poller: fd not registered")
	ErrInvalidFd         = errors.New("poller: invalid fd")
)

// Event is one descriptor's readiness as observed by a single Wait.
type Event struct {
	Fd    int
	Tag   Tag
	Flags NotifyOn
}

// Poller multiplexes readiness over a set of descriptors. Implementations
// are not safe for concurrent use: every method is called from the goroutine
// that owns the poller.
type Poller interface {
	Add(fd int, interest NotifyOn, tag Tag, mode Mode) error
	Modify(fd int, interest NotifyOn, tag Tag, mode Mode) error
	Remove(fd int) error
	// Tag returns the tag of a registered descriptor.
	Tag(fd int) (Tag, bool)
	// Wait appends ready events to events[:0]. A negative timeout blocks
	// until at least one descriptor is ready.
	Wait(events []Event, timeout time.Duration) ([]Event, error)
	Close() error
}

var lastTag uint64

// NextTag returns a process-wide unique, non-zero tag.
func NextTag() Tag {
	return Tag(atomic.AddUint64(&lastTag, 1))
}

func (n NotifyOn) Has(flag NotifyOn) bool {
	return n&flag == flag
}

func (n NotifyOn) String() string {
	if n == 0 {
		return "none"
	}
	var parts []string
	for _, f := range []struct {
		flag NotifyOn
		name string
	}{
		{NotifyRead, "read"},
		{NotifyWrite, "write"},
		{NotifyHangup, "hangup"},
		{NotifyShutdown, "shutdown"},
	} {
		if n.Has(f.flag) {
			parts = append(parts, f.name)
		}
	}
	return strings.Join(parts, "|")
}

func (m Mode) String() string {
	switch m {
	case Level:
		return "level"
	case Edge:
		return "edge"
	case OneShot:
		return "oneshot"
	default:
		return "unknown"
	}
}

// timeoutMs rounds up so a wait never returns before the requested duration.
func timeoutMs(timeout time.Duration) int {
	if timeout < 0 {
		return -1
	}
	ms := (timeout + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(ms)
}
