package evio

import (
	"iter"

	"github.com/dreamans/evio/poller"
)

// Entry is the readiness of one descriptor in one poll cycle.
type Entry struct {
	ev poller.Event
}

func (e Entry) Fd() int { return e.ev.Fd }

func (e Entry) Tag() poller.Tag { return e.ev.Tag }

func (e Entry) Flags() poller.NotifyOn { return e.ev.Flags }

func (e Entry) IsReadable() bool { return e.ev.Flags.Has(poller.NotifyRead) }

func (e Entry) IsWritable() bool { return e.ev.Flags.Has(poller.NotifyWrite) }

func (e Entry) IsHangup() bool { return e.ev.Flags.Has(poller.NotifyHangup) }

func (e Entry) IsShutdown() bool { return e.ev.Flags.Has(poller.NotifyShutdown) }

// FdSet is the read-only batch of entries handed to Handler.OnReady. It is
// only valid for the duration of that call.
type FdSet struct {
	entries []Entry
}

func newFdSet(events []poller.Event) FdSet {
	entries := make([]Entry, len(events))
	for i, ev := range events {
		entries[i] = Entry{ev: ev}
	}
	return FdSet{entries: entries}
}

func (s FdSet) Len() int { return len(s.entries) }

// At panics if i is out of range.
func (s FdSet) At(i int) Entry { return s.entries[i] }

func (s FdSet) All() iter.Seq2[int, Entry] {
	return func(yield func(int, Entry) bool) {
		for i, e := range s.entries {
			if !yield(i, e) {
				return
			}
		}
	}
}
