// Package evio is a readiness-based reactor: a group of event loops, each
// locked to its own OS thread, dispatching epoll events for the descriptors
// it owns to a per-loop Handler clone. Besides user descriptors every loop
// polls a mailbox eventfd for cross-thread requests and an optional one-shot
// timerfd.
//
// Linux only.
package evio

const defaultEventsHint = 128

type Options struct {
	NumLoops int
	Handler  Handler
	// EventsHint sizes the per-cycle event buffer; it grows on demand.
	EventsHint int
}

func NewOptions() *Options {
	return &Options{}
}

func (opts *Options) SetNumLoops(num int) *Options {
	opts.NumLoops = num
	return opts
}

func (opts *Options) SetHandler(handler Handler) *Options {
	opts.Handler = handler
	return opts
}

func (opts *Options) SetEventsHint(n int) *Options {
	opts.EventsHint = n
	return opts
}

func (opts Options) withDefaults() Options {
	if opts.EventsHint <= 0 {
		opts.EventsHint = defaultEventsHint
	}
	return opts
}
