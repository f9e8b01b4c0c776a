package evio

import "github.com/dreamans/evio/poller"

// Handler receives the readiness events of one EventLoop. Each loop owns its
// own clone of a prototype, so implementations need no locking unless clones
// share state on purpose. OnReady runs on the loop thread and must not block.
//
// Implementations embed BaseHandler.
type Handler interface {
	OnReady(fds FdSet)
	// RegisterPoller is called once during loop init, before Run, to let the
	// handler add its own descriptors.
	RegisterPoller(p poller.Poller) error
	Clone() (Handler, error)
	// Loop returns the loop this instance was bound to. It does not keep the
	// loop alive and must not be used to shut it down.
	Loop() *EventLoop

	bind(l *EventLoop)
}

type BaseHandler struct {
	loop *EventLoop
}

func (h *BaseHandler) Loop() *EventLoop { return h.loop }

func (h *BaseHandler) RegisterPoller(poller.Poller) error { return nil }

func (h *BaseHandler) bind(l *EventLoop) { h.loop = l }
