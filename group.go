package evio

import (
	"sync"

	"github.com/dreamans/evio/async"
	"github.com/dreamans/evio/evlog"
	"github.com/dreamans/evio/poller"
	"github.com/dreamans/evio/util"
)

// EventLoopGroup is a fixed set of event loops, each run on its own
// goroutine. A descriptor always routes to the same loop.
type EventLoopGroup struct {
	mu         sync.Mutex
	loops      []*EventLoop
	wg         sync.WaitGroup
	started    util.AtomicBool
	inShutdown util.AtomicBool
}

func NewEventLoopGroup(opts *Options) (*EventLoopGroup, error) {
	if opts == nil {
		return nil, &PoolInitError{Index: -1, Err: ErrNilHandler}
	}
	o := opts.withDefaults()
	if o.NumLoops <= 0 {
		return nil, &PoolInitError{Index: -1, Err: ErrInvalidNumLoops}
	}
	if o.Handler == nil {
		return nil, &PoolInitError{Index: -1, Err: ErrNilHandler}
	}

	loops := make([]*EventLoop, 0, o.NumLoops)
	for i := 0; i < o.NumLoops; i++ {
		loop, err := newEventLoop(i, o.Handler, o.EventsHint)
		if err != nil {
			for _, l := range loops {
				_ = l.Shutdown()
			}
			return nil, &PoolInitError{Index: i, Err: err}
		}
		loops = append(loops, loop)
	}
	return &EventLoopGroup{loops: loops}, nil
}

// Start runs every loop on its own goroutine and returns once all of them
// are running.
func (g *EventLoopGroup) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inShutdown.IsSet() {
		return ErrGroupClosed
	}
	if !g.started.TrySet() {
		return ErrGroupRunning
	}

	for _, loop := range g.loops {
		g.wg.Add(1)
		go func(l *EventLoop) {
			defer g.wg.Done()
			if err := l.Run(); err != nil {
				l.logger().Errorf("[EventLoop.Run]: %s", err.Error())
			}
		}(loop)
	}
	for _, l := range g.loops {
		select {
		case <-l.started:
		case <-l.done:
		}
	}
	evlog.Debugf("[EventLoopGroup.Start]: %d loops running", len(g.loops))
	return nil
}

// Shutdown stops every loop and waits for their goroutines to exit. Called
// from a loop thread it only signals the loops, which finish once the
// calling handler returns.
func (g *EventLoopGroup) Shutdown() error {
	g.mu.Lock()
	if !g.inShutdown.TrySet() {
		g.mu.Unlock()
		return ErrGroupClosed
	}
	g.mu.Unlock()

	for _, l := range g.loops {
		l.requestStop()
	}
	if g.inLoop() {
		return nil
	}
	g.wg.Wait()
	for _, l := range g.loops {
		<-l.Done()
	}
	return nil
}

func (g *EventLoopGroup) inLoop() bool {
	for _, l := range g.loops {
		if l.inLoop() {
			return true
		}
	}
	return false
}

// Loop returns the loop owning fd. It is a pure function of fd and the
// group size.
func (g *EventLoopGroup) Loop(fd int) *EventLoop {
	return g.loops[uint(fd)%uint(len(g.loops))]
}

// LoopAt panics if i is out of range.
func (g *EventLoopGroup) LoopAt(i int) *EventLoop {
	return g.loops[i]
}

func (g *EventLoopGroup) Len() int {
	return len(g.loops)
}

func (g *EventLoopGroup) Empty() bool {
	return len(g.loops) == 0
}

// Register adds fd to the loop that owns it.
func (g *EventLoopGroup) Register(fd int, interest poller.NotifyOn, mode poller.Mode) (poller.Tag, error) {
	return g.Loop(fd).Register(fd, interest, mode)
}

// Load queries every loop; the promises are in loop index order.
func (g *EventLoopGroup) Load() []*async.Promise[Load] {
	promises := make([]*async.Promise[Load], len(g.loops))
	for i, l := range g.loops {
		promises[i] = l.Load()
	}
	return promises
}
