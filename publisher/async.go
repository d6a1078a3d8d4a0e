package publisher

import (
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-lislink/internal/queue"
	"github.com/arloliu/go-lislink/link"
)

// DefaultAsyncCapacity is the default number of events Async buffers.
const DefaultAsyncCapacity = 1024

// Async forwards events to another publisher from its own goroutine.
//
// Publish never blocks; when capacity events are already pending the new
// event is dropped and counted.
type Async struct {
	next     link.EventPublisher
	capacity int

	events  *queue.Queue[link.Event]
	wake    chan struct{}
	quit    chan struct{}
	done    chan struct{}
	closed  atomic.Bool
	dropped atomic.Uint64
	once    sync.Once
}

var _ link.EventPublisher = (*Async)(nil)

// NewAsync starts an Async publisher in front of next. A capacity <= 0
// selects DefaultAsyncCapacity.
func NewAsync(next link.EventPublisher, capacity int) *Async {
	if capacity <= 0 {
		capacity = DefaultAsyncCapacity
	}

	a := &Async{
		next:     next,
		capacity: capacity,
		events:   queue.New[link.Event](),
		wake:     make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go a.run()

	return a
}

func (a *Async) Publish(ev link.Event) {
	if a.closed.Load() || a.events.Len() >= a.capacity {
		a.dropped.Add(1)
		return
	}

	a.events.Enqueue(ev)

	select {
	case a.wake <- struct{}{}:
	default:
	}
}

// Dropped returns how many events were discarded.
func (a *Async) Dropped() uint64 {
	return a.dropped.Load()
}

// Close delivers the pending events and stops the goroutine. Events
// published afterwards are dropped.
func (a *Async) Close() {
	a.once.Do(func() {
		a.closed.Store(true)
		close(a.quit)
	})
	<-a.done
}

func (a *Async) run() {
	defer close(a.done)

	for {
		a.drain()

		select {
		case <-a.wake:
		case <-a.quit:
			a.drain()
			return
		}
	}
}

func (a *Async) drain() {
	for {
		ev, ok := a.events.Dequeue()
		if !ok {
			return
		}
		a.next.Publish(ev)
	}
}
