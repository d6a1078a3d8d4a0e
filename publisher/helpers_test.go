package publisher

import (
	"errors"
	"sync"

	"github.com/arloliu/go-lislink/link"
)

type published struct {
	subject string
	data    []byte
}

type fakeConn struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (c *fakeConn) Publish(subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.err != nil {
		return c.err
	}
	c.msgs = append(c.msgs, published{subject: subject, data: data})

	return nil
}

var errNoResponders = errors.New("nats: connection closed")

type eventLog struct {
	mu     sync.Mutex
	events []link.Event
	block  chan struct{}
}

func (l *eventLog) Publish(ev link.Event) {
	if l.block != nil {
		<-l.block
	}
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.events)
}

func (l *eventLog) snapshot() []link.Event {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]link.Event, len(l.events))
	copy(out, l.events)

	return out
}
