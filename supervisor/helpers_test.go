package supervisor

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/transport"
)

type memSink struct {
	mu   sync.Mutex
	msgs []link.Message
}

func (s *memSink) Offload(_ context.Context, _ string, msgs ...link.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.msgs = append(s.msgs, msgs...)

	return nil
}

func (s *memSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.msgs))
	for _, m := range s.msgs {
		out = append(out, m.Text)
	}

	return out
}

type eventLog struct {
	mu     sync.Mutex
	events []link.Event
}

func (l *eventLog) Publish(ev link.Event) {
	l.mu.Lock()
	l.events = append(l.events, ev)
	l.mu.Unlock()
}

func (l *eventLog) hasConn(status link.ConnStatus) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, ev := range l.events {
		if ev.Type == link.EventConnection && ev.ConnStatus == status {
			return true
		}
	}

	return false
}

func (l *eventLog) count(status link.TransmissionStatus) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := 0
	for _, ev := range l.events {
		if ev.Type == link.EventTransmission && ev.TransmissionStatus == status {
			n++
		}
	}

	return n
}

type readResult struct {
	data []byte
	err  error
}

// scriptedChannel returns its scripted reads in order, then blocks until
// closed or cancelled.
type scriptedChannel struct {
	mu      sync.Mutex
	reads   []readResult
	written []byte
	closed  chan struct{}
	once    sync.Once

	closeCount atomic.Int32
}

func newScriptedChannel(reads ...readResult) *scriptedChannel {
	return &scriptedChannel{reads: reads, closed: make(chan struct{})}
}

func (c *scriptedChannel) Open(context.Context) error { return nil }

func (c *scriptedChannel) Read(ctx context.Context, buf []byte) (int, error) {
	c.mu.Lock()
	if len(c.reads) > 0 {
		r := c.reads[0]
		c.reads = c.reads[1:]
		c.mu.Unlock()

		if r.err != nil {
			return 0, r.err
		}

		return copy(buf, r.data), nil
	}
	c.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.closed:
		return 0, transport.ErrClosed
	}
}

func (c *scriptedChannel) Write(_ context.Context, p []byte) error {
	c.mu.Lock()
	c.written = append(c.written, p...)
	c.mu.Unlock()

	return nil
}

func (c *scriptedChannel) Close() error {
	c.closeCount.Add(1)
	c.once.Do(func() { close(c.closed) })

	return nil
}

func (c *scriptedChannel) Kind() link.ConnType { return link.ConnTCPClient }

func (c *scriptedChannel) RemoteAddr() string { return "scripted" }

func (c *scriptedChannel) output() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]byte(nil), c.written...)
}

// channelFactoryOf always returns ch.
func channelFactoryOf(ch transport.Channel) ChannelFactory {
	return func(link.InstrumentLinkConfig, ...transport.Option) (transport.Channel, error) {
		return ch, nil
	}
}

// analyzerListener emulates an analyzer that accepts the LIS connection.
func analyzerListener(t *testing.T) (net.Listener, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("analyzerListener: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	return ln, ln.Addr().(*net.TCPAddr).Port
}

// closedPort returns a loopback port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()

	ln, port := analyzerListener(t)
	_ = ln.Close()

	return port
}

func runAsync(ctx context.Context, s *Supervisor) <-chan error {
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not return")
	}

	return nil
}

func testOptions(extra ...Option) []Option {
	return append([]Option{
		WithRetryDelay(5 * time.Millisecond),
		WithInactiveDelay(10 * time.Millisecond),
		WithChannelOptions(transport.WithReadTimeout(50*time.Millisecond), transport.WithConnectTimeout(time.Second)),
	}, extra...)
}
