package astm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-lislink/link"
)

// recordingSink collects offloaded messages; it fails every call when err is set.
type recordingSink struct {
	mu    sync.Mutex
	calls [][]link.Message
	err   error
}

func (s *recordingSink) Offload(_ context.Context, _ string, msgs ...link.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, msgs)

	return nil
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.calls)
}

func (s *recordingSink) texts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []string
	for _, call := range s.calls {
		for _, m := range call {
			out = append(out, m.Text)
		}
	}

	return out
}

var errSinkDown = errors.New("sink down")

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// newTestHandler creates a Handler wired to a recording sink and a fake clock.
func newTestHandler(t *testing.T, opts ...Option) (*Handler, *recordingSink, *fakeClock) {
	t.Helper()

	sink := &recordingSink{}
	clock := newFakeClock()

	h, err := NewHandler("analyzer-1", sink, append([]Option{WithClock(clock.Now)}, opts...)...)
	if err != nil {
		t.Fatalf("newTestHandler: %v", err)
	}

	return h, sink, clock
}

// frame builds a wire frame with a correct checksum.
func frame(num uint8, payload string, final bool) []byte {
	f := &Frame{Number: num, Payload: []byte(payload), Terminator: ETB}
	if final {
		f.Terminator = ETX
	}

	return f.Pack()
}

func concat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}

	return out
}
