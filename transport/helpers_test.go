package transport

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/arloliu/go-lislink/link"
)

// eventRecorder collects published events.
type eventRecorder struct {
	mu     sync.Mutex
	events []link.Event
}

func (r *eventRecorder) Publish(ev link.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) statuses() []link.ConnStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]link.ConnStatus, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.ConnStatus)
	}

	return out
}

// listenLoopback starts a TCP listener on a free loopback port.
func listenLoopback(t *testing.T) (net.Listener, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listenLoopback: %v", err)
	}
	t.Cleanup(func() { _ = ln.Close() })

	return ln, ln.Addr().(*net.TCPAddr).Port
}

// dialServer connects to a TCPServer that is already listening.
func dialServer(t *testing.T, s *TCPServer) net.Conn {
	t.Helper()

	conn, err := net.DialTimeout("tcp", s.Addr().String(), time.Second)
	if err != nil {
		t.Fatalf("dialServer: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	return conn
}

func shortTimeouts() []Option {
	return []Option{
		WithReadTimeout(50 * time.Millisecond),
		WithConnectTimeout(time.Second),
	}
}

// acceptAsync accepts one connection from ln in the background.
func acceptAsync(ln net.Listener) <-chan net.Conn {
	ch := make(chan net.Conn, 1)
	go func() {
		defer close(ch)
		if conn, err := ln.Accept(); err == nil {
			ch <- conn
		}
	}()

	return ch
}

// waitPeer waits for the connection accepted by acceptAsync and closes it
// when the test ends.
func waitPeer(t *testing.T, accepted <-chan net.Conn) net.Conn {
	t.Helper()

	select {
	case conn, ok := <-accepted:
		if !ok {
			t.Fatal("accept failed")
		}
		t.Cleanup(func() { _ = conn.Close() })

		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("server did not accept")
	}

	return nil
}
