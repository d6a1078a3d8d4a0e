package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-lislink/link"
)

// acceptRetryDelay is the pause after a transient accept failure.
const acceptRetryDelay = 100 * time.Millisecond

// TCPServer is a channel that listens on host:port and serves one analyzer
// connection at a time.
//
// The listener is created by the first Open and survives Close, so the next
// Open waits for the analyzer to reconnect on the same port. Shutdown closes
// the listener.
type TCPServer struct {
	netConn
	address string

	lnMu     sync.Mutex
	listener net.Listener
	incoming chan net.Conn
	done     chan struct{}
	shutdown atomic.Bool
	// active is set from the moment a connection is handed to Open until Close.
	active atomic.Bool

	rejected atomic.Uint64
	wg       sync.WaitGroup
}

var (
	_ Channel    = (*TCPServer)(nil)
	_ Shutdowner = (*TCPServer)(nil)
)

// NewTCPServer creates a TCP server channel bound to host:port. An empty
// host listens on all interfaces; port 0 picks a free port on Open.
func NewTCPServer(host string, port int, opts ...Option) (*TCPServer, error) {
	if port < 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", link.ErrInvalidConfig, port)
	}

	cfg, err := newChannelConfig(opts)
	if err != nil {
		return nil, err
	}

	return &TCPServer{
		netConn:  netConn{cfg: cfg},
		address:  net.JoinHostPort(host, strconv.Itoa(port)),
		incoming: make(chan net.Conn),
		done:     make(chan struct{}),
	}, nil
}

// Kind returns link.ConnTCPServer.
func (s *TCPServer) Kind() link.ConnType { return link.ConnTCPServer }

// Addr returns the listener address, or nil before the first Open.
func (s *TCPServer) Addr() net.Addr {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()

	if s.listener == nil {
		return nil
	}

	return s.listener.Addr()
}

// Rejected returns the number of connection attempts closed because a
// connection was already active.
func (s *TCPServer) Rejected() uint64 {
	return s.rejected.Load()
}

// Listen creates the listener without waiting for a connection. Open calls
// it implicitly.
func (s *TCPServer) Listen() error {
	s.lnMu.Lock()
	defer s.lnMu.Unlock()

	if s.shutdown.Load() {
		return ErrClosed
	}

	if s.listener != nil {
		return nil
	}

	lc := net.ListenConfig{
		Control:         reuseControl,
		KeepAliveConfig: s.cfg.netKeepAlive(),
	}

	ln, err := lc.Listen(context.Background(), "tcp", s.address)
	if err != nil {
		s.cfg.logger.Error("transport: failed to listen", "instrument", s.cfg.instrumentID, "address", s.address, "error", err)

		return &ConnectionError{Op: "listen", Endpoint: s.address, Err: err}
	}

	s.listener = ln
	s.cfg.logger.Info("transport: listening", "instrument", s.cfg.instrumentID, "address", ln.Addr())

	s.wg.Add(1)
	go s.acceptLoop(ln)

	return nil
}

// Open waits for the analyzer to connect.
func (s *TCPServer) Open(ctx context.Context) error {
	if s.get() != nil {
		return nil
	}

	if err := s.Listen(); err != nil {
		return err
	}

	s.cfg.publish(link.ConnStatusConnecting, s.address)

	select {
	case conn := <-s.incoming:
		s.set(conn)
		s.cfg.logger.Info("transport: connection accepted",
			"instrument", s.cfg.instrumentID, "remoteAddr", conn.RemoteAddr())
		s.cfg.publish(link.ConnStatusConnected, conn.RemoteAddr().String())

		return nil

	case <-ctx.Done():
		return ctx.Err()

	case <-s.done:
		return ErrClosed
	}
}

// Close ends the current connection; the listener stays open.
func (s *TCPServer) Close() error {
	wasOpen, err := s.closeConn("closed")
	if wasOpen {
		s.active.Store(false)
	}

	return err
}

// Shutdown closes the current connection and the listener.
func (s *TCPServer) Shutdown() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}

	close(s.done)
	err := s.Close()

	s.lnMu.Lock()
	if s.listener != nil {
		err = errors.Join(err, s.listener.Close())
		s.listener = nil
	}
	s.lnMu.Unlock()

	s.wg.Wait()

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}

	return nil
}

// acceptLoop accepts connections until the listener is closed. A connection
// arriving while another one is active is closed immediately.
func (s *TCPServer) acceptLoop(ln net.Listener) {
	defer s.wg.Done()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || s.shutdown.Load() {
				return
			}

			s.cfg.logger.Warn("transport: accept failed", "instrument", s.cfg.instrumentID, "error", err)

			select {
			case <-s.done:
				return
			case <-time.After(acceptRetryDelay):
			}

			continue
		}

		if !s.active.CompareAndSwap(false, true) {
			s.rejected.Add(1)
			s.cfg.logger.Warn("transport: rejecting concurrent connection",
				"instrument", s.cfg.instrumentID, "remoteAddr", conn.RemoteAddr())
			_ = conn.Close()

			continue
		}

		select {
		case s.incoming <- conn:
		case <-s.done:
			s.active.Store(false)
			_ = conn.Close()

			return
		}
	}
}
