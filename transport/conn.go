package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/arloliu/go-lislink/link"
)

// netConn is the connection state shared by the TCP channel variants.
type netConn struct {
	cfg *channelConfig

	mu   sync.RWMutex
	conn net.Conn
}

func (c *netConn) set(conn net.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *netConn) get() net.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.conn
}

// take removes and returns the connection so that only one caller closes it.
func (c *netConn) take() net.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn := c.conn
	c.conn = nil

	return conn
}

func (c *netConn) RemoteAddr() string {
	conn := c.get()
	if conn == nil {
		return ""
	}

	return conn.RemoteAddr().String()
}

// Read reads from the connection with a deadline of the read timeout. A
// cancelled ctx unblocks the read.
func (c *netConn) Read(ctx context.Context, buf []byte) (int, error) {
	conn := c.get()
	if conn == nil {
		return 0, ErrNotOpen
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	deadline := time.Now().Add(c.cfg.readTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := conn.SetReadDeadline(deadline); err != nil {
		return 0, classifyReadError(err)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	n, err := conn.Read(buf)
	if n > 0 {
		// an error returned with data is reported by the next Read
		return n, nil
	}

	if err == nil {
		return 0, ErrReadTimeout
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return 0, ctxErr
	}

	return 0, classifyReadError(err)
}

// Write writes all of p with a deadline of the write timeout.
func (c *netConn) Write(ctx context.Context, p []byte) error {
	conn := c.get()
	if conn == nil {
		return ErrNotOpen
	}

	deadline := time.Now().Add(c.cfg.writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("transport: set write deadline: %w", err)
	}

	for len(p) > 0 {
		n, err := conn.Write(p)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return ErrClosed
			}

			return fmt.Errorf("transport: write: %w", err)
		}
		p = p[n:]
	}

	return nil
}

// closeConn closes the current connection and publishes a disconnected
// event. It reports whether a connection was open.
func (c *netConn) closeConn(reason string) (bool, error) {
	conn := c.take()
	if conn == nil {
		return false, nil
	}

	err := conn.Close()
	c.cfg.logger.Debug("transport: connection closed",
		"instrument", c.cfg.instrumentID, "remoteAddr", conn.RemoteAddr(), "reason", reason)
	c.cfg.publish(link.ConnStatusDisconnected, reason)

	if err != nil && !errors.Is(err, net.ErrClosed) {
		return true, err
	}

	return true, nil
}

func classifyReadError(err error) error {
	var netErr net.Error

	switch {
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %w", ErrPeerClosed, err)
	case errors.Is(err, net.ErrClosed):
		return ErrClosed
	case errors.As(err, &netErr) && netErr.Timeout():
		return ErrReadTimeout
	case isConnResetError(err):
		return fmt.Errorf("%w: %w", ErrPeerClosed, err)
	default:
		return fmt.Errorf("transport: read: %w", err)
	}
}
