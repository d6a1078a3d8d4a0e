package transport

import (
	"errors"
	"fmt"
)

var (
	// ErrReadTimeout is returned by Read when no byte arrived within the read
	// timeout. It is not fatal.
	ErrReadTimeout = errors.New("transport: read timeout")
	// ErrPeerClosed is returned by Read when the remote side closed the connection.
	ErrPeerClosed = errors.New("transport: peer closed connection")
	// ErrNotOpen is returned by Read and Write before Open succeeded.
	ErrNotOpen = errors.New("transport: channel not open")
	// ErrClosed is returned when the channel was closed locally.
	ErrClosed = errors.New("transport: channel closed")
)

// ConnectionError reports a failure to open a channel, wrapping the OS error.
type ConnectionError struct {
	Op       string // "dial", "listen", "accept" or "open"
	Endpoint string
	Err      error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Endpoint, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err ends the connection. Read timeouts are the only
// non-fatal errors.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrReadTimeout)
}
