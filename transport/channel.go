package transport

import (
	"context"
	"fmt"

	"github.com/arloliu/go-lislink/link"
)

// Channel is a bidirectional byte stream to one analyzer.
//
// Read and Write are called from a single goroutine; Close may be called
// concurrently to unblock a pending Read.
type Channel interface {
	// Open establishes the connection. Failures are *ConnectionError.
	Open(ctx context.Context) error
	// Read blocks up to the read timeout and returns ErrReadTimeout when idle.
	Read(ctx context.Context, buf []byte) (int, error)
	// Write sends all of p.
	Write(ctx context.Context, p []byte) error
	// Close releases the connection. It is idempotent.
	Close() error
	// Kind returns the connection type of the channel.
	Kind() link.ConnType
	// RemoteAddr describes the peer, or "" when not connected.
	RemoteAddr() string
}

// Shutdowner is implemented by channels holding resources beyond a single
// connection, such as the TCP server listener.
type Shutdowner interface {
	Shutdown() error
}

// New creates the channel described by cfg. The tunables of cfg (read
// timeout, keepalive) are applied before opts.
func New(cfg link.InstrumentLinkConfig, opts ...Option) (Channel, error) {
	base := []Option{
		WithInstrumentID(cfg.InstrumentID),
		WithReadTimeout(cfg.ReadTimeout),
		WithKeepAlive(cfg.KeepAlive),
	}

	switch cfg.ConnType {
	case link.ConnSerial:
		return NewSerialChannel(cfg.SerialPath, cfg.BaudRate, append(base, opts...)...)
	case link.ConnTCPClient:
		return NewTCPClient(cfg.Host, cfg.Port, append(base, opts...)...)
	case link.ConnTCPServer:
		return NewTCPServer(cfg.Host, cfg.Port, append(base, opts...)...)
	default:
		return nil, fmt.Errorf("%w: unknown connection type %q", link.ErrInvalidConfig, cfg.ConnType)
	}
}
