package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.bug.st/serial"

	"github.com/arloliu/go-lislink/link"
)

// SerialChannel is a channel over an RS-232 line, 8 data bits, no parity and
// one stop bit.
type SerialChannel struct {
	cfg  *channelConfig
	path string
	baud int

	// open is swapped in tests.
	open func(path string, mode *serial.Mode) (serial.Port, error)

	mu   sync.RWMutex
	port serial.Port
}

var _ Channel = (*SerialChannel)(nil)

// NewSerialChannel creates a serial channel for the device at path.
func NewSerialChannel(path string, baud int, opts ...Option) (*SerialChannel, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: serial channel needs a device path", link.ErrInvalidConfig)
	}
	if baud == 0 {
		baud = link.DefaultBaudRate
	}
	if baud < 0 {
		return nil, fmt.Errorf("%w: baud rate %d", link.ErrInvalidConfig, baud)
	}

	cfg, err := newChannelConfig(opts)
	if err != nil {
		return nil, err
	}

	return &SerialChannel{cfg: cfg, path: path, baud: baud, open: serial.Open}, nil
}

// Kind returns link.ConnSerial.
func (c *SerialChannel) Kind() link.ConnType { return link.ConnSerial }

// RemoteAddr returns the device path while open.
func (c *SerialChannel) RemoteAddr() string {
	if c.getPort() == nil {
		return ""
	}

	return c.path
}

// Open opens the serial device and sets its read timeout.
func (c *SerialChannel) Open(_ context.Context) error {
	if c.getPort() != nil {
		return nil
	}

	c.cfg.publish(link.ConnStatusConnecting, c.path)

	mode := &serial.Mode{
		BaudRate: c.baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := c.open(c.path, mode)
	if err != nil {
		c.cfg.publish(link.ConnStatusDisconnected, err.Error())

		return &ConnectionError{Op: "open", Endpoint: c.path, Err: err}
	}

	if err := port.SetReadTimeout(c.cfg.readTimeout); err != nil {
		_ = port.Close()
		c.cfg.publish(link.ConnStatusDisconnected, err.Error())

		return &ConnectionError{Op: "open", Endpoint: c.path, Err: err}
	}

	c.mu.Lock()
	c.port = port
	c.mu.Unlock()

	c.cfg.logger.Info("transport: serial port opened", "instrument", c.cfg.instrumentID, "path", c.path, "baud", c.baud)
	c.cfg.publish(link.ConnStatusConnected, c.path)

	return nil
}

// Read returns ErrReadTimeout when the port read timeout elapses with no data.
func (c *SerialChannel) Read(ctx context.Context, buf []byte) (int, error) {
	port := c.getPort()
	if port == nil {
		return 0, ErrNotOpen
	}

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n, err := port.Read(buf)
	if err != nil {
		if isPortClosed(err) {
			return 0, ErrClosed
		}

		return 0, fmt.Errorf("transport: serial read: %w", err)
	}

	if n == 0 {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		return 0, ErrReadTimeout
	}

	return n, nil
}

// Write sends all of p and waits until it has been transmitted.
func (c *SerialChannel) Write(_ context.Context, p []byte) error {
	port := c.getPort()
	if port == nil {
		return ErrNotOpen
	}

	for len(p) > 0 {
		n, err := port.Write(p)
		if err != nil {
			if isPortClosed(err) {
				return ErrClosed
			}

			return fmt.Errorf("transport: serial write: %w", err)
		}
		p = p[n:]
	}

	if err := port.Drain(); err != nil && !isPortClosed(err) {
		return fmt.Errorf("transport: serial drain: %w", err)
	}

	return nil
}

// Close closes the port. It is idempotent.
func (c *SerialChannel) Close() error {
	c.mu.Lock()
	port := c.port
	c.port = nil
	c.mu.Unlock()

	if port == nil {
		return nil
	}

	err := port.Close()
	c.cfg.publish(link.ConnStatusDisconnected, "closed")

	if err != nil && !isPortClosed(err) {
		return fmt.Errorf("transport: serial close: %w", err)
	}

	return nil
}

func (c *SerialChannel) getPort() serial.Port {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.port
}

func isPortClosed(err error) bool {
	var portErr *serial.PortError

	return errors.As(err, &portErr) && portErr.Code() == serial.PortClosed
}
