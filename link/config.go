package link

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// ConnType selects the transport variant of an instrument link.
type ConnType string

const (
	// ConnSerial is a serial line (RS-232 / USB serial adapter).
	ConnSerial ConnType = "serial"
	// ConnTCPClient connects outward to an analyzer listening on host:port.
	ConnTCPClient ConnType = "tcp-client"
	// ConnTCPServer listens on host:port and accepts the analyzer's connection.
	ConnTCPServer ConnType = "tcp-server"
)

// ParseConnType parses a connection type name. "client" and "server" are
// accepted as aliases of the TCP variants.
func ParseConnType(name string) (ConnType, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "serial":
		return ConnSerial, nil
	case "tcp-client", "client", "socket-client":
		return ConnTCPClient, nil
	case "tcp-server", "server", "socket-server":
		return ConnTCPServer, nil
	default:
		return "", fmt.Errorf("%w: unknown connection type %q", ErrInvalidConfig, name)
	}
}

// Default and limit values for InstrumentLinkConfig tunables.
const (
	DefaultReadTimeout         = 5 * time.Second
	DefaultMaxMessageSize      = 1 << 20
	DefaultMaxTransferDuration = 60 * time.Second
	DefaultBaudRate            = 9600

	DefaultKeepAliveIdle     = 30 * time.Second
	DefaultKeepAliveInterval = 10 * time.Second
	DefaultKeepAliveCount    = 3

	MinReadTimeout = 10 * time.Millisecond
	MaxReadTimeout = 60 * time.Second

	MinMaxMessageSize = 64
)

// KeepAliveConfig holds TCP keepalive probe parameters. Zero fields use
// the defaults; a negative Idle disables keepalive.
type KeepAliveConfig struct {
	Idle     time.Duration
	Interval time.Duration
	Count    int
}

// InstrumentLinkConfig describes how to reach one instrument and which
// protocol it speaks.
//
// It is owned by a ConfigProvider and read once per connection attempt; the
// link treats it as immutable for the lifetime of that connection.
type InstrumentLinkConfig struct {
	InstrumentID string
	Name         string

	ConnType   ConnType
	Host       string
	Port       int
	SerialPath string
	BaudRate   int

	Protocol      Protocol
	Active        bool
	AutoReconnect bool

	// ReadTimeout bounds how long a single read blocks while idle.
	ReadTimeout time.Duration
	// MaxMessageSize caps the accumulated size of one message in bytes.
	MaxMessageSize int
	// MaxTransferDuration caps how long a transfer may stay open without completion.
	MaxTransferDuration time.Duration
	// SkipChecksum disables ASTM checksum verification on every transport.
	SkipChecksum bool

	KeepAlive KeepAliveConfig
}

// Addr returns "host:port" for socket links.
func (c InstrumentLinkConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Endpoint returns a human readable transport endpoint for logs and events.
func (c InstrumentLinkConfig) Endpoint() string {
	if c.ConnType == ConnSerial {
		return fmt.Sprintf("%s@%d", c.SerialPath, c.BaudRate)
	}

	return c.Addr()
}

// WithDefaults returns a copy of c with zero-valued tunables replaced by defaults.
func (c InstrumentLinkConfig) WithDefaults() InstrumentLinkConfig {
	if c.ReadTimeout == 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.MaxTransferDuration == 0 {
		c.MaxTransferDuration = DefaultMaxTransferDuration
	}
	if c.ConnType == ConnSerial && c.BaudRate == 0 {
		c.BaudRate = DefaultBaudRate
	}
	if c.KeepAlive.Idle == 0 {
		c.KeepAlive.Idle = DefaultKeepAliveIdle
	}
	if c.KeepAlive.Interval == 0 {
		c.KeepAlive.Interval = DefaultKeepAliveInterval
	}
	if c.KeepAlive.Count == 0 {
		c.KeepAlive.Count = DefaultKeepAliveCount
	}

	return c
}

// Validate reports a configuration error that must fail the link at startup.
func (c InstrumentLinkConfig) Validate() error {
	if strings.TrimSpace(c.InstrumentID) == "" {
		return fmt.Errorf("%w: instrument id is empty", ErrInvalidConfig)
	}

	switch c.ConnType {
	case ConnSerial:
		if c.SerialPath == "" {
			return fmt.Errorf("%w: %s: serial path is empty", ErrInvalidConfig, c.InstrumentID)
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("%w: %s: invalid baud rate %d", ErrInvalidConfig, c.InstrumentID, c.BaudRate)
		}
	case ConnTCPClient, ConnTCPServer:
		if c.ConnType == ConnTCPClient && c.Host == "" {
			return fmt.Errorf("%w: %s: host is empty", ErrInvalidConfig, c.InstrumentID)
		}
		if c.Port < 0 || c.Port > 65535 {
			return fmt.Errorf("%w: %s: port %d out of range [0, 65535]", ErrInvalidConfig, c.InstrumentID, c.Port)
		}
	default:
		return fmt.Errorf("%w: %s: unknown connection type %q", ErrInvalidConfig, c.InstrumentID, c.ConnType)
	}

	if c.Protocol > ProtocolHL7 {
		return fmt.Errorf("%w: %s: unknown protocol %d", ErrInvalidConfig, c.InstrumentID, c.Protocol)
	}

	if c.ReadTimeout != 0 && (c.ReadTimeout < MinReadTimeout || c.ReadTimeout > MaxReadTimeout) {
		return fmt.Errorf("%w: %s: read timeout %v out of range [%v, %v]",
			ErrInvalidConfig, c.InstrumentID, c.ReadTimeout, MinReadTimeout, MaxReadTimeout)
	}

	if c.MaxMessageSize != 0 && c.MaxMessageSize < MinMaxMessageSize {
		return fmt.Errorf("%w: %s: max message size %d below %d",
			ErrInvalidConfig, c.InstrumentID, c.MaxMessageSize, MinMaxMessageSize)
	}

	if c.MaxTransferDuration < 0 {
		return fmt.Errorf("%w: %s: negative max transfer duration", ErrInvalidConfig, c.InstrumentID)
	}

	return nil
}
