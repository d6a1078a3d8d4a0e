package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/arloliu/go-lislink/link"
)

// TCPClient is a channel that dials an analyzer listening on host:port.
type TCPClient struct {
	netConn
	address string
}

var _ Channel = (*TCPClient)(nil)

// NewTCPClient creates a TCP client channel for host:port.
func NewTCPClient(host string, port int, opts ...Option) (*TCPClient, error) {
	if host == "" {
		return nil, fmt.Errorf("%w: tcp client needs a host", link.ErrInvalidConfig)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", link.ErrInvalidConfig, port)
	}

	cfg, err := newChannelConfig(opts)
	if err != nil {
		return nil, err
	}

	return &TCPClient{
		netConn: netConn{cfg: cfg},
		address: net.JoinHostPort(host, strconv.Itoa(port)),
	}, nil
}

// Kind returns link.ConnTCPClient.
func (c *TCPClient) Kind() link.ConnType { return link.ConnTCPClient }

// Open dials the analyzer with the connect timeout and TCP keepalive applied.
func (c *TCPClient) Open(ctx context.Context) error {
	if c.get() != nil {
		return nil
	}

	c.cfg.publish(link.ConnStatusConnecting, c.address)

	dialer := &net.Dialer{
		Timeout:         c.cfg.connectTimeout,
		KeepAliveConfig: c.cfg.netKeepAlive(),
	}

	conn, err := dialer.DialContext(ctx, "tcp", c.address)
	if err != nil {
		c.cfg.logger.Debug("transport: dial failed", "instrument", c.cfg.instrumentID, "address", c.address, "error", err)
		c.cfg.publish(link.ConnStatusDisconnected, err.Error())

		return &ConnectionError{Op: "dial", Endpoint: c.address, Err: err}
	}

	c.set(conn)
	c.cfg.logger.Info("transport: connected",
		"instrument", c.cfg.instrumentID,
		"localAddr", conn.LocalAddr(),
		"remoteAddr", conn.RemoteAddr())
	c.cfg.publish(link.ConnStatusConnected, conn.RemoteAddr().String())

	return nil
}

// Close closes the connection. It is idempotent.
func (c *TCPClient) Close() error {
	_, err := c.closeConn("closed")
	if err != nil {
		return errors.Join(ErrClosed, err)
	}

	return nil
}
