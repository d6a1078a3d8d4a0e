package transport

import (
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
)

// Connection timing defaults and limits.
const (
	DefaultConnectTimeout = 10 * time.Second
	MinConnectTimeout     = 100 * time.Millisecond
	MaxConnectTimeout     = 120 * time.Second

	DefaultWriteTimeout = 5 * time.Second
	MinWriteTimeout     = 10 * time.Millisecond
	MaxWriteTimeout     = 60 * time.Second
)

// channelConfig holds the settings shared by every channel variant.
type channelConfig struct {
	instrumentID   string
	readTimeout    time.Duration
	writeTimeout   time.Duration
	connectTimeout time.Duration
	keepAlive      link.KeepAliveConfig
	publisher      link.EventPublisher
	logger         logger.Logger
}

func newChannelConfig(opts []Option) (*channelConfig, error) {
	cfg := &channelConfig{
		readTimeout:    link.DefaultReadTimeout,
		writeTimeout:   DefaultWriteTimeout,
		connectTimeout: DefaultConnectTimeout,
		keepAlive: link.KeepAliveConfig{
			Idle:     link.DefaultKeepAliveIdle,
			Interval: link.DefaultKeepAliveInterval,
			Count:    link.DefaultKeepAliveCount,
		},
		publisher: link.NopPublisher{},
		logger:    logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (c *channelConfig) publish(status link.ConnStatus, detail string) {
	c.publisher.Publish(link.ConnectionEvent(c.instrumentID, status, detail))
}

// netKeepAlive converts the keepalive settings for the net package.
func (c *channelConfig) netKeepAlive() net.KeepAliveConfig {
	if c.keepAlive.Idle < 0 {
		return net.KeepAliveConfig{Enable: false, Idle: -1}
	}

	return net.KeepAliveConfig{
		Enable:   true,
		Idle:     c.keepAlive.Idle,
		Interval: c.keepAlive.Interval,
		Count:    c.keepAlive.Count,
	}
}

// Option configures a channel.
type Option interface {
	apply(*channelConfig) error
}

type optFunc func(*channelConfig) error

func (f optFunc) apply(c *channelConfig) error { return f(c) }

// WithInstrumentID sets the instrument id reported in connection events and logs.
func WithInstrumentID(id string) Option {
	return optFunc(func(c *channelConfig) error {
		c.instrumentID = id
		return nil
	})
}

// WithReadTimeout sets how long Read blocks before returning ErrReadTimeout.
// Zero keeps the default.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(c *channelConfig) error {
		if d == 0 {
			return nil
		}
		if d < link.MinReadTimeout || d > link.MaxReadTimeout {
			return fmt.Errorf("transport: read timeout %v out of range [%v, %v]", d, link.MinReadTimeout, link.MaxReadTimeout)
		}
		c.readTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the deadline of a single Write.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(c *channelConfig) error {
		if d < MinWriteTimeout || d > MaxWriteTimeout {
			return fmt.Errorf("transport: write timeout %v out of range [%v, %v]", d, MinWriteTimeout, MaxWriteTimeout)
		}
		c.writeTimeout = d

		return nil
	})
}

// WithConnectTimeout sets the dial timeout of TCP clients.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(c *channelConfig) error {
		if d < MinConnectTimeout || d > MaxConnectTimeout {
			return fmt.Errorf("transport: connect timeout %v out of range [%v, %v]", d, MinConnectTimeout, MaxConnectTimeout)
		}
		c.connectTimeout = d

		return nil
	})
}

// WithKeepAlive sets the TCP keepalive probes. Zero fields keep the defaults;
// a negative Idle disables keepalive. Serial channels ignore it.
func WithKeepAlive(ka link.KeepAliveConfig) Option {
	return optFunc(func(c *channelConfig) error {
		if ka.Idle != 0 {
			c.keepAlive.Idle = ka.Idle
		}
		if ka.Interval != 0 {
			c.keepAlive.Interval = ka.Interval
		}
		if ka.Count != 0 {
			c.keepAlive.Count = ka.Count
		}

		return nil
	})
}

// WithPublisher sets the receiver of connection events.
func WithPublisher(p link.EventPublisher) Option {
	return optFunc(func(c *channelConfig) error {
		if p == nil {
			return errors.New("transport: publisher must not be nil")
		}
		c.publisher = p

		return nil
	})
}

// WithLogger sets the channel's logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(c *channelConfig) error {
		if l == nil {
			return errors.New("transport: logger must not be nil")
		}
		c.logger = l

		return nil
	})
}
