package supervisor

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
	"github.com/arloliu/go-lislink/transport"
)

// Reconnect policy defaults and limits.
const (
	DefaultRetryDelay = 5 * time.Second
	MinRetryDelay     = 1 * time.Millisecond
	MaxRetryDelay     = 10 * time.Minute

	DefaultMaxRetries = 5
	MaxMaxRetries     = 1000

	DefaultInactiveDelay = 60 * time.Second
	MinInactiveDelay     = 1 * time.Millisecond
	MaxInactiveDelay     = time.Hour

	DefaultReadBufferSize = 4096
	MinReadBufferSize     = 64
	MaxReadBufferSize     = 1 << 20
)

type config struct {
	retryDelay     time.Duration
	maxRetries     int
	inactiveDelay  time.Duration
	readBufferSize int

	publisher   link.EventPublisher
	logger      logger.Logger
	newChannel  ChannelFactory
	newHandler  HandlerFactory
	channelOpts []transport.Option
	now         func() time.Time
}

func newConfig(opts []Option) (*config, error) {
	cfg := &config{
		retryDelay:     DefaultRetryDelay,
		maxRetries:     DefaultMaxRetries,
		inactiveDelay:  DefaultInactiveDelay,
		readBufferSize: DefaultReadBufferSize,
		publisher:      link.NopPublisher{},
		logger:         logger.GetLogger(),
		newChannel:     transport.New,
		newHandler:     DefaultHandlerFactory,
		now:            time.Now,
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Option configures a Supervisor or a Manager.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(c *config) error { return f(c) }

// WithRetryDelay sets the fixed delay between reconnect attempts.
func WithRetryDelay(d time.Duration) Option {
	return optFunc(func(c *config) error {
		if d < MinRetryDelay || d > MaxRetryDelay {
			return fmt.Errorf("supervisor: retry delay %v out of range [%v, %v]", d, MinRetryDelay, MaxRetryDelay)
		}
		c.retryDelay = d

		return nil
	})
}

// WithMaxRetries sets how many consecutive reconnect attempts follow a
// failure before the link is given up.
func WithMaxRetries(n int) Option {
	return optFunc(func(c *config) error {
		if n < 0 || n > MaxMaxRetries {
			return fmt.Errorf("supervisor: max retries %d out of range [0, %d]", n, MaxMaxRetries)
		}
		c.maxRetries = n

		return nil
	})
}

// WithInactiveDelay sets how long an inactive instrument waits before its
// configuration is checked again.
func WithInactiveDelay(d time.Duration) Option {
	return optFunc(func(c *config) error {
		if d < MinInactiveDelay || d > MaxInactiveDelay {
			return fmt.Errorf("supervisor: inactive delay %v out of range [%v, %v]", d, MinInactiveDelay, MaxInactiveDelay)
		}
		c.inactiveDelay = d

		return nil
	})
}

// WithReadBufferSize sets the size of the channel read buffer.
func WithReadBufferSize(n int) Option {
	return optFunc(func(c *config) error {
		if n < MinReadBufferSize || n > MaxReadBufferSize {
			return fmt.Errorf("supervisor: read buffer size %d out of range [%d, %d]", n, MinReadBufferSize, MaxReadBufferSize)
		}
		c.readBufferSize = n

		return nil
	})
}

// WithPublisher sets the receiver of link events. Channels publish their
// connection events to it as well.
func WithPublisher(p link.EventPublisher) Option {
	return optFunc(func(c *config) error {
		if p == nil {
			return errors.New("supervisor: publisher must not be nil")
		}
		c.publisher = p

		return nil
	})
}

// WithLogger sets the logger passed to supervisors, channels and handlers.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(c *config) error {
		if l == nil {
			return errors.New("supervisor: logger must not be nil")
		}
		c.logger = l

		return nil
	})
}

// WithChannelFactory replaces transport.New.
func WithChannelFactory(f ChannelFactory) Option {
	return optFunc(func(c *config) error {
		if f == nil {
			return errors.New("supervisor: channel factory must not be nil")
		}
		c.newChannel = f

		return nil
	})
}

// WithHandlerFactory replaces DefaultHandlerFactory.
func WithHandlerFactory(f HandlerFactory) Option {
	return optFunc(func(c *config) error {
		if f == nil {
			return errors.New("supervisor: handler factory must not be nil")
		}
		c.newHandler = f

		return nil
	})
}

// WithChannelOptions appends options to every channel the supervisor creates.
func WithChannelOptions(opts ...transport.Option) Option {
	return optFunc(func(c *config) error {
		c.channelOpts = append(c.channelOpts, opts...)
		return nil
	})
}

// WithClock overrides the time source used for session expiry.
func WithClock(now func() time.Time) Option {
	return optFunc(func(c *config) error {
		if now == nil {
			return errors.New("supervisor: clock must not be nil")
		}
		c.now = now

		return nil
	})
}
