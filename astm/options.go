package astm

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
)

// Option configures a Handler.
type Option interface {
	apply(*Handler) error
}

type optFunc func(*Handler) error

func (f optFunc) apply(h *Handler) error { return f(h) }

// WithMaxMessageSize caps the accumulated payload of one message. A frame that
// would exceed it is NAKed and the session is closed.
func WithMaxMessageSize(n int) Option {
	return optFunc(func(h *Handler) error {
		if n < link.MinMaxMessageSize {
			return fmt.Errorf("astm: max message size %d below %d", n, link.MinMaxMessageSize)
		}
		h.maxSize = n

		return nil
	})
}

// WithMaxTransferDuration caps how long a session may stay open without EOT.
// Zero disables the limit.
func WithMaxTransferDuration(d time.Duration) Option {
	return optFunc(func(h *Handler) error {
		if d < 0 {
			return errors.New("astm: max transfer duration must not be negative")
		}
		h.maxDuration = d

		return nil
	})
}

// WithVerifyChecksum enables or disables checksum verification. Enabled by default.
func WithVerifyChecksum(enabled bool) Option {
	return optFunc(func(h *Handler) error {
		h.verifyChecksum = enabled
		return nil
	})
}

// WithLogger sets the handler's logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(h *Handler) error {
		if l == nil {
			return errors.New("astm: logger must not be nil")
		}
		h.logger = l

		return nil
	})
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return optFunc(func(h *Handler) error {
		if now == nil {
			return errors.New("astm: clock must not be nil")
		}
		h.now = now

		return nil
	})
}
