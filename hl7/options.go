package hl7

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-lislink/link"
	"github.com/arloliu/go-lislink/logger"
)

// Acknowledgement defaults.
const (
	DefaultApplication = "LIS"
	DefaultFacility    = "LAB"
	DefaultVersion     = "2.5.1"
)

// Option configures a Handler.
type Option interface {
	apply(*Handler) error
}

type optFunc func(*Handler) error

func (f optFunc) apply(h *Handler) error { return f(h) }

// WithMaxMessageSize caps the bytes buffered for one message. Overflow
// discards the buffer.
func WithMaxMessageSize(n int) Option {
	return optFunc(func(h *Handler) error {
		if n < link.MinMaxMessageSize {
			return fmt.Errorf("hl7: max message size %d below %d", n, link.MinMaxMessageSize)
		}
		h.maxSize = n

		return nil
	})
}

// WithMaxTransferDuration caps how long a started block may stay incomplete.
// Zero disables the limit.
func WithMaxTransferDuration(d time.Duration) Option {
	return optFunc(func(h *Handler) error {
		if d < 0 {
			return errors.New("hl7: max transfer duration must not be negative")
		}
		h.maxDuration = d

		return nil
	})
}

// WithApplication sets the application and facility reported in MSH-3 and
// MSH-4 of acknowledgements.
func WithApplication(name, facility string) Option {
	return optFunc(func(h *Handler) error {
		if name == "" {
			return errors.New("hl7: application name must not be empty")
		}
		h.local = Application{Name: name, Facility: facility}

		return nil
	})
}

// WithDefaultVersion sets the version used in acknowledgements of messages
// that do not declare MSH-12.
func WithDefaultVersion(v string) Option {
	return optFunc(func(h *Handler) error {
		if v == "" {
			return errors.New("hl7: version must not be empty")
		}
		h.version = v

		return nil
	})
}

// WithLogger sets the handler's logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(h *Handler) error {
		if l == nil {
			return errors.New("hl7: logger must not be nil")
		}
		h.logger = l

		return nil
	})
}

// WithClock overrides the time source, mainly for tests.
func WithClock(now func() time.Time) Option {
	return optFunc(func(h *Handler) error {
		if now == nil {
			return errors.New("hl7: clock must not be nil")
		}
		h.now = now

		return nil
	})
}
