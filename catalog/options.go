package catalog

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-lislink/logger"
)

// Reload debounce default and limits.
const (
	DefaultDebounce = 200 * time.Millisecond
	MinDebounce     = 0
	MaxDebounce     = 10 * time.Second
)

type config struct {
	debounce time.Duration
	logger   logger.Logger
}

// Option configures a FileProvider.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(c *config) error { return f(c) }

// WithDebounce sets how long Watch waits after the last file event before reloading.
func WithDebounce(d time.Duration) Option {
	return optFunc(func(c *config) error {
		if d < MinDebounce || d > MaxDebounce {
			return fmt.Errorf("catalog: debounce %v out of range [%v, %v]", d, MinDebounce, MaxDebounce)
		}
		c.debounce = d

		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(c *config) error {
		if l == nil {
			return errors.New("catalog: logger is nil")
		}
		c.logger = l

		return nil
	})
}
