package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/arloliu/go-lislink/link"
)

// entry is the on-disk form of one instrument. Durations are Go duration
// strings. Active and AutoReconnect default to true when omitted.
type entry struct {
	ID         string `toml:"id" yaml:"id"`
	Name       string `toml:"name" yaml:"name"`
	ConnType   string `toml:"conn_type" yaml:"conn_type"`
	Host       string `toml:"host" yaml:"host"`
	Port       int    `toml:"port" yaml:"port"`
	SerialPath string `toml:"serial_path" yaml:"serial_path"`
	BaudRate   int    `toml:"baud_rate" yaml:"baud_rate"`
	Protocol   string `toml:"protocol" yaml:"protocol"`

	Active        *bool `toml:"active" yaml:"active"`
	AutoReconnect *bool `toml:"auto_reconnect" yaml:"auto_reconnect"`

	ReadTimeout         string `toml:"read_timeout" yaml:"read_timeout"`
	MaxMessageSize      int    `toml:"max_message_size" yaml:"max_message_size"`
	MaxTransferDuration string `toml:"max_transfer_duration" yaml:"max_transfer_duration"`
	SkipChecksum        bool   `toml:"skip_checksum" yaml:"skip_checksum"`

	KeepAliveIdle     string `toml:"keepalive_idle" yaml:"keepalive_idle"`
	KeepAliveInterval string `toml:"keepalive_interval" yaml:"keepalive_interval"`
	KeepAliveCount    int    `toml:"keepalive_count" yaml:"keepalive_count"`
}

type document struct {
	Instruments []entry `toml:"instrument" yaml:"instruments"`
}

func (e entry) config() (link.InstrumentLinkConfig, error) {
	id := strings.TrimSpace(e.ID)
	cfg := link.InstrumentLinkConfig{
		InstrumentID:   id,
		Name:           strings.TrimSpace(e.Name),
		Host:           strings.TrimSpace(e.Host),
		Port:           e.Port,
		SerialPath:     strings.TrimSpace(e.SerialPath),
		BaudRate:       e.BaudRate,
		Active:         boolOr(e.Active, true),
		AutoReconnect:  boolOr(e.AutoReconnect, true),
		MaxMessageSize: e.MaxMessageSize,
		SkipChecksum:   e.SkipChecksum,
	}
	cfg.KeepAlive.Count = e.KeepAliveCount

	var err error
	if cfg.ConnType, err = link.ParseConnType(e.ConnType); err != nil {
		return cfg, fmt.Errorf("instrument %q: %w", id, err)
	}
	if cfg.Protocol, err = link.ParseProtocol(e.Protocol); err != nil {
		return cfg, fmt.Errorf("instrument %q: %w", id, err)
	}

	durations := []struct {
		key   string
		value string
		dst   *time.Duration
	}{
		{"read_timeout", e.ReadTimeout, &cfg.ReadTimeout},
		{"max_transfer_duration", e.MaxTransferDuration, &cfg.MaxTransferDuration},
		{"keepalive_idle", e.KeepAliveIdle, &cfg.KeepAlive.Idle},
		{"keepalive_interval", e.KeepAliveInterval, &cfg.KeepAlive.Interval},
	}
	for _, d := range durations {
		if *d.dst, err = parseDuration(d.value); err != nil {
			return cfg, fmt.Errorf("%w: instrument %q: parse %s: %w", link.ErrInvalidConfig, id, d.key, err)
		}
	}

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}

	return time.ParseDuration(s)
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}

	return *v
}
