package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-lislink/link"
)

func TestChannelConfig_Defaults(t *testing.T) {
	cfg, err := newChannelConfig(nil)
	require.NoError(t, err)

	require.Equal(t, link.DefaultReadTimeout, cfg.readTimeout)
	require.Equal(t, DefaultWriteTimeout, cfg.writeTimeout)
	require.Equal(t, DefaultConnectTimeout, cfg.connectTimeout)

	ka := cfg.netKeepAlive()
	require.True(t, ka.Enable)
	require.Equal(t, link.DefaultKeepAliveIdle, ka.Idle)
	require.Equal(t, link.DefaultKeepAliveInterval, ka.Interval)
	require.Equal(t, link.DefaultKeepAliveCount, ka.Count)
}

func TestWithKeepAlive(t *testing.T) {
	cfg, err := newChannelConfig([]Option{WithKeepAlive(link.KeepAliveConfig{Idle: 5 * time.Second, Count: 9})})
	require.NoError(t, err)

	ka := cfg.netKeepAlive()
	require.Equal(t, 5*time.Second, ka.Idle)
	require.Equal(t, link.DefaultKeepAliveInterval, ka.Interval)
	require.Equal(t, 9, ka.Count)

	cfg, err = newChannelConfig([]Option{WithKeepAlive(link.KeepAliveConfig{Idle: -1})})
	require.NoError(t, err)
	require.False(t, cfg.netKeepAlive().Enable)
}

func TestChannelOptions_Ranges(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		ok   bool
	}{
		{"read timeout zero keeps default", WithReadTimeout(0), true},
		{"read timeout min", WithReadTimeout(link.MinReadTimeout), true},
		{"read timeout too small", WithReadTimeout(time.Millisecond), false},
		{"read timeout too large", WithReadTimeout(2 * link.MaxReadTimeout), false},
		{"write timeout", WithWriteTimeout(time.Second), true},
		{"write timeout too small", WithWriteTimeout(time.Microsecond), false},
		{"connect timeout", WithConnectTimeout(time.Second), true},
		{"connect timeout too large", WithConnectTimeout(time.Hour), false},
		{"nil publisher", WithPublisher(nil), false},
		{"nil logger", WithLogger(nil), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newChannelConfig([]Option{tt.opt})
			if tt.ok {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}
