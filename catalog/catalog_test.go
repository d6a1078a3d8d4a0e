package catalog

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-lislink/link"
)

func TestOpen_TOML(t *testing.T) {
	require := require.New(t)

	p, err := Open(writeCatalog(t, "catalog.toml", tomlCatalog))
	require.NoError(err)

	cfgs, err := p.Instruments(context.Background())
	require.NoError(err)
	require.Len(cfgs, 3)
	require.Equal("cobas-1", cfgs[0].InstrumentID)
	require.Equal("mindray-1", cfgs[1].InstrumentID)
	require.Equal("sysmex-1", cfgs[2].InstrumentID)

	cobas, err := p.InstrumentConfig(context.Background(), "cobas-1")
	require.NoError(err)
	require.Equal("Cobas c311", cobas.Name)
	require.Equal(link.ConnTCPClient, cobas.ConnType)
	require.Equal("10.0.0.12:5000", cobas.Addr())
	require.Equal(link.ProtocolASTM, cobas.Protocol)
	require.True(cobas.Active)
	require.True(cobas.AutoReconnect)
	require.Equal(2*time.Second, cobas.ReadTimeout)
	require.Equal(30*time.Second, cobas.MaxTransferDuration)
	require.Equal(link.DefaultMaxMessageSize, cobas.MaxMessageSize)

	sysmex, err := p.InstrumentConfig(context.Background(), "sysmex-1")
	require.NoError(err)
	require.Equal(link.ConnSerial, sysmex.ConnType)
	require.Equal(19200, sysmex.BaudRate)
	require.Equal(link.ProtocolAuto, sysmex.Protocol)
	require.False(sysmex.Active)
	require.True(sysmex.SkipChecksum)

	mindray, err := p.InstrumentConfig(context.Background(), "mindray-1")
	require.NoError(err)
	require.Equal(link.ConnTCPServer, mindray.ConnType)
	require.False(mindray.AutoReconnect)
	require.Equal(15*time.Second, mindray.KeepAlive.Idle)
	require.Equal(link.DefaultKeepAliveInterval, mindray.KeepAlive.Interval)
	require.Equal(5, mindray.KeepAlive.Count)

	_, err = p.InstrumentConfig(context.Background(), "missing")
	require.ErrorIs(err, link.ErrUnknownInstrument)
}

func TestOpen_YAML(t *testing.T) {
	require := require.New(t)

	p, err := Open(writeCatalog(t, "catalog.yml", yamlCatalog))
	require.NoError(err)

	cfgs, err := p.Instruments(context.Background())
	require.NoError(err)
	require.Len(cfgs, 2)

	mindray, err := p.InstrumentConfig(context.Background(), "mindray-1")
	require.NoError(err)
	require.Equal(link.ProtocolHL7, mindray.Protocol)
	require.Equal(4096, mindray.MaxMessageSize)
	require.Equal(link.DefaultReadTimeout, mindray.ReadTimeout)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		format  Format
		content string
		target  error
	}{
		{
			name:    "unknown toml key",
			format:  FormatTOML,
			content: "[[instrument]]\nid = \"a\"\nconn_type = \"tcp-client\"\nhost = \"h\"\nport = 1\ncolour = \"red\"\n",
			target:  link.ErrInvalidConfig,
		},
		{
			name:    "unknown yaml key",
			format:  FormatYAML,
			content: "instruments:\n  - id: a\n    conn_type: tcp-client\n    host: h\n    port: 1\n    colour: red\n",
			target:  link.ErrInvalidConfig,
		},
		{
			name:    "bad duration",
			format:  FormatTOML,
			content: "[[instrument]]\nid = \"a\"\nconn_type = \"tcp-client\"\nhost = \"h\"\nport = 1\nread_timeout = \"soon\"\n",
			target:  link.ErrInvalidConfig,
		},
		{
			name:    "unknown conn type",
			format:  FormatTOML,
			content: "[[instrument]]\nid = \"a\"\nconn_type = \"usb\"\n",
			target:  link.ErrInvalidConfig,
		},
		{
			name:    "unknown protocol",
			format:  FormatTOML,
			content: "[[instrument]]\nid = \"a\"\nconn_type = \"tcp-client\"\nhost = \"h\"\nport = 1\nprotocol = \"dicom\"\n",
			target:  link.ErrInvalidConfig,
		},
		{
			name:    "missing serial path",
			format:  FormatTOML,
			content: "[[instrument]]\nid = \"a\"\nconn_type = \"serial\"\n",
			target:  link.ErrInvalidConfig,
		},
		{
			name:    "duplicate id",
			format:  FormatTOML,
			content: "[[instrument]]\nid = \"a\"\nconn_type = \"server\"\nport = 1\n[[instrument]]\nid = \"a\"\nconn_type = \"server\"\nport = 2\n",
			target:  ErrDuplicateInstrument,
		},
		{
			name:    "unsupported format",
			format:  Format("ini"),
			content: "",
			target:  ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.format, []byte(tt.content))
			require.ErrorIs(t, err, tt.target)
			require.True(t, IsInvalid(err))
		})
	}
}

func TestParse_Empty(t *testing.T) {
	cfgs, err := Parse(FormatTOML, nil)
	require.NoError(t, err)
	require.Empty(t, cfgs)
}

func TestOpen_Errors(t *testing.T) {
	_, err := Open("/nonexistent/catalog.toml")
	require.Error(t, err)
	require.False(t, IsInvalid(err))

	_, err = Open(writeCatalog(t, "catalog.toml", tomlCatalog), WithDebounce(time.Hour))
	require.Error(t, err)

	_, err = Open(writeCatalog(t, "catalog.toml", tomlCatalog), WithLogger(nil))
	require.Error(t, err)
}

func TestReload_KeepsSnapshotOnError(t *testing.T) {
	require := require.New(t)

	path := writeCatalog(t, "catalog.toml", tomlCatalog)
	p, err := Open(path)
	require.NoError(err)
	loaded := p.LoadedAt()

	require.NoError(os.WriteFile(path, []byte("[[instrument]]\nid = \"a\"\nconn_type = \"usb\"\n"), 0o600))
	require.Error(p.Reload())

	cfgs, err := p.Instruments(context.Background())
	require.NoError(err)
	require.Len(cfgs, 3)
	require.Equal(loaded, p.LoadedAt())
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	require := require.New(t)

	path := writeCatalog(t, "catalog.yaml", yamlCatalog)
	p, err := Open(path, WithDebounce(20*time.Millisecond))
	require.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, func(context.Context) { changed <- struct{}{} })
	}()

	updated := yamlCatalog + "  - id: roche-2\n    conn_type: tcp-client\n    host: 10.0.0.13\n    port: 5001\n"

	// the watcher registers asynchronously; rewrite until the change is observed
	require.Eventually(func() bool {
		if err := os.WriteFile(path, []byte(updated), 0o600); err != nil {
			return false
		}
		select {
		case <-changed:
			return true
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(func() bool {
		cfg, err := p.InstrumentConfig(context.Background(), "roche-2")
		return err == nil && cfg.Addr() == "10.0.0.13:5001"
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop")
	}
}
