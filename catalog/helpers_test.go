package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const tomlCatalog = `
[[instrument]]
id = "cobas-1"
name = "Cobas c311"
conn_type = "tcp-client"
host = "10.0.0.12"
port = 5000
protocol = "astm"
read_timeout = "2s"
max_transfer_duration = "30s"

[[instrument]]
id = "sysmex-1"
conn_type = "serial"
serial_path = "/dev/ttyUSB0"
baud_rate = 19200
active = false
skip_checksum = true

[[instrument]]
id = "mindray-1"
conn_type = "server"
port = 6000
protocol = "hl7"
auto_reconnect = false
keepalive_idle = "15s"
keepalive_count = 5
`

const yamlCatalog = `
instruments:
  - id: cobas-1
    conn_type: tcp-client
    host: 10.0.0.12
    port: 5000
    protocol: astm
  - id: mindray-1
    conn_type: tcp-server
    port: 6000
    protocol: hl7
    max_message_size: 4096
`

func writeCatalog(t *testing.T, name, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}
