//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly || windows)

package transport

import (
	"strings"
	"syscall"
)

func reuseControl(_, _ string, _ syscall.RawConn) error {
	return nil
}

func isConnResetError(err error) bool {
	return strings.Contains(err.Error(), "connection reset by peer")
}
