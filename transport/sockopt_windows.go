//go:build windows

package transport

import (
	"errors"
	"syscall"

	"golang.org/x/sys/windows"
)

// reuseControl sets SO_REUSEADDR on listening sockets.
func reuseControl(_, _ string, rc syscall.RawConn) error {
	var sockErr error

	err := rc.Control(func(fd uintptr) {
		sockErr = windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
	})

	return errors.Join(err, sockErr)
}

func isConnResetError(err error) bool {
	return errors.Is(err, windows.WSAECONNRESET) || errors.Is(err, windows.WSAECONNABORTED)
}
