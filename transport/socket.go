//go:build windows
// +build windows

package transport

import (
	"net"
	"syscall"

	"golang.org/x/sys/windows"
)

// listenConfig returns a net.ListenConfig with SO_REUSEADDR enabled.
// On Windows a probe binary restarted quickly after a timed-out run can
// otherwise fail to rebind its ephemeral UDP port.
func listenConfig() *net.ListenConfig {
	return &net.ListenConfig{
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				windows.SetsockoptInt(windows.Handle(fd), windows.SOL_SOCKET, windows.SO_REUSEADDR, 1)
			})
		},
	}
}
