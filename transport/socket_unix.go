//go:build !windows
// +build !windows

package transport

import "net"

// listenConfig returns a net.ListenConfig for non-Windows platforms.
func listenConfig() *net.ListenConfig {
	return &net.ListenConfig{}
}
