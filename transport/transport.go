// Package transport provides the bidirectional UDP endpoint abstraction
// the NAT prober runs on: a plain bound socket, or a datagram relayed
// through a SOCKS5 proxy. Both speak IPv4 only; the probe wire format
// has no room for anything else.
package transport

import (
	"fmt"
	"net/netip"
	"time"
)

// RW is a bound endpoint that can send to and receive from arbitrary
// IPv4 destinations. A zero timeout means block indefinitely.
//
// An RW is exclusively owned by one probe round at a time; rounds run
// sequentially, so implementations do not need internal locking.
type RW interface {
	// LocalAddr returns the address the endpoint was bound to. For a
	// proxied endpoint this is the local address of the control
	// connection to the proxy.
	LocalAddr() (netip.AddrPort, error)

	// SendTo sends a single datagram to the given destination.
	SendTo(b []byte, to netip.AddrPort) (int, error)

	// RecvFrom receives a single datagram, returning its length and
	// source address.
	RecvFrom(b []byte) (int, netip.AddrPort, error)

	// SetReadTimeout bounds each subsequent RecvFrom. Zero removes the
	// bound.
	SetReadTimeout(d time.Duration) error

	// SetWriteTimeout bounds each subsequent SendTo. Zero removes the
	// bound.
	SetWriteTimeout(d time.Duration) error

	// ReadTimeout returns the current read timeout (zero if unset).
	ReadTimeout() time.Duration

	// WriteTimeout returns the current write timeout (zero if unset).
	WriteTimeout() time.Duration

	// Close releases the endpoint.
	Close() error
}

// requireV4 asserts the IPv4-only invariant. Every address that reaches
// the probing logic must be IPv4; anything else is a defect in the
// transport layer, not a recoverable condition.
func requireV4(ap netip.AddrPort) netip.AddrPort {
	ap = netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	if !ap.Addr().Is4() {
		panic(fmt.Sprintf("transport: non-IPv4 address %s on an IPv4-only endpoint", ap))
	}
	return ap
}
