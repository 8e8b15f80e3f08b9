package transport

import (
	"context"
	"net"
	"net/netip"
	"time"
)

// Socket is a directly bound UDP endpoint with no intermediary.
type Socket struct {
	conn *net.UDPConn

	readTimeout  time.Duration
	writeTimeout time.Duration
}

var _ RW = (*Socket)(nil)

// Bind creates a Socket bound to the given local address. Use
// 0.0.0.0:0 for an ephemeral port.
func Bind(local netip.AddrPort) (*Socket, error) {
	pc, err := listenConfig().ListenPacket(context.Background(), "udp4", local.String())
	if err != nil {
		return nil, err
	}
	return &Socket{conn: pc.(*net.UDPConn)}, nil
}

// LocalAddr implements RW.
func (s *Socket) LocalAddr() (netip.AddrPort, error) {
	return requireV4(s.conn.LocalAddr().(*net.UDPAddr).AddrPort()), nil
}

// SendTo implements RW.
func (s *Socket) SendTo(b []byte, to netip.AddrPort) (int, error) {
	if err := s.conn.SetWriteDeadline(deadline(s.writeTimeout)); err != nil {
		return 0, err
	}
	return s.conn.WriteToUDPAddrPort(b, requireV4(to))
}

// RecvFrom implements RW.
func (s *Socket) RecvFrom(b []byte) (int, netip.AddrPort, error) {
	if err := s.conn.SetReadDeadline(deadline(s.readTimeout)); err != nil {
		return 0, netip.AddrPort{}, err
	}
	n, from, err := s.conn.ReadFromUDPAddrPort(b)
	if err != nil {
		return n, netip.AddrPort{}, err
	}
	return n, requireV4(from), nil
}

// SetReadTimeout implements RW.
func (s *Socket) SetReadTimeout(d time.Duration) error {
	s.readTimeout = d
	return nil
}

// SetWriteTimeout implements RW.
func (s *Socket) SetWriteTimeout(d time.Duration) error {
	s.writeTimeout = d
	return nil
}

// ReadTimeout implements RW.
func (s *Socket) ReadTimeout() time.Duration { return s.readTimeout }

// WriteTimeout implements RW.
func (s *Socket) WriteTimeout() time.Duration { return s.writeTimeout }

// Close implements RW.
func (s *Socket) Close() error { return s.conn.Close() }

// deadline converts a timeout into an absolute deadline; zero maps to
// the zero time, which clears any previous deadline.
func deadline(d time.Duration) time.Time {
	if d == 0 {
		return time.Time{}
	}
	return time.Now().Add(d)
}
