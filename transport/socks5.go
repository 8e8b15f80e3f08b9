package transport

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"time"

	"github.com/cykyes/natprobe/internal/pool"
)

// SOCKS5 protocol constants (RFC 1928, RFC 1929).
const (
	socksVersion = 0x05

	methodNoAuth       = 0x00
	methodUserPass     = 0x02
	methodNoAcceptable = 0xFF

	cmdUDPAssociate = 0x03

	atypIPv4   = 0x01
	atypDomain = 0x03
	atypIPv6   = 0x04

	userPassVersion = 0x01

	// RSV(2) + FRAG(1) + ATYP(1) + ADDR(4) + PORT(2) for IPv4.
	udpHeaderLen = 10
)

// Auth holds username/password credentials for SOCKS5 user/pass
// authentication (method 0x02).
type Auth struct {
	Username string
	Password string
}

// Datagram is a UDP endpoint relayed through a SOCKS5 proxy via UDP
// ASSOCIATE. The TCP control connection is held open for the lifetime
// of the endpoint; per RFC 1928 the relay terminates with it.
type Datagram struct {
	control net.Conn
	conn    *net.UDPConn
	relay   netip.AddrPort

	readTimeout  time.Duration
	writeTimeout time.Duration
}

var _ RW = (*Datagram)(nil)

// BindDatagram negotiates a UDP association with the proxy and returns
// a Datagram sending and receiving through its relay. local is the
// address the underlying UDP socket binds to (0.0.0.0:0 for an
// ephemeral port); auth is optional.
func BindDatagram(proxy, local netip.AddrPort, auth *Auth) (*Datagram, error) {
	control, err := net.Dial("tcp4", proxy.String())
	if err != nil {
		return nil, err
	}
	if err := greeting(control, auth); err != nil {
		control.Close()
		return nil, err
	}

	pc, err := listenConfig().ListenPacket(context.Background(), "udp4", local.String())
	if err != nil {
		control.Close()
		return nil, err
	}
	conn := pc.(*net.UDPConn)

	bound := requireV4(conn.LocalAddr().(*net.UDPAddr).AddrPort())
	relay, err := associate(control, bound)
	if err != nil {
		conn.Close()
		control.Close()
		return nil, err
	}
	// Proxies commonly answer with an unspecified bind address meaning
	// "same host as the control connection".
	if relay.Addr().IsUnspecified() {
		relay = netip.AddrPortFrom(proxy.Addr(), relay.Port())
	}

	return &Datagram{control: control, conn: conn, relay: relay}, nil
}

// LocalAddr implements RW. It reports the control connection's local
// address: that is the endpoint the proxy associates the relay with.
func (d *Datagram) LocalAddr() (netip.AddrPort, error) {
	return requireV4(d.control.LocalAddr().(*net.TCPAddr).AddrPort()), nil
}

// SendTo implements RW, framing the datagram with the RFC 1928 UDP
// request header and forwarding it to the relay.
func (d *Datagram) SendTo(b []byte, to netip.AddrPort) (int, error) {
	to = requireV4(to)

	frame := pool.GetPacketBuffer()
	defer pool.PutPacketBuffer(frame)
	buf := *frame
	if udpHeaderLen+len(b) > len(buf) {
		buf = make([]byte, udpHeaderLen+len(b))
	}

	buf[0], buf[1], buf[2] = 0, 0, 0 // RSV, RSV, FRAG
	buf[3] = atypIPv4
	ip := to.Addr().As4()
	copy(buf[4:8], ip[:])
	binary.BigEndian.PutUint16(buf[8:10], to.Port())
	copy(buf[udpHeaderLen:], b)

	if err := d.conn.SetWriteDeadline(deadline(d.writeTimeout)); err != nil {
		return 0, err
	}
	if _, err := d.conn.WriteToUDPAddrPort(buf[:udpHeaderLen+len(b)], d.relay); err != nil {
		return 0, err
	}
	return len(b), nil
}

// RecvFrom implements RW, stripping the relay's UDP request header and
// translating the embedded source back to a plain IPv4 endpoint.
// Datagrams not originating from the relay, fragmented datagrams, and
// short frames are dropped.
func (d *Datagram) RecvFrom(b []byte) (int, netip.AddrPort, error) {
	frame := pool.GetRecvBuffer()
	defer pool.PutRecvBuffer(frame)
	buf := *frame

	for {
		if err := d.conn.SetReadDeadline(deadline(d.readTimeout)); err != nil {
			return 0, netip.AddrPort{}, err
		}
		n, from, err := d.conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			return 0, netip.AddrPort{}, err
		}
		if netip.AddrPortFrom(from.Addr().Unmap(), from.Port()) != d.relay {
			continue
		}
		if n < udpHeaderLen || buf[2] != 0 {
			continue
		}
		if buf[3] != atypIPv4 {
			// The association was requested over IPv4; a relay source in
			// any other address family breaks the IPv4-only contract.
			panic(fmt.Sprintf("transport: SOCKS5 relay returned ATYP %#x, want IPv4", buf[3]))
		}
		src := netip.AddrPortFrom(
			netip.AddrFrom4([4]byte(buf[4:8])),
			binary.BigEndian.Uint16(buf[8:10]),
		)
		return copy(b, buf[udpHeaderLen:n]), src, nil
	}
}

// SetReadTimeout implements RW.
func (d *Datagram) SetReadTimeout(t time.Duration) error {
	d.readTimeout = t
	return nil
}

// SetWriteTimeout implements RW.
func (d *Datagram) SetWriteTimeout(t time.Duration) error {
	d.writeTimeout = t
	return nil
}

// ReadTimeout implements RW.
func (d *Datagram) ReadTimeout() time.Duration { return d.readTimeout }

// WriteTimeout implements RW.
func (d *Datagram) WriteTimeout() time.Duration { return d.writeTimeout }

// Close implements RW, tearing down both the relay socket and the
// control connection.
func (d *Datagram) Close() error {
	err := d.conn.Close()
	if cerr := d.control.Close(); err == nil {
		err = cerr
	}
	return err
}

// greeting negotiates an authentication method and completes user/pass
// authentication when the proxy selects it.
func greeting(conn net.Conn, auth *Auth) error {
	methods := []byte{methodNoAuth}
	if auth != nil {
		methods = append(methods, methodUserPass)
	}
	req := append([]byte{socksVersion, byte(len(methods))}, methods...)
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("socks5: write greeting: %w", err)
	}

	var sel [2]byte
	if _, err := io.ReadFull(conn, sel[:]); err != nil {
		return fmt.Errorf("socks5: read method selection: %w", err)
	}
	if sel[0] != socksVersion {
		return fmt.Errorf("socks5: unexpected version %#x in method selection", sel[0])
	}
	switch sel[1] {
	case methodNoAuth:
		return nil
	case methodUserPass:
		if auth == nil {
			return errors.New("socks5: proxy requires username/password")
		}
		return userPassAuth(conn, auth)
	case methodNoAcceptable:
		return errors.New("socks5: proxy rejected offered methods")
	default:
		return fmt.Errorf("socks5: unsupported method %#x selected by proxy", sel[1])
	}
}

// userPassAuth performs RFC 1929 username/password authentication.
func userPassAuth(conn net.Conn, auth *Auth) error {
	if len(auth.Username) > 255 || len(auth.Password) > 255 {
		return errors.New("socks5: username/password too long")
	}
	req := make([]byte, 0, 3+len(auth.Username)+len(auth.Password))
	req = append(req, userPassVersion, byte(len(auth.Username)))
	req = append(req, auth.Username...)
	req = append(req, byte(len(auth.Password)))
	req = append(req, auth.Password...)
	if _, err := conn.Write(req); err != nil {
		return fmt.Errorf("socks5: write user/pass: %w", err)
	}

	var rep [2]byte
	if _, err := io.ReadFull(conn, rep[:]); err != nil {
		return fmt.Errorf("socks5: read user/pass reply: %w", err)
	}
	if rep[0] != userPassVersion {
		return fmt.Errorf("socks5: unexpected user/pass reply version %#x", rep[0])
	}
	if rep[1] != 0x00 {
		return errors.New("socks5: authentication failed")
	}
	return nil
}

// associate issues UDP ASSOCIATE for the given bound address and
// returns the relay endpoint the proxy expects datagrams on.
func associate(conn net.Conn, bound netip.AddrPort) (netip.AddrPort, error) {
	ip := bound.Addr().As4()
	req := make([]byte, 0, udpHeaderLen)
	req = append(req, socksVersion, cmdUDPAssociate, 0x00, atypIPv4)
	req = append(req, ip[:]...)
	req = binary.BigEndian.AppendUint16(req, bound.Port())
	if _, err := conn.Write(req); err != nil {
		return netip.AddrPort{}, fmt.Errorf("socks5: write ASSOCIATE: %w", err)
	}

	var hdr [4]byte
	if _, err := io.ReadFull(conn, hdr[:]); err != nil {
		return netip.AddrPort{}, fmt.Errorf("socks5: read ASSOCIATE reply: %w", err)
	}
	if hdr[0] != socksVersion {
		return netip.AddrPort{}, fmt.Errorf("socks5: unexpected reply version %#x", hdr[0])
	}
	if hdr[1] != 0x00 {
		return netip.AddrPort{}, fmt.Errorf("socks5: ASSOCIATE failed: %s", repString(hdr[1]))
	}
	switch hdr[3] {
	case atypIPv4:
		var addr [6]byte
		if _, err := io.ReadFull(conn, addr[:]); err != nil {
			return netip.AddrPort{}, fmt.Errorf("socks5: read bind address: %w", err)
		}
		return netip.AddrPortFrom(
			netip.AddrFrom4([4]byte(addr[0:4])),
			binary.BigEndian.Uint16(addr[4:6]),
		), nil
	case atypIPv6, atypDomain:
		return netip.AddrPort{}, fmt.Errorf("socks5: non-IPv4 bind address (ATYP %#x)", hdr[3])
	default:
		return netip.AddrPort{}, fmt.Errorf("socks5: unknown reply ATYP %#x", hdr[3])
	}
}

// repString maps RFC 1928 REP codes to readable strings.
func repString(rep byte) string {
	switch rep {
	case 0x00:
		return "succeeded"
	case 0x01:
		return "general SOCKS server failure"
	case 0x02:
		return "connection not allowed by ruleset"
	case 0x03:
		return "network unreachable"
	case 0x04:
		return "host unreachable"
	case 0x05:
		return "connection refused"
	case 0x06:
		return "TTL expired"
	case 0x07:
		return "command not supported"
	case 0x08:
		return "address type not supported"
	default:
		return fmt.Sprintf("unknown reply code %#x", rep)
	}
}
