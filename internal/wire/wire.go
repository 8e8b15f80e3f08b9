// Package wire implements the 16-byte probe wire format spoken by the
// rendezvous servers: the four outbound probe payloads and the decoder
// for the fixed-size response frame.
package wire

import (
	"encoding/binary"
	"errors"
	"net/netip"
)

// ResponseLen is the exact length of every valid datagram in the
// protocol. Anything else is noise, not a different message type.
const ResponseLen = 16

// Well-known server ports.
const (
	// PortSendOnly accepts probes but never replies.
	PortSendOnly = 33334
	// PortEcho echoes the sender's external endpoint back; a cross-port
	// request sent here additionally triggers a reply from PortRecvOnly.
	PortEcho = 10025
	// PortRecvOnly is never sent to directly; an unsolicited reply from
	// it means the NAT admits inbound traffic from an unrelated port.
	PortRecvOnly = 50920
)

// Discriminator values carried in payload byte 3. A response echoes the
// discriminator of the probe that triggered it.
const (
	KindSendOnly    = 0x00
	KindEcho        = 0x65
	KindCrossPort   = 0x66
	KindCrossServer = 0x67
)

// Probe payloads. Immutable by convention; senders must not modify.
var (
	PayloadSendOnly    = [ResponseLen]byte{}
	PayloadEcho        = [ResponseLen]byte{3: KindEcho}
	PayloadCrossPort   = [ResponseLen]byte{3: KindCrossPort}
	PayloadCrossServer = [ResponseLen]byte{3: KindCrossServer}
)

// ErrInvalidLength is returned by ParseResponse for any input whose
// length is not exactly ResponseLen.
var ErrInvalidLength = errors.New("wire: response must be 16 bytes")

// Response is a decoded server reply.
//
// Layout (network byte order):
//
//	[0..3]   discriminator payload (byte 3 identifies the probe kind)
//	[4..5]   reserved
//	[6..7]   externally observed port, big-endian
//	[8..11]  externally observed IPv4 address
//	[12..15] server-local IPv4 address (unused by classification)
type Response struct {
	Payload  [4]byte
	Reserved [2]byte
	Port     uint16
	RemoteIP netip.Addr
	LocalIP  netip.Addr
}

// ParseResponse decodes a response frame. Only the length is validated;
// callers filter malformed-but-correctly-sized datagrams by source
// address before trusting the content.
func ParseResponse(b []byte) (Response, error) {
	if len(b) != ResponseLen {
		return Response{}, ErrInvalidLength
	}
	var r Response
	copy(r.Payload[:], b[0:4])
	copy(r.Reserved[:], b[4:6])
	r.Port = binary.BigEndian.Uint16(b[6:8])
	r.RemoteIP = netip.AddrFrom4([4]byte(b[8:12]))
	r.LocalIP = netip.AddrFrom4([4]byte(b[12:16]))
	return r, nil
}

// MarshalBinary encodes the response back into its 16-byte frame.
func (r Response) MarshalBinary() ([]byte, error) {
	b := make([]byte, ResponseLen)
	copy(b[0:4], r.Payload[:])
	copy(b[4:6], r.Reserved[:])
	binary.BigEndian.PutUint16(b[6:8], r.Port)
	remote := r.RemoteIP.As4()
	local := r.LocalIP.As4()
	copy(b[8:12], remote[:])
	copy(b[12:16], local[:])
	return b, nil
}

// Kind returns the discriminator byte.
func (r Response) Kind() byte {
	return r.Payload[3]
}

// IsEcho reports whether the response answers an echo probe.
func (r Response) IsEcho() bool { return r.Kind() == KindEcho }

// IsCrossPort reports whether the response answers a cross-port probe.
func (r Response) IsCrossPort() bool { return r.Kind() == KindCrossPort }

// IsCrossServer reports whether the response answers a cross-server probe.
func (r Response) IsCrossServer() bool { return r.Kind() == KindCrossServer }

// RemoteAddr returns the externally observed endpoint.
func (r Response) RemoteAddr() netip.AddrPort {
	return netip.AddrPortFrom(r.RemoteIP, r.Port)
}
