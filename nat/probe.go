package nat

import (
	"net/netip"

	"github.com/cykyes/natprobe/internal/pool"
	"github.com/cykyes/natprobe/internal/wire"
	"github.com/cykyes/natprobe/log"
	"github.com/cykyes/natprobe/metrics"
	"github.com/cykyes/natprobe/transport"
)

// sendRepeat is how many times each probe is sent. The exchange has no
// acknowledgments; blind repetition is the only defense against UDP
// loss.
const sendRepeat = 5

// RoundResult is the outcome of one completed probe round.
type RoundResult struct {
	// Remote1 is the external endpoint as observed by server 1.
	Remote1 netip.AddrPort
	// Remote2 is the external endpoint as observed by server 2.
	Remote2 netip.AddrPort
	// CrossPortReply records whether server 1 reached us from its
	// receive-only port, i.e. from an endpoint we never sent to.
	CrossPortReply bool
}

// Tester runs the two-round NAT classification against a pair of
// rendezvous servers.
type Tester struct {
	rw1, rw2         transport.RW
	server1, server2 netip.Addr

	logger  log.Logger
	metrics *metrics.Collector
}

// Option configures a Tester.
type Option func(*Tester)

// WithLogger sets the logger. The default is a silent logger.
func WithLogger(l log.Logger) Option {
	return func(t *Tester) {
		t.logger = l
	}
}

// WithMetrics sets the metrics collector. The default is
// metrics.Global.
func WithMetrics(c *metrics.Collector) Option {
	return func(t *Tester) {
		t.metrics = c
	}
}

// NewTester creates a Tester. rw1 and rw2 must be two distinct bound
// endpoints: round 2 needs its own local port so that port-allocation
// deltas are not an artifact of reusing round 1's mapping.
func NewTester(rw1, rw2 transport.RW, server1, server2 netip.Addr, opts ...Option) *Tester {
	t := &Tester{
		rw1:     rw1,
		rw2:     rw2,
		server1: server1,
		server2: server2,
		logger:  log.Nop(),
		metrics: metrics.Global,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// round drives one probe exchange on rw: four probe kinds are sent
// (each sendRepeat times), then inbound datagrams are multiplexed by
// source address until all three observations are in or the transport
// errors out.
//
// A receive error with both server endpoints already known completes
// the round with CrossPortReply=false: the cross-port reply is
// optional, and its absence is itself the signal. Any other receive
// error, and every send error, propagates.
func (t *Tester) round(rw transport.RW) (RoundResult, error) {
	t.metrics.IncRoundsTotal()

	sendOnly1 := netip.AddrPortFrom(t.server1, wire.PortSendOnly)
	echo1 := netip.AddrPortFrom(t.server1, wire.PortEcho)
	recvOnly1 := netip.AddrPortFrom(t.server1, wire.PortRecvOnly)
	echo2 := netip.AddrPortFrom(t.server2, wire.PortEcho)

	// Send phase. Strictly before the receive loop; replies to the
	// early probes simply wait in the socket buffer.
	if err := t.sendProbe(rw, wire.PayloadSendOnly, sendOnly1); err != nil {
		return RoundResult{}, err
	}
	if err := t.sendProbe(rw, wire.PayloadEcho, echo1); err != nil {
		return RoundResult{}, err
	}
	if err := t.sendProbe(rw, wire.PayloadCrossPort, echo1); err != nil {
		return RoundResult{}, err
	}
	if err := t.sendProbe(rw, wire.PayloadCrossServer, echo2); err != nil {
		return RoundResult{}, err
	}

	// Receive phase: dispatch by source address, with the echoed
	// discriminator as a secondary check. Anything else is noise from
	// an unauthenticated UDP exchange and is dropped without failing
	// the round.
	var result RoundResult
	bufp := pool.GetRecvBuffer()
	defer pool.PutRecvBuffer(bufp)
	buf := *bufp

	for {
		n, from, err := rw.RecvFrom(buf)
		if err != nil {
			if result.Remote1.IsValid() && result.Remote2.IsValid() {
				t.logger.Debug("round closed by %v with both endpoints known", err)
				t.metrics.IncRoundsComplete()
				return result, nil
			}
			return RoundResult{}, err
		}
		t.metrics.IncDatagramsReceived()
		t.metrics.AddBytesReceived(int64(n))

		if n != wire.ResponseLen {
			t.metrics.IncDatagramsIgnored()
			continue
		}
		resp, err := wire.ParseResponse(buf[:n])
		if err != nil {
			t.metrics.IncDatagramsIgnored()
			continue
		}

		switch from {
		case echo1:
			if resp.IsEcho() {
				result.Remote1 = resp.RemoteAddr()
				t.logger.Debug("server1 observed %s", result.Remote1)
			} else {
				t.metrics.IncDatagramsIgnored()
			}
		case recvOnly1:
			if resp.IsCrossPort() {
				result.CrossPortReply = true
				t.logger.Debug("cross-port reply from %s", from)
			} else {
				t.metrics.IncDatagramsIgnored()
			}
		case echo2:
			if resp.IsCrossServer() {
				result.Remote2 = resp.RemoteAddr()
				t.logger.Debug("server2 observed %s", result.Remote2)
			} else {
				t.metrics.IncDatagramsIgnored()
			}
		default:
			t.metrics.IncDatagramsIgnored()
		}

		if result.Remote1.IsValid() && result.Remote2.IsValid() && result.CrossPortReply {
			t.metrics.IncRoundsComplete()
			return result, nil
		}
	}
}

// sendProbe sends one probe payload sendRepeat times.
func (t *Tester) sendProbe(rw transport.RW, payload [wire.ResponseLen]byte, to netip.AddrPort) error {
	for i := 0; i < sendRepeat; i++ {
		n, err := rw.SendTo(payload[:], to)
		if err != nil {
			t.metrics.IncProbeSendErrors()
			return err
		}
		t.metrics.IncProbesSent()
		t.metrics.AddProbeBytesSent(int64(n))
	}
	return nil
}
