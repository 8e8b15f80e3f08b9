package nat

import (
	"errors"
	"net/netip"
	"os"
	"testing"
	"time"

	"github.com/cykyes/natprobe/internal/wire"
	"github.com/cykyes/natprobe/metrics"
	"github.com/cykyes/natprobe/transport"
)

var (
	server1 = netip.MustParseAddr("192.0.2.1")
	server2 = netip.MustParseAddr("192.0.2.2")

	echo1Addr     = netip.AddrPortFrom(server1, wire.PortEcho)
	recvOnly1Addr = netip.AddrPortFrom(server1, wire.PortRecvOnly)
	echo2Addr     = netip.AddrPortFrom(server2, wire.PortEcho)
)

// datagram is one scripted inbound packet.
type datagram struct {
	b    []byte
	from netip.AddrPort
}

// fakeRW is a scripted transport: it records sends and replays a fixed
// sequence of inbound datagrams, then fails with errAfter (a timeout by
// default).
type fakeRW struct {
	inbox    []datagram
	pos      int
	sent     []datagram
	errAfter error

	readTimeout  time.Duration
	writeTimeout time.Duration
	sendErr      error
}

var _ transport.RW = (*fakeRW)(nil)

func (f *fakeRW) LocalAddr() (netip.AddrPort, error) {
	return netip.MustParseAddrPort("10.0.0.5:52000"), nil
}

func (f *fakeRW) SendTo(b []byte, to netip.AddrPort) (int, error) {
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.sent = append(f.sent, datagram{b: append([]byte(nil), b...), from: to})
	return len(b), nil
}

func (f *fakeRW) RecvFrom(b []byte) (int, netip.AddrPort, error) {
	if f.pos >= len(f.inbox) {
		if f.errAfter != nil {
			return 0, netip.AddrPort{}, f.errAfter
		}
		return 0, netip.AddrPort{}, os.ErrDeadlineExceeded
	}
	d := f.inbox[f.pos]
	f.pos++
	return copy(b, d.b), d.from, nil
}

func (f *fakeRW) SetReadTimeout(d time.Duration) error  { f.readTimeout = d; return nil }
func (f *fakeRW) SetWriteTimeout(d time.Duration) error { f.writeTimeout = d; return nil }
func (f *fakeRW) ReadTimeout() time.Duration            { return f.readTimeout }
func (f *fakeRW) WriteTimeout() time.Duration           { return f.writeTimeout }
func (f *fakeRW) Close() error                          { return nil }

// response builds a wire response datagram of the given kind reporting
// the given external endpoint.
func response(t *testing.T, kind byte, external netip.AddrPort) []byte {
	t.Helper()
	b, err := wire.Response{
		Payload:  [4]byte{3: kind},
		Port:     external.Port(),
		RemoteIP: external.Addr(),
		LocalIP:  netip.MustParseAddr("10.0.0.1"),
	}.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary failed: %v", err)
	}
	return b
}

func externalAP(t *testing.T, port uint16) netip.AddrPort {
	t.Helper()
	return netip.AddrPortFrom(netip.MustParseAddr("203.0.113.5"), port)
}

// fullInbox scripts a round that observes remote1, the cross-port
// reply, and remote2.
func fullInbox(t *testing.T, port1, port2 uint16) []datagram {
	t.Helper()
	return []datagram{
		{response(t, wire.KindEcho, externalAP(t, port1)), echo1Addr},
		{response(t, wire.KindCrossPort, externalAP(t, port1)), recvOnly1Addr},
		{response(t, wire.KindCrossServer, externalAP(t, port2)), echo2Addr},
	}
}

func newTestTester(rw1, rw2 transport.RW) *Tester {
	return NewTester(rw1, rw2, server1, server2, WithMetrics(metrics.NewCollector()))
}

func TestRoundSendsAllProbes(t *testing.T) {
	rw := &fakeRW{inbox: fullInbox(t, 40001, 40001)}
	tester := newTestTester(rw, &fakeRW{})

	if _, err := tester.round(rw); err != nil {
		t.Fatalf("round failed: %v", err)
	}

	if len(rw.sent) != 4*sendRepeat {
		t.Fatalf("sent %d probes, want %d", len(rw.sent), 4*sendRepeat)
	}
	want := []struct {
		payload [wire.ResponseLen]byte
		to      netip.AddrPort
	}{
		{wire.PayloadSendOnly, netip.AddrPortFrom(server1, wire.PortSendOnly)},
		{wire.PayloadEcho, echo1Addr},
		{wire.PayloadCrossPort, echo1Addr},
		{wire.PayloadCrossServer, echo2Addr},
	}
	for i, w := range want {
		for j := 0; j < sendRepeat; j++ {
			got := rw.sent[i*sendRepeat+j]
			if got.from != w.to {
				t.Errorf("probe %d/%d sent to %s, want %s", i, j, got.from, w.to)
			}
			if string(got.b) != string(w.payload[:]) {
				t.Errorf("probe %d/%d payload = %v, want %v", i, j, got.b, w.payload)
			}
		}
	}
}

func TestRoundObservesAllThree(t *testing.T) {
	// Replies may arrive in any interleaving; deliver them backwards.
	inbox := fullInbox(t, 40001, 40002)
	for i, j := 0, len(inbox)-1; i < j; i, j = i+1, j-1 {
		inbox[i], inbox[j] = inbox[j], inbox[i]
	}
	rw := &fakeRW{inbox: inbox}
	tester := newTestTester(rw, &fakeRW{})

	r, err := tester.round(rw)
	if err != nil {
		t.Fatalf("round failed: %v", err)
	}
	if r.Remote1 != externalAP(t, 40001) {
		t.Errorf("Remote1 = %s, want %s", r.Remote1, externalAP(t, 40001))
	}
	if r.Remote2 != externalAP(t, 40002) {
		t.Errorf("Remote2 = %s, want %s", r.Remote2, externalAP(t, 40002))
	}
	if !r.CrossPortReply {
		t.Error("CrossPortReply = false, want true")
	}
}

func TestRoundIgnoresNoise(t *testing.T) {
	attacker := netip.MustParseAddrPort("198.51.100.99:4444")
	inbox := []datagram{
		// Wrong length.
		{make([]byte, 15), echo1Addr},
		{make([]byte, 17), echo1Addr},
		// Right length, wrong source.
		{response(t, wire.KindEcho, externalAP(t, 1)), attacker},
		// Right source, wrong discriminator.
		{response(t, wire.KindCrossServer, externalAP(t, 2)), echo1Addr},
		{response(t, wire.KindEcho, externalAP(t, 3)), echo2Addr},
		{response(t, wire.KindEcho, externalAP(t, 4)), recvOnly1Addr},
	}
	inbox = append(inbox, fullInbox(t, 40001, 40001)...)
	rw := &fakeRW{inbox: inbox}
	tester := newTestTester(rw, &fakeRW{})

	r, err := tester.round(rw)
	if err != nil {
		t.Fatalf("round failed: %v", err)
	}
	if r.Remote1 != externalAP(t, 40001) || r.Remote2 != externalAP(t, 40001) || !r.CrossPortReply {
		t.Errorf("unexpected result after noise: %+v", r)
	}
}

func TestRoundCrossPortReplyOptional(t *testing.T) {
	// Both endpoints known, then a timeout: the round succeeds with
	// CrossPortReply=false.
	rw := &fakeRW{inbox: []datagram{
		{response(t, wire.KindEcho, externalAP(t, 40001)), echo1Addr},
		{response(t, wire.KindCrossServer, externalAP(t, 40001)), echo2Addr},
	}}
	tester := newTestTester(rw, &fakeRW{})

	r, err := tester.round(rw)
	if err != nil {
		t.Fatalf("round failed: %v", err)
	}
	if r.CrossPortReply {
		t.Error("CrossPortReply = true, want false")
	}
}

func TestRoundTimeoutWithMissingEndpointPropagates(t *testing.T) {
	rw := &fakeRW{inbox: []datagram{
		{response(t, wire.KindEcho, externalAP(t, 40001)), echo1Addr},
	}}
	tester := newTestTester(rw, &fakeRW{})

	if _, err := tester.round(rw); !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Fatalf("err = %v, want deadline exceeded", err)
	}
}

func TestRoundSendErrorPropagates(t *testing.T) {
	sendErr := errors.New("network down")
	rw := &fakeRW{sendErr: sendErr}
	tester := newTestTester(rw, &fakeRW{})

	if _, err := tester.round(rw); !errors.Is(err, sendErr) {
		t.Fatalf("err = %v, want %v", err, sendErr)
	}
}
