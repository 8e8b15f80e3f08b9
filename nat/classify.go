package nat

import (
	"errors"
	"net"
	"net/netip"
	"os"
)

// Classify determines the NAT class. It runs one probe round on the
// first endpoint; equal external ports from both servers settle the
// class immediately (A with a cross-port reply, B without), differing
// ports trigger a second round on the second endpoint to compare
// per-round port-allocation deltas (equal deltas C, else D).
//
// A round that times out before both servers report an endpoint yields
// TypeF with no observed address and a nil error: inconclusive is a
// result, not a failure. Any other transport error is returned as-is
// (with TypeF as a placeholder class).
//
// The returned address is the external IPv4 address server 1 reported
// in round 1, or the zero Addr for TypeF.
func (t *Tester) Classify() (netip.Addr, Type, error) {
	r1, err := t.round(t.rw1)
	if err != nil {
		return t.inconclusive(err)
	}

	ip := r1.Remote1.Addr()

	portA1 := r1.Remote1.Port()
	portB1 := r1.Remote2.Port()
	if portA1 == portB1 {
		// The mapping does not depend on the destination.
		class := TypeB
		if r1.CrossPortReply {
			class = TypeA
		}
		t.logger.Info("ports agree (%d): class %s", portA1, class)
		t.metrics.IncClassification(int(class))
		return ip, class, nil
	}

	r2, err := t.round(t.rw2)
	if err != nil {
		return t.inconclusive(err)
	}

	deltaA := portDelta(r2.Remote1.Port(), portA1)
	deltaB := portDelta(r2.Remote2.Port(), portB1)
	class := TypeD
	if deltaA == deltaB {
		class = TypeC
	}
	t.logger.Info("ports differ (%d vs %d), deltas %d/%d: class %s",
		portA1, portB1, deltaA, deltaB, class)
	t.metrics.IncClassification(int(class))
	return ip, class, nil
}

// inconclusive converts a round failure into the terminal F class when
// the failure is a timeout, and propagates it otherwise.
func (t *Tester) inconclusive(err error) (netip.Addr, Type, error) {
	if isTimeout(err) {
		t.logger.Info("round timed out before both endpoints were known: class F")
		t.metrics.IncRoundsTimedOut()
		t.metrics.IncClassification(int(TypeF))
		return netip.Addr{}, TypeF, nil
	}
	return netip.Addr{}, TypeF, err
}

// portDelta is the forward distance from p1 to p2 on the wrapping
// 16-bit port counter, modeling a NAT allocation counter that rolls
// over at the 16-bit boundary.
func portDelta(p2, p1 uint16) uint16 {
	return p2 - p1
}

// isTimeout reports whether err is a read-deadline expiry, the two ways
// Go surfaces one.
func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var nerr net.Error
	return errors.As(err, &nerr) && nerr.Timeout()
}
