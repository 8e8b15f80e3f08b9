package transport

import (
	"bytes"
	"errors"
	"net/netip"
	"os"
	"testing"
	"time"
)

func bindLoopback(t *testing.T) *Socket {
	t.Helper()
	s, err := Bind(netip.MustParseAddrPort("127.0.0.1:0"))
	if err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSocketSendRecv(t *testing.T) {
	a := bindLoopback(t)
	b := bindLoopback(t)

	aAddr, err := a.LocalAddr()
	if err != nil {
		t.Fatalf("LocalAddr failed: %v", err)
	}
	bAddr, err := b.LocalAddr()
	if err != nil {
		t.Fatalf("LocalAddr failed: %v", err)
	}
	if !aAddr.Addr().Is4() || aAddr.Port() == 0 {
		t.Fatalf("unexpected local address %s", aAddr)
	}

	payload := []byte("probe")
	n, err := a.SendTo(payload, bAddr)
	if err != nil {
		t.Fatalf("SendTo failed: %v", err)
	}
	if n != len(payload) {
		t.Errorf("SendTo wrote %d bytes, want %d", n, len(payload))
	}

	if err := b.SetReadTimeout(2 * time.Second); err != nil {
		t.Fatalf("SetReadTimeout failed: %v", err)
	}
	buf := make([]byte, 64)
	n, from, err := b.RecvFrom(buf)
	if err != nil {
		t.Fatalf("RecvFrom failed: %v", err)
	}
	if !bytes.Equal(buf[:n], payload) {
		t.Errorf("received %q, want %q", buf[:n], payload)
	}
	if from != aAddr {
		t.Errorf("source = %s, want %s", from, aAddr)
	}
}

func TestSocketReadTimeout(t *testing.T) {
	s := bindLoopback(t)
	if err := s.SetReadTimeout(50 * time.Millisecond); err != nil {
		t.Fatalf("SetReadTimeout failed: %v", err)
	}

	start := time.Now()
	_, _, err := s.RecvFrom(make([]byte, 16))
	if err == nil {
		t.Fatal("RecvFrom succeeded, want timeout")
	}
	if !errors.Is(err, os.ErrDeadlineExceeded) {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}
}

func TestSocketTimeoutAccessors(t *testing.T) {
	s := bindLoopback(t)

	if s.ReadTimeout() != 0 || s.WriteTimeout() != 0 {
		t.Error("fresh socket should have no timeouts")
	}
	if err := s.SetReadTimeout(time.Second); err != nil {
		t.Fatalf("SetReadTimeout failed: %v", err)
	}
	if err := s.SetWriteTimeout(2 * time.Second); err != nil {
		t.Fatalf("SetWriteTimeout failed: %v", err)
	}
	if s.ReadTimeout() != time.Second {
		t.Errorf("ReadTimeout = %v, want 1s", s.ReadTimeout())
	}
	if s.WriteTimeout() != 2*time.Second {
		t.Errorf("WriteTimeout = %v, want 2s", s.WriteTimeout())
	}

	// Zero clears the bound again: a subsequent receive must block past
	// the old 1s deadline. Verified indirectly via deadline().
	if err := s.SetReadTimeout(0); err != nil {
		t.Fatalf("SetReadTimeout(0) failed: %v", err)
	}
	if s.ReadTimeout() != 0 {
		t.Errorf("ReadTimeout = %v, want 0", s.ReadTimeout())
	}
}

func TestDeadline(t *testing.T) {
	if !deadline(0).IsZero() {
		t.Error("deadline(0) must be the zero time")
	}
	d := deadline(time.Second)
	if d.Before(time.Now()) || d.After(time.Now().Add(2*time.Second)) {
		t.Errorf("deadline(1s) = %v, out of range", d)
	}
}

func TestRequireV4(t *testing.T) {
	// 4-mapped-in-6 addresses normalize instead of panicking.
	mapped := netip.MustParseAddrPort("[::ffff:192.0.2.1]:80")
	got := requireV4(mapped)
	if want := netip.MustParseAddrPort("192.0.2.1:80"); got != want {
		t.Errorf("requireV4(%s) = %s, want %s", mapped, got, want)
	}

	defer func() {
		if recover() == nil {
			t.Error("requireV4 with a real IPv6 address must panic")
		}
	}()
	requireV4(netip.MustParseAddrPort("[2001:db8::1]:80"))
}
