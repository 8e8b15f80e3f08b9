// Command natprobe classifies the local NAT by probing the Nintendo
// rendezvous servers (or an overridden pair) and prints the result in
// the labeling conventions of the three major gaming platforms.
package main

import (
	"flag"
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"time"

	"github.com/cykyes/natprobe/internal/resolve"
	"github.com/cykyes/natprobe/log"
	"github.com/cykyes/natprobe/metrics"
	"github.com/cykyes/natprobe/nat"
	"github.com/cykyes/natprobe/transport"
)

// Default rendezvous pair. The protocol needs two servers sharing one
// wire format; Nintendo's NAT-check pair is the reference deployment.
const (
	defaultServer1 = "nncs1-lp1.n.n.srv.nintendo.net"
	defaultServer2 = "nncs2-lp1.n.n.srv.nintendo.net"
)

func main() {
	var (
		proxy    string
		username string
		password string
		timeout  uint64
		server1  string
		server2  string
		debug    bool
		showStat bool
	)
	flag.StringVar(&proxy, "s", "", "SOCKS5 proxy address (host:port)")
	flag.StringVar(&proxy, "socks-proxy", "", "SOCKS5 proxy address (host:port)")
	flag.StringVar(&username, "username", "", "SOCKS5 username (requires -password)")
	flag.StringVar(&password, "password", "", "SOCKS5 password (requires -username)")
	flag.Uint64Var(&timeout, "w", 3000, "timeout to wait for each response, in ms (0 = no timeout)")
	flag.StringVar(&server1, "server1", defaultServer1, "primary rendezvous server")
	flag.StringVar(&server2, "server2", defaultServer2, "secondary rendezvous server")
	flag.BoolVar(&debug, "d", false, "enable debug logging")
	flag.BoolVar(&showStat, "metrics", false, "dump probe counters after the run")
	flag.Parse()

	if (username == "") != (password == "") {
		fatalf("-username and -password must be given together")
	}

	logger := log.Nop()
	if debug {
		logger = log.NewStdLogger(log.WithLevel(log.LevelDebug))
	}

	ip1, err := resolve.HostV4(server1)
	if err != nil {
		fatalf("%v", err)
	}
	ip2, err := resolve.HostV4(server2)
	if err != nil {
		fatalf("%v", err)
	}

	var auth *transport.Auth
	if username != "" {
		auth = &transport.Auth{Username: username, Password: password}
	}

	rw1, err := bindEndpoint(proxy, auth, time.Duration(timeout)*time.Millisecond)
	if err != nil {
		fatalf("%v", err)
	}
	defer rw1.Close()
	rw2, err := bindEndpoint(proxy, auth, time.Duration(timeout)*time.Millisecond)
	if err != nil {
		fatalf("%v", err)
	}
	defer rw2.Close()

	tester := nat.NewTester(rw1, rw2, ip1, ip2, nat.WithLogger(logger))
	observed, class, err := tester.Classify()
	if err != nil {
		fatalf("%v", err)
	}

	if observed.IsValid() {
		fmt.Printf("Remote Address: %s\n", observed)
	}
	fmt.Println("NAT Type:")
	fmt.Printf("  Nintendo Switch : %s\n", class.Nintendo())
	fmt.Printf("  Sony PlayStation: %s\n", class.Sony())
	fmt.Printf("  Microsoft Xbox  : %s\n", class.Microsoft())

	if showStat {
		printMetrics(metrics.Global.GetSnapshot())
	}
}

// bindEndpoint creates one probe endpoint: a plain UDP socket, or a
// SOCKS5 datagram relay when a proxy was given. The read timeout is the
// round's only termination mechanism besides completion.
func bindEndpoint(proxy string, auth *transport.Auth, timeout time.Duration) (transport.RW, error) {
	local := netip.AddrPortFrom(netip.IPv4Unspecified(), 0)

	var rw transport.RW
	if proxy != "" {
		proxyAddr, err := parseHostPort(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy address: %w", err)
		}
		rw, err = transport.BindDatagram(proxyAddr, local, auth)
		if err != nil {
			return nil, err
		}
	} else {
		var err error
		rw, err = transport.Bind(local)
		if err != nil {
			return nil, err
		}
	}

	if timeout != 0 {
		if err := rw.SetReadTimeout(timeout); err != nil {
			rw.Close()
			return nil, err
		}
	}
	return rw, nil
}

// parseHostPort parses "host:port" where host may be an IPv4 literal or
// a name resolved to IPv4.
func parseHostPort(s string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(s); err == nil {
		ap = netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
		if !ap.Addr().Is4() {
			return netip.AddrPort{}, fmt.Errorf("%s is not IPv4", s)
		}
		return ap, nil
	}

	host, portStr, ok := splitHostPort(s)
	if !ok {
		return netip.AddrPort{}, fmt.Errorf("invalid address %q", s)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("invalid port %q", portStr)
	}
	ip, err := resolve.HostV4(host)
	if err != nil {
		return netip.AddrPort{}, err
	}
	return netip.AddrPortFrom(ip, uint16(port)), nil
}

// splitHostPort splits on the last colon, enough for IPv4 and names.
func splitHostPort(s string) (host, port string, ok bool) {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == ':' {
			return s[:i], s[i+1:], s[:i] != "" && s[i+1:] != ""
		}
	}
	return "", "", false
}

func printMetrics(s metrics.Snapshot) {
	fmt.Println("--- probe counters ---")
	fmt.Printf("probes sent      : %d (%d bytes, %d errors)\n", s.ProbesSent, s.ProbeBytesSent, s.ProbeSendErrors)
	fmt.Printf("datagrams in     : %d (%d bytes, %d ignored)\n", s.DatagramsReceived, s.BytesReceived, s.DatagramsIgnored)
	fmt.Printf("rounds           : %d (%d complete, %d timed out)\n", s.RoundsTotal, s.RoundsComplete, s.RoundsTimedOut)
	fmt.Printf("elapsed          : %v\n", s.Uptime.Round(time.Millisecond))
}

func fatalf(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
