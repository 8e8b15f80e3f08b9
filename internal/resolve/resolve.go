// Package resolve turns hostnames into IPv4 addresses. It queries the
// system-configured DNS servers directly for A records and falls back
// to the platform resolver where no DNS configuration is readable.
package resolve

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"time"

	"github.com/miekg/dns"
)

// ErrNoIPv4 is returned when a name resolves, but not to any IPv4
// address.
var ErrNoIPv4 = errors.New("resolve: no IPv4 address found")

// queryTimeout bounds a single DNS exchange.
const queryTimeout = 5 * time.Second

// resolvConf is the DNS configuration consulted for nameservers.
const resolvConf = "/etc/resolv.conf"

// HostV4 resolves host to its first IPv4 address. IPv4 literals are
// returned as-is; IPv6 literals are rejected.
func HostV4(host string) (netip.Addr, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		addr = addr.Unmap()
		if !addr.Is4() {
			return netip.Addr{}, fmt.Errorf("resolve: %s is not an IPv4 address", host)
		}
		return addr, nil
	}

	cfg, err := dns.ClientConfigFromFile(resolvConf)
	if err != nil || len(cfg.Servers) == 0 {
		// No readable DNS configuration (e.g. Windows): use the
		// platform resolver.
		return systemLookup(host)
	}

	var lastErr error
	for _, server := range cfg.Servers {
		addr, err := queryA(host, net.JoinHostPort(server, cfg.Port))
		if err == nil {
			return addr, nil
		}
		lastErr = err
	}
	return netip.Addr{}, lastErr
}

// queryA asks one DNS server for the A records of host and returns the
// first answer.
func queryA(host, server string) (netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(host), dns.TypeA)

	c := &dns.Client{Timeout: queryTimeout}
	r, _, err := c.Exchange(m, server)
	if err != nil {
		return netip.Addr{}, fmt.Errorf("resolve: query %s: %w", host, err)
	}
	if r.Rcode != dns.RcodeSuccess {
		return netip.Addr{}, fmt.Errorf("resolve: query %s: %s", host, dns.RcodeToString[r.Rcode])
	}
	for _, rr := range r.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if ip, ok := netip.AddrFromSlice(a.A); ok {
			ip = ip.Unmap()
			if ip.Is4() {
				return ip, nil
			}
		}
	}
	return netip.Addr{}, ErrNoIPv4
}

// systemLookup resolves host through the platform resolver, keeping
// only IPv4 answers.
func systemLookup(host string) (netip.Addr, error) {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	ips, err := net.DefaultResolver.LookupNetIP(ctx, "ip4", host)
	if err != nil {
		return netip.Addr{}, err
	}
	for _, ip := range ips {
		ip = ip.Unmap()
		if ip.Is4() {
			return ip, nil
		}
	}
	return netip.Addr{}, ErrNoIPv4
}
