package ddns

import (
	"context"
	"fmt"
	"net/netip"

	"github.com/miekg/dns"
)

// OpenDNS answers A queries for myip.opendns.com with the address the query came from.
const (
	OpenDNSServer = "208.67.222.222:53"
	OpenDNSName   = "myip.opendns.com."
)

// DNSResolver constructs a resolver that asks server for the A records of name.
// Empty arguments default to the OpenDNS "myip" service.
func DNSResolver(server, name string) Resolver {
	if server == "" {
		server = OpenDNSServer
	}
	if name == "" {
		name = OpenDNSName
	}
	return dnsResolver{server: server, name: dns.Fqdn(name)}
}

type dnsResolver struct {
	server string
	name   string
}

func (r dnsResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	m := new(dns.Msg)
	m.SetQuestion(r.name, dns.TypeA)

	c := new(dns.Client)
	in, _, err := c.ExchangeContext(ctx, m, r.server)
	if err != nil {
		return nil, fmt.Errorf("dns query to %s failed: %w", r.server, err)
	}
	if in.Rcode != dns.RcodeSuccess {
		return nil, fmt.Errorf("dns query for %s returned %s", r.name, dns.RcodeToString[in.Rcode])
	}

	var addrs []netip.Addr
	for _, rr := range in.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		if addr, ok := netip.AddrFromSlice(a.A); ok {
			addrs = append(addrs, addr.Unmap())
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no A records for %s from %s", r.name, r.server)
	}
	return addrs, nil
}
