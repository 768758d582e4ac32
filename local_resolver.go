package ddns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// DefaultResolver reads the addresses of the local network interfaces,
// which is what a router with a public WAN address wants.
var DefaultResolver = InterfaceResolver()

// InterfaceResolver constructs a resolver that returns the IP addresses reported by the given interfaces.
// If no interfaces are provided then all interfaces will be used.
// Loopback and link-local addresses are always skipped.
func InterfaceResolver(iface ...string) Resolver {
	if len(iface) == 0 {
		return localResolver{}
	}
	return interfaceResolver{ifaces: iface}
}

type interfaceResolver struct {
	ifaces []string
}

func (r interfaceResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	var (
		addrs []netip.Addr
		errs  []error
	)
	for _, name := range r.ifaces {
		iface, err := net.InterfaceByName(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("error getting interface %s by name: %w", name, err))
			continue
		}
		a, err := iface.Addrs()
		if err != nil {
			errs = append(errs, fmt.Errorf("error looking up addresses for interface %s: %w", name, err))
			continue
		}
		found, err := usableAddrs(a)
		if err != nil {
			errs = append(errs, fmt.Errorf("interface %s: %w", name, err))
		}
		addrs = append(addrs, found...)
	}
	return addrs, errors.Join(errs...)
}

type localResolver struct{}

func (localResolver) Resolve(ctx context.Context) ([]netip.Addr, error) {
	a, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("error getting addresses for interfaces: %w", err)
	}
	return usableAddrs(a)
}

// usableAddrs parses interface addresses such as
//
//	ip+net:192.168.86.253/24
//	ip+net:fe80::2cc9:801b:3551:9a43/64
//
// dropping loopback and link-local ones.
func usableAddrs(in []net.Addr) (addrs []netip.Addr, err error) {
	var errs []error
	for _, addr := range in {
		p, err := netip.ParsePrefix(addr.String())
		if err != nil {
			errs = append(errs, fmt.Errorf("error parsing local ip %s: %w", addr.String(), err))
			continue
		}
		a := p.Addr()
		if a.IsLoopback() || a.IsLinkLocalUnicast() {
			continue
		}
		addrs = append(addrs, a)
	}
	return addrs, errors.Join(errs...)
}
