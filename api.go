package ddns

import (
	"context"
	"net/netip"
)

// Resolver discovers the address that should be published for this machine.
type Resolver interface {
	Resolve(context.Context) ([]netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to a Resolver.
type ResolverFunc func(context.Context) ([]netip.Addr, error)

func (f ResolverFunc) Resolve(ctx context.Context) ([]netip.Addr, error) {
	return f(ctx)
}

// firstIPv4 picks the address to publish: the update endpoint only manages A records.
func firstIPv4(addrs []netip.Addr) (netip.Addr, bool) {
	for _, a := range addrs {
		if a.Unmap().Is4() {
			return a.Unmap(), true
		}
	}
	return netip.Addr{}, false
}
