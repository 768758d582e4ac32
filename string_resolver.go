package ddns

import (
	"context"
	"fmt"
	"net/netip"
)

// FromString constructs a resolver that always returns addr.
// It fails unless addr is an IPv4 address.
func FromString(addr string) (Resolver, error) {
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse IP: %w", err)
	}
	if !a.Unmap().Is4() {
		return nil, fmt.Errorf("%s is not an IPv4 address", addr)
	}
	return staticResolver(a.Unmap()), nil
}

type staticResolver netip.Addr

func (s staticResolver) Resolve(context.Context) ([]netip.Addr, error) {
	return []netip.Addr{netip.Addr(s)}, nil
}
