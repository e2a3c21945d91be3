package wgconf

import (
	"fmt"
	"net/netip"
	"strings"

	"github.com/nyiyui/wgconf/goal"
)

// NormalizeAddress returns addr as "address/prefix". A bare address gets a full-length
// prefix. Host bits are kept, as interface addresses carry them.
func NormalizeAddress(addr string) (string, error) {
	p, err := parseAddress(addr)
	if err != nil {
		return "", err
	}
	return p.String(), nil
}

// NormalizeClientAddress is NormalizeAddress for client addresses, which must be a
// single IPv4 address.
func NormalizeClientAddress(addr string) (string, error) {
	p, err := parseAddress(addr)
	if err != nil {
		return "", err
	}
	if !p.Addr().Is4() || p.Bits() != 32 {
		return "", fmt.Errorf("client address %s is not a single IPv4 address (/32): %w", addr, goal.ErrValidation)
	}
	return p.String(), nil
}

func parseAddress(addr string) (netip.Prefix, error) {
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "/") {
		p, err := netip.ParsePrefix(addr)
		if err != nil {
			return netip.Prefix{}, fmt.Errorf("%w: %w", err, goal.ErrValidation)
		}
		return p, nil
	}
	a, err := netip.ParseAddr(addr)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("%w: %w", err, goal.ErrValidation)
	}
	return netip.PrefixFrom(a, a.BitLen()), nil
}

func normalizeAddresses(f *goal.Field[[]string]) error {
	addrs, ok := f.Get()
	if !ok {
		return nil
	}
	normalized := make([]string, len(addrs))
	for i, addr := range addrs {
		n, err := NormalizeAddress(addr)
		if err != nil {
			return fmt.Errorf("address: %w", err)
		}
		normalized[i] = n
	}
	*f = goal.Some(normalized)
	return nil
}
