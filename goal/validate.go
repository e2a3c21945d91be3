package goal

import (
	"fmt"
	"net/netip"

	"github.com/miekg/dns"
)

// ValidateHost checks that host is an IP address or a domain name.
func ValidateHost(host string) error {
	if _, err := netip.ParseAddr(host); err == nil {
		return nil
	}
	if _, ok := dns.IsDomainName(host); !ok || host == "" {
		return fmt.Errorf("%q is neither an IP address nor a domain name: %w", host, ErrValidation)
	}
	return nil
}

// ValidateDNS checks entries of a DNS option: resolver addresses and search domains.
func ValidateDNS(entries []string) error {
	for _, e := range entries {
		if err := ValidateHost(e); err != nil {
			return fmt.Errorf("dns: %w", err)
		}
	}
	return nil
}

func validatePort(key string, f Field[int]) error {
	if v, ok := f.Get(); ok && (v < 0 || v > 65535) {
		return fmt.Errorf("%s: %d out of range: %w", key, v, ErrValidation)
	}
	return nil
}

func (p InterfaceProps) Validate() error {
	if dnsEntries, ok := p.DNS.Get(); ok {
		if err := ValidateDNS(dnsEntries); err != nil {
			return err
		}
	}
	if err := validatePort("listen_port", p.ListenPort); err != nil {
		return err
	}
	if mtu, ok := p.MTU.Get(); ok && mtu <= 0 {
		return fmt.Errorf("mtu: %d is not positive: %w", mtu, ErrValidation)
	}
	return nil
}

func (p PeerProps) Validate() error {
	return validatePort("persistent_keepalive", p.PersistentKeepalive)
}

func (p ClientProps) Validate() error {
	if dnsEntries, ok := p.DNS.Get(); ok {
		if err := ValidateDNS(dnsEntries); err != nil {
			return err
		}
	}
	return validatePort("persistent_keepalive", p.PersistentKeepalive)
}
