package wgconf

import (
	"fmt"

	"github.com/nyiyui/wgconf/conf"
	"github.com/nyiyui/wgconf/goal"
)

const (
	InterfaceKind = "Interface"
	PeerKind      = "Peer"
)

func getString(s *conf.Section, props Props, key string) string {
	p, _ := props.Lookup(key)
	raw, _ := p.Raw(s)
	return raw
}

func getList(s *conf.Section, props Props, key string) []string {
	p, _ := props.Lookup(key)
	raw, ok := p.Raw(s)
	if !ok {
		return nil
	}
	return conf.SplitList(raw)
}

func getInt(s *conf.Section, props Props, key string) (int, bool, error) {
	p, _ := props.Lookup(key)
	v, err := p.Get(s)
	if err != nil || v == nil {
		return 0, false, err
	}
	return v.(int), true, nil
}

// newSection builds a standalone section of the given kind from a complete set of
// assignments.
func newSection(kind string, props Props, dup conf.Dup, as []goal.Assignment) (*conf.Section, error) {
	if err := props.check(as, true); err != nil {
		return nil, fmt.Errorf("creating %s: %w", kind, err)
	}
	s := conf.NewSection(kind, dup)
	if err := props.apply(s, as); err != nil {
		return nil, fmt.Errorf("creating %s: %w", kind, err)
	}
	return s, nil
}

// Interface is a typed view over an [Interface] section.
type Interface struct {
	*conf.Section
}

// NewInterface builds a standalone [Interface] section. Address and private key are required.
func NewInterface(props goal.InterfaceProps, dup conf.Dup) (*Interface, error) {
	s, err := newSection(InterfaceKind, InterfaceProps, dup, props.Assignments())
	if err != nil {
		return nil, err
	}
	return &Interface{s}, nil
}

func (i *Interface) Name() string        { return getString(i.Section, InterfaceProps, "name") }
func (i *Interface) Description() string { return getString(i.Section, InterfaceProps, "description") }
func (i *Interface) Address() []string   { return getList(i.Section, InterfaceProps, "address") }
func (i *Interface) PrivateKey() string  { return getString(i.Section, InterfaceProps, "private_key") }
func (i *Interface) DNS() []string       { return getList(i.Section, InterfaceProps, "dns") }
func (i *Interface) PreUp() string       { return getString(i.Section, InterfaceProps, "pre_up") }
func (i *Interface) PostUp() string      { return getString(i.Section, InterfaceProps, "post_up") }
func (i *Interface) PreDown() string     { return getString(i.Section, InterfaceProps, "pre_down") }
func (i *Interface) PostDown() string    { return getString(i.Section, InterfaceProps, "post_down") }

func (i *Interface) ListenPort() (int, bool, error) {
	return getInt(i.Section, InterfaceProps, "listen_port")
}

func (i *Interface) MTU() (int, bool, error) { return getInt(i.Section, InterfaceProps, "mtu") }

// Table returns an int for routing table numbers and a string otherwise.
func (i *Interface) Table() (any, error) {
	p, _ := InterfaceProps.Lookup("table")
	return p.Get(i.Section)
}

func (i *Interface) SaveConfig() (v bool, ok bool, err error) {
	p, _ := InterfaceProps.Lookup("save_config")
	raw, err := p.Get(i.Section)
	if err != nil || raw == nil {
		return false, false, err
	}
	return raw.(bool), true, nil
}

func (i *Interface) HasChanges(props goal.InterfaceProps) bool {
	return InterfaceProps.hasChanges(i.Section, props.Assignments())
}

// Update writes props. It fails without writing anything if a value does not fit its
// property, or if a required property would be deleted.
func (i *Interface) Update(props goal.InterfaceProps) error {
	return InterfaceProps.apply(i.Section, props.Assignments())
}

// Values decodes every declared property that is set.
func (i *Interface) Values() (map[string]any, error) { return InterfaceProps.values(i.Section) }

// Peer is a typed view over a [Peer] section.
type Peer struct {
	*conf.Section
}

// NewPeer builds a standalone [Peer] section named name. Allowed IPs and public key are
// required. A preshared key policy that needs a generated key is refused.
func NewPeer(name string, props goal.PeerProps, dup conf.Dup) (*Peer, error) {
	psk, ok := props.PresharedKey.Static()
	if !ok {
		return nil, fmt.Errorf("creating peer %s: preshared key generation needs a key generator: %w", name, goal.ErrValidation)
	}
	return newPeer(name, props, psk, dup)
}

func newPeer(name string, props goal.PeerProps, psk goal.Field[string], dup conf.Dup) (*Peer, error) {
	if name != "" {
		props.Name = goal.Some(name)
	}
	s, err := newSection(PeerKind, PeerProps, dup, props.Assignments(psk))
	if err != nil {
		return nil, err
	}
	return &Peer{s}, nil
}

func (p *Peer) Name() string         { return getString(p.Section, PeerProps, "name") }
func (p *Peer) Description() string  { return getString(p.Section, PeerProps, "description") }
func (p *Peer) AllowedIPs() []string { return getList(p.Section, PeerProps, "allowed_ips") }
func (p *Peer) PublicKey() string    { return getString(p.Section, PeerProps, "public_key") }
func (p *Peer) Endpoint() string     { return getString(p.Section, PeerProps, "endpoint") }
func (p *Peer) PresharedKey() string { return getString(p.Section, PeerProps, "preshared_key") }

func (p *Peer) PersistentKeepalive() (int, bool, error) {
	return getInt(p.Section, PeerProps, "persistent_keepalive")
}

// HasChanges reports whether props, with psk in place of the preshared key policy,
// would change the peer.
func (p *Peer) HasChanges(props goal.PeerProps, psk goal.Field[string]) bool {
	return PeerProps.hasChanges(p.Section, props.Assignments(psk))
}

// Update writes props, with psk in place of the preshared key policy.
func (p *Peer) Update(props goal.PeerProps, psk goal.Field[string]) error {
	return PeerProps.apply(p.Section, props.Assignments(psk))
}

func (p *Peer) Values() (map[string]any, error) { return PeerProps.values(p.Section) }
