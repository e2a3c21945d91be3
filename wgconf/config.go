// Package wgconf edits wg-quick configuration documents: typed views over their
// [Interface] and [Peer] sections, and reconciliation of desired peers and clients
// against what a document already holds.
package wgconf

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"

	"github.com/google/renameio/v2"
	"github.com/nyiyui/wgconf/conf"
	"github.com/nyiyui/wgconf/goal"
	"github.com/nyiyui/wgconf/keys"
	"go.uber.org/zap"
)

const (
	DefaultName           = "wg0"
	DefaultDir            = "/etc/wireguard"
	DefaultListenPort     = 51820
	DefaultPrivateAddress = "10.10.0.1/32"
)

// DefaultClientAllowedIPs routes everything through the server.
var DefaultClientAllowedIPs = []string{"0.0.0.0/0", "::/0"}

var ErrNoDestination = errors.New("no destination to write to")

// Config is the configuration document of one device.
type Config struct {
	// Hostname is the host the device runs on. Clients reach it there unless
	// PublicAddress is set.
	Hostname      string
	Name          string
	Dir           string
	PublicAddress string
	File          *conf.File

	keys keys.Generator
	log  *zap.SugaredLogger
	dup  conf.Dup
}

type Option func(*Config)

// WithName sets the interface name, which names the document. An empty name leaves
// the document without a path.
func WithName(name string) Option { return func(c *Config) { c.Name = name } }

// WithDir sets the directory of the document. An empty dir leaves it without a path.
func WithDir(dir string) Option { return func(c *Config) { c.Dir = dir } }

func WithPublicAddress(addr string) Option { return func(c *Config) { c.PublicAddress = addr } }

func WithKeys(g keys.Generator) Option { return func(c *Config) { c.keys = g } }

// WithWGBinPath makes keys with the wg binary at path.
func WithWGBinPath(path string) Option { return WithKeys(keys.Command{Path: path}) }

func WithLogger(log *zap.SugaredLogger) Option { return func(c *Config) { c.log = log } }

func WithDup(dup conf.Dup) Option { return func(c *Config) { c.dup = dup } }

// New returns the config of hostname, loaded from Path() if it resolves to an existing
// file.
func New(hostname string, opts ...Option) (*Config, error) {
	c := &Config{
		Hostname: hostname,
		Name:     DefaultName,
		Dir:      DefaultDir,
		keys:     keys.Command{},
		log:      zap.NewNop().Sugar(),
		dup:      conf.DupFirst,
	}
	for _, opt := range opts {
		opt(c)
	}
	if path, ok := c.Path(); ok {
		c.log.Debugf("loading %s.", path)
		f, err := conf.Load(path, c.dup)
		if err != nil {
			return nil, err
		}
		c.File = f
	} else {
		c.File = conf.NewFile(c.dup)
	}
	return c, nil
}

// Path is where the document lives, if it has a name and a directory.
func (c *Config) Path() (string, bool) {
	if c.Name == "" || c.Dir == "" {
		return "", false
	}
	return filepath.Join(c.Dir, c.Name+".conf"), true
}

func (c *Config) String() string { return c.File.String() }

// Write atomically replaces dest with the document, readable by the owner only.
// An empty dest means Path().
func (c *Config) Write(dest string) error {
	if dest == "" {
		path, ok := c.Path()
		if !ok {
			return fmt.Errorf("write config for %s: %w", c.Hostname, ErrNoDestination)
		}
		dest = path
	}
	c.log.Infof("writing %s.", dest)
	if err := renameio.WriteFile(dest, []byte(c.String()), 0600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Interface returns the first [Interface] section, or nil.
func (c *Config) Interface() *Interface {
	s := c.File.Section(InterfaceKind)
	if s == nil {
		return nil
	}
	return &Interface{s}
}

func (c *Config) Peers() []*Peer {
	sections := c.File.SectionsOf(PeerKind)
	peers := make([]*Peer, len(sections))
	for i, s := range sections {
		peers[i] = &Peer{s}
	}
	return peers
}

// Peer returns the last peer with the given name, or nil.
func (c *Config) Peer(name string) *Peer {
	var found *Peer
	for _, p := range c.Peers() {
		if p.Name() == name {
			found = p
		}
	}
	return found
}

// FirstPeer returns the first peer, or nil. Client documents have exactly one.
func (c *Config) FirstPeer() *Peer {
	s := c.File.Section(PeerKind)
	if s == nil {
		return nil
	}
	return &Peer{s}
}

// ListenPort is the port of the interface, DefaultListenPort when unset or zero.
func (c *Config) ListenPort() (int, error) {
	iface := c.Interface()
	if iface == nil {
		return 0, fmt.Errorf("config %s has no interface: %w", c.Hostname, goal.ErrValidation)
	}
	port, ok, err := iface.ListenPort()
	if err != nil {
		return 0, err
	}
	if !ok || port == 0 {
		return DefaultListenPort, nil
	}
	return port, nil
}

// PublicEndpoint is the host:port clients connect to.
func (c *Config) PublicEndpoint() (string, error) {
	host := c.PublicAddress
	if host == "" {
		host = c.Hostname
	}
	if err := goal.ValidateHost(host); err != nil {
		return "", fmt.Errorf("public endpoint: %w", err)
	}
	port, err := c.ListenPort()
	if err != nil {
		return "", err
	}
	return net.JoinHostPort(host, strconv.Itoa(port)), nil
}

func (c *Config) appendSection(s *conf.Section) (*conf.Section, error) {
	return c.File.AppendSection(s, true)
}

// CreateInterface adds the [Interface] section. Unset properties default to
// DefaultPrivateAddress, a generated private key and the config name.
func (c *Config) CreateInterface(props goal.InterfaceProps) (*Interface, error) {
	if c.Interface() != nil {
		return nil, fmt.Errorf("config %s already has an interface: %w", c.Hostname, goal.ErrValidation)
	}
	if err := props.Validate(); err != nil {
		return nil, fmt.Errorf("creating interface: %w", err)
	}
	if !props.Name.Present && c.Name != "" {
		props.Name = goal.Some(c.Name)
	}
	if !props.Address.Present {
		props.Address = goal.Some([]string{DefaultPrivateAddress})
	}
	if err := normalizeAddresses(&props.Address); err != nil {
		return nil, fmt.Errorf("creating interface: %w", err)
	}
	if !props.PrivateKey.Present {
		c.log.Debugf("generating private key for interface.")
		priv, err := c.keys.GenKey()
		if err != nil {
			return nil, fmt.Errorf("creating interface: %w", err)
		}
		props.PrivateKey = goal.Some(priv)
	}
	iface, err := NewInterface(props, c.dup)
	if err != nil {
		return nil, err
	}
	c.log.Debugf("adding interface.")
	s, err := c.appendSection(iface.Section)
	if err != nil {
		return nil, err
	}
	return &Interface{s}, nil
}

// UpdateInterface writes props to the interface, creating it if there is none.
func (c *Config) UpdateInterface(props goal.InterfaceProps) error {
	iface := c.Interface()
	if iface == nil {
		_, err := c.CreateInterface(props)
		return err
	}
	if err := props.Validate(); err != nil {
		return fmt.Errorf("updating interface: %w", err)
	}
	if err := normalizeAddresses(&props.Address); err != nil {
		return fmt.Errorf("updating interface: %w", err)
	}
	if !iface.HasChanges(props) {
		c.log.Debugf("interface has no changes.")
		return nil
	}
	c.log.Debugf("updating interface.")
	if err := iface.Update(props); err != nil {
		return fmt.Errorf("updating interface: %w", err)
	}
	return nil
}

// resolvePSK turns a preshared key policy into the field to write to existing, which
// may be nil for new peers.
func (c *Config) resolvePSK(existing *Peer, policy goal.PresharedKey) (goal.Field[string], error) {
	if f, ok := policy.Static(); ok {
		return f, nil
	}
	if existing != nil {
		if psk := existing.PresharedKey(); psk != "" {
			return goal.Some(psk), nil
		}
	}
	psk, err := c.keys.GenPSK()
	if err != nil {
		return goal.Field[string]{}, err
	}
	return goal.Some(psk), nil
}

// AddPeer appends a peer named name.
func (c *Config) AddPeer(name string, props goal.PeerProps) (*Peer, error) {
	if err := props.Validate(); err != nil {
		return nil, fmt.Errorf("adding peer %s: %w", name, err)
	}
	psk, err := c.resolvePSK(nil, props.PresharedKey)
	if err != nil {
		return nil, fmt.Errorf("adding peer %s: %w", name, err)
	}
	peer, err := newPeer(name, props, psk, c.dup)
	if err != nil {
		return nil, err
	}
	c.log.Debugf("adding peer %s.", name)
	s, err := c.appendSection(peer.Section)
	if err != nil {
		return nil, err
	}
	return &Peer{s}, nil
}

// Update applies an interface update (if iface is non-nil), then clients, then peers.
func (c *Config) Update(iface *goal.InterfaceProps, peers map[string]*goal.PeerProps, clients map[string]*goal.ClientProps) (map[string]*Config, error) {
	if iface != nil {
		if err := c.UpdateInterface(*iface); err != nil {
			return nil, err
		}
	}
	var configs map[string]*Config
	if clients != nil {
		var err error
		configs, err = c.UpdateClients(clients)
		if err != nil {
			return nil, err
		}
	}
	if peers != nil {
		if err := c.UpdatePeers(peers); err != nil {
			return nil, err
		}
	}
	return configs, nil
}
