package wgconf

import (
	"fmt"

	"github.com/nyiyui/wgconf/goal"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

func sortedNames[V any](m map[string]V) []string {
	names := maps.Keys(m)
	slices.Sort(names)
	return names
}

// plan resolves desired entries against the peers of the document.
func (c *Config) plan(desired []goal.DesiredPeer) ([]goal.Action, []*Peer, error) {
	peers := c.Peers()
	existing := make([]goal.ExistingPeer, len(peers))
	for i, p := range peers {
		existing[i] = goal.ExistingPeer{Name: p.Name(), PublicKey: p.PublicKey()}
	}
	actions, err := goal.PlanPeers(existing, desired)
	if err != nil {
		return nil, nil, err
	}
	return actions, peers, nil
}

// peerStep is a planned and validated change to one peer.
type peerStep struct {
	action goal.Action
	peer   *Peer
	props  goal.PeerProps
	psk    goal.Field[string]
	// config is the client document to return, if any.
	config *Config
}

func (c *Config) apply(steps []peerStep) error {
	for _, st := range steps {
		name := st.action.Name
		switch st.action.Type {
		case goal.ActionAdd:
			c.log.Debugf("adding peer %s.", name)
			peer, err := newPeer(name, st.props, st.psk, c.dup)
			if err != nil {
				return err
			}
			if _, err := c.appendSection(peer.Section); err != nil {
				return err
			}
		case goal.ActionModify:
			if !st.peer.HasChanges(st.props, st.psk) {
				c.log.Debugf("peer %s has no changes.", name)
				continue
			}
			c.log.Debugf("updating peer %s.", name)
			if err := st.peer.Update(st.props, st.psk); err != nil {
				return fmt.Errorf("updating peer %s: %w", name, err)
			}
		case goal.ActionRemove:
			c.log.Debugf("removing peer %s.", name)
			if err := st.peer.Remove(); err != nil {
				return fmt.Errorf("removing peer %s: %w", name, err)
			}
		}
	}
	return nil
}

// UpdatePeers reconciles the peers of the document with updates. A nil entry removes
// the peer of that name. Every entry is resolved and validated before the document
// is touched.
func (c *Config) UpdatePeers(updates map[string]*goal.PeerProps) error {
	names := sortedNames(updates)
	desired := make([]goal.DesiredPeer, len(names))
	for i, name := range names {
		u := updates[name]
		desired[i] = goal.DesiredPeer{Name: name, Remove: u == nil}
		if u != nil {
			desired[i].PublicKey, _ = u.PublicKey.Get()
		}
	}
	actions, peers, err := c.plan(desired)
	if err != nil {
		return fmt.Errorf("updating peers: %w", err)
	}

	steps := make([]peerStep, 0, len(actions))
	for _, a := range actions {
		st := peerStep{action: a}
		if a.Index >= 0 {
			st.peer = peers[a.Index]
		}
		if a.Type != goal.ActionRemove {
			st.props = *updates[a.Name]
			if err := st.props.Validate(); err != nil {
				return fmt.Errorf("peer %s: %w", a.Name, err)
			}
			st.psk, err = c.resolvePSK(st.peer, st.props.PresharedKey)
			if err != nil {
				return fmt.Errorf("peer %s: %w", a.Name, err)
			}
			if a.Type == goal.ActionAdd {
				st.props.Name = goal.Some(a.Name)
			}
			if err := PeerProps.check(st.props.Assignments(st.psk), a.Type == goal.ActionAdd); err != nil {
				return fmt.Errorf("peer %s: %w", a.Name, err)
			}
		}
		steps = append(steps, st)
	}
	return c.apply(steps)
}

// AddClient registers a new client as a peer and returns its own document. The
// returned config is nil when only a public key was given, as the client document
// cannot be written without the private key.
func (c *Config) AddClient(name string, props goal.ClientProps) (*Config, error) {
	st, err := c.prepareAddClient(goal.Action{Name: name, Type: goal.ActionAdd, Index: -1}, props)
	if err != nil {
		return nil, err
	}
	if err := c.apply([]peerStep{st}); err != nil {
		return nil, err
	}
	return st.config, nil
}

// UpdateClients reconciles clients like UpdatePeers reconciles peers, and returns the
// documents of clients that were added, changed, or whose private key was given.
func (c *Config) UpdateClients(updates map[string]*goal.ClientProps) (map[string]*Config, error) {
	names := sortedNames(updates)
	desired := make([]goal.DesiredPeer, len(names))
	for i, name := range names {
		u := updates[name]
		desired[i] = goal.DesiredPeer{Name: name, Remove: u == nil}
		if u != nil {
			desired[i].PublicKey, _ = u.PublicKey.Get()
		}
	}
	actions, peers, err := c.plan(desired)
	if err != nil {
		return nil, fmt.Errorf("updating clients: %w", err)
	}

	steps := make([]peerStep, 0, len(actions))
	for _, a := range actions {
		var st peerStep
		switch a.Type {
		case goal.ActionAdd:
			st, err = c.prepareAddClient(a, *updates[a.Name])
		case goal.ActionModify:
			st, err = c.prepareModifyClient(a, peers[a.Index], *updates[a.Name])
		case goal.ActionRemove:
			st = peerStep{action: a, peer: peers[a.Index]}
		}
		if err != nil {
			return nil, err
		}
		steps = append(steps, st)
	}
	if err := c.apply(steps); err != nil {
		return nil, err
	}

	configs := map[string]*Config{}
	for _, st := range steps {
		if st.config != nil {
			configs[st.action.Name] = st.config
		}
	}
	return configs, nil
}

// clientKeys resolves the key pair of a new client. priv is empty when only the public
// key is known.
func (c *Config) clientKeys(props goal.ClientProps) (priv, pub string, err error) {
	priv, hasPriv := props.PrivateKey.Get()
	pub, hasPub := props.PublicKey.Get()
	if hasPriv {
		derived, err := c.keys.PubKey(priv)
		if err != nil {
			return "", "", err
		}
		if hasPub && derived != pub {
			return "", "", fmt.Errorf("public key does not match private key: %w", goal.ErrConflict)
		}
		return priv, derived, nil
	}
	if hasPub {
		return "", pub, nil
	}
	c.log.Debugf("generating key pair.")
	priv, err = c.keys.GenKey()
	if err != nil {
		return "", "", err
	}
	pub, err = c.keys.PubKey(priv)
	if err != nil {
		return "", "", err
	}
	return priv, pub, nil
}

func (c *Config) prepareAddClient(a goal.Action, props goal.ClientProps) (peerStep, error) {
	name := a.Name
	if c.Interface() == nil {
		return peerStep{}, fmt.Errorf("client %s: config %s has no interface: %w", name, c.Hostname, goal.ErrValidation)
	}
	if err := props.Validate(); err != nil {
		return peerStep{}, fmt.Errorf("client %s: %w", name, err)
	}
	addr, ok := props.PrivateAddress.Get()
	if !ok {
		return peerStep{}, fmt.Errorf("client %s: private_address is required: %w", name, goal.ErrValidation)
	}
	addr, err := NormalizeClientAddress(addr)
	if err != nil {
		return peerStep{}, fmt.Errorf("client %s: %w", name, err)
	}
	priv, pub, err := c.clientKeys(props)
	if err != nil {
		return peerStep{}, fmt.Errorf("client %s: %w", name, err)
	}
	if props.PresharedKey.Mode == goal.PSKUntouched {
		props.PresharedKey.Mode = goal.PSKGenerate
	}
	psk, err := c.resolvePSK(nil, props.PresharedKey)
	if err != nil {
		return peerStep{}, fmt.Errorf("client %s: %w", name, err)
	}
	st := peerStep{
		action: a,
		props: goal.PeerProps{
			Name:        goal.Some(name),
			Description: props.Description,
			AllowedIPs:  goal.Some([]string{addr}),
			PublicKey:   goal.Some(pub),
		},
		psk: psk,
	}
	if err := PeerProps.check(st.props.Assignments(psk), true); err != nil {
		return peerStep{}, fmt.Errorf("client %s: %w", name, err)
	}
	if priv == "" {
		c.log.Debugf("client %s has no private key, not making its config.", name)
		return st, nil
	}
	pskValue, _ := psk.Get()
	st.config, err = c.clientConfig(name, addr, priv, pskValue, props)
	if err != nil {
		return peerStep{}, err
	}
	return st, nil
}

func (c *Config) prepareModifyClient(a goal.Action, peer *Peer, props goal.ClientProps) (peerStep, error) {
	name := a.Name
	if err := props.Validate(); err != nil {
		return peerStep{}, fmt.Errorf("client %s: %w", name, err)
	}
	priv, hasPriv := props.PrivateKey.Get()
	pub := props.PublicKey
	if hasPriv {
		derived, err := c.keys.PubKey(priv)
		if err != nil {
			return peerStep{}, fmt.Errorf("client %s: %w", name, err)
		}
		if given, ok := pub.Get(); ok && given != derived {
			return peerStep{}, fmt.Errorf("client %s: public key does not match private key: %w", name, goal.ErrConflict)
		}
		pub = goal.Some(derived)
	}
	psk, err := c.resolvePSK(peer, props.PresharedKey)
	if err != nil {
		return peerStep{}, fmt.Errorf("client %s: %w", name, err)
	}
	st := peerStep{
		action: a,
		peer:   peer,
		props:  goal.PeerProps{Description: props.Description, PublicKey: pub},
		psk:    psk,
	}
	var addr string
	if given, ok := props.PrivateAddress.Get(); ok {
		addr, err = NormalizeClientAddress(given)
		if err != nil {
			return peerStep{}, fmt.Errorf("client %s: %w", name, err)
		}
		st.props.AllowedIPs = goal.Some([]string{addr})
	} else if ips := peer.AllowedIPs(); len(ips) > 0 {
		addr = ips[0]
	}
	if err := PeerProps.check(st.props.Assignments(psk), false); err != nil {
		return peerStep{}, fmt.Errorf("client %s: %w", name, err)
	}

	if !peer.HasChanges(st.props, psk) {
		if !hasPriv {
			c.log.Debugf("client %s has no changes.", name)
			return st, nil
		}
		c.log.Debugf("client %s has no changes, making its config anyway.", name)
	} else if !hasPriv {
		if _, ok := pub.Get(); ok {
			c.log.Debugf("client %s has only a public key, not making its config.", name)
			return st, nil
		}
		c.log.Debugf("client %s changed without a private key, generating a new key pair.", name)
		priv, err = c.keys.GenKey()
		if err != nil {
			return peerStep{}, fmt.Errorf("client %s: %w", name, err)
		}
		derived, err := c.keys.PubKey(priv)
		if err != nil {
			return peerStep{}, fmt.Errorf("client %s: %w", name, err)
		}
		st.props.PublicKey = goal.Some(derived)
	}

	if addr == "" {
		return peerStep{}, fmt.Errorf("client %s: peer has no allowed IPs to take its address from: %w", name, goal.ErrValidation)
	}
	pskValue := psk.Value
	if !psk.Present {
		pskValue = peer.PresharedKey()
	}
	st.config, err = c.clientConfig(name, addr, priv, pskValue, props)
	if err != nil {
		return peerStep{}, err
	}
	return st, nil
}

// clientConfig makes the document of a client: its interface, and the server as its
// only peer.
func (c *Config) clientConfig(name, addr, priv, psk string, props goal.ClientProps) (*Config, error) {
	iface := c.Interface()
	if iface == nil {
		return nil, fmt.Errorf("client %s: config %s has no interface: %w", name, c.Hostname, goal.ErrValidation)
	}
	serverPub, err := c.keys.PubKey(iface.PrivateKey())
	if err != nil {
		return nil, fmt.Errorf("client %s: deriving server public key: %w", name, err)
	}
	endpoint, err := c.PublicEndpoint()
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", name, err)
	}
	cc, err := New(name, WithName(""), WithDir(""), WithKeys(c.keys), WithLogger(c.log.With("client", name)), WithDup(c.dup))
	if err != nil {
		return nil, err
	}
	ifaceName := iface.Name()
	if ifaceName == "" {
		ifaceName = c.Name
	}
	_, err = cc.CreateInterface(goal.InterfaceProps{
		Description: goal.Some(fmt.Sprintf("%s client for %s interface at %s", name, ifaceName, c.Hostname)),
		Address:     goal.Some([]string{addr}),
		PrivateKey:  goal.Some(priv),
		DNS:         props.DNS,
	})
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", name, err)
	}
	allowed := props.AllowedIPs
	if _, ok := allowed.Get(); !ok {
		allowed = goal.Some(DefaultClientAllowedIPs)
	}
	serverName := c.Hostname
	if c.Name != "" {
		serverName = c.Name + "@" + c.Hostname
	}
	var pskPolicy goal.PresharedKey
	if psk != "" {
		pskPolicy = goal.PresharedKey{Mode: goal.PSKSet, Key: psk}
	}
	_, err = cc.AddPeer(serverName, goal.PeerProps{
		AllowedIPs:          allowed,
		PublicKey:           goal.Some(serverPub),
		Endpoint:            goal.Some(endpoint),
		PersistentKeepalive: props.PersistentKeepalive,
		PresharedKey:        pskPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("client %s: %w", name, err)
	}
	return cc, nil
}
