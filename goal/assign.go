package goal

import (
	"strings"

	"github.com/nyiyui/wgconf/conf"
)

// Assignment is one property write of an update, with its value already encoded.
type Assignment struct {
	// Key is the property key, e.g. "listen_port".
	Key string
	// Values holds one item per list element, or a single item for scalars.
	Values []string
	Delete bool
}

// Encoded returns the value as it is written to a single option line.
func (a Assignment) Encoded() string { return strings.Join(a.Values, ", ") }

func assign[T any](out []Assignment, key string, f Field[T]) []Assignment {
	if !f.Present {
		return out
	}
	if f.Null {
		return append(out, Assignment{Key: key, Delete: true})
	}
	values := conf.EncodeItems(f.Value)
	if len(values) == 0 {
		return append(out, Assignment{Key: key, Delete: true})
	}
	return append(out, Assignment{Key: key, Values: values})
}

// Assignments returns the writes of the update in declaration order.
func (p InterfaceProps) Assignments() []Assignment {
	var out []Assignment
	out = assign(out, "name", p.Name)
	out = assign(out, "description", p.Description)
	out = assign(out, "address", p.Address)
	out = assign(out, "private_key", p.PrivateKey)
	out = assign(out, "listen_port", p.ListenPort)
	out = assign(out, "dns", p.DNS)
	out = assign(out, "table", p.Table)
	out = assign(out, "mtu", p.MTU)
	out = assign(out, "pre_up", p.PreUp)
	out = assign(out, "post_up", p.PostUp)
	out = assign(out, "pre_down", p.PreDown)
	out = assign(out, "post_down", p.PostDown)
	out = assign(out, "save_config", p.SaveConfig)
	return out
}

// Assignments returns the writes of the update in declaration order, with psk in
// place of the preshared key policy.
func (p PeerProps) Assignments(psk Field[string]) []Assignment {
	var out []Assignment
	out = assign(out, "name", p.Name)
	out = assign(out, "description", p.Description)
	out = assign(out, "allowed_ips", p.AllowedIPs)
	out = assign(out, "public_key", p.PublicKey)
	out = assign(out, "endpoint", p.Endpoint)
	out = assign(out, "persistent_keepalive", p.PersistentKeepalive)
	out = assign(out, "preshared_key", psk)
	return out
}
