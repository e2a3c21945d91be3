package goal

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/nyiyui/wgconf/conf"
	"golang.org/x/exp/maps"
)

// mapDecoder fills props from loosely typed maps, such as decoded YAML.
// The first error sticks; later calls are no-ops.
type mapDecoder struct {
	m    map[string]any
	used map[string]bool
	err  error
}

func newMapDecoder(m map[string]any) *mapDecoder {
	return &mapDecoder{m: m, used: map[string]bool{}}
}

func (d *mapDecoder) lookup(key string) (v any, ok bool) {
	if d.err != nil {
		return nil, false
	}
	v, ok = d.m[key]
	if ok {
		d.used[key] = true
	}
	return
}

func (d *mapDecoder) fail(key string, v any, want string) {
	d.err = fmt.Errorf("%s: expected %s, got %T: %w", key, want, v, conf.ErrType)
}

func (d *mapDecoder) str(key string, f *Field[string]) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	switch v := v.(type) {
	case nil:
		*f = Null[string]()
	case string:
		*f = Some(v)
	default:
		d.fail(key, v, "a string")
	}
}

func toInt(v any) (int, bool) {
	switch v := v.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		if v == math.Trunc(v) {
			return int(v), true
		}
	}
	return 0, false
}

func (d *mapDecoder) integer(key string, f *Field[int]) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	if v == nil {
		*f = Null[int]()
		return
	}
	i, ok := toInt(v)
	if !ok {
		d.fail(key, v, "an integer")
		return
	}
	*f = Some(i)
}

func (d *mapDecoder) boolean(key string, f *Field[bool]) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	switch v := v.(type) {
	case nil:
		*f = Null[bool]()
	case bool:
		*f = Some(v)
	default:
		d.fail(key, v, "a boolean")
	}
}

// intOrString accepts an integer or a string and keeps its text.
func (d *mapDecoder) intOrString(key string, f *Field[string]) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	if v == nil {
		*f = Null[string]()
		return
	}
	if i, ok := toInt(v); ok {
		*f = Some(fmt.Sprint(i))
		return
	}
	if s, ok := v.(string); ok {
		*f = Some(s)
		return
	}
	d.fail(key, v, "an integer or a string")
}

// list accepts a list of strings, or a single string which is cast to a list of one.
func (d *mapDecoder) list(key string, f *Field[[]string]) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	switch v := v.(type) {
	case nil:
		*f = Null[[]string]()
	case string:
		*f = Some([]string{v})
	case []string:
		*f = Some(v)
	case []any:
		items := make([]string, len(v))
		for i, item := range v {
			s, ok := item.(string)
			if !ok {
				d.fail(fmt.Sprintf("%s[%d]", key, i), item, "a string")
				return
			}
			items[i] = s
		}
		*f = Some(items)
	default:
		d.fail(key, v, "a list of strings")
	}
}

// psk accepts true (generate), false or null (clear) and a string (set).
func (d *mapDecoder) psk(key string, p *PresharedKey) {
	v, ok := d.lookup(key)
	if !ok {
		return
	}
	switch v := v.(type) {
	case nil:
		*p = PresharedKey{Mode: PSKClear}
	case bool:
		if v {
			*p = PresharedKey{Mode: PSKGenerate}
		} else {
			*p = PresharedKey{Mode: PSKClear}
		}
	case string:
		*p = PresharedKey{Mode: PSKSet, Key: v}
	default:
		d.fail(key, v, "a boolean or a string")
	}
}

// finish reports the first error, or keys that nothing consumed.
func (d *mapDecoder) finish(ignore ...string) error {
	if d.err != nil {
		return d.err
	}
	for _, key := range ignore {
		d.used[key] = true
	}
	var unknown []string
	for _, key := range maps.Keys(d.m) {
		if !d.used[key] {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown properties %s: %w", strings.Join(unknown, ", "), ErrValidation)
	}
	return nil
}

func InterfacePropsFromMap(m map[string]any) (InterfaceProps, error) {
	var p InterfaceProps
	d := newMapDecoder(m)
	d.str("name", &p.Name)
	d.str("description", &p.Description)
	d.list("address", &p.Address)
	d.str("private_key", &p.PrivateKey)
	d.integer("listen_port", &p.ListenPort)
	d.list("dns", &p.DNS)
	d.intOrString("table", &p.Table)
	d.integer("mtu", &p.MTU)
	d.str("pre_up", &p.PreUp)
	d.str("post_up", &p.PostUp)
	d.str("pre_down", &p.PreDown)
	d.str("post_down", &p.PostDown)
	d.boolean("save_config", &p.SaveConfig)
	return p, d.finish()
}

func PeerPropsFromMap(m map[string]any) (PeerProps, error) {
	var p PeerProps
	d := newMapDecoder(m)
	d.str("name", &p.Name)
	d.str("description", &p.Description)
	d.list("allowed_ips", &p.AllowedIPs)
	d.str("public_key", &p.PublicKey)
	d.str("endpoint", &p.Endpoint)
	d.integer("persistent_keepalive", &p.PersistentKeepalive)
	d.psk("preshared_key", &p.PresharedKey)
	return p, d.finish()
}

// ClientPropsFromMap decodes a client entry. The "owner" key is accepted and ignored.
func ClientPropsFromMap(m map[string]any) (ClientProps, error) {
	var p ClientProps
	d := newMapDecoder(m)
	d.str("description", &p.Description)
	d.str("private_address", &p.PrivateAddress)
	d.psk("preshared_key", &p.PresharedKey)
	d.list("allowed_ips", &p.AllowedIPs)
	d.list("dns", &p.DNS)
	d.integer("persistent_keepalive", &p.PersistentKeepalive)
	d.str("private_key", &p.PrivateKey)
	d.str("public_key", &p.PublicKey)
	return p, d.finish("owner")
}

// Merge returns props with defaults filled in for the keys props does not have.
func Merge(props, defaults map[string]any) map[string]any {
	merged := make(map[string]any, len(props)+len(defaults))
	for k, v := range defaults {
		merged[k] = v
	}
	for k, v := range props {
		merged[k] = v
	}
	return merged
}
