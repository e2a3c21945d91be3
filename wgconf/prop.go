package wgconf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nyiyui/wgconf/conf"
	"github.com/nyiyui/wgconf/goal"
)

// Kind is the value type of a property.
type Kind uint8

const (
	String Kind = iota
	Int
	Bool
	// IntOrString decodes as an int when it can and as a string otherwise.
	IntOrString
)

func (k Kind) String() string {
	switch k {
	case String:
		return "string"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case IntOrString:
		return "int or string"
	default:
		return "unknown"
	}
}

func (k Kind) decode(s string) (any, error) {
	switch k {
	case String:
		return s, nil
	case Int:
		i, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("%q is not an int: %w", s, conf.ErrType)
		}
		return i, nil
	case Bool:
		switch s {
		case "true":
			return true, nil
		case "false":
			return false, nil
		}
		return nil, fmt.Errorf("%q is not a bool: %w", s, conf.ErrType)
	case IntOrString:
		if i, err := strconv.Atoi(s); err == nil {
			return i, nil
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown kind %d: %w", k, conf.ErrType)
}

// Prop binds a property key of updates to an option (or meta comment) of a section.
type Prop struct {
	// Key is the name used in updates, e.g. "listen_port".
	Key string
	// Option is the option or meta name in the document, e.g. "ListenPort".
	Option   string
	Kind     Kind
	List     bool
	Required bool
	Meta     bool
}

// Raw returns the encoded value of p in s. Repeated options of a list property are
// joined under the list duplicate policy.
func (p *Prop) Raw(s *conf.Section) (string, bool) {
	if p.Meta {
		return s.GetMeta(p.Option)
	}
	if p.List && s.File().Dup() == conf.DupList {
		values := s.GetAll(p.Option)
		if len(values) == 0 {
			return "", false
		}
		return strings.Join(values, ", "), true
	}
	return s.First(p.Option)
}

func (p *Prop) IsSet(s *conf.Section) bool {
	_, ok := p.Raw(s)
	return ok
}

// Decode parses an encoded value. Lists decode to []any.
func (p *Prop) Decode(raw string) (any, error) {
	if !p.List {
		v, err := p.Kind.decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.Option, err)
		}
		return v, nil
	}
	items := conf.SplitList(raw)
	values := make([]any, len(items))
	for i, item := range items {
		v, err := p.Kind.decode(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", p.Option, i, err)
		}
		values[i] = v
	}
	return values, nil
}

// Get returns the decoded value of p in s, or nil if it is not set.
func (p *Prop) Get(s *conf.Section) (any, error) {
	raw, ok := p.Raw(s)
	if !ok {
		return nil, nil
	}
	return p.Decode(raw)
}

// IsChange reports whether applying a would change s. Encoded values are compared, so
// "51820" and 51820 are the same; deleting an unset property is no change.
func (p *Prop) IsChange(s *conf.Section, a goal.Assignment) bool {
	raw, ok := p.Raw(s)
	if a.Delete {
		return ok
	}
	return !ok || raw != a.Encoded()
}

// check validates an assignment before anything is written.
func (p *Prop) check(a goal.Assignment) error {
	if a.Delete {
		if p.Required {
			return fmt.Errorf("%s is required and cannot be deleted: %w", p.Key, goal.ErrValidation)
		}
		return nil
	}
	if !p.List && len(a.Values) != 1 {
		return fmt.Errorf("%s takes a single value, got %d: %w", p.Key, len(a.Values), conf.ErrType)
	}
	for _, v := range a.Values {
		if strings.ContainsAny(v, "\r\n") {
			return fmt.Errorf("%s: %q spans more than one line: %w", p.Key, v, conf.ErrType)
		}
		if _, err := p.Kind.decode(v); err != nil {
			return fmt.Errorf("%s: %w", p.Key, err)
		}
	}
	return nil
}

// Apply writes a to s. Writes that would not change anything leave s untouched.
func (p *Prop) Apply(s *conf.Section, a goal.Assignment) error {
	if err := p.check(a); err != nil {
		return err
	}
	switch {
	case p.Meta && a.Delete:
		s.DeleteMeta(p.Option)
	case p.Meta:
		s.SetMeta(p.Option, a.Encoded())
	case a.Delete:
		s.Delete(p.Option)
	case p.List && s.File().Dup() == conf.DupList:
		s.SetAll(p.Option, a.Values)
	default:
		s.Set(p.Option, a.Encoded())
	}
	return nil
}

// Props is the declared set of properties of a section kind, in document order.
type Props []*Prop

func (ps Props) Lookup(key string) (*Prop, bool) {
	for _, p := range ps {
		if p.Key == key {
			return p, true
		}
	}
	return nil, false
}

var commonProps = Props{
	{Key: "name", Option: "Name", Kind: String, Meta: true},
	{Key: "description", Option: "Description", Kind: String, Meta: true},
}

var InterfaceProps = append(append(Props{}, commonProps...),
	&Prop{Key: "address", Option: "Address", Kind: String, List: true, Required: true},
	&Prop{Key: "private_key", Option: "PrivateKey", Kind: String, Required: true},
	&Prop{Key: "listen_port", Option: "ListenPort", Kind: Int},
	&Prop{Key: "dns", Option: "DNS", Kind: String, List: true},
	&Prop{Key: "table", Option: "Table", Kind: IntOrString},
	&Prop{Key: "mtu", Option: "MTU", Kind: Int},
	&Prop{Key: "pre_up", Option: "PreUp", Kind: String},
	&Prop{Key: "post_up", Option: "PostUp", Kind: String},
	&Prop{Key: "pre_down", Option: "PreDown", Kind: String},
	&Prop{Key: "post_down", Option: "PostDown", Kind: String},
	&Prop{Key: "save_config", Option: "SaveConfig", Kind: Bool},
)

var PeerProps = append(append(Props{}, commonProps...),
	&Prop{Key: "allowed_ips", Option: "AllowedIPs", Kind: String, List: true, Required: true},
	&Prop{Key: "public_key", Option: "PublicKey", Kind: String, Required: true},
	&Prop{Key: "endpoint", Option: "Endpoint", Kind: String},
	&Prop{Key: "persistent_keepalive", Option: "PersistentKeepalive", Kind: Int},
	&Prop{Key: "preshared_key", Option: "PresharedKey", Kind: String},
)

// check validates every assignment against ps. With create set, every required
// property must be assigned.
func (ps Props) check(as []goal.Assignment, create bool) error {
	assigned := map[string]bool{}
	for _, a := range as {
		p, ok := ps.Lookup(a.Key)
		if !ok {
			return fmt.Errorf("unknown property %s: %w", a.Key, goal.ErrValidation)
		}
		if err := p.check(a); err != nil {
			return err
		}
		assigned[a.Key] = !a.Delete
	}
	if !create {
		return nil
	}
	for _, p := range ps {
		if p.Required && !assigned[p.Key] {
			return fmt.Errorf("%s is required: %w", p.Key, goal.ErrValidation)
		}
	}
	return nil
}

// hasChanges reports whether any assignment would change s.
func (ps Props) hasChanges(s *conf.Section, as []goal.Assignment) bool {
	for _, a := range as {
		if p, ok := ps.Lookup(a.Key); ok && p.IsChange(s, a) {
			return true
		}
	}
	return false
}

// apply checks every assignment, then writes them in order.
func (ps Props) apply(s *conf.Section, as []goal.Assignment) error {
	if err := ps.check(as, false); err != nil {
		return err
	}
	for _, a := range as {
		p, _ := ps.Lookup(a.Key)
		if err := p.Apply(s, a); err != nil {
			return err
		}
	}
	return nil
}

// values decodes every set property of s, keyed by property key.
func (ps Props) values(s *conf.Section) (map[string]any, error) {
	values := map[string]any{}
	for _, p := range ps {
		v, err := p.Get(s)
		if err != nil {
			return nil, err
		}
		if v != nil {
			values[p.Key] = v
		}
	}
	return values, nil
}
