// Package goal describes the desired state of a WireGuard device document: the
// properties an interface, a peer or a client should have, and the plan of peer
// additions, modifications and removals that gets a document there.
package goal

import "errors"

var (
	// ErrConflict is returned when an update is ambiguous, e.g. it names one peer and
	// carries the public key of another, or its key pair does not match.
	ErrConflict = errors.New("conflict")
	// ErrValidation is returned when an update is well-typed but not acceptable.
	ErrValidation = errors.New("validation failed")
)

// Field is a property in an update. A field that is not Present is left as it is;
// a Null field is deleted.
type Field[T any] struct {
	Value   T
	Present bool
	Null    bool
}

// Some returns a present field.
func Some[T any](v T) Field[T] { return Field[T]{Value: v, Present: true} }

// Null returns a field that deletes the property.
func Null[T any]() Field[T] { return Field[T]{Present: true, Null: true} }

// Get returns the value and whether the field sets one.
func (f Field[T]) Get() (T, bool) { return f.Value, f.Present && !f.Null }

type PSKMode uint8

const (
	// PSKUntouched leaves the preshared key as it is.
	PSKUntouched PSKMode = iota
	// PSKGenerate keeps an existing preshared key or generates one.
	PSKGenerate
	// PSKClear deletes the preshared key.
	PSKClear
	// PSKSet sets the preshared key to Key.
	PSKSet
)

func (m PSKMode) String() string {
	switch m {
	case PSKUntouched:
		return "untouched"
	case PSKGenerate:
		return "generate"
	case PSKClear:
		return "clear"
	case PSKSet:
		return "set"
	default:
		return "unknown"
	}
}

// PresharedKey is the preshared key policy of an update.
type PresharedKey struct {
	Mode PSKMode
	Key  string
}

// Static returns the field the policy resolves to when no key needs generating.
// ok is false for PSKGenerate.
func (p PresharedKey) Static() (f Field[string], ok bool) {
	switch p.Mode {
	case PSKUntouched:
		return Field[string]{}, true
	case PSKClear:
		return Null[string](), true
	case PSKSet:
		if p.Key == "" {
			return Null[string](), true
		}
		return Some(p.Key), true
	}
	return Field[string]{}, false
}

type InterfaceProps struct {
	Name        Field[string]
	Description Field[string]
	Address     Field[[]string]
	PrivateKey  Field[string]
	ListenPort  Field[int]
	DNS         Field[[]string]
	// Table is a routing table number or one of "off" and "auto".
	Table      Field[string]
	MTU        Field[int]
	PreUp      Field[string]
	PostUp     Field[string]
	PreDown    Field[string]
	PostDown   Field[string]
	SaveConfig Field[bool]
}

type PeerProps struct {
	// Name is only used when adding a peer; updates take names from their keys.
	Name                Field[string]
	Description         Field[string]
	AllowedIPs          Field[[]string]
	PublicKey           Field[string]
	Endpoint            Field[string]
	PersistentKeepalive Field[int]
	PresharedKey        PresharedKey
}

// ClientProps describe a client: a peer of the server whose own configuration
// document is generated alongside.
type ClientProps struct {
	Description Field[string]
	// PrivateAddress is the address of the client inside the tunnel. It must be a
	// single IPv4 address.
	PrivateAddress      Field[string]
	PresharedKey        PresharedKey
	AllowedIPs          Field[[]string]
	DNS                 Field[[]string]
	PersistentKeepalive Field[int]
	PrivateKey          Field[string]
	PublicKey           Field[string]
}
