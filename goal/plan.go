package goal

import "fmt"

type ActionType uint8

const (
	ActionAdd ActionType = iota + 1
	ActionModify
	ActionRemove
)

func (t ActionType) String() string {
	switch t {
	case ActionAdd:
		return "add"
	case ActionModify:
		return "modify"
	case ActionRemove:
		return "remove"
	default:
		return "unknown"
	}
}

// ExistingPeer identifies a peer already in a document.
type ExistingPeer struct {
	Name      string
	PublicKey string
}

// DesiredPeer is one entry of an update.
type DesiredPeer struct {
	Name string
	// Remove is set for entries that delete the peer.
	Remove bool
	// PublicKey is the public key the update sets, if any.
	PublicKey string
}

type Action struct {
	Name string
	Type ActionType
	// Index is the position of the targeted peer among the existing ones, or -1 for ActionAdd.
	Index int
}

// PlanPeers resolves each desired entry against the existing peers, by name first
// and then by public key. Removing a peer that does not exist yields no action.
//
// An entry whose public key belongs to a different peer than its name, or two entries
// resolving to the same peer, fail with ErrConflict.
func PlanPeers(existing []ExistingPeer, desired []DesiredPeer) ([]Action, error) {
	byName := map[string]int{}
	byPublicKey := map[string]int{}
	for i, p := range existing {
		if p.Name != "" {
			byName[p.Name] = i
		}
		if p.PublicKey != "" {
			byPublicKey[p.PublicKey] = i
		}
	}

	actions := make([]Action, 0, len(desired))
	claimed := map[int]string{}
	for _, d := range desired {
		i, found := byName[d.Name]
		if d.Remove {
			if !found {
				continue
			}
			actions = append(actions, Action{Name: d.Name, Type: ActionRemove, Index: i})
		} else {
			if d.PublicKey != "" {
				j, foundKey := byPublicKey[d.PublicKey]
				switch {
				case foundKey && found && i != j:
					return nil, fmt.Errorf("peer %s: public key belongs to peer %s: %w", d.Name, displayName(existing[j]), ErrConflict)
				case foundKey && !found:
					i, found = j, true
				}
			}
			if !found {
				actions = append(actions, Action{Name: d.Name, Type: ActionAdd, Index: -1})
				continue
			}
			actions = append(actions, Action{Name: d.Name, Type: ActionModify, Index: i})
		}
		if other, ok := claimed[i]; ok {
			return nil, fmt.Errorf("peers %s and %s both resolve to peer %s: %w", other, d.Name, displayName(existing[i]), ErrConflict)
		}
		claimed[i] = d.Name
	}
	return actions, nil
}

func displayName(p ExistingPeer) string {
	if p.Name != "" {
		return p.Name
	}
	return p.PublicKey
}
