// Package spec reads the desired state of one WireGuard device from YAML and applies
// it to the device's configuration document.
package spec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/nyiyui/wgconf/goal"
	"gopkg.in/yaml.v3"
)

// Spec is the desired state of one device.
type Spec struct {
	Hostname string `yaml:"hostname"`
	// Name and Dir locate the document. Unset means the wgconf defaults.
	Name          *string `yaml:"name"`
	Dir           *string `yaml:"dir"`
	PublicAddress string  `yaml:"public_address"`
	WGBinPath     string  `yaml:"wg_bin_path"`
	// ClientsDir is where client documents are written, <dir>/clients by default.
	ClientsDir string `yaml:"clients_dir"`

	Interface map[string]any `yaml:"interface"`
	// Peers and Clients map names to properties. A null entry removes the peer.
	Peers          map[string]map[string]any `yaml:"peers"`
	Clients        map[string]map[string]any `yaml:"clients"`
	PeerDefaults   map[string]any            `yaml:"peer_defaults"`
	ClientDefaults map[string]any            `yaml:"client_defaults"`
}

func Load(path string) (Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Spec{}, fmt.Errorf("load spec: %w", err)
	}
	s, err := Parse(data)
	if err != nil {
		return Spec{}, fmt.Errorf("load spec %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes a spec, refusing unknown top-level keys.
func Parse(data []byte) (Spec, error) {
	var s Spec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Spec{}, fmt.Errorf("decoding: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Spec{}, err
	}
	return s, nil
}

func (s Spec) Validate() error {
	if s.Hostname == "" {
		return fmt.Errorf("hostname is required: %w", goal.ErrValidation)
	}
	return nil
}

func (s Spec) interfaceProps() (*goal.InterfaceProps, error) {
	props, err := goal.InterfacePropsFromMap(s.Interface)
	if err != nil {
		return nil, fmt.Errorf("interface: %w", err)
	}
	return &props, nil
}

func (s Spec) peerProps() (map[string]*goal.PeerProps, error) {
	if s.Peers == nil {
		return nil, nil
	}
	updates := make(map[string]*goal.PeerProps, len(s.Peers))
	for name, m := range s.Peers {
		if m == nil {
			updates[name] = nil
			continue
		}
		props, err := goal.PeerPropsFromMap(goal.Merge(m, s.PeerDefaults))
		if err != nil {
			return nil, fmt.Errorf("peer %s: %w", name, err)
		}
		updates[name] = &props
	}
	return updates, nil
}

func (s Spec) clientProps() (map[string]*goal.ClientProps, error) {
	if s.Clients == nil {
		return nil, nil
	}
	updates := make(map[string]*goal.ClientProps, len(s.Clients))
	for name, m := range s.Clients {
		if m == nil {
			updates[name] = nil
			continue
		}
		props, err := goal.ClientPropsFromMap(goal.Merge(m, s.ClientDefaults))
		if err != nil {
			return nil, fmt.Errorf("client %s: %w", name, err)
		}
		updates[name] = &props
	}
	return updates, nil
}
