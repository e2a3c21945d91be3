package spec

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nyiyui/wgconf/keys"
	"github.com/nyiyui/wgconf/wgconf"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

type Options struct {
	// Keys, if set, is used instead of the wg binary at WGBinPath.
	Keys   keys.Generator
	Logger *zap.SugaredLogger
}

type Result struct {
	// Changed is set when the device document was rewritten.
	Changed bool
	// Path is the device document.
	Path string
	// ClientConfigs maps client names to the paths their documents were written to.
	ClientConfigs map[string]string
}

// Apply brings the device document in line with s: the interface first, then clients,
// then peers. Client documents are written whenever the update returns them; the
// device document only when it changed.
func Apply(s Spec, opts Options) (Result, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if err := s.Validate(); err != nil {
		return Result{}, err
	}
	iface, err := s.interfaceProps()
	if err != nil {
		return Result{}, err
	}
	peers, err := s.peerProps()
	if err != nil {
		return Result{}, err
	}
	clients, err := s.clientProps()
	if err != nil {
		return Result{}, err
	}

	copts := []wgconf.Option{wgconf.WithWGBinPath(s.WGBinPath), wgconf.WithLogger(log), wgconf.WithPublicAddress(s.PublicAddress)}
	if opts.Keys != nil {
		copts = append(copts, wgconf.WithKeys(opts.Keys))
	}
	if s.Name != nil {
		copts = append(copts, wgconf.WithName(*s.Name))
	}
	if s.Dir != nil {
		copts = append(copts, wgconf.WithDir(*s.Dir))
	}
	c, err := wgconf.New(s.Hostname, copts...)
	if err != nil {
		return Result{}, err
	}
	path, ok := c.Path()
	if !ok {
		return Result{}, fmt.Errorf("config %s: %w", s.Hostname, wgconf.ErrNoDestination)
	}
	before := c.String()

	configs, err := c.Update(iface, peers, clients)
	if err != nil {
		return Result{}, err
	}

	res := Result{Path: path, ClientConfigs: map[string]string{}}
	if len(configs) > 0 {
		dir := s.ClientsDir
		if dir == "" {
			dir = filepath.Join(c.Dir, "clients")
		}
		if err := ensureDir(dir); err != nil {
			return Result{}, err
		}
		names := maps.Keys(configs)
		slices.Sort(names)
		for _, name := range names {
			clientPath := filepath.Join(dir, name+".conf")
			if err := configs[name].Write(clientPath); err != nil {
				return Result{}, fmt.Errorf("client %s: %w", name, err)
			}
			res.ClientConfigs[name] = clientPath
		}
	}

	if c.String() != before {
		if err := c.Write(path); err != nil {
			return Result{}, err
		}
		res.Changed = true
	} else {
		log.Debugf("%s has no changes.", path)
	}
	return res, nil
}

// ensureDir creates dir if needed and makes it private to the owner.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating clients dir: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0700 {
		if err := os.Chmod(dir, 0700); err != nil {
			return fmt.Errorf("chmod clients dir: %w", err)
		}
	}
	return nil
}
