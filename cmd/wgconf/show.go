package main

import (
	"fmt"

	"github.com/nyiyui/wgconf/conf"
	"github.com/nyiyui/wgconf/wgconf"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type view struct {
	Interface map[string]any   `yaml:"interface,omitempty"`
	Peers     []map[string]any `yaml:"peers,omitempty"`
}

func load(cmd *cobra.Command, path string) (*conf.File, error) {
	policy, _ := cmd.Flags().GetString("dup")
	dup, err := conf.ParseDup(policy)
	if err != nil {
		return nil, err
	}
	f, err := conf.Load(path, dup)
	if err != nil {
		return nil, err
	}
	if f.IsEmpty() {
		return nil, fmt.Errorf("%s is empty or does not exist", path)
	}
	return f, nil
}

// decode reads every declared property of the document.
func decode(f *conf.File) (view, error) {
	var v view
	if s := f.Section(wgconf.InterfaceKind); s != nil {
		values, err := (&wgconf.Interface{Section: s}).Values()
		if err != nil {
			return view{}, fmt.Errorf("interface: %w", err)
		}
		v.Interface = values
	}
	for i, s := range f.SectionsOf(wgconf.PeerKind) {
		values, err := (&wgconf.Peer{Section: s}).Values()
		if err != nil {
			return view{}, fmt.Errorf("peer %d: %w", i+1, err)
		}
		v.Peers = append(v.Peers, values)
	}
	return v, nil
}

var showCmd = &cobra.Command{
	Use:   "show PATH",
	Short: "Print the interface and peers of a config as YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := load(cmd, args[0])
		if err != nil {
			return err
		}
		v, err := decode(f)
		if err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	},
}

var checkCmd = &cobra.Command{
	Use:   "check PATH",
	Short: "Check that a config parses and its properties decode",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := load(cmd, args[0])
		if err != nil {
			return err
		}
		if _, err := decode(f); err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
		return nil
	},
}

func init() {
	for _, cmd := range []*cobra.Command{showCmd, checkCmd} {
		cmd.Flags().String("dup", conf.DupFirst.String(), "duplicate option policy: first or list")
	}
}
