package main

import (
	"fmt"

	"github.com/nyiyui/wgconf/spec"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

var applyCmd = &cobra.Command{
	Use:   "apply -f SPEC",
	Short: "Apply a desired state file to a device config",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("file")
		s, err := spec.Load(path)
		if err != nil {
			return err
		}
		res, err := spec.Apply(s, spec.Options{Logger: zap.S()})
		if err != nil {
			return fmt.Errorf("apply %s: %w", path, err)
		}
		if res.Changed {
			zap.S().Infof("updated %s.", res.Path)
		}
		names := maps.Keys(res.ClientConfigs)
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", name, res.ClientConfigs[name])
		}
		return nil
	},
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "desired state file (YAML)")
	_ = applyCmd.MarkFlagRequired("file")
}
