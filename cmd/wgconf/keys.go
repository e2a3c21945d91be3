package main

import (
	"fmt"

	"github.com/nyiyui/wgconf/keys"
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Print a new private key, its public key and a preshared key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		native, _ := cmd.Flags().GetBool("native")
		wgPath, _ := cmd.Flags().GetString("wg")
		var g keys.Generator = keys.Command{Path: wgPath}
		if native {
			g = keys.Native{}
		}
		priv, err := g.GenKey()
		if err != nil {
			return err
		}
		pub, err := g.PubKey(priv)
		if err != nil {
			return err
		}
		psk, err := g.GenPSK()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "private_key: %s\npublic_key: %s\npreshared_key: %s\n", priv, pub, psk)
		return nil
	},
}

func init() {
	keysCmd.Flags().String("wg", keys.DefaultWGPath, "path to the wg binary")
	keysCmd.Flags().Bool("native", false, "generate keys in-process instead of running wg")
}
