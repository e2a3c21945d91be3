package main

import (
	"fmt"
	"os"

	"github.com/nyiyui/wgconf/util"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:           "wgconf",
	Short:         "Edit wg-quick configuration documents without losing what you wrote by hand.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		util.SetupLog(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	rootCmd.AddCommand(applyCmd, showCmd, checkCmd, keysCmd)
}

func Execute() {
	err := rootCmd.Execute()
	_ = zap.S().Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
