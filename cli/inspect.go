//go:build unix

package main

import (
	"github.com/spf13/cobra"

	"github.com/minidl/minidl/elfx"
)

var inspectCmd = &cobra.Command{
	Use:          "inspect <shared object>",
	Short:        "Print the ELF header, program headers, and sections of an image",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := elfx.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		f.WriteInfo(cmd.OutOrStdout())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
