package main

import (
	"errors"
	"fmt"

	"github.com/davecgh/go-spew/spew"
	"github.com/spf13/cobra"

	"github.com/minidl/minidl"
	"github.com/minidl/minidl/linker"
)

var (
	callExport string
	dumpImage  bool
)

var rootCmd = &cobra.Command{
	Use:          "minidl <shared object>",
	Short:        "Load an ELF64 shared object with the minidl loader and call an exported function",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		l := minidl.New()

		img := l.Open(args[0], minidl.BindNow)
		if img == nil {
			return errors.New(l.LastError())
		}
		defer func() { _ = l.Close(img) }()

		if dumpImage {
			spew.Fdump(cmd.OutOrStdout(), img)
		}

		if callExport != "" {
			addr := l.Lookup(img, callExport)
			if addr == 0 {
				return errors.New(l.LastError())
			}
			ret := linker.Call(addr)
			fmt.Fprintf(cmd.OutOrStdout(), "%s() = %#x\n", callExport, ret)
		}

		fmt.Fprintln(cmd.OutOrStdout(), "ok")
		return nil
	},
}

func init() {
	rootCmd.Flags().StringVar(&callExport, "call-export", "", "Entry symbol to resolve and call in the shared object")
	rootCmd.Flags().BoolVar(&dumpImage, "dump", false, "Dump the loaded image record")
}
