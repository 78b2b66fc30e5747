package main

import "github.com/spf13/cobra"

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cardinal",
		Short: "Cardinal is an HTTP reverse proxy gateway with a pluggable WebAssembly middleware pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newRunCommand())
	return root
}
