package main

import (
	"io"
	"log"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var debug bool

	rootCmd := &cobra.Command{
		Use:           "cdematch",
		Short:         "Match dataset variables onto common data elements",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// pipeline logging goes to stderr so --json output stays clean
			log.SetOutput(cmd.ErrOrStderr())
			if !debug {
				log.SetOutput(io.Discard)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log pipeline progress to stderr")

	rootCmd.AddCommand(newRunCommand(&debug))
	rootCmd.AddCommand(newFingerprintCommand())
	rootCmd.AddCommand(newConceptsCommand())

	return rootCmd
}
