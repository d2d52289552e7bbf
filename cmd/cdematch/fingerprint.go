package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cdematcher/backend/internal/usecase"
)

func newFingerprintCommand() *cobra.Command {
	var opts inputOptions

	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the cache fingerprint of a run without matching",
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, targets, err := opts.load()
			if err != nil {
				return err
			}
			configs, err := opts.ensemble()
			if err != nil {
				return err
			}
			fp, err := usecase.Fingerprint(sources, targets, configs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), fp)
			return nil
		},
	}
	opts.register(cmd)

	return cmd
}
