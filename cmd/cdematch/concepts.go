package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cdematcher/backend/internal/matcher"
)

type conceptRow struct {
	Name     string   `json:"name"`
	Variants []string `json:"variants"`
}

func newConceptsCommand() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "concepts",
		Short: "List the built-in semantic concepts and their variants",
		RunE: func(cmd *cobra.Command, args []string) error {
			concepts := matcher.BuiltinConcepts()
			names := matcher.ConceptNames(concepts)

			if jsonOutput {
				out := make([]conceptRow, 0, len(names))
				for _, name := range names {
					out = append(out, conceptRow{Name: name, Variants: concepts[name]})
				}
				return writeJSON(cmd, out)
			}

			rows := make([][]string, 0, len(names))
			for _, name := range names {
				rows = append(rows, []string{name, strings.Join(concepts[name], ", ")})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Concept", "Variants"}, rows, nil))
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit JSON instead of a table")

	return cmd
}
