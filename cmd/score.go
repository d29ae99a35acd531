package cmd

import (
	"github.com/spf13/cobra"

	"github.com/huangsam/ers/core"
	"github.com/huangsam/ers/internal/contract"
)

// scoreCmd scores subjects from a file without storing them.
var scoreCmd = &cobra.Command{
	Use:   "score <subjects-file>",
	Short: "Score subjects from a YAML or JSON file and rank them",
	Long: `Compute the ERS score of every subject in a file and print them ranked.

The file may hold a single subject, a list of subjects, or a mapping with a
"subjects" list. Nothing is written to the store, so this is the quickest way
to try out metric values and weight overrides.

Examples:
  # Rank the subjects of a file
  ers score subjects.yaml

  # Export the ranking as CSV with custom weights
  ers score subjects.yaml --config .ers.yaml --output csv --output-file scores.csv`,
	Args:    cobra.ExactArgs(1),
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteScoreFile(rootCtx, cfg, args[0]); err != nil {
			contract.LogFatal("Cannot score subjects", err)
		}
	},
}
