package cmd

import (
	"github.com/spf13/cobra"

	"github.com/huangsam/ers/core"
	"github.com/huangsam/ers/internal/contract"
)

// subjectCmd groups owner-side edits of stored subjects.
var subjectCmd = &cobra.Command{
	Use:   "subject",
	Short: "Create, replace and edit stored subjects",
	Long: `Manage the subjects held in the store.

Subcommands:
  put - Create or replace subjects from a YAML or JSON file
  set - Update one owner-reported metric of a stored subject`,
}

// subjectPutCmd stores subjects from a file.
var subjectPutCmd = &cobra.Command{
	Use:   "put <subjects-file>",
	Short: "Create or replace subjects from a YAML or JSON file",
	Long: `Store every subject of a file and print their recomputed scores.

Subjects without an id get a random UUID. Peer rating aggregates are rebuilt
from the stored ratings, so replacing a subject keeps its peer scores.

Examples:
  ers subject put subjects.yaml`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteSubjectPut(rootCtx, cfg, storeManager, args[0]); err != nil {
			contract.LogFatal("Cannot store subjects", err)
		}
	},
}

// subjectSetCmd updates one metric of a stored subject.
var subjectSetCmd = &cobra.Command{
	Use:   "set <subject-id> <metric-key> <value>",
	Short: "Update one owner-reported metric of a stored subject",
	Long: `Set a single metric value and print the new explanation.

Values are parsed as JSON when possible, so numbers, true/false and lists work
as expected; yes/no are accepted as booleans and null un-reports the metric.
Peer-rated metrics cannot be set directly; use 'ers rate' instead.

Examples:
  ers subject set green-grocer local_sourcing_pct 85
  ers subject set green-grocer certifications '["organic"]'
  ers subject set green-grocer vegan_friendly null`,
	Args:    cobra.ExactArgs(3),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteSubjectSet(rootCtx, cfg, storeManager, args[0], args[1], args[2]); err != nil {
			contract.LogFatal("Cannot update metric", err)
		}
	},
}

// rescoreCmd recomputes every stored subject.
var rescoreCmd = &cobra.Command{
	Use:   "rescore",
	Short: "Recompute the score of every stored subject",
	Long: `Rebuild peer rating aggregates from stored ratings and recompute every score
with a bounded worker pool. Use this after changing weight overrides or extra metrics.

Examples:
  ers rescore --workers 8`,
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteRescore(rootCtx, cfg, storeManager); err != nil {
			contract.LogFatal("Cannot rescore subjects", err)
		}
	},
}
