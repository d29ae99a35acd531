package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/huangsam/ers/core"
	"github.com/huangsam/ers/internal/contract"
)

// rateCmd submits a peer rating for a stored subject.
var rateCmd = &cobra.Command{
	Use:   "rate <subject-id> <metric-key> <rating>",
	Short: "Submit a 1-10 peer rating on a peer-rated metric",
	Long: `Record a rater's rating on a peer-rated metric of a stored subject.

A later rating by the same rater replaces the earlier one. Owners cannot rate
their own subjects. After the rating is stored the metric's aggregate and the
subject's score are recomputed and the new explanation is printed.

Examples:
  ers rate green-grocer community_trust 8 --rater alice`,
	Args:    cobra.ExactArgs(3),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		rating, err := strconv.Atoi(args[2])
		if err != nil {
			contract.LogFatal("Invalid rating", fmt.Errorf("rating must be a whole number: %w", err))
		}
		rater := viper.GetString("rater")
		if rater == "" {
			contract.LogFatal("Invalid rating", fmt.Errorf("--rater is required"))
		}
		if err := core.ExecuteRate(rootCtx, cfg, storeManager, args[0], args[1], rater, rating); err != nil {
			contract.LogFatal("Cannot submit rating", err)
		}
	},
}

// explainCmd prints the cached explanation of a stored subject.
var explainCmd = &cobra.Command{
	Use:   "explain <subject-id>",
	Short: "Show the score of a stored subject with its per-metric breakdown",
	Long: `Print the current score of a stored subject and how each metric contributed.

The explanation is served from the score cache and recomputed when missing.

Examples:
  ers explain green-grocer
  ers explain green-grocer --output json`,
	Args:    cobra.ExactArgs(1),
	PreRunE: sharedSetupWrapper,
	Run: func(_ *cobra.Command, args []string) {
		if err := core.ExecuteExplain(rootCtx, cfg, storeManager, args[0]); err != nil {
			contract.LogFatal("Cannot explain score", err)
		}
	},
}
