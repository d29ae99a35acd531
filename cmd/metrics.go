package cmd

import (
	"github.com/spf13/cobra"

	"github.com/huangsam/ers/core"
	"github.com/huangsam/ers/internal/contract"
)

// metricsCmd displays the metric catalog and the relevance weights.
var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display the metric catalog, normalization rules and relevance weights",
	Long: `Show every known metric with its kind and normalization rule, followed by the
category and business size weight multipliers in effect.

Provides complete transparency into how subjects are scored, including:
- Metric keys, labels and kinds
- How each kind maps a raw value onto [0, 1]
- The score formula
- Custom weights and extra metrics if configured via .ers.yaml

Examples:
  # Show the default catalog and weights
  ers metrics

  # View with custom weights from config file
  ers metrics --config .ers.yaml`,
	PreRunE: configSetupWrapper,
	Run: func(_ *cobra.Command, _ []string) {
		if err := core.ExecuteMetrics(rootCtx, cfg); err != nil {
			contract.LogFatal("Cannot display metrics", err)
		}
	},
}
