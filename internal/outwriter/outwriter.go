// Package outwriter has output and writer logic.
package outwriter

import (
	"os"
	"time"

	"golang.org/x/term"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteScores prints a ranked list of score results using the configured output format.
func (ow *OutWriter) WriteScores(results []schema.ScoreResult, defs map[string]schema.MetricDefinition, cfg *contract.Config, duration time.Duration) error {
	return WriteScoreResults(results, defs, cfg, duration)
}

// WriteExplanation prints the full explanation of one score using the configured output format.
func (ow *OutWriter) WriteExplanation(result schema.ScoreResult, defs map[string]schema.MetricDefinition, cfg *contract.Config) error {
	return WriteExplanation(result, defs, cfg)
}

// WriteMetrics prints the metric catalog and relevance weights using the configured output format.
func (ow *OutWriter) WriteMetrics(model MetricsRenderModel, cfg *contract.Config) error {
	return WriteMetricsDefinitions(model, cfg)
}

// getMaxTableLabelWidth calculates the maximum width for subject ids and metric labels
// in table output based on terminal width.
func getMaxTableLabelWidth(cfg *contract.Config, fixedWidth int) int {
	var termWidth int

	// Check for absolute width override from flag/env
	if cfg.Width > 0 {
		termWidth = cfg.Width
	}

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			// Fallback to conservative default if terminal size can't be detected
			termWidth = 80
		} else {
			termWidth = detectedWidth
		}
	}

	// Reserve space for table borders, separators, and padding
	available := termWidth - fixedWidth - 20
	if available < 15 {
		return 15
	}
	if available > 60 {
		return 60
	}
	return available
}
