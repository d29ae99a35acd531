package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// WriteExplanation outputs the per-metric breakdown of one score.
func WriteExplanation(result schema.ScoreResult, defs map[string]schema.MetricDefinition, cfg *contract.Config) error {
	fmtFloat := createFormatters(cfg.Precision)
	rows := schema.EnrichExplanation(result, defs)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSONExplanation(w, result, rows)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVExplanation(w, result, rows, fmtFloat)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeExplanationTable(w, result, rows, cfg, fmtFloat)
		}, "Wrote table")
	}
}

// writeExplanationTable prints a header line followed by one row per scored metric.
func writeExplanationTable(w io.Writer, result schema.ScoreResult, rows []schema.ExplanationRow, cfg *contract.Config, fmtFloat func(float64) string) error {
	label := schema.GetPlainLabel(result.OverallScore)
	if cfg.UseColors {
		label = contract.GetColorLabel(result.OverallScore)
	}
	if _, err := fmt.Fprintf(w, "Subject %s: %d (%s)\n", result.SubjectID, result.OverallScore, label); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Metric", "Kind", "Raw", "Normalized", "Weight", "Points"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	width := getMaxTableLabelWidth(cfg, 70)
	var data [][]string
	for _, row := range rows {
		data = append(data, []string{
			strconv.Itoa(row.Rank),
			contract.TruncateText(row.Label, width),
			string(row.Kind),
			contract.TruncateText(formatRaw(row.Raw), 24),
			fmtFloat(row.Normalized),
			fmtFloat(row.Weight),
			fmtFloat(row.Points),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if len(result.Skipped) > 0 {
		if _, err := fmt.Fprintf(w, "Skipped unknown metrics: %s\n", strings.Join(result.Skipped, ", ")); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Computed at %s\n", result.ComputedAt.Format(contract.DateTimeFormat))
	return err
}

// writeCSVExplanation writes one row per scored metric.
func writeCSVExplanation(w io.Writer, result schema.ScoreResult, rows []schema.ExplanationRow, fmtFloat func(float64) string) error {
	header := []string{"subject_id", "rank", "metric", "label", "kind", "raw", "normalized", "weight", "contribution", "points"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, row := range rows {
			rec := []string{
				result.SubjectID,
				strconv.Itoa(row.Rank),
				row.Key,
				row.Label,
				string(row.Kind),
				formatRaw(row.Raw),
				fmtFloat(row.Normalized),
				fmtFloat(row.Weight),
				fmtFloat(row.Contribution),
				fmtFloat(row.Points),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeJSONExplanation writes the labelled result with ranked rows.
func writeJSONExplanation(w io.Writer, result schema.ScoreResult, rows []schema.ExplanationRow) error {
	output := struct {
		schema.EnrichedScoreResult
		Rows []schema.ExplanationRow `json:"rows"`
	}{
		EnrichedScoreResult: schema.EnrichScore(result),
		Rows:                rows,
	}
	return writeJSON(w, output)
}
