package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// WriteScoreResults outputs ranked score results, dispatching based on the output format configured.
func WriteScoreResults(results []schema.ScoreResult, defs map[string]schema.MetricDefinition, cfg *contract.Config, duration time.Duration) error {
	fmtFloat := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSONScores(w, results)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVScores(w, results, defs, fmtFloat)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeScoreTable(w, results, defs, cfg, duration)
		}, "Wrote table")
	}
}

// writeScoreTable generates and writes the human-readable ranking table.
func writeScoreTable(w io.Writer, results []schema.ScoreResult, defs map[string]schema.MetricDefinition, cfg *contract.Config, duration time.Duration) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Subject", "Score", "Label", "Metrics", "Top Contributors"})
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	width := getMaxTableLabelWidth(cfg, 60)
	var data [][]string
	for i, r := range results {
		label := schema.GetPlainLabel(r.OverallScore)
		if cfg.UseColors {
			label = contract.GetColorLabel(r.OverallScore)
		}
		data = append(data, []string{
			strconv.Itoa(i + 1),
			contract.TruncateText(r.SubjectID, width),
			strconv.Itoa(r.OverallScore),
			label,
			strconv.Itoa(len(r.Explanation)),
			formatTopContributors(&r, defs),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	skipped := 0
	for _, r := range results {
		skipped += len(r.Skipped)
	}
	if _, err := fmt.Fprintf(w, "Showing %d subjects (skipped metrics: %d)\n", len(results), skipped); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Scoring completed in %v with %d workers. Cache backend: %s\n", duration, cfg.Workers, cfg.CacheBackend)
	return err
}

// writeCSVScores writes one row per subject.
func writeCSVScores(w io.Writer, results []schema.ScoreResult, defs map[string]schema.MetricDefinition, fmtFloat func(float64) string) error {
	header := []string{"rank", "subject_id", "score", "label", "metrics", "total_weight", "top_contributors", "skipped", "computed_at"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for i, r := range results {
			rec := []string{
				strconv.Itoa(i + 1),
				r.SubjectID,
				strconv.Itoa(r.OverallScore),
				schema.GetPlainLabel(r.OverallScore),
				strconv.Itoa(len(r.Explanation)),
				fmtFloat(r.TotalWeight()),
				formatTopContributors(&r, defs),
				strings.Join(r.Skipped, "|"),
				r.ComputedAt.Format(contract.DateTimeFormat),
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		return nil
	})
}

// writeJSONScores writes the results with rank and label added.
func writeJSONScores(w io.Writer, results []schema.ScoreResult) error {
	type jsonScore struct {
		Rank int `json:"rank"`
		schema.EnrichedScoreResult
	}
	output := make([]jsonScore, len(results))
	for i, r := range results {
		output[i] = jsonScore{Rank: i + 1, EnrichedScoreResult: schema.EnrichScore(r)}
	}
	return writeJSON(w, output)
}
