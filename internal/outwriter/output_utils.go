package outwriter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

const topNMetrics = 3

// writeWithFile handles the common pattern of opening a file, writing to it, and cleaning up.
// It accepts a writer function that takes an io.Writer and returns an error.
func writeWithFile(outputFile string, writer func(io.Writer) error, successMsg string) error {
	file, err := contract.SelectOutputFile(outputFile)
	if err != nil {
		return err
	}
	// Only close if it's not stdout
	if file != os.Stdout {
		defer func() { _ = file.Close() }()
	}

	if err := writer(file); err != nil {
		return err
	}

	if file != os.Stdout {
		_, _ = fmt.Fprintf(os.Stderr, "💾 %s to %s\n", successMsg, outputFile)
	}
	return nil
}

// writeJSON is a generic JSON encoder that handles indentation consistently.
func writeJSON(w io.Writer, data any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// writeCSVWithHeader handles the common pattern of creating a CSV writer,
// writing a header, and writing data rows.
func writeCSVWithHeader(w io.Writer, header []string, writeRows func(*csv.Writer) error) error {
	csvWriter := csv.NewWriter(w)
	defer csvWriter.Flush()

	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	return writeRows(csvWriter)
}

// createFormatters creates the float formatter closure used across output types.
func createFormatters(precision int) func(float64) string {
	return func(v float64) string {
		return fmt.Sprintf("%.*f", precision, v)
	}
}

// formatTopContributors names the metrics that add the most to a score.
func formatTopContributors(r *schema.ScoreResult, defs map[string]schema.MetricDefinition) string {
	var parts []string
	for _, k := range r.TopContributors(topNMetrics) {
		if r.Explanation[k].Contribution <= 0 {
			continue
		}
		parts = append(parts, metricLabel(k, defs))
	}
	if len(parts) == 0 {
		return "No contributors"
	}
	return strings.Join(parts, " > ")
}

func metricLabel(key string, defs map[string]schema.MetricDefinition) string {
	if d, ok := defs[key]; ok && d.Label != "" {
		return d.Label
	}
	return key
}

// formatRaw renders a raw metric value compactly for tables and CSV.
func formatRaw(raw any) string {
	switch v := raw.(type) {
	case nil:
		return "-"
	case bool:
		if v {
			return "yes"
		}
		return "no"
	case schema.PeerRatingAggregate:
		return fmt.Sprintf("avg %.1f (n=%d)", v.Average, v.Count)
	case *schema.PeerRatingAggregate:
		if v == nil {
			return "-"
		}
		return fmt.Sprintf("avg %.1f (n=%d)", v.Average, v.Count)
	case map[string]any:
		if avg, ok := v["average"].(float64); ok {
			if cnt, ok := v["count"].(float64); ok {
				return fmt.Sprintf("avg %.1f (n=%d)", avg, int(cnt))
			}
		}
		keys := slices.Sorted(maps.Keys(v))
		return "{" + strings.Join(keys, ",") + "}"
	case []any:
		return fmt.Sprintf("%d items", len(v))
	case []string:
		return strings.Join(v, ", ")
	case string:
		return v
	}
	return fmt.Sprint(raw)
}
