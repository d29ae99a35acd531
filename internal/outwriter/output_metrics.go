package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// MetricRow describes one catalog entry for display.
type MetricRow struct {
	Key   string            `json:"key"`
	Label string            `json:"label"`
	Kind  schema.MetricKind `json:"kind"`
	Rule  string            `json:"rule"`
}

// MetricsRenderModel is everything the metrics command shows.
type MetricsRenderModel struct {
	Title           string                                     `json:"title"`
	Description     string                                     `json:"description"`
	Metrics         []MetricRow                                `json:"metrics"`
	CategoryWeights map[string]map[string]float64              `json:"category_weights"`
	SizeWeights     map[schema.BusinessSize]map[string]float64 `json:"size_weights"`
}

// kindRules explains how each metric kind is normalized.
var kindRules = map[schema.MetricKind]string{
	schema.BooleanKind:        "true = 1, otherwise 0",
	schema.Bounded0to10Kind:   "clamp(v, 0, 10) / 10",
	schema.PercentageKind:     "clamp(v, 0, 100) / 100",
	schema.PeerRatedKind:      "min(avg, 10) / 10 * min(log10(count+1), 1)",
	schema.StructuredListKind: "non-empty list = 1, otherwise 0",
}

// BuildMetricsRenderModel assembles the render model from a catalog listing and weights.
func BuildMetricsRenderModel(defs []schema.MetricDefinition, category map[string]map[string]float64, size map[schema.BusinessSize]map[string]float64) MetricsRenderModel {
	rows := make([]MetricRow, len(defs))
	for i, d := range defs {
		rows[i] = MetricRow{Key: d.Key, Label: d.Label, Kind: d.Kind, Rule: kindRules[d.Kind]}
	}
	return MetricsRenderModel{
		Title:           "ERS Metric Catalog",
		Description:     "Score = round(100 * sum(normalized * weight) / sum(weight)) over chosen, reported metrics",
		Metrics:         rows,
		CategoryWeights: category,
		SizeWeights:     size,
	}
}

// WriteMetricsDefinitions displays the metric catalog and relevance weights.
func WriteMetricsDefinitions(model MetricsRenderModel, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, model)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCSVMetrics(w, model)
		}, "Wrote CSV")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeMetricsText(w, model)
		}, "Wrote text")
	}
}

func writeMetricsText(w io.Writer, model MetricsRenderModel) error {
	if _, err := fmt.Fprintf(w, "🌱 %s\n%s\n\n", model.Title, model.Description); err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Key", "Label", "Kind", "Normalization"})
	var data [][]string
	for _, m := range model.Metrics {
		data = append(data, []string{m.Key, m.Label, string(m.Kind), m.Rule})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, "\nCategory weights (largest category multiplier wins, absent = 1.0):"); err != nil {
		return err
	}
	for _, cat := range slices.Sorted(maps.Keys(model.CategoryWeights)) {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", cat, formatWeightMap(model.CategoryWeights[cat])); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(w, "\nBusiness size weights (absent = 1.0):"); err != nil {
		return err
	}
	for _, sz := range slices.Sorted(maps.Keys(model.SizeWeights)) {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", sz, formatWeightMap(model.SizeWeights[sz])); err != nil {
			return err
		}
	}
	return nil
}

// formatWeightMap renders weights as sorted key=value pairs.
func formatWeightMap(weights map[string]float64) string {
	parts := make([]string, 0, len(weights))
	for _, k := range slices.Sorted(maps.Keys(weights)) {
		parts = append(parts, fmt.Sprintf("%s=%.2f", k, weights[k]))
	}
	return strings.Join(parts, ", ")
}

// writeCSVMetrics writes one row per metric, followed by one row per weight entry.
func writeCSVMetrics(w io.Writer, model MetricsRenderModel) error {
	header := []string{"section", "scope", "key", "label", "kind", "value"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, m := range model.Metrics {
			if err := cw.Write([]string{"metric", "", m.Key, m.Label, string(m.Kind), m.Rule}); err != nil {
				return fmt.Errorf("failed to write CSV record: %w", err)
			}
		}
		for _, cat := range slices.Sorted(maps.Keys(model.CategoryWeights)) {
			weights := model.CategoryWeights[cat]
			for _, k := range slices.Sorted(maps.Keys(weights)) {
				if err := cw.Write([]string{"category", cat, k, "", "", fmt.Sprintf("%.2f", weights[k])}); err != nil {
					return fmt.Errorf("failed to write CSV record: %w", err)
				}
			}
		}
		for _, sz := range slices.Sorted(maps.Keys(model.SizeWeights)) {
			weights := model.SizeWeights[sz]
			for _, k := range slices.Sorted(maps.Keys(weights)) {
				if err := cw.Write([]string{"size", string(sz), k, "", "", fmt.Sprintf("%.2f", weights[k])}); err != nil {
					return fmt.Errorf("failed to write CSV record: %w", err)
				}
			}
		}
		return nil
	})
}
