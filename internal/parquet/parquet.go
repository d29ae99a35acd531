// Package parquet exports stored ERS data to Parquet files
// using github.com/parquet-go/parquet-go.
package parquet

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/huangsam/ers/schema"
)

// PeerRating is one rater's rating of one peer-rated metric.
// This struct maps to the ers_peer_ratings database table.
type PeerRating struct {
	// SubjectID is the rated subject
	SubjectID string `parquet:"subject_id,snappy"`

	// MetricKey is the peer-rated metric
	MetricKey string `parquet:"metric_key,snappy"`

	// RaterID identifies the rater
	RaterID string `parquet:"rater_id,snappy"`

	// Rating is the submitted rating between 1 and 10
	Rating int32 `parquet:"rating,snappy"`

	// RatedAt is when the rating was last submitted (stored as TIMESTAMP with nanosecond precision)
	RatedAt time.Time `parquet:"rated_at,snappy"`
}

// SubjectScore is the persisted score summary of one subject.
// This struct maps to the ers_subjects database table.
type SubjectScore struct {
	SubjectID     string     `parquet:"subject_id,snappy"`
	OwnerID       string     `parquet:"owner_id,snappy"`
	Kind          string     `parquet:"kind,snappy"`
	Categories    string     `parquet:"categories,snappy"`
	BusinessSize  *string    `parquet:"business_size,optional,snappy"`
	ChosenMetrics int32      `parquet:"chosen_metrics,snappy"`
	ReportedCount int32      `parquet:"reported_count,snappy"`
	OverallScore  *int32     `parquet:"overall_score,optional,snappy"`
	ScoredAt      *time.Time `parquet:"scored_at,optional,snappy"`
	UpdatedAt     time.Time  `parquet:"updated_at,snappy"`
}

// writeParquet writes rows to outputPath using struct schema inference.
func writeParquet[T any](data []T, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := parquet.NewGenericWriter[T](file)
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return fmt.Errorf("failed to write data to parquet file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to finalize parquet file: %w", err)
	}
	return nil
}

// WritePeerRatingsParquet writes a slice of PeerRating structs to a Parquet file.
func WritePeerRatingsParquet(data []PeerRating, outputPath string) error {
	return writeParquet(data, outputPath)
}

// WriteSubjectScoresParquet writes a slice of SubjectScore structs to a Parquet file.
func WriteSubjectScoresParquet(data []SubjectScore, outputPath string) error {
	return writeParquet(data, outputPath)
}

// ConvertPeerRatingRecords converts schema.PeerRatingRecord to PeerRating for Parquet export.
func ConvertPeerRatingRecords(records []schema.PeerRatingRecord) []PeerRating {
	result := make([]PeerRating, len(records))
	for i, record := range records {
		result[i] = PeerRating{
			SubjectID: record.SubjectID,
			MetricKey: record.MetricKey,
			RaterID:   record.RaterID,
			Rating:    int32(record.Rating),
			RatedAt:   record.Timestamp,
		}
	}
	return result
}

// ConvertSubjectScoreRecords converts schema.SubjectScoreRecord to SubjectScore for Parquet export.
func ConvertSubjectScoreRecords(records []schema.SubjectScoreRecord) []SubjectScore {
	result := make([]SubjectScore, len(records))
	for i, record := range records {
		var size *string
		if record.BusinessSize != "" {
			s := string(record.BusinessSize)
			size = &s
		}
		result[i] = SubjectScore{
			SubjectID:     record.SubjectID,
			OwnerID:       record.OwnerID,
			Kind:          string(record.Kind),
			Categories:    strings.Join(record.Categories, ","),
			BusinessSize:  size,
			ChosenMetrics: int32(record.ChosenMetrics),
			ReportedCount: int32(record.ReportedCount),
			OverallScore:  record.OverallScore,
			ScoredAt:      record.ScoredAt,
			UpdatedAt:     record.UpdatedAt,
		}
	}
	return result
}
