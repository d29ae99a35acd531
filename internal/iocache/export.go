package iocache

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/internal/parquet"
)

// ExecuteStoreExport writes every stored rating and subject score to Parquet files
// named after outputFile.
func ExecuteStoreExport(ctx context.Context, w io.Writer, mgr contract.StoreManager, outputFile string) error {
	// Validate that output file is specified
	if outputFile == "" {
		return errors.New("--output-file is required for export command")
	}

	store := mgr.GetStore()
	if store == nil {
		return errors.New("store is not initialized")
	}

	// Check if there's any data to export
	status, err := store.GetStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get store status: %w", err)
	}
	if status.TotalSubjects == 0 && status.TotalRatings == 0 {
		return errors.New("no stored data found to export")
	}

	_, _ = fmt.Fprintf(w, "Exporting data from %s backend...\n", status.Backend)
	_, _ = fmt.Fprintf(w, "Total subjects: %d\n", status.TotalSubjects)
	_, _ = fmt.Fprintf(w, "Total peer ratings: %d\n", status.TotalRatings)

	ratings, err := store.ListAllRatings(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve peer ratings: %w", err)
	}
	subjects, err := store.ListSubjectScores(ctx)
	if err != nil {
		return fmt.Errorf("failed to retrieve subject scores: %w", err)
	}

	ratingsFile := outputFile + ".peer_ratings.parquet"
	parquetRatings := parquet.ConvertPeerRatingRecords(ratings)
	if err := parquet.WritePeerRatingsParquet(parquetRatings, ratingsFile); err != nil {
		return fmt.Errorf("failed to write peer ratings: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d peer ratings to: %s\n", len(parquetRatings), ratingsFile)

	subjectsFile := outputFile + ".subject_scores.parquet"
	parquetSubjects := parquet.ConvertSubjectScoreRecords(subjects)
	if err := parquet.WriteSubjectScoresParquet(parquetSubjects, subjectsFile); err != nil {
		return fmt.Errorf("failed to write subject scores: %w", err)
	}
	_, _ = fmt.Fprintf(w, "Exported %d subject scores to: %s\n", len(parquetSubjects), subjectsFile)

	_, _ = fmt.Fprintln(w, "\nExport complete! The Parquet files can be used with:")
	_, _ = fmt.Fprintln(w, "  - Apache Spark")
	_, _ = fmt.Fprintln(w, "  - Pandas (via pyarrow)")
	_, _ = fmt.Fprintln(w, "  - DuckDB")
	return nil
}
