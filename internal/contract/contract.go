// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/ers/schema"
)

// SubjectStore is the subject adapter: it supplies scoring subjects and
// receives their updated metric values and scores.
type SubjectStore interface {
	// GetSubject returns a subject with all of its stored metric values.
	// It fails with schema.ErrSubjectNotFound when no subject has the id.
	GetSubject(ctx context.Context, subjectID string) (schema.ScoringSubject, error)

	// PutSubject creates or replaces a subject and its metric values.
	PutSubject(ctx context.Context, subject schema.ScoringSubject) error

	// SetMetricValue updates a single metric value without touching the others.
	// A nil value removes the metric.
	SetMetricValue(ctx context.Context, subjectID, metricKey string, raw any) error

	// SaveScore records the latest overall score on the subject.
	SaveScore(ctx context.Context, subjectID string, score int, computedAt time.Time) error

	// ListSubjectIDs returns all stored subject ids in ascending order.
	ListSubjectIDs(ctx context.Context) ([]string, error)
}

// RatingStore holds peer rating records keyed by (subject, metric, rater).
type RatingStore interface {
	// UpsertRating inserts the record or replaces the rater's previous one.
	UpsertRating(ctx context.Context, rec schema.PeerRatingRecord) error

	// ListRatings returns every record for a (subject, metric) pair.
	ListRatings(ctx context.Context, subjectID, metricKey string) ([]schema.PeerRatingRecord, error)
}

// Store is a durable backend for subjects and ratings.
type Store interface {
	SubjectStore
	RatingStore
	Exporter
	GetStatus(ctx context.Context) (schema.StoreStatus, error)
	Clear(ctx context.Context) error
	Close() error
}

// ScoreCache holds serialized score results keyed by subject id.
// Get fails with schema.ErrCacheMiss when the key is absent.
type ScoreCache interface {
	Get(ctx context.Context, key string) ([]byte, int, int64, error)
	Set(ctx context.Context, key string, value []byte, version int, timestamp int64) error
	Delete(ctx context.Context, key string) error
	GetStatus(ctx context.Context) (schema.CacheStatus, error)
	Clear(ctx context.Context) error
	Close() error
}

// StoreManager gives access to the initialized backends.
// This allows the storage layer to be mocked for testing.
type StoreManager interface {
	GetStore() Store
	GetScoreCache() ScoreCache
}

// Exporter reads whole tables for bulk export.
type Exporter interface {
	ListAllRatings(ctx context.Context) ([]schema.PeerRatingRecord, error)
	ListSubjectScores(ctx context.Context) ([]schema.SubjectScoreRecord, error)
}
