package iocache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// Table names for subjects and ratings.
const (
	subjectsTable       = "ers_subjects"
	subjectMetricsTable = "ers_subject_metrics"
	peerRatingsTable    = "ers_peer_ratings"
)

// SQLStore keeps subjects, their metric values and peer ratings in a SQL database.
// Every metric value and every rating is its own row, so single-field updates
// and per-rater upserts never rewrite a whole subject.
type SQLStore struct {
	db      *sql.DB
	backend schema.DatabaseBackend
}

var _ contract.Store = &SQLStore{} // Compile-time check

// NewSQLStore opens the store for the given backend and ensures its tables exist.
func NewSQLStore(backend schema.DatabaseBackend, connStr string) (*SQLStore, error) {
	db, err := openDB(backend, connStr, contract.GetStoreDBFilePath())
	if err != nil {
		return nil, err
	}
	if err := applySchema(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create store tables: %w", err)
	}
	return &SQLStore{db: db, backend: backend}, nil
}

func (s *SQLStore) table(name string) string {
	return quoteTableName(name, s.backend)
}

func (s *SQLStore) q(query string, tables ...any) string {
	return rebind(s.backend, fmt.Sprintf(query, tables...))
}

// GetSubject implements the SubjectStore interface.
func (s *SQLStore) GetSubject(ctx context.Context, subjectID string) (schema.ScoringSubject, error) {
	var (
		subject        schema.ScoringSubject
		kind, size     string
		cats, chosen   string
		ownerID, subID string
	)
	row := s.db.QueryRowContext(ctx, s.q(`SELECT subject_id, owner_id, kind, categories, business_size, chosen_metrics FROM %s WHERE subject_id = ?`, s.table(subjectsTable)), subjectID)
	if err := row.Scan(&subID, &ownerID, &kind, &cats, &size, &chosen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return subject, fmt.Errorf("%w: %s", schema.ErrSubjectNotFound, subjectID)
		}
		return subject, fmt.Errorf("failed to read subject %s: %w", subjectID, err)
	}
	subject.ID = subID
	subject.OwnerID = ownerID
	subject.Kind = schema.SubjectKind(kind)
	subject.BusinessSize = schema.BusinessSize(size)
	if err := json.Unmarshal([]byte(cats), &subject.Categories); err != nil {
		return subject, fmt.Errorf("subject %s has corrupt categories: %w", subjectID, err)
	}
	if err := json.Unmarshal([]byte(chosen), &subject.ChosenMetrics); err != nil {
		return subject, fmt.Errorf("subject %s has corrupt chosen metrics: %w", subjectID, err)
	}

	rows, err := s.db.QueryContext(ctx, s.q(`SELECT metric_key, raw_value FROM %s WHERE subject_id = ?`, s.table(subjectMetricsTable)), subjectID)
	if err != nil {
		return subject, fmt.Errorf("failed to read metrics of %s: %w", subjectID, err)
	}
	defer func() { _ = rows.Close() }()

	subject.Metrics = make(map[string]any)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return subject, err
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return subject, fmt.Errorf("metric %s of %s is corrupt: %w", key, subjectID, err)
		}
		subject.Metrics[key] = value
	}
	return subject, rows.Err()
}

// PutSubject implements the SubjectStore interface.
// It replaces the subject row and all of its metric values in one transaction.
func (s *SQLStore) PutSubject(ctx context.Context, subject schema.ScoringSubject) error {
	cats, err := json.Marshal(nonNil(subject.Categories))
	if err != nil {
		return err
	}
	chosen, err := json.Marshal(nonNil(subject.ChosenMetrics))
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixNano()
	if _, err := tx.ExecContext(ctx, s.subjectUpsertQuery(), subject.ID, subject.OwnerID, string(subject.Kind), string(cats), string(subject.BusinessSize), string(chosen), now); err != nil {
		return fmt.Errorf("failed to write subject: %w", err)
	}
	if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM %s WHERE subject_id = ?`, s.table(subjectMetricsTable)), subject.ID); err != nil {
		return fmt.Errorf("failed to reset metrics: %w", err)
	}
	for key, raw := range subject.Metrics {
		if raw == nil {
			continue
		}
		value, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("metric %s is not serializable: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, s.metricUpsertQuery(), subject.ID, key, string(value)); err != nil {
			return fmt.Errorf("failed to write metric %s: %w", key, err)
		}
	}
	return tx.Commit()
}

// SetMetricValue implements the SubjectStore interface.
func (s *SQLStore) SetMetricValue(ctx context.Context, subjectID, metricKey string, raw any) error {
	if raw == nil {
		_, err := s.db.ExecContext(ctx, s.q(`DELETE FROM %s WHERE subject_id = ? AND metric_key = ?`, s.table(subjectMetricsTable)), subjectID, metricKey)
		return err
	}
	value, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("metric %s is not serializable: %w", metricKey, err)
	}
	_, err = s.db.ExecContext(ctx, s.metricUpsertQuery(), subjectID, metricKey, string(value))
	return err
}

// SaveScore implements the SubjectStore interface.
func (s *SQLStore) SaveScore(ctx context.Context, subjectID string, score int, computedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE %s SET overall_score = ?, scored_at = ? WHERE subject_id = ?`, s.table(subjectsTable)), score, computedAt.UnixNano(), subjectID)
	if err != nil {
		return err
	}
	// MySQL reports 0 affected rows when values are unchanged, so only SQLite and PostgreSQL are checked
	if s.backend != schema.MySQLBackend {
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return fmt.Errorf("%w: %s", schema.ErrSubjectNotFound, subjectID)
		}
	}
	return nil
}

// ListSubjectIDs implements the SubjectStore interface.
func (s *SQLStore) ListSubjectIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT subject_id FROM %s ORDER BY subject_id`, s.table(subjectsTable)))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpsertRating implements the RatingStore interface.
func (s *SQLStore) UpsertRating(ctx context.Context, rec schema.PeerRatingRecord) error {
	_, err := s.db.ExecContext(ctx, s.ratingUpsertQuery(), rec.SubjectID, rec.MetricKey, rec.RaterID, rec.Rating, rec.Timestamp.UnixNano())
	return err
}

// ListRatings implements the RatingStore interface.
func (s *SQLStore) ListRatings(ctx context.Context, subjectID, metricKey string) ([]schema.PeerRatingRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT subject_id, metric_key, rater_id, rating, rated_at FROM %s WHERE subject_id = ? AND metric_key = ? ORDER BY rater_id`, s.table(peerRatingsTable)), subjectID, metricKey)
	if err != nil {
		return nil, err
	}
	return scanRatings(rows)
}

// ListAllRatings implements the Exporter interface.
func (s *SQLStore) ListAllRatings(ctx context.Context) ([]schema.PeerRatingRecord, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`SELECT subject_id, metric_key, rater_id, rating, rated_at FROM %s ORDER BY subject_id, metric_key, rater_id`, s.table(peerRatingsTable)))
	if err != nil {
		return nil, err
	}
	return scanRatings(rows)
}

func scanRatings(rows *sql.Rows) ([]schema.PeerRatingRecord, error) {
	defer func() { _ = rows.Close() }()

	var out []schema.PeerRatingRecord
	for rows.Next() {
		var rec schema.PeerRatingRecord
		var ratedAt int64
		if err := rows.Scan(&rec.SubjectID, &rec.MetricKey, &rec.RaterID, &rec.Rating, &ratedAt); err != nil {
			return nil, err
		}
		rec.Timestamp = time.Unix(0, ratedAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ListSubjectScores implements the Exporter interface.
func (s *SQLStore) ListSubjectScores(ctx context.Context) ([]schema.SubjectScoreRecord, error) {
	query := fmt.Sprintf(`
		SELECT s.subject_id, s.owner_id, s.kind, s.categories, s.business_size, s.chosen_metrics,
		       s.overall_score, s.scored_at, s.updated_at,
		       (SELECT COUNT(*) FROM %s m WHERE m.subject_id = s.subject_id)
		FROM %s s ORDER BY s.subject_id`, s.table(subjectMetricsTable), s.table(subjectsTable))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []schema.SubjectScoreRecord
	for rows.Next() {
		var (
			rec          schema.SubjectScoreRecord
			kind, size   string
			cats, chosen string
			score        sql.NullInt32
			scoredAt     sql.NullInt64
			updatedAt    int64
		)
		if err := rows.Scan(&rec.SubjectID, &rec.OwnerID, &kind, &cats, &size, &chosen, &score, &scoredAt, &updatedAt, &rec.ReportedCount); err != nil {
			return nil, err
		}
		rec.Kind = schema.SubjectKind(kind)
		rec.BusinessSize = schema.BusinessSize(size)
		_ = json.Unmarshal([]byte(cats), &rec.Categories)
		var chosenKeys []string
		_ = json.Unmarshal([]byte(chosen), &chosenKeys)
		rec.ChosenMetrics = len(chosenKeys)
		if score.Valid {
			v := score.Int32
			rec.OverallScore = &v
		}
		if scoredAt.Valid {
			t := time.Unix(0, scoredAt.Int64).UTC()
			rec.ScoredAt = &t
		}
		rec.UpdatedAt = time.Unix(0, updatedAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetStatus returns status information about the store.
func (s *SQLStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(s.backend),
		Connected:  s.db != nil,
		TableSizes: make(map[string]int64),
	}

	for _, table := range []string{subjectsTable, subjectMetricsTable, peerRatingsTable} {
		var count int64
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", s.table(table))).Scan(&count); err != nil {
			return status, fmt.Errorf("failed to count %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}
	status.TotalSubjects = int(status.TableSizes[subjectsTable])
	status.TotalRatings = int(status.TableSizes[peerRatingsTable])

	if status.TotalRatings > 0 {
		var last int64
		if err := s.db.QueryRowContext(ctx, fmt.Sprintf("SELECT MAX(rated_at) FROM %s", s.table(peerRatingsTable))).Scan(&last); err != nil {
			return status, fmt.Errorf("failed to get last rating time: %w", err)
		}
		status.LastRatingAt = time.Unix(0, last).UTC()
	}
	return status, nil
}

// Clear removes all subjects, metric values and ratings.
func (s *SQLStore) Clear(ctx context.Context) error {
	for _, table := range []string{peerRatingsTable, subjectMetricsTable, subjectsTable} {
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", s.table(table))); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the underlying DB connection.
func (s *SQLStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// subjectUpsertQuery returns the UPSERT query for subjects. Any previous score is cleared.
func (s *SQLStore) subjectUpsertQuery() string {
	t := s.table(subjectsTable)
	switch s.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (subject_id, owner_id, kind, categories, business_size, chosen_metrics, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE owner_id = new.owner_id, kind = new.kind, categories = new.categories, business_size = new.business_size,
			chosen_metrics = new.chosen_metrics, overall_score = NULL, scored_at = NULL, updated_at = new.updated_at`, t)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (subject_id, owner_id, kind, categories, business_size, chosen_metrics, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (subject_id) DO UPDATE SET owner_id = EXCLUDED.owner_id, kind = EXCLUDED.kind, categories = EXCLUDED.categories,
			business_size = EXCLUDED.business_size, chosen_metrics = EXCLUDED.chosen_metrics, overall_score = NULL, scored_at = NULL, updated_at = EXCLUDED.updated_at`, t)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (subject_id, owner_id, kind, categories, business_size, chosen_metrics, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`, t)
	}
}

// metricUpsertQuery returns the UPSERT query for a single metric value.
func (s *SQLStore) metricUpsertQuery() string {
	t := s.table(subjectMetricsTable)
	switch s.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (subject_id, metric_key, raw_value) VALUES (?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE raw_value = new.raw_value`, t)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (subject_id, metric_key, raw_value) VALUES ($1, $2, $3)
			ON CONFLICT (subject_id, metric_key) DO UPDATE SET raw_value = EXCLUDED.raw_value`, t)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (subject_id, metric_key, raw_value) VALUES (?, ?, ?)`, t)
	}
}

// ratingUpsertQuery returns the UPSERT query keyed by (subject, metric, rater).
func (s *SQLStore) ratingUpsertQuery() string {
	t := s.table(peerRatingsTable)
	switch s.backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (subject_id, metric_key, rater_id, rating, rated_at) VALUES (?, ?, ?, ?, ?) AS new
			ON DUPLICATE KEY UPDATE rating = new.rating, rated_at = new.rated_at`, t)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`INSERT INTO %s (subject_id, metric_key, rater_id, rating, rated_at) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (subject_id, metric_key, rater_id) DO UPDATE SET rating = EXCLUDED.rating, rated_at = EXCLUDED.rated_at`, t)

	default: // SQLite
		return fmt.Sprintf(`INSERT OR REPLACE INTO %s (subject_id, metric_key, rater_id, rating, rated_at) VALUES (?, ?, ?, ?, ?)`, t)
	}
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
