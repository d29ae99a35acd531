package iocache

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/huangsam/ers/internal/contract"
	"github.com/huangsam/ers/schema"
)

// memorySubject is one stored subject guarded by its own lock.
type memorySubject struct {
	mu        sync.RWMutex
	subject   schema.ScoringSubject
	score     *int32
	scoredAt  *time.Time
	updatedAt time.Time
}

// memoryRatings holds the records of one (subject, metric) pair keyed by rater.
type memoryRatings struct {
	mu      sync.Mutex
	byRater map[string]schema.PeerRatingRecord
}

type ratingKey struct {
	subjectID string
	metricKey string
}

// MemoryStore is a process-local Store. Subjects and rating sets live in
// sync.Maps with per-entry locks, so writers on different keys never contend.
type MemoryStore struct {
	subjects sync.Map // string -> *memorySubject
	ratings  sync.Map // ratingKey -> *memoryRatings
}

var _ contract.Store = &MemoryStore{} // Compile-time check

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) lookup(subjectID string) (*memorySubject, error) {
	v, ok := m.subjects.Load(subjectID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", schema.ErrSubjectNotFound, subjectID)
	}
	return v.(*memorySubject), nil
}

// GetSubject implements the SubjectStore interface.
func (m *MemoryStore) GetSubject(_ context.Context, subjectID string) (schema.ScoringSubject, error) {
	entry, err := m.lookup(subjectID)
	if err != nil {
		return schema.ScoringSubject{}, err
	}
	entry.mu.RLock()
	defer entry.mu.RUnlock()
	return entry.subject.Clone(), nil
}

// PutSubject implements the SubjectStore interface.
func (m *MemoryStore) PutSubject(_ context.Context, subject schema.ScoringSubject) error {
	clone := subject.Clone()
	if clone.Metrics == nil {
		clone.Metrics = make(map[string]any)
	}
	maps.DeleteFunc(clone.Metrics, func(_ string, v any) bool { return v == nil })

	entry := &memorySubject{subject: clone, updatedAt: time.Now().UTC()}
	if prev, loaded := m.subjects.LoadOrStore(subject.ID, entry); loaded {
		existing := prev.(*memorySubject)
		existing.mu.Lock()
		existing.subject = clone
		existing.score = nil
		existing.scoredAt = nil
		existing.updatedAt = entry.updatedAt
		existing.mu.Unlock()
	}
	return nil
}

// SetMetricValue implements the SubjectStore interface.
func (m *MemoryStore) SetMetricValue(_ context.Context, subjectID, metricKey string, raw any) error {
	entry, err := m.lookup(subjectID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()

	// Copy on write so clones handed out earlier stay stable
	metrics := maps.Clone(entry.subject.Metrics)
	if metrics == nil {
		metrics = make(map[string]any)
	}
	if raw == nil {
		delete(metrics, metricKey)
	} else {
		metrics[metricKey] = raw
	}
	entry.subject.Metrics = metrics
	return nil
}

// SaveScore implements the SubjectStore interface.
func (m *MemoryStore) SaveScore(_ context.Context, subjectID string, score int, computedAt time.Time) error {
	entry, err := m.lookup(subjectID)
	if err != nil {
		return err
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	v := int32(score)
	t := computedAt.UTC()
	entry.score = &v
	entry.scoredAt = &t
	return nil
}

// ListSubjectIDs implements the SubjectStore interface.
func (m *MemoryStore) ListSubjectIDs(_ context.Context) ([]string, error) {
	var ids []string
	m.subjects.Range(func(k, _ any) bool {
		ids = append(ids, k.(string))
		return true
	})
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) ratingSet(subjectID, metricKey string) *memoryRatings {
	v, _ := m.ratings.LoadOrStore(ratingKey{subjectID, metricKey}, &memoryRatings{byRater: make(map[string]schema.PeerRatingRecord)})
	return v.(*memoryRatings)
}

// UpsertRating implements the RatingStore interface.
func (m *MemoryStore) UpsertRating(_ context.Context, rec schema.PeerRatingRecord) error {
	set := m.ratingSet(rec.SubjectID, rec.MetricKey)
	set.mu.Lock()
	defer set.mu.Unlock()
	set.byRater[rec.RaterID] = rec
	return nil
}

// ListRatings implements the RatingStore interface.
func (m *MemoryStore) ListRatings(_ context.Context, subjectID, metricKey string) ([]schema.PeerRatingRecord, error) {
	v, ok := m.ratings.Load(ratingKey{subjectID, metricKey})
	if !ok {
		return nil, nil
	}
	set := v.(*memoryRatings)
	set.mu.Lock()
	defer set.mu.Unlock()
	return sortedRecords(set.byRater), nil
}

func sortedRecords(byRater map[string]schema.PeerRatingRecord) []schema.PeerRatingRecord {
	raters := slices.Sorted(maps.Keys(byRater))
	out := make([]schema.PeerRatingRecord, 0, len(raters))
	for _, r := range raters {
		out = append(out, byRater[r])
	}
	return out
}

// ListAllRatings implements the Exporter interface.
func (m *MemoryStore) ListAllRatings(_ context.Context) ([]schema.PeerRatingRecord, error) {
	var out []schema.PeerRatingRecord
	m.ratings.Range(func(_, v any) bool {
		set := v.(*memoryRatings)
		set.mu.Lock()
		out = append(out, sortedRecords(set.byRater)...)
		set.mu.Unlock()
		return true
	})
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].SubjectID != out[j].SubjectID {
			return out[i].SubjectID < out[j].SubjectID
		}
		return out[i].MetricKey < out[j].MetricKey
	})
	return out, nil
}

// ListSubjectScores implements the Exporter interface.
func (m *MemoryStore) ListSubjectScores(ctx context.Context) ([]schema.SubjectScoreRecord, error) {
	ids, _ := m.ListSubjectIDs(ctx)
	out := make([]schema.SubjectScoreRecord, 0, len(ids))
	for _, id := range ids {
		entry, err := m.lookup(id)
		if err != nil {
			continue
		}
		entry.mu.RLock()
		out = append(out, schema.SubjectScoreRecord{
			SubjectID:     entry.subject.ID,
			OwnerID:       entry.subject.OwnerID,
			Kind:          entry.subject.Kind,
			Categories:    slices.Clone(entry.subject.Categories),
			BusinessSize:  entry.subject.BusinessSize,
			ChosenMetrics: len(entry.subject.ChosenMetrics),
			ReportedCount: len(entry.subject.Metrics),
			OverallScore:  entry.score,
			ScoredAt:      entry.scoredAt,
			UpdatedAt:     entry.updatedAt,
		})
		entry.mu.RUnlock()
	}
	return out, nil
}

// GetStatus returns status information about the store.
func (m *MemoryStore) GetStatus(ctx context.Context) (schema.StoreStatus, error) {
	status := schema.StoreStatus{
		Backend:    string(schema.MemoryBackend),
		Connected:  true,
		TableSizes: make(map[string]int64),
	}
	ids, _ := m.ListSubjectIDs(ctx)
	status.TotalSubjects = len(ids)

	ratings, _ := m.ListAllRatings(ctx)
	status.TotalRatings = len(ratings)
	for _, r := range ratings {
		if r.Timestamp.After(status.LastRatingAt) {
			status.LastRatingAt = r.Timestamp
		}
	}
	status.TableSizes[subjectsTable] = int64(status.TotalSubjects)
	status.TableSizes[peerRatingsTable] = int64(status.TotalRatings)
	return status, nil
}

// Clear removes everything from the store.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.subjects.Clear()
	m.ratings.Clear()
	return nil
}

// Close implements the Store interface.
func (m *MemoryStore) Close() error {
	return nil
}
