package schema

import "time"

// CacheStatus represents the status of the score cache.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"total_entries"`
	LastEntryTime   time.Time `json:"last_entry_time"`
	OldestEntryTime time.Time `json:"oldest_entry_time"`
	TableSizeBytes  int64     `json:"table_size_bytes"`
}

// StoreStatus represents the status of the subject and rating store.
type StoreStatus struct {
	Backend       string           `json:"backend"`
	Connected     bool             `json:"connected"`
	TotalSubjects int              `json:"total_subjects"`
	TotalRatings  int              `json:"total_ratings"`
	LastRatingAt  time.Time        `json:"last_rating_at"`
	TableSizes    map[string]int64 `json:"table_sizes"`
}
