package schema

import "time"

// SubjectScoreRecord represents a row of the subjects table with its last persisted score.
type SubjectScoreRecord struct {
	SubjectID     string
	OwnerID       string
	Kind          SubjectKind
	Categories    []string
	BusinessSize  BusinessSize
	ChosenMetrics int
	ReportedCount int
	OverallScore  *int32
	ScoredAt      *time.Time
	UpdatedAt     time.Time
}
