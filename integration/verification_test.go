//go:build basic

// Package integration contains end-to-end tests that run the ers binary.
// These tests are excluded from normal test runs due to build tags.
// To run these tests: go test -tags basic ./integration
// Database backed tests: go test -tags database ./integration
package integration

import (
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sqliteEnv keeps the store and cache in per-test files.
func sqliteEnv(t *testing.T) []string {
	dir := t.TempDir()
	return []string{
		"ERS_STORE_BACKEND=sqlite",
		"ERS_STORE_DB_CONNECT=" + filepath.Join(dir, "store.db"),
		"ERS_CACHE_BACKEND=sqlite",
		"ERS_CACHE_DB_CONNECT=" + filepath.Join(dir, "cache.db"),
		"ERS_COLOR=no",
	}
}

// TestScoreFileVerification checks the ranked JSON output of 'ers score'.
func TestScoreFileVerification(t *testing.T) {
	out := mustRunErs(t, sqliteEnv(t), "score", writeSubjects(t), "--output", "json")

	var rows []scoreRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)

	// repair-cafe: (0.5*1.5 + 1*1.1) / 2.6 = 0.71
	assert.Equal(t, "green-grocer", rows[0].SubjectID)
	assert.Equal(t, 80, rows[0].OverallScore)
	assert.Equal(t, "repair-cafe", rows[1].SubjectID)
	assert.Equal(t, 71, rows[1].OverallScore)
	assert.Equal(t, "Good", rows[1].Label)
}

// TestRatingFlowVerification runs the stateful commands against a SQLite store.
func TestRatingFlowVerification(t *testing.T) {
	env := sqliteEnv(t)

	mustRunErs(t, env, "subject", "put", writeSubjects(t))

	for _, rater := range []string{"r1", "r2", "r3", "r4", "r5", "r6", "r7", "r8", "r9"} {
		mustRunErs(t, env, "rate", "green-grocer", "community_trust", "10", "--rater", rater)
	}

	_, err := runErs(t, env, "rate", "green-grocer", "community_trust", "10", "--rater", "alice")
	assert.Error(t, err, "owners cannot rate their own subject")
	_, err = runErs(t, env, "rate", "green-grocer", "community_trust", "11", "--rater", "r1")
	assert.Error(t, err, "ratings above 10 are rejected")

	out := mustRunErs(t, env, "explain", "green-grocer", "--output", "json")
	var exp explanation
	require.NoError(t, json.Unmarshal([]byte(out), &exp))
	// Nine ratings of 10 give credibility log10(10) = 1
	assert.Equal(t, 85, exp.OverallScore)
	require.Len(t, exp.Rows, 3)

	out = mustRunErs(t, env, "subject", "set", "green-grocer", "local_sourcing_pct", "100", "--output", "json")
	require.NoError(t, json.Unmarshal([]byte(out), &exp))
	assert.Equal(t, 100, exp.OverallScore)

	out = mustRunErs(t, env, "rescore", "--output", "json")
	var rows []scoreRow
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, "green-grocer", rows[0].SubjectID)

	status := mustRunErs(t, env, "store", "status")
	assert.Contains(t, status, "Total Subjects: 2")
	assert.Contains(t, status, "Total Ratings: 9")

	cacheStatus := mustRunErs(t, env, "cache", "status")
	assert.Contains(t, cacheStatus, "Total Entries: 2")

	exportBase := filepath.Join(t.TempDir(), "ers-data")
	exported := mustRunErs(t, env, "store", "export", "--output-file", exportBase)
	assert.Contains(t, exported, "Exported 9 peer ratings")
	assert.FileExists(t, exportBase+".peer_ratings.parquet")
	assert.FileExists(t, exportBase+".subject_scores.parquet")

	mustRunErs(t, env, "store", "clear")
	status = mustRunErs(t, env, "store", "status")
	assert.Contains(t, status, "Total Subjects: 0")
}

// TestMetricsVerification checks that the metrics command lists the catalog.
func TestMetricsVerification(t *testing.T) {
	out := mustRunErs(t, sqliteEnv(t), "metrics", "--output", "csv")
	assert.True(t, strings.HasPrefix(out, "section,scope,key,label,kind,value"))
	assert.Contains(t, out, "metric,,community_trust,")
	assert.Contains(t, out, "category,electronics,repairability,,,1.80")
}
