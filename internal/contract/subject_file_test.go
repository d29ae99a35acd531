package contract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/huangsam/ers/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSubjectsSingleYAML(t *testing.T) {
	data := []byte(`
id: p1
owner_id: u1
kind: product
categories: [food]
business_size: small
chosen_metrics: [vegan_friendly, local_sourcing_pct, community_trust, certifications]
metrics:
  vegan_friendly: true
  local_sourcing_pct: 80
  community_trust: {average: 8.5, count: 12}
  certifications: [fairtrade]
`)
	subjects, err := ParseSubjects(data)
	require.NoError(t, err)
	require.Len(t, subjects, 1)

	s := subjects[0]
	assert.Equal(t, "p1", s.ID)
	assert.Equal(t, schema.ProductSubject, s.Kind)
	assert.Equal(t, schema.SmallSize, s.BusinessSize)
	assert.Equal(t, []string{"food"}, s.Categories)
	assert.Equal(t, true, s.Metrics["vegan_friendly"])
	assert.Equal(t, 80, s.Metrics["local_sourcing_pct"])
	assert.Equal(t, map[string]any{"average": 8.5, "count": 12}, s.Metrics["community_trust"])
	assert.Equal(t, []any{"fairtrade"}, s.Metrics["certifications"])
}

func TestParseSubjectsList(t *testing.T) {
	data := []byte(`[
  {"id": "a", "owner_id": "u1", "kind": "service"},
  {"id": "b", "owner_id": "u2", "kind": "user"}
]`)
	subjects, err := ParseSubjects(data)
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, "a", subjects[0].ID)
	assert.Equal(t, schema.UserSubject, subjects[1].Kind)
}

func TestParseSubjectsWrapper(t *testing.T) {
	data := []byte(`
subjects:
  - id: a
    owner_id: u1
    kind: product
  - id: b
    owner_id: u1
    kind: product
`)
	subjects, err := ParseSubjects(data)
	require.NoError(t, err)
	assert.Len(t, subjects, 2)
}

func TestParseSubjectsErrors(t *testing.T) {
	_, err := ParseSubjects([]byte(""))
	assert.Error(t, err)

	_, err = ParseSubjects([]byte("just a string"))
	assert.Error(t, err)

	_, err = ParseSubjects([]byte("[]"))
	assert.Error(t, err)
}

func TestLoadSubjectFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subject.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"id":"p9","owner_id":"u9","kind":"product"}`), 0o600))

	subjects, err := LoadSubjectFile(path)
	require.NoError(t, err)
	require.Len(t, subjects, 1)
	assert.Equal(t, "p9", subjects[0].ID)

	_, err = LoadSubjectFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	for _, verbose := range []bool{true, false} {
		logger, err := NewLogger(verbose)
		require.NoError(t, err)
		assert.NotNil(t, logger)
		assert.Equal(t, verbose, logger.Core().Enabled(-1)) // debug level
	}
}
