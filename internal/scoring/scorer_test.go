package scoring

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/driftscan/internal/models"
)

func TestTableScore(t *testing.T) {
	assert.Equal(t, 0.25, TableScore("low"))
	assert.Equal(t, 0.50, TableScore("medium"))
	assert.Equal(t, 0.75, TableScore("high"))
	assert.Equal(t, 0.95, TableScore("critical"))
	// Unrecognized severities normalize to medium.
	assert.Equal(t, 0.50, TableScore("bogus"))
	assert.Equal(t, 0.50, TableScore(""))
}

func TestTableScorer(t *testing.T) {
	score, err := TableScorer{}.Score(context.Background(), models.RawIssue{Severity: "critical"})
	require.NoError(t, err)
	assert.Equal(t, 0.95, score)
}

func TestWeightScorerRange(t *testing.T) {
	s, err := NewWeightScorer("")
	require.NoError(t, err)

	issues := []models.RawIssue{
		{Severity: "low", Title: "Minor style issue"},
		{Severity: "medium", Title: "Container Using :latest Image Tag"},
		{Severity: "high", Title: "Unrestricted Security Group Rule", Description: "allows 0.0.0.0/0"},
		{Severity: "critical", Title: "Hardcoded Secret", Description: "password committed"},
	}
	for _, issue := range issues {
		score, err := s.Score(context.Background(), issue)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, score, 0.0)
		assert.LessOrEqual(t, score, 1.0)
	}
}

func TestWeightScorerOrdersBySeverity(t *testing.T) {
	s, err := NewWeightScorer("")
	require.NoError(t, err)

	low, err := s.Score(context.Background(), models.RawIssue{Severity: "low", Title: "x"})
	require.NoError(t, err)
	critical, err := s.Score(context.Background(), models.RawIssue{Severity: "critical", Title: "x"})
	require.NoError(t, err)
	assert.Greater(t, critical, low)
}

func TestWeightScorerKeywordSignal(t *testing.T) {
	s, err := NewWeightScorer("")
	require.NoError(t, err)

	plain, err := s.Score(context.Background(), models.RawIssue{Severity: "high", Title: "Some issue"})
	require.NoError(t, err)
	loaded, err := s.Score(context.Background(), models.RawIssue{
		Severity:    "high",
		Title:       "Privileged container",
		Description: "exposed to 0.0.0.0/0",
	})
	require.NoError(t, err)
	assert.Greater(t, loaded, plain)
}

func TestWeightScorerDeterministic(t *testing.T) {
	s, err := NewWeightScorer("")
	require.NoError(t, err)

	issue := models.RawIssue{Severity: "medium", Title: "Drift detected", Description: "replica drift"}
	first, err := s.Score(context.Background(), issue)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.Score(context.Background(), issue)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestWeightScorerFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	data := `
bias: -1.0
severity: 2.0
keywords:
  secret: 1.5
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	s, err := NewWeightScorer(path)
	require.NoError(t, err)
	assert.Equal(t, 2.0, s.weights.Severity)
	assert.Equal(t, 1.5, s.weights.Keywords["secret"])
}

func TestWeightScorerBadFile(t *testing.T) {
	_, err := NewWeightScorer(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "zero.yaml")
	require.NoError(t, os.WriteFile(path, []byte("bias: 0\nseverity: 0\n"), 0644))
	_, err = NewWeightScorer(path)
	assert.Error(t, err)
}

func TestWeightScorerCancelledContext(t *testing.T) {
	s, err := NewWeightScorer("")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Score(ctx, models.RawIssue{Severity: "low"})
	assert.Error(t, err)
}
