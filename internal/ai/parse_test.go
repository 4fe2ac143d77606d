package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysisBareJSON(t *testing.T) {
	text := `{"drift_score": 42, "issues": [{"id": "i-1", "title": "Open security group", "severity": "high", "resource": "aws_security_group.web"}], "timeline": [{"day": 0, "event": "deploy", "severity": "info"}]}`

	result, err := ParseAnalysis(text)
	require.NoError(t, err)
	assert.Equal(t, 42.0, result.DriftScore)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "i-1", result.Issues[0].ID)
	assert.Equal(t, "high", result.Issues[0].Severity)
	require.Len(t, result.Timeline, 1)
	assert.Equal(t, 0, result.Timeline[0].Day)
}

func TestParseAnalysisMarkdownFence(t *testing.T) {
	text := "Here is my analysis:\n```json\n{\"drift_score\": 10, \"issues\": [], \"timeline\": []}\n```\nHope that helps."

	result, err := ParseAnalysis(text)
	require.NoError(t, err)
	assert.Equal(t, 10.0, result.DriftScore)
	assert.Empty(t, result.Issues)
}

func TestParseAnalysisFenceNoLanguage(t *testing.T) {
	text := "```\n{\"drift_score\": 5, \"issues\": []}\n```"

	result, err := ParseAnalysis(text)
	require.NoError(t, err)
	assert.Equal(t, 5.0, result.DriftScore)
}

func TestParseAnalysisEmbeddedObject(t *testing.T) {
	// Prose around the object with no fence at all; the brace scanner has
	// to find it.
	text := `The configuration has problems. {"drift_score": 77, "issues": [{"title": "bad", "severity": "critical"}]} Let me know if you need more.`

	result, err := ParseAnalysis(text)
	require.NoError(t, err)
	assert.Equal(t, 77.0, result.DriftScore)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "critical", result.Issues[0].Severity)
}

func TestParseAnalysisNestedBraces(t *testing.T) {
	text := `{"drift_score": 1, "issues": [{"title": "x", "raw_detected_data": {"line": "a{b}c", "nested": {"k": "v"}}}]}`

	result, err := ParseAnalysis(text)
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "a{b}c", result.Issues[0].RawDetectedData["line"])
}

func TestParseAnalysisCoercions(t *testing.T) {
	// Numeric id, string drift score, float day, explanation instead of
	// description: all coerced, never rejected.
	text := `{"drift_score": "63.5", "issues": [{"id": 7, "explanation": "via explanation key", "severity": "major"}], "timeline": [{"day": 3.0, "event": "e", "severity": "warning"}]}`

	result, err := ParseAnalysis(text)
	require.NoError(t, err)
	assert.Equal(t, 63.5, result.DriftScore)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "7", result.Issues[0].ID)
	assert.Equal(t, "via explanation key", result.Issues[0].Description)
	require.Len(t, result.Timeline, 1)
	assert.Equal(t, 3, result.Timeline[0].Day)
}

func TestParseAnalysisMalformedEntriesSkipped(t *testing.T) {
	text := `{"issues": ["not-an-object", {"title": "real"}], "timeline": [42, {"day": 1, "event": "e"}]}`

	result, err := ParseAnalysis(text)
	require.NoError(t, err)
	require.Len(t, result.Issues, 1)
	assert.Equal(t, "real", result.Issues[0].Title)
	require.Len(t, result.Timeline, 1)
}

func TestParseAnalysisUnparseable(t *testing.T) {
	_, err := ParseAnalysis("I could not analyze this configuration, sorry.")
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParseAnalysisIrrelevantObject(t *testing.T) {
	// A JSON object without any analysis keys is not an analysis.
	_, err := ParseAnalysis(`{"status": "ok"}`)
	assert.ErrorIs(t, err, ErrUnparseable)
}

func TestParseAnalysisEmpty(t *testing.T) {
	_, err := ParseAnalysis("   \n  ")
	assert.ErrorIs(t, err, ErrEmptyResponse)
}
