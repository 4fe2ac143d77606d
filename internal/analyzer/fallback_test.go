package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/driftscan/internal/models"
)

func issuesWithSeverities(severities ...models.Severity) []models.Issue {
	issues := make([]models.Issue, 0, len(severities))
	for i, s := range severities {
		issues = append(issues, models.Issue{
			ID:       string(s) + "-" + string(rune('a'+i)),
			Title:    "Issue " + string(rune('A'+i)),
			Severity: s,
			Resource: "resource-" + string(rune('a'+i)),
		})
	}
	return issues
}

func TestComputeDriftScoreEmpty(t *testing.T) {
	assert.Equal(t, 0.0, computeDriftScore(nil))
	assert.Equal(t, 0.0, computeDriftScore([]models.Issue{}))
}

func TestComputeDriftScoreCriticalDominance(t *testing.T) {
	issues := issuesWithSeverities(
		models.SeverityCritical, models.SeverityCritical,
		models.SeverityCritical, models.SeverityCritical,
	)
	score := computeDriftScore(issues)
	assert.GreaterOrEqual(t, score, 0.91)
	assert.LessOrEqual(t, score, 1.0)

	// The band grows by 0.01 per extra critical issue and caps out.
	many := issuesWithSeverities(
		models.SeverityCritical, models.SeverityCritical, models.SeverityCritical,
		models.SeverityCritical, models.SeverityCritical, models.SeverityCritical,
		models.SeverityCritical, models.SeverityCritical, models.SeverityCritical,
		models.SeverityCritical, models.SeverityCritical, models.SeverityCritical,
	)
	assert.InDelta(t, 0.97, computeDriftScore(many), 1e-9)
}

func TestComputeDriftScoreMediumBand(t *testing.T) {
	issues := issuesWithSeverities(
		models.SeverityMedium, models.SeverityMedium, models.SeverityMedium,
		models.SeverityMedium, models.SeverityMedium,
	)
	score := computeDriftScore(issues)
	assert.GreaterOrEqual(t, score, 0.4)
	assert.LessOrEqual(t, score, 0.6)

	// One high issue disables the band.
	mixed := append(issues, issuesWithSeverities(models.SeverityHigh)...)
	mixedScore := computeDriftScore(mixed)
	assert.GreaterOrEqual(t, mixedScore, 0.0)
	assert.LessOrEqual(t, mixedScore, 1.0)
}

func TestComputeDriftScorePrefersPerIssueScores(t *testing.T) {
	low := 0.1
	issues := issuesWithSeverities(models.SeverityHigh, models.SeverityHigh)
	for i := range issues {
		issues[i].OumiScore = &low
	}
	withScores := computeDriftScore(issues)

	plain := issuesWithSeverities(models.SeverityHigh, models.SeverityHigh)
	withWeights := computeDriftScore(plain)

	// Scorer output of 0.1 per issue weighs less than the 0.7 table
	// weight for high severity.
	assert.Less(t, withScores, withWeights)
}

func TestComputeDriftScoreRounded(t *testing.T) {
	// Single low issue: weight 0.2, raw 0.02, curve ~0.0647, rounds to
	// two decimal places.
	issues := issuesWithSeverities(models.SeverityLow)
	assert.InDelta(t, 0.06, computeDriftScore(issues), 1e-9)
}

func TestSynthesizeTimelineClean(t *testing.T) {
	timeline := synthesizeTimeline(nil)
	require.Len(t, timeline, 1)
	assert.Equal(t, 0, timeline[0].Day)
	assert.Equal(t, models.TimelineSeverityInfo, timeline[0].Severity)
}

func TestSynthesizeTimelineDaysIncrease(t *testing.T) {
	// Producer order is medium, critical, high; synthesis re-sorts by
	// severity before assigning days.
	issues := issuesWithSeverities(models.SeverityMedium, models.SeverityCritical, models.SeverityHigh)
	timeline := synthesizeTimeline(issues)

	require.Len(t, timeline, 4)
	assert.Equal(t, 0, timeline[0].Day)
	for i := 1; i < len(timeline); i++ {
		assert.Greater(t, timeline[i].Day, timeline[i-1].Day)
	}

	// critical +2, then high +5, then medium +10, cumulative.
	assert.Equal(t, 2, timeline[1].Day)
	assert.Equal(t, 7, timeline[2].Day)
	assert.Equal(t, 17, timeline[3].Day)

	// Critical maps onto the timeline scale as high.
	assert.Equal(t, models.TimelineSeverityHigh, timeline[1].Severity)
	assert.Equal(t, models.TimelineSeverityHigh, timeline[2].Severity)
	assert.Equal(t, models.TimelineSeverityMedium, timeline[3].Severity)
}

func TestSynthesizeTimelineCapsAtTopFive(t *testing.T) {
	issues := issuesWithSeverities(
		models.SeverityLow, models.SeverityLow, models.SeverityLow,
		models.SeverityLow, models.SeverityLow, models.SeverityLow,
		models.SeverityLow,
	)
	timeline := synthesizeTimeline(issues)
	assert.Len(t, timeline, 6)
}

func TestSynthesizeTimelineStableWithinSeverity(t *testing.T) {
	issues := issuesWithSeverities(models.SeverityHigh, models.SeverityHigh)
	timeline := synthesizeTimeline(issues)
	require.Len(t, timeline, 3)
	assert.Contains(t, timeline[1].Event, "Issue A")
	assert.Contains(t, timeline[2].Event, "Issue B")
}
