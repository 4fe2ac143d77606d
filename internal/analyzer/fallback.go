package analyzer

import (
	"fmt"
	"math"
	"sort"

	"github.com/catherinevee/driftscan/internal/models"
)

// severityWeights is the per-issue contribution used when no scorer
// output is attached.
var severityWeights = map[models.Severity]float64{
	models.SeverityCritical: 1.0,
	models.SeverityHigh:     0.7,
	models.SeverityMedium:   0.4,
	models.SeverityLow:      0.2,
}

// timelineDayOffsets spaces synthesized events out by severity. Offsets
// accumulate across issues rather than resetting.
var timelineDayOffsets = map[models.Severity]int{
	models.SeverityCritical: 2,
	models.SeverityHigh:     5,
	models.SeverityMedium:   10,
	models.SeverityLow:      15,
}

// timelineTopIssues caps how many issues appear in a synthesized
// timeline.
const timelineTopIssues = 5

// computeDriftScore derives the overall drift score from the final
// issue list. Used only when the AI path supplied no score.
//
// More than three critical issues dominates everything else and maps to
// the 0.90-0.97 band. Otherwise per-issue weights are summed, scaled by
// a fixed normalization constant and pushed through a concave curve so
// moderate issue counts do not saturate near 1.0. A set of five or more
// medium issues with nothing above medium is pinned into [0.4, 0.6].
func computeDriftScore(issues []models.Issue) float64 {
	if len(issues) == 0 {
		return 0
	}

	var criticalCount, highCount, mediumCount int
	for _, issue := range issues {
		switch issue.Severity {
		case models.SeverityCritical:
			criticalCount++
		case models.SeverityHigh:
			highCount++
		case models.SeverityMedium:
			mediumCount++
		}
	}

	if criticalCount > 3 {
		score := 0.9 + 0.01*math.Min(float64(criticalCount-3), 7)
		return math.Min(score, 1.0)
	}

	var totalWeight float64
	for _, issue := range issues {
		if issue.OumiScore != nil {
			totalWeight += *issue.OumiScore
			continue
		}
		totalWeight += severityWeights[issue.Severity]
	}

	const maxExpectedWeight = 10.0
	raw := math.Min(totalWeight/maxExpectedWeight, 1.0)
	score := math.Min(math.Pow(raw, 0.7), 1.0)

	if mediumCount >= 5 && criticalCount == 0 && highCount == 0 {
		score = math.Max(0.4, math.Min(0.6, score))
	}

	return math.Round(score*100) / 100
}

// synthesizeTimeline builds a drift progression timeline when the AI
// path supplied none: a day-zero deployment event followed by one event
// per issue, highest severity first, at cumulative day offsets.
func synthesizeTimeline(issues []models.Issue) []models.TimelineEvent {
	if len(issues) == 0 {
		return []models.TimelineEvent{{
			Day:      0,
			Event:    "Infrastructure deployment completed successfully with no issues detected.",
			Severity: models.TimelineSeverityInfo,
		}}
	}

	sorted := make([]models.Issue, len(issues))
	copy(sorted, issues)
	// Stable keeps the producer's order among equal severities.
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Severity.Rank() > sorted[j].Severity.Rank()
	})
	if len(sorted) > timelineTopIssues {
		sorted = sorted[:timelineTopIssues]
	}

	timeline := []models.TimelineEvent{{
		Day:      0,
		Event:    "Initial infrastructure deployment detected",
		Severity: models.TimelineSeverityInfo,
	}}

	day := 0
	for _, issue := range sorted {
		day += timelineDayOffsets[issue.Severity]
		timeline = append(timeline, models.TimelineEvent{
			Day:      day,
			Event:    fmt.Sprintf("%s detected in %s", issue.Title, issue.Resource),
			Severity: models.TimelineSeverityFor(issue.Severity),
		})
	}
	return timeline
}
