package models

import "strings"

// severityRank orders issue severities for sorting, highest first.
var severityRank = map[Severity]int{
	SeverityCritical: 4,
	SeverityHigh:     3,
	SeverityMedium:   2,
	SeverityLow:      1,
}

// Rank returns the sort weight of a severity (critical highest). Unknown
// severities rank as medium.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SeverityMedium]
}

// NormalizeSeverity coerces an upstream severity string into the canonical
// issue scale. Already-canonical values pass through unchanged. Common
// producer variations are mapped ("info"/"minor" down to low,
// "major"/"severe" up to high); anything unrecognized becomes medium.
func NormalizeSeverity(raw string) Severity {
	switch s := Severity(strings.ToLower(strings.TrimSpace(raw))); s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return s
	case "info", "minor":
		return SeverityLow
	case "major", "severe":
		return SeverityHigh
	default:
		return SeverityMedium
	}
}

// NormalizeTimelineSeverity coerces an upstream severity string into the
// timeline scale. "warning"/"warn" map to medium, "critical"/"error" to
// high; anything unrecognized becomes info.
func NormalizeTimelineSeverity(raw string) TimelineSeverity {
	switch s := TimelineSeverity(strings.ToLower(strings.TrimSpace(raw))); s {
	case TimelineSeverityInfo, TimelineSeverityLow, TimelineSeverityMedium, TimelineSeverityHigh:
		return s
	case "warning", "warn":
		return TimelineSeverityMedium
	case "critical", "error":
		return TimelineSeverityHigh
	default:
		return TimelineSeverityInfo
	}
}

// TimelineSeverityFor maps an issue severity onto the timeline scale.
// Critical has no timeline equivalent and maps to high.
func TimelineSeverityFor(s Severity) TimelineSeverity {
	if s == SeverityCritical {
		return TimelineSeverityHigh
	}
	return TimelineSeverity(s)
}
