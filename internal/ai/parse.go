package ai

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/catherinevee/driftscan/internal/models"
)

// Models frequently wrap their JSON in markdown fences or prose, so the
// parse pipeline tries a fixed sequence of recovery strategies:
//
//  1. direct parse of the trimmed text
//  2. extraction from a fenced ```json block
//  3. brace-matched object scan across the whole text
//  4. fence cleanup and trim to the outermost braces, then retry
//
// Anything beyond these documented strategies is not attempted; if none
// yields an analysis object the result is ErrUnparseable.

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ParseAnalysis recovers a structured analysis result from raw model
// output.
func ParseAnalysis(text string) (*models.AIResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, ErrEmptyResponse
	}

	for _, candidate := range parseCandidates(trimmed) {
		if result, ok := decodeAnalysis(candidate); ok {
			return result, nil
		}
	}
	return nil, ErrUnparseable
}

func parseCandidates(text string) []string {
	candidates := []string{text}

	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}

	candidates = append(candidates, scanBalancedObjects(text)...)

	cleaned := strings.ReplaceAll(text, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		candidates = append(candidates, cleaned[start:end+1])
	}

	return candidates
}

// scanBalancedObjects returns every top-level brace-balanced substring,
// skipping braces inside JSON string literals.
func scanBalancedObjects(text string) []string {
	var objects []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			if depth > 0 {
				inString = true
			}
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start >= 0 {
					objects = append(objects, text[start:i+1])
					start = -1
				}
			}
		}
	}
	return objects
}

// decodeAnalysis attempts to interpret one candidate string as an analysis
// object. Field-level type mismatches are coerced, never rejected; the
// candidate only fails if it is not a JSON object carrying at least one of
// the expected keys.
func decodeAnalysis(candidate string) (*models.AIResult, bool) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return nil, false
	}

	_, hasScore := obj["drift_score"]
	_, hasIssues := obj["issues"]
	_, hasTimeline := obj["timeline"]
	if !hasScore && !hasIssues && !hasTimeline {
		return nil, false
	}

	result := emptyResult()
	result.DriftScore = toFloat(obj["drift_score"])

	if items, ok := obj["issues"].([]interface{}); ok {
		for _, item := range items {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			result.Issues = append(result.Issues, models.RawIssue{
				ID:              toString(entry["id"]),
				Title:           toString(entry["title"]),
				Description:     firstString(entry, "description", "explanation"),
				Severity:        firstString(entry, "severity", "final_severity"),
				Resource:        toString(entry["resource"]),
				FixSuggestion:   toString(entry["fix_suggestion"]),
				RawDetectedData: toMap(entry["raw_detected_data"]),
			})
		}
	}

	if items, ok := obj["timeline"].([]interface{}); ok {
		for _, item := range items {
			entry, ok := item.(map[string]interface{})
			if !ok {
				continue
			}
			result.Timeline = append(result.Timeline, models.RawTimelineEvent{
				Day:      int(toFloat(entry["day"])),
				Event:    toString(entry["event"]),
				Severity: toString(entry["severity"]),
			})
		}
	}

	return result, true
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(s)
	default:
		return ""
	}
}

func firstString(entry map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if s := toString(entry[key]); s != "" {
			return s
		}
	}
	return ""
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(n), 64); err == nil {
			return f
		}
	}
	return 0
}

func toMap(v interface{}) map[string]interface{} {
	if m, ok := v.(map[string]interface{}); ok {
		return m
	}
	return nil
}
