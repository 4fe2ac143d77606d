// Package rules implements the deterministic pattern-matching rule engine
// used when no AI analysis is available. Rules are independent, stateless
// and perform no I/O; malformed input yields an empty or partial issue
// list, never an error.
package rules

import (
	"regexp"
	"strings"

	"github.com/catherinevee/driftscan/internal/logger"
	"github.com/catherinevee/driftscan/internal/models"
)

// Issue is a raw rule-engine finding before conversion to the canonical
// issue shape.
type Issue struct {
	RuleID          string                 `json:"rule_id"`
	Title           string                 `json:"title"`
	Description     string                 `json:"description"`
	Severity        models.Severity        `json:"severity"`
	Resource        string                 `json:"resource"`
	RawDetectedData map[string]interface{} `json:"raw_detected_data,omitempty"`
}

// Engine runs the per-file-type rule sets.
type Engine struct {
	log logger.Logger
}

// NewEngine creates a rule engine.
func NewEngine() *Engine {
	return &Engine{log: logger.New("rules")}
}

// Detect runs every rule for the given file type and aggregates findings.
// Rule order does not matter; rules share no state. Detect never panics,
// whatever the input.
func (e *Engine) Detect(content string, fileType models.FileType) (issues []Issue) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("rule engine panic recovered", logger.Any("panic", r))
			if issues == nil {
				issues = []Issue{}
			}
		}
	}()

	switch fileType {
	case models.FileTypeTerraform:
		return e.detectTerraform(content)
	case models.FileTypeKubernetes:
		return e.detectKubernetes(content)
	default:
		return []Issue{}
	}
}

// patternMatch is one regex hit with its line context.
type patternMatch struct {
	match   string
	line    string
	lineNum int
}

// findPattern searches content line by line and returns every match with
// its trimmed line and 1-based line number.
func findPattern(content string, re *regexp.Regexp) []patternMatch {
	var matches []patternMatch
	for lineNum, line := range strings.Split(content, "\n") {
		for _, m := range re.FindAllString(line, -1) {
			matches = append(matches, patternMatch{
				match:   m,
				line:    strings.TrimSpace(line),
				lineNum: lineNum + 1,
			})
		}
	}
	return matches
}
