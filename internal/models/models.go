package models

// FileType identifies the kind of infrastructure file being analyzed.
type FileType string

const (
	FileTypeTerraform  FileType = "terraform"
	FileTypeKubernetes FileType = "kubernetes"
)

// Valid reports whether the file type is one of the supported values.
func (f FileType) Valid() bool {
	return f == FileTypeTerraform || f == FileTypeKubernetes
}

// Severity is the canonical issue severity scale.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// TimelineSeverity is the severity scale for timeline events. It is a
// different enum than issue severity: timeline events have "info" but no
// "critical".
type TimelineSeverity string

const (
	TimelineSeverityInfo   TimelineSeverity = "info"
	TimelineSeverityLow    TimelineSeverity = "low"
	TimelineSeverityMedium TimelineSeverity = "medium"
	TimelineSeverityHigh   TimelineSeverity = "high"
)

// AnalysisRequest is the inbound boundary payload. Constructed once at the
// API boundary and immutable afterward.
type AnalysisRequest struct {
	Content  string   `json:"content" validate:"required"`
	FileType FileType `json:"file_type" validate:"required,oneof=terraform kubernetes"`
	Model    string   `json:"model,omitempty"`
}

// RawIssue is the producer-agnostic issue record shared by the AI path and
// the rule engine. Fields may arrive empty or non-canonical from upstream
// producers; the analyzer normalizes them before assembly.
type RawIssue struct {
	ID              string                 `json:"id,omitempty"`
	Title           string                 `json:"title,omitempty"`
	Description     string                 `json:"description,omitempty"`
	Severity        string                 `json:"severity,omitempty"`
	Resource        string                 `json:"resource,omitempty"`
	FixSuggestion   string                 `json:"fix_suggestion,omitempty"`
	RawDetectedData map[string]interface{} `json:"raw_detected_data,omitempty"`
}

// Issue is the normalized, scored issue in the final response.
type Issue struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	Description   string   `json:"description"`
	Severity      Severity `json:"severity"`
	Resource      string   `json:"resource"`
	FixSuggestion string   `json:"fix_suggestion"`
	OumiScore     *float64 `json:"oumi_score,omitempty"`
}

// TimelineEvent is a predicted point-in-time annotation of drift
// progression.
type TimelineEvent struct {
	Day      int              `json:"day"`
	Event    string           `json:"event"`
	Severity TimelineSeverity `json:"severity"`
}

// RawTimelineEvent is a timeline event as emitted by an AI provider,
// before severity normalization.
type RawTimelineEvent struct {
	Day      int    `json:"day"`
	Event    string `json:"event"`
	Severity string `json:"severity"`
}

// AIResult is the normalized shape every provider and the rule-engine
// fallback agree on before downstream merging. DriftScore is on the [0,1]
// scale after validation; providers may emit 0-100.
type AIResult struct {
	DriftScore float64            `json:"drift_score"`
	Issues     []RawIssue         `json:"issues"`
	Timeline   []RawTimelineEvent `json:"timeline"`
}

// Empty reports whether the result carries no issues. The orchestrator
// treats an empty result the same as an absent provider.
func (r *AIResult) Empty() bool {
	return r == nil || len(r.Issues) == 0
}

// AnalysisResponse is the sole externally visible artifact of the
// pipeline.
type AnalysisResponse struct {
	DriftScore float64         `json:"drift_score"`
	Timeline   []TimelineEvent `json:"timeline"`
	Issues     []Issue         `json:"issues"`
	Provider   string          `json:"provider,omitempty"`
	Model      string          `json:"model,omitempty"`
}
