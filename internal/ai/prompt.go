package ai

import (
	"fmt"

	"github.com/catherinevee/driftscan/internal/models"
)

// buildAnalysisPrompt builds the structured prompt shared by all
// providers. It asks for the exact JSON shape the parse pipeline expects:
// drift_score on a 0-100 scale, issues and a predicted timeline.
func buildAnalysisPrompt(content string, fileType models.FileType) string {
	return fmt.Sprintf(`You are an infrastructure reliability and drift analysis expert.
Analyze the provided %s configuration and respond ONLY in JSON.

Configuration:
`+"```"+`
%s
`+"```"+`

Respond with this EXACT JSON structure:
{
  "drift_score": 0-100,
  "issues": [
     {
        "id": "unique-id",
        "title": "Issue title",
        "description": "Detailed description",
        "severity": "low | medium | high | critical",
        "resource": "resource identifier",
        "fix_suggestion": "Actionable fix steps"
     }
  ],
  "timeline": [
     {"day": 0, "event": "Event description", "severity": "info|low|medium|high"}
  ]
}

Analysis Guidelines:
- Identify misconfigurations, security risks, anti-patterns, and drift indicators
- drift_score: 0-100 (0 = perfect, 100 = critical drift)
- severity: Use "critical" for security vulnerabilities, "high" for major issues
- timeline: Predict progressive effects of issues over time
- Provide realistic operational insights

Return ONLY valid JSON, no markdown, no code blocks.`, fileType, content)
}

const analysisSystemMessage = "You are an expert infrastructure drift analyst."
