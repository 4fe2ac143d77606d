// Package scoring assigns each issue a secondary numeric severity score
// in [0,1]. The default implementation is a lightweight weighted feature
// model; the severity lookup table is both its prior and the universal
// fallback when scoring fails.
package scoring

import (
	"context"
	"fmt"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/catherinevee/driftscan/internal/logger"
	"github.com/catherinevee/driftscan/internal/models"
)

// Scorer scores a single issue. Implementations must not panic; a
// returned error makes the caller fall back to the severity table for
// that one issue.
type Scorer interface {
	Score(ctx context.Context, issue models.RawIssue) (float64, error)
}

// severityTable is the fallback severity-to-score mapping.
var severityTable = map[models.Severity]float64{
	models.SeverityLow:      0.25,
	models.SeverityMedium:   0.50,
	models.SeverityHigh:     0.75,
	models.SeverityCritical: 0.95,
}

// TableScore maps a raw severity string to its table score. Unrecognized
// severities normalize to medium first.
func TableScore(severity string) float64 {
	return severityTable[models.NormalizeSeverity(severity)]
}

// TableScorer scores purely from the severity table.
type TableScorer struct{}

func (TableScorer) Score(_ context.Context, issue models.RawIssue) (float64, error) {
	return TableScore(issue.Severity), nil
}

// Weights holds the trained feature weights for the model scorer.
type Weights struct {
	Bias     float64            `yaml:"bias"`
	Severity float64            `yaml:"severity"`
	Keywords map[string]float64 `yaml:"keywords"`
}

// defaultWeights approximate the behavior of the trained scorer: severity
// dominates, with security-signal keywords pushing the score up.
func defaultWeights() Weights {
	return Weights{
		Bias:     -2.2,
		Severity: 4.4,
		Keywords: map[string]float64{
			"0.0.0.0/0":  0.9,
			"secret":     0.8,
			"password":   0.8,
			"privileged": 0.9,
			"hostpath":   0.5,
			"public":     0.4,
			"unencrypt":  0.6,
			"exposed":    0.5,
			":latest":    0.2,
			"drift":      0.2,
		},
	}
}

// WeightScorer is a logistic model over issue features. It is
// deterministic and never performs I/O at scoring time.
type WeightScorer struct {
	weights Weights
	log     logger.Logger
}

// NewWeightScorer builds a scorer from the given weights file. An empty
// path uses the built-in defaults.
func NewWeightScorer(weightsFile string) (*WeightScorer, error) {
	s := &WeightScorer{
		weights: defaultWeights(),
		log:     logger.New("scoring"),
	}
	if weightsFile == "" {
		return s, nil
	}

	data, err := os.ReadFile(weightsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}
	var w Weights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse weights file: %w", err)
	}
	if w.Severity == 0 {
		return nil, fmt.Errorf("weights file %s has zero severity weight", weightsFile)
	}
	s.weights = w
	return s, nil
}

// Score computes the logistic score for one issue.
func (s *WeightScorer) Score(ctx context.Context, issue models.RawIssue) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	base := TableScore(issue.Severity)
	signal := s.weights.Bias + s.weights.Severity*base

	text := strings.ToLower(issue.Title + " " + issue.Description + " " + issue.Resource)
	for keyword, weight := range s.weights.Keywords {
		if strings.Contains(text, keyword) {
			signal += weight
		}
	}

	score := 1.0 / (1.0 + math.Exp(-signal))
	return math.Max(0, math.Min(1, score)), nil
}
