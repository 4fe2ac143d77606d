// Package analyzer orchestrates a full drift analysis: provider
// selection, the AI call, rule-engine fallback, per-issue scoring and
// final response assembly. Analyze never returns an error to its
// caller; every failure degrades to the rule engine.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/catherinevee/driftscan/internal/ai"
	"github.com/catherinevee/driftscan/internal/config"
	"github.com/catherinevee/driftscan/internal/logger"
	"github.com/catherinevee/driftscan/internal/metrics"
	"github.com/catherinevee/driftscan/internal/models"
	"github.com/catherinevee/driftscan/internal/rules"
	"github.com/catherinevee/driftscan/internal/scoring"
)

const (
	defaultTimeout       = 120 * time.Second
	defaultFixSuggestion = "Review and fix the configuration issue."
	defaultIssueTitle    = "Infrastructure Issue"
	defaultResource      = "unknown"

	// scoreWorkers bounds the per-issue scoring fan-out.
	scoreWorkers = 4
)

// ProviderSelector resolves a requested model plus environment settings
// to a provider choice.
type ProviderSelector interface {
	Select(requestedModel string, env config.AISettings) ai.Choice
}

// RuleDetector is the deterministic fallback detector.
type RuleDetector interface {
	Detect(content string, fileType models.FileType) []rules.Issue
}

// Options carries the collaborators the analyzer is assembled from.
// Every field except Settings may be nil-tolerant fakes in tests.
type Options struct {
	Selector ProviderSelector
	Rules    RuleDetector
	Scorer   scoring.Scorer
	Metrics  *metrics.Metrics

	// Settings returns the current AI environment. Called once per
	// request so config reloads take effect without restarting.
	Settings func() config.AISettings
}

// Analyzer runs the analysis pipeline. Safe for concurrent use; each
// request carries its own state.
type Analyzer struct {
	selector ProviderSelector
	rules    RuleDetector
	scorer   scoring.Scorer
	metrics  *metrics.Metrics
	settings func() config.AISettings
	log      logger.Logger
}

// New assembles an analyzer from its collaborators.
func New(opts Options) *Analyzer {
	settings := opts.Settings
	if settings == nil {
		settings = func() config.AISettings { return config.DefaultConfig().AI }
	}
	return &Analyzer{
		selector: opts.Selector,
		rules:    opts.Rules,
		scorer:   opts.Scorer,
		metrics:  opts.Metrics,
		settings: settings,
		log:      logger.New("analyzer"),
	}
}

// Analyze runs one full analysis. It always returns a complete,
// well-formed response; AI failures, scorer failures and malformed
// provider output all degrade instead of propagating.
func (a *Analyzer) Analyze(ctx context.Context, req models.AnalysisRequest) *models.AnalysisResponse {
	started := time.Now()
	log := a.log.WithContext(ctx)

	env := a.settings()
	choice := a.selector.Select(req.Model, env)

	log.Info("starting analysis",
		logger.String("file_type", string(req.FileType)),
		logger.String("provider", choice.Provider),
		logger.String("model", choice.Model),
		logger.Int("content_bytes", len(req.Content)))

	var (
		issues      []models.RawIssue
		rawTimeline []models.RawTimelineEvent
		aiScore     float64
		aiScoreSet  bool
		provider    = choice.Provider
		model       = choice.Model
	)

	if choice.Client != nil {
		result := a.callProvider(ctx, choice, req, env.Timeout)
		if !result.Empty() {
			issues = result.Issues
			rawTimeline = result.Timeline
			aiScore = result.DriftScore
			aiScoreSet = true
		}
	}

	if !aiScoreSet {
		// AI disabled, failed, or produced nothing usable.
		provider = ai.ProviderRuleEngine
		model = ""
		detected := a.rules.Detect(req.Content, req.FileType)
		issues = convertRuleIssues(detected)
		log.Info("rule engine fallback",
			logger.Int("issues", len(issues)))
	}

	scores := a.scoreIssues(ctx, issues)
	final := assembleIssues(issues, scores)

	var driftScore float64
	if aiScoreSet {
		driftScore = aiScore
	} else {
		driftScore = computeDriftScore(final)
	}
	driftScore = clamp01(driftScore)

	var timeline []models.TimelineEvent
	if aiScoreSet {
		timeline = normalizeTimeline(rawTimeline)
	} else {
		timeline = synthesizeTimeline(final)
	}

	a.metrics.ObserveAnalysis(provider, string(req.FileType), driftScore, len(final), time.Since(started))
	log.Info("analysis complete",
		logger.String("provider", provider),
		logger.Float64("drift_score", driftScore),
		logger.Int("issues", len(final)),
		logger.Duration("elapsed", time.Since(started)))

	return &models.AnalysisResponse{
		DriftScore: driftScore,
		Timeline:   timeline,
		Issues:     final,
		Provider:   provider,
		Model:      model,
	}
}

// callProvider invokes the AI client under the configured timeout and
// returns a validated result. Any failure comes back as an empty result.
func (a *Analyzer) callProvider(ctx context.Context, choice ai.Choice, req models.AnalysisRequest, timeout time.Duration) *models.AIResult {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	started := time.Now()
	result, err := choice.Client.AnalyzeInfrastructure(callCtx, req.Content, req.FileType)
	elapsed := time.Since(started)
	if err != nil {
		a.metrics.ObserveProviderCall(choice.Provider, "error", elapsed)
		a.metrics.ObserveProviderFailure(choice.Provider, failureReason(err))
		a.log.WithContext(ctx).Warn("ai analysis failed, falling back to rule engine",
			logger.String("provider", choice.Provider),
			logger.Error(err))
		return nil
	}
	a.metrics.ObserveProviderCall(choice.Provider, "ok", elapsed)
	return validateAIResult(result)
}

func failureReason(err error) string {
	var statusErr *ai.StatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.As(err, &statusErr):
		return fmt.Sprintf("status_%d", statusErr.Code)
	case errors.Is(err, ai.ErrUnparseable):
		return "unparseable"
	case errors.Is(err, ai.ErrEmptyResponse):
		return "empty"
	default:
		return "error"
	}
}

// validateAIResult coerces a provider result into the internally trusted
// shape: nil slices become empty, a 0-100 score is rescaled to 0-1 and
// clamped.
func validateAIResult(result *models.AIResult) *models.AIResult {
	if result == nil {
		return nil
	}
	if result.Issues == nil {
		result.Issues = []models.RawIssue{}
	}
	if result.Timeline == nil {
		result.Timeline = []models.RawTimelineEvent{}
	}
	if result.DriftScore > 1 {
		result.DriftScore = result.DriftScore / 100
	}
	result.DriftScore = clamp01(result.DriftScore)
	return result
}

// scoreIssues attaches a numeric score to every issue, preserving the
// producer's ordering. Issues score independently; one failing scorer
// call degrades that single issue to the severity table.
func (a *Analyzer) scoreIssues(ctx context.Context, issues []models.RawIssue) []float64 {
	scores := make([]float64, len(issues))
	if len(issues) == 0 {
		return scores
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(scoreWorkers)
	for i := range issues {
		g.Go(func() error {
			score, err := a.scorer.Score(gctx, issues[i])
			if err != nil {
				a.log.Debug("issue scoring failed, using severity table",
					logger.String("issue", issues[i].Title),
					logger.Error(err))
				score = scoring.TableScore(issues[i].Severity)
			}
			scores[i] = clamp01(score)
			return nil
		})
	}
	// Workers never return errors; degradation happens per issue.
	_ = g.Wait()
	return scores
}

// convertRuleIssues reshapes rule-engine findings into the shared raw
// issue form the scoring and assembly stages expect.
func convertRuleIssues(detected []rules.Issue) []models.RawIssue {
	issues := make([]models.RawIssue, 0, len(detected))
	for i, d := range detected {
		id := d.RuleID
		if id == "" {
			id = fmt.Sprintf("rule-%03d", i+1)
		}
		resource := d.Resource
		if resource == "" {
			resource = defaultResource
		}
		issues = append(issues, models.RawIssue{
			ID:              id,
			Title:           d.Title,
			Description:     d.Description,
			Severity:        string(d.Severity),
			Resource:        resource,
			FixSuggestion:   defaultFixSuggestion,
			RawDetectedData: d.RawDetectedData,
		})
	}
	return issues
}

// assembleIssues normalizes severities and defaults missing fields,
// producing the externally visible issue list.
func assembleIssues(issues []models.RawIssue, scores []float64) []models.Issue {
	final := make([]models.Issue, 0, len(issues))
	for i, issue := range issues {
		id := issue.ID
		if id == "" {
			id = fmt.Sprintf("issue-%03d", i+1)
		}
		title := issue.Title
		if title == "" {
			title = defaultIssueTitle
		}
		resource := issue.Resource
		if resource == "" {
			resource = defaultResource
		}
		fix := issue.FixSuggestion
		if fix == "" {
			fix = defaultFixSuggestion
		}
		score := scores[i]
		final = append(final, models.Issue{
			ID:            id,
			Title:         title,
			Description:   issue.Description,
			Severity:      models.NormalizeSeverity(issue.Severity),
			Resource:      resource,
			FixSuggestion: fix,
			OumiScore:     &score,
		})
	}
	return final
}

// normalizeTimeline coerces provider timeline events onto the canonical
// timeline severity scale.
func normalizeTimeline(raw []models.RawTimelineEvent) []models.TimelineEvent {
	timeline := make([]models.TimelineEvent, 0, len(raw))
	for _, event := range raw {
		timeline = append(timeline, models.TimelineEvent{
			Day:      event.Day,
			Event:    event.Event,
			Severity: models.NormalizeTimelineSeverity(event.Severity),
		})
	}
	return timeline
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
