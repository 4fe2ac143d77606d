// Package ai contains the AI provider clients, the provider selector and
// the shared response-parsing pipeline. Every provider implements the same
// uniform contract: full-file infrastructure analysis returning a
// structured result. Provider internals never panic; failures come back as
// an empty result plus an error for the orchestrator to absorb.
package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/catherinevee/driftscan/internal/models"
)

// Provider is the uniform capability every analysis backend implements.
// Implementations must be safe for concurrent use and must honor context
// cancellation on the underlying call.
type Provider interface {
	// Name returns the provider identifier used in responses
	// (gemini, oumi, ollama).
	Name() string

	// Model returns the model identifier this client was constructed with.
	Model() string

	// AnalyzeInfrastructure sends the full file content for analysis and
	// returns a structured result. On failure it returns an empty,
	// well-formed result alongside the error; it never panics.
	AnalyzeInfrastructure(ctx context.Context, content string, fileType models.FileType) (*models.AIResult, error)
}

// Provider failure classes. The orchestrator treats all of them the same
// (degrade to the rule engine) but logs them distinctly.
var (
	// ErrUnparseable means the provider answered but no JSON analysis
	// could be recovered from its output.
	ErrUnparseable = errors.New("response not parseable as analysis JSON")

	// ErrEmptyResponse means the provider answered with no usable content.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// StatusError reports a non-success HTTP status from a provider endpoint.
type StatusError struct {
	Provider string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.Code, e.Body)
}

// emptyResult returns the well-formed zero result providers hand back on
// failure, so "provider returned nothing useful" and "provider absent"
// look the same downstream.
func emptyResult() *models.AIResult {
	return &models.AIResult{
		Issues:   []models.RawIssue{},
		Timeline: []models.RawTimelineEvent{},
	}
}

func checkContext(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
