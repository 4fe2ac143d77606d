package ai

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	ollama "github.com/JexSrs/go-ollama"

	"github.com/catherinevee/driftscan/internal/logger"
	"github.com/catherinevee/driftscan/internal/models"
)

// OllamaClient runs analysis against a locally hosted Ollama instance.
type OllamaClient struct {
	client *ollama.Ollama
	host   string
	model  string
	log    logger.Logger
}

// NewOllamaClient creates a client for the Ollama instance at host.
// Construction parses the URL and initializes local state only; no network
// call happens until AnalyzeInfrastructure.
func NewOllamaClient(host, model string) (*OllamaClient, error) {
	if host == "" {
		host = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	u, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("ollama: invalid host URL %q: %w", host, err)
	}
	return &OllamaClient{
		client: ollama.New(*u),
		host:   host,
		model:  model,
		log:    logger.New("ollama"),
	}, nil
}

func (c *OllamaClient) Name() string  { return "ollama" }
func (c *OllamaClient) Model() string { return c.model }

// AnalyzeInfrastructure sends the full file content to the local model.
// The underlying library call does not take a context, so it runs in a
// goroutine raced against ctx; on cancellation the goroutine is left to
// finish and its result discarded.
func (c *OllamaClient) AnalyzeInfrastructure(ctx context.Context, content string, fileType models.FileType) (*models.AIResult, error) {
	if err := checkContext(ctx); err != nil {
		return emptyResult(), err
	}

	prompt := buildAnalysisPrompt(content, fileType)

	c.log.Debug("sending analysis request",
		logger.String("model", c.model),
		logger.Int("content_length", len(content)))

	type generateResult struct {
		text string
		err  error
	}
	done := make(chan generateResult, 1)
	go func() {
		res, err := c.client.Generate(
			c.client.Generate.WithModel(c.model),
			c.client.Generate.WithSystem(analysisSystemMessage),
			c.client.Generate.WithPrompt(prompt),
		)
		if err != nil {
			done <- generateResult{err: fmt.Errorf("ollama: generate failed: %w", err)}
			return
		}
		if !res.Done || res.Response == "" {
			done <- generateResult{err: fmt.Errorf("ollama: %w", ErrEmptyResponse)}
			return
		}
		done <- generateResult{text: res.Response}
	}()

	select {
	case <-ctx.Done():
		return emptyResult(), ctx.Err()
	case r := <-done:
		if r.err != nil {
			return emptyResult(), r.err
		}
		result, err := ParseAnalysis(r.text)
		if err != nil {
			return emptyResult(), fmt.Errorf("ollama: %w", err)
		}
		return result, nil
	}
}

// ProbeOllama reports whether an Ollama instance answers at host. Called
// once at process start; the result becomes the read-only availability
// flag consumed by the selector.
func ProbeOllama(ctx context.Context, host string) bool {
	if host == "" {
		host = "http://localhost:11434"
	}
	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, host+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
