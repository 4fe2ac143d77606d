package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/catherinevee/driftscan/internal/logger"
	"github.com/catherinevee/driftscan/internal/models"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient talks to the Gemini generateContent API.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
	log     logger.Logger
}

// NewGeminiClient creates a Gemini client for the given model. Construction
// performs no network calls.
func NewGeminiClient(apiKey, model string) *GeminiClient {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GeminiClient{
		apiKey:  apiKey,
		model:   model,
		baseURL: geminiBaseURL,
		client:  &http.Client{},
		log:     logger.New("gemini"),
	}
}

func (c *GeminiClient) Name() string  { return "gemini" }
func (c *GeminiClient) Model() string { return c.model }

// AnalyzeInfrastructure sends the full file content to Gemini and parses
// the structured JSON out of its reply.
func (c *GeminiClient) AnalyzeInfrastructure(ctx context.Context, content string, fileType models.FileType) (*models.AIResult, error) {
	prompt := buildAnalysisPrompt(content, fileType)

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return emptyResult(), fmt.Errorf("gemini: marshal request: %w", err)
	}

	// The Gemini API takes the key in the query string, not a header.
	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return emptyResult(), fmt.Errorf("gemini: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.log.Debug("sending analysis request",
		logger.String("model", c.model),
		logger.Int("content_length", len(content)))

	resp, err := c.client.Do(req)
	if err != nil {
		return emptyResult(), fmt.Errorf("gemini: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return emptyResult(), fmt.Errorf("gemini: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return emptyResult(), &StatusError{Provider: "gemini", Code: resp.StatusCode, Body: string(respBody)}
	}

	// Minimal struct to pull out the generated text.
	var geminiResp struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return emptyResult(), fmt.Errorf("gemini: decode response: %w", err)
	}
	if geminiResp.Error.Message != "" {
		return emptyResult(), fmt.Errorf("gemini: API error: %s", geminiResp.Error.Message)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return emptyResult(), fmt.Errorf("gemini: %w", ErrEmptyResponse)
	}

	result, err := ParseAnalysis(geminiResp.Candidates[0].Content.Parts[0].Text)
	if err != nil {
		return emptyResult(), fmt.Errorf("gemini: %w", err)
	}
	return result, nil
}
