package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/catherinevee/driftscan/internal/logger"
	"github.com/catherinevee/driftscan/internal/models"
)

const oumiModel = "oumi:latest"

// OumiClient talks to the Oumi hosted chat-completions API.
type OumiClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     logger.Logger
}

// NewOumiClient creates an Oumi client. Construction performs no network
// calls.
func NewOumiClient(apiKey, baseURL string) *OumiClient {
	if baseURL == "" {
		baseURL = "https://api.oumi.ai/v1"
	}
	return &OumiClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		log:     logger.New("oumi"),
	}
}

func (c *OumiClient) Name() string  { return "oumi" }
func (c *OumiClient) Model() string { return oumiModel }

// AnalyzeInfrastructure sends the full file content to Oumi and parses the
// structured JSON out of the chat reply.
func (c *OumiClient) AnalyzeInfrastructure(ctx context.Context, content string, fileType models.FileType) (*models.AIResult, error) {
	prompt := buildAnalysisPrompt(content, fileType)

	payload := map[string]interface{}{
		"model": oumiModel,
		"messages": []map[string]string{
			{"role": "system", "content": analysisSystemMessage},
			{"role": "user", "content": prompt},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return emptyResult(), fmt.Errorf("oumi: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return emptyResult(), fmt.Errorf("oumi: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.log.Debug("sending analysis request", logger.Int("content_length", len(content)))

	resp, err := c.client.Do(req)
	if err != nil {
		return emptyResult(), fmt.Errorf("oumi: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return emptyResult(), fmt.Errorf("oumi: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return emptyResult(), &StatusError{Provider: "oumi", Code: resp.StatusCode, Body: string(respBody)}
	}

	var oumiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(respBody, &oumiResp); err != nil {
		return emptyResult(), fmt.Errorf("oumi: decode response: %w", err)
	}
	if len(oumiResp.Choices) == 0 {
		return emptyResult(), fmt.Errorf("oumi: %w", ErrEmptyResponse)
	}

	result, err := ParseAnalysis(oumiResp.Choices[0].Message.Content)
	if err != nil {
		return emptyResult(), fmt.Errorf("oumi: %w", err)
	}
	return result, nil
}
