package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/catherinevee/driftscan/internal/ai"
	"github.com/catherinevee/driftscan/internal/analyzer"
	"github.com/catherinevee/driftscan/internal/config"
	"github.com/catherinevee/driftscan/internal/metrics"
	"github.com/catherinevee/driftscan/internal/models"
	"github.com/catherinevee/driftscan/internal/rules"
	"github.com/catherinevee/driftscan/internal/scoring"
)

type ruleEngineSelector struct{}

func (ruleEngineSelector) Select(string, config.AISettings) ai.Choice {
	return ai.Choice{Provider: "rule-engine"}
}

func newTestServer(t *testing.T, cfg *config.Manager) *Server {
	t.Helper()
	if cfg == nil {
		cfg = config.NewManager()
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	a := analyzer.New(analyzer.Options{
		Selector: ruleEngineSelector{},
		Rules:    rules.NewEngine(),
		Scorer:   scoring.TableScorer{},
		Metrics:  m,
		Settings: func() config.AISettings { return cfg.Get().AI },
	})
	return NewServer(a, cfg, m, reg)
}

func postAnalyze(t *testing.T, handler http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"content": "resource \"aws_security_group\" \"web\" {\n  cidr_blocks = [\"0.0.0.0/0\"]\n}", "file_type": "terraform"}`

	rec := postAnalyze(t, s.Handler(), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.AnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rule-engine", resp.Provider)
	assert.Empty(t, resp.Model)
	assert.GreaterOrEqual(t, resp.DriftScore, 0.0)
	assert.LessOrEqual(t, resp.DriftScore, 1.0)
	assert.NotEmpty(t, resp.Timeline)
}

func TestAnalyzeEndpointValidation(t *testing.T) {
	s := newTestServer(t, nil)
	handler := s.Handler()

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing content", `{"file_type": "terraform"}`, http.StatusUnprocessableEntity},
		{"bad file type", `{"content": "x", "file_type": "cloudformation"}`, http.StatusUnprocessableEntity},
		{"malformed json", `{"content": `, http.StatusBadRequest},
		{"unknown field", `{"content": "x", "file_type": "terraform", "bogus": true}`, http.StatusBadRequest},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := postAnalyze(t, handler, tc.body)
			assert.Equal(t, tc.code, rec.Code)

			var resp map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestAnalyzeMethodNotAllowed(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/analyze", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, "driftscan", resp.Service)
	// Defaults carry no credentials, so the AI path is disabled.
	assert.False(t, resp.AIEnabled)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	handler := s.Handler()

	postAnalyze(t, handler, `{"content": "x", "file_type": "terraform"}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "driftscan_analyses_total")
}

func TestRequestIDPropagation(t *testing.T) {
	s := newTestServer(t, nil)
	handler := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-abc-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "req-abc-123", rec.Header().Get("X-Request-ID"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimit(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte("server:\n  rate_limit_per_sec: 1\n  rate_limit_burst: 1\n")
	require.NoError(t, os.WriteFile(path, data, 0644))

	cfg := config.NewManager()
	require.NoError(t, cfg.Load(path))

	s := newTestServer(t, cfg)
	handler := s.Handler()

	body := `{"content": "x", "file_type": "terraform"}`
	first := postAnalyze(t, handler, body)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postAnalyze(t, handler, body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}
