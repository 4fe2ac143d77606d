package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "8081", cfg.Server.Port)
	assert.Equal(t, "gemini-1.5-flash", cfg.AI.Gemini.Model)
	assert.Equal(t, "http://localhost:11434", cfg.AI.Ollama.Host)
	assert.Equal(t, "llama3:latest", cfg.AI.Ollama.Model)
	assert.Equal(t, 120*time.Second, cfg.AI.Timeout)
	assert.False(t, cfg.AI.Ollama.Available)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftscan.yaml")
	data := `
server:
  port: "9000"
ai:
  provider: gemini
  gemini:
    api_key: test-key
    model: gemini-2.0-flash
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))

	m := NewManager()
	require.NoError(t, m.Load(path))

	cfg := m.Get()
	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "gemini", cfg.AI.Provider)
	assert.Equal(t, "test-key", cfg.AI.Gemini.APIKey)
	assert.Equal(t, "gemini-2.0-flash", cfg.AI.Gemini.Model)
	// Untouched sections keep defaults.
	assert.Equal(t, "llama3:latest", cfg.AI.Ollama.Model)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(filepath.Join(t.TempDir(), "absent.yaml")))
	assert.Equal(t, "8081", m.Get().Server.Port)
}

func TestLoadInvalidProvider(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "driftscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ai:\n  provider: bogus\n"), 0644))

	m := NewManager()
	assert.Error(t, m.Load(path))
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AI_PROVIDER", "local")
	t.Setenv("OLLAMA_MODEL", "qwen2.5:14b")
	t.Setenv("GEMINI_API_KEY", "env-key")
	t.Setenv("AI_TIMEOUT_SECONDS", "30")

	m := NewManager()
	require.NoError(t, m.Load(""))

	cfg := m.Get()
	assert.Equal(t, "local", cfg.AI.Provider)
	assert.Equal(t, "qwen2.5:14b", cfg.AI.Ollama.Model)
	assert.Equal(t, "env-key", cfg.AI.Gemini.APIKey)
	assert.Equal(t, 30*time.Second, cfg.AI.Timeout)
}

func TestSetOllamaAvailable(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(""))

	m.SetOllamaAvailable(true)
	assert.True(t, m.Get().AI.Ollama.Available)

	// Get returns a copy; mutating it must not affect the manager.
	cfg := m.Get()
	cfg.AI.Ollama.Available = false
	assert.True(t, m.Get().AI.Ollama.Available)
}
