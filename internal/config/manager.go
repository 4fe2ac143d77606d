package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/catherinevee/driftscan/internal/logger"
)

// Config represents the complete driftscan configuration.
type Config struct {
	Server  ServerSettings  `yaml:"server"`
	Logging logger.Config   `yaml:"logging"`
	AI      AISettings      `yaml:"ai"`
	Scoring ScoringSettings `yaml:"scoring"`
}

// ServerSettings represents HTTP server settings.
type ServerSettings struct {
	Port            string  `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
}

// AISettings represents AI provider settings.
type AISettings struct {
	// Provider is the environment-declared default provider
	// (gemini, oumi or local). Empty means probe in priority order.
	Provider string `yaml:"provider" validate:"omitempty,oneof=gemini oumi local"`

	Gemini GeminiSettings `yaml:"gemini"`
	Oumi   OumiSettings   `yaml:"oumi"`
	Ollama OllamaSettings `yaml:"ollama"`

	// Timeout bounds a single provider call. Remote and local models are
	// slow for full-file analysis, so this is deliberately generous.
	Timeout time.Duration `yaml:"timeout"`
}

// GeminiSettings represents Gemini cloud provider settings.
type GeminiSettings struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"`
}

// OumiSettings represents Oumi cloud provider settings.
type OumiSettings struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// OllamaSettings represents local Ollama provider settings.
type OllamaSettings struct {
	Host  string `yaml:"host"`
	Model string `yaml:"model"`

	// Available records the startup reachability probe. Read-only during
	// requests.
	Available bool `yaml:"-"`
}

// ScoringSettings represents severity scorer settings.
type ScoringSettings struct {
	// WeightsFile optionally points at a YAML file with trained feature
	// weights for the issue scorer. Empty means built-in defaults.
	WeightsFile string `yaml:"weights_file"`
}

// Manager handles configuration loading, environment overrides, validation
// and hot reloading.
type Manager struct {
	mu       sync.RWMutex
	config   *Config
	path     string
	watcher  *fsnotify.Watcher
	validate *validator.Validate
	log      logger.Logger
	onChange []func(*Config)
}

// NewManager creates a new configuration manager.
func NewManager() *Manager {
	return &Manager{
		config:   DefaultConfig(),
		validate: validator.New(),
		log:      logger.New("config"),
	}
}

// DefaultConfig returns the configuration defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerSettings{
			Port:            "8081",
			RateLimitPerSec: 20,
			RateLimitBurst:  40,
		},
		Logging: logger.Config{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		AI: AISettings{
			Gemini: GeminiSettings{Model: "gemini-1.5-flash"},
			Oumi:   OumiSettings{BaseURL: "https://api.oumi.ai/v1"},
			Ollama: OllamaSettings{Host: "http://localhost:11434", Model: "llama3:latest"},
			Timeout: 120 * time.Second,
		},
	}
}

// Load reads configuration from the given YAML file (optional), applies
// environment overrides and validates the result.
func (m *Manager) Load(path string) error {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return fmt.Errorf("failed to read config file: %w", err)
			}
			m.log.Warn("config file not found, using defaults", logger.String("path", path))
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := m.validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	m.mu.Lock()
	m.config = cfg
	m.path = path
	m.mu.Unlock()

	return nil
}

// applyEnvOverrides layers environment variables over file values. The env
// contract predates the YAML file, so env always wins.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DRIFTSCAN_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AI_PROVIDER"); v != "" {
		cfg.AI.Provider = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.AI.Gemini.APIKey = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		cfg.AI.Gemini.Model = v
	}
	if v := os.Getenv("OUMI_API_KEY"); v != "" {
		cfg.AI.Oumi.APIKey = v
	}
	if v := os.Getenv("OLLAMA_HOST"); v != "" {
		cfg.AI.Ollama.Host = v
	}
	if v := os.Getenv("OLLAMA_MODEL"); v != "" {
		cfg.AI.Ollama.Model = v
	}
	if v := os.Getenv("AI_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.AI.Timeout = time.Duration(secs) * time.Second
		}
	}
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	return &cfg
}

// SetOllamaAvailable records the startup reachability probe result.
func (m *Manager) SetOllamaAvailable(available bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.config.AI.Ollama.Available = available
}

// OnChange registers a callback invoked after a successful hot reload.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// Watch starts watching the config file for changes.
func (m *Manager) Watch() error {
	m.mu.RLock()
	path := m.path
	m.mu.RUnlock()
	if path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch config file: %w", err)
	}
	m.watcher = watcher

	go m.watchLoop()
	return nil
}

func (m *Manager) watchLoop() {
	for {
		select {
		case event, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			// Preserve probed flags across reloads.
			prev := m.Get()
			if err := m.Load(m.path); err != nil {
				m.log.Warn("config reload failed, keeping previous", logger.Error(err))
				continue
			}
			m.SetOllamaAvailable(prev.AI.Ollama.Available)
			m.log.Info("configuration reloaded", logger.String("path", m.path))

			cfg := m.Get()
			m.mu.RLock()
			callbacks := append([]func(*Config){}, m.onChange...)
			m.mu.RUnlock()
			for _, fn := range callbacks {
				fn(cfg)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			m.log.Warn("config watcher error", logger.Error(err))
		}
	}
}

// Close stops the watcher.
func (m *Manager) Close() error {
	if m.watcher != nil {
		return m.watcher.Close()
	}
	return nil
}
