package ai

import (
	"strings"

	"github.com/catherinevee/driftscan/internal/config"
	"github.com/catherinevee/driftscan/internal/logger"
)

// ProviderRuleEngine is the terminal provider choice meaning "AI
// disabled". It is a normal selector outcome, not an error.
const ProviderRuleEngine = "rule-engine"

// ollamaModelPrefixes is the allow-list of local model families. Prefix
// matching keeps any version tag valid (llama3:latest, llama3:70b, ...).
var ollamaModelPrefixes = []string{"llama3", "wizardlm2", "qwen2.5", "deepseek-r1"}

// geminiModelAliases are the cloud model names accepted verbatim. Other
// gemini-prefixed requests map to the default flash model.
var geminiModelAliases = []string{
	"gemini-pro", "gemini-1.5-flash", "gemini-1.5-flash-lite",
	"gemini-1.5-pro", "gemini-2.0-flash", "gemini-2.0-pro-exp",
}

// scoringOnlyModel names the RL-scorer pseudo-model. It scores issues but
// cannot analyze, so requesting it falls back to environment selection.
const scoringOnlyModel = "oumi-rl"

// ModelClass tags the outcome of classifying a requested model name.
type ModelClass int

const (
	ModelClassUnknown ModelClass = iota
	ModelClassLocal
	ModelClassCloud
	ModelClassScoringOnly
)

// Classification is the tagged result of model-name classification,
// consumed exactly once by the selector.
type Classification struct {
	Class ModelClass

	// Provider is set for ModelClassCloud.
	Provider string

	// Model is the resolved model identifier for Local and Cloud classes.
	Model string
}

// ClassifyModel maps a requested model name onto a provider family.
func ClassifyModel(requested string) Classification {
	name := strings.ToLower(strings.TrimSpace(requested))
	if name == "" {
		return Classification{Class: ModelClassUnknown}
	}

	for _, prefix := range ollamaModelPrefixes {
		if strings.HasPrefix(name, prefix) {
			// Keep the exact requested identifier, tag included.
			return Classification{Class: ModelClassLocal, Model: strings.TrimSpace(requested)}
		}
	}

	if name == scoringOnlyModel {
		return Classification{Class: ModelClassScoringOnly}
	}

	if strings.HasPrefix(name, "gemini") {
		model := "gemini-1.5-flash"
		for _, alias := range geminiModelAliases {
			if name == alias {
				model = name
				break
			}
		}
		return Classification{Class: ModelClassCloud, Provider: "gemini", Model: model}
	}

	return Classification{Class: ModelClassUnknown}
}

// Choice is the selector's output: a provider name, an optional model and
// an optional constructed client. Client is nil exactly when Provider is
// rule-engine. Immutable once produced.
type Choice struct {
	Provider string
	Model    string
	Client   Provider
}

var ruleEngineChoice = Choice{Provider: ProviderRuleEngine}

// Selector maps a requested model plus environment configuration to a
// concrete provider choice. Selection is deterministic: identical inputs
// always produce the same choice.
type Selector struct {
	log logger.Logger
}

// NewSelector creates a provider selector.
func NewSelector() *Selector {
	return &Selector{log: logger.New("selector")}
}

// Select resolves the provider for one request. Construction of the
// returned client never performs network calls.
func (s *Selector) Select(requestedModel string, env config.AISettings) Choice {
	c := ClassifyModel(requestedModel)

	switch c.Class {
	case ModelClassLocal:
		if !env.Ollama.Available {
			s.log.Warn("local model requested but ollama unavailable",
				logger.String("model", requestedModel))
			return ruleEngineChoice
		}
		client, err := NewOllamaClient(env.Ollama.Host, c.Model)
		if err != nil {
			s.log.Warn("ollama client construction failed", logger.Error(err))
			return ruleEngineChoice
		}
		return Choice{Provider: "ollama", Model: c.Model, Client: client}

	case ModelClassCloud:
		// Cloud providers additionally need their credential present.
		if c.Provider == "gemini" && env.Gemini.APIKey != "" {
			return Choice{Provider: "gemini", Model: c.Model, Client: NewGeminiClient(env.Gemini.APIKey, c.Model)}
		}
		s.log.Warn("cloud model requested but provider unavailable",
			logger.String("model", requestedModel))
		return ruleEngineChoice

	case ModelClassScoringOnly:
		// The RL scorer is not an analysis provider; pick a real one from
		// the environment, ignoring the requested value.
		return s.selectFromEnvironment(env)

	default:
		if requestedModel != "" {
			s.log.Warn("unknown model requested, using environment selection",
				logger.String("model", requestedModel))
		}
		return s.selectFromEnvironment(env)
	}
}

// selectFromEnvironment picks a provider with no model constraint: the
// declared default provider first if its availability condition holds,
// then a fixed probe order (gemini, oumi, ollama), then rule-engine.
func (s *Selector) selectFromEnvironment(env config.AISettings) Choice {
	switch strings.ToLower(env.Provider) {
	case "gemini":
		if env.Gemini.APIKey != "" {
			return Choice{Provider: "gemini", Model: env.Gemini.Model, Client: NewGeminiClient(env.Gemini.APIKey, env.Gemini.Model)}
		}
	case "oumi":
		if env.Oumi.APIKey != "" {
			return Choice{Provider: "oumi", Model: oumiModel, Client: NewOumiClient(env.Oumi.APIKey, env.Oumi.BaseURL)}
		}
	case "local":
		if choice, ok := s.ollamaChoice(env); ok {
			return choice
		}
	}

	if env.Gemini.APIKey != "" {
		return Choice{Provider: "gemini", Model: env.Gemini.Model, Client: NewGeminiClient(env.Gemini.APIKey, env.Gemini.Model)}
	}
	if env.Oumi.APIKey != "" {
		return Choice{Provider: "oumi", Model: oumiModel, Client: NewOumiClient(env.Oumi.APIKey, env.Oumi.BaseURL)}
	}
	if choice, ok := s.ollamaChoice(env); ok {
		return choice
	}

	return ruleEngineChoice
}

func (s *Selector) ollamaChoice(env config.AISettings) (Choice, bool) {
	if !env.Ollama.Available {
		return Choice{}, false
	}
	client, err := NewOllamaClient(env.Ollama.Host, env.Ollama.Model)
	if err != nil {
		s.log.Warn("ollama client construction failed", logger.Error(err))
		return Choice{}, false
	}
	return Choice{Provider: "ollama", Model: client.Model(), Client: client}, true
}
