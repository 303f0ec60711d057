// Package llm talks to text-generation services.
//
// Client is the provider boundary: one request in, one response out.
// Providers are registered by name (OLLAMA, XAI, OPENAI, ANTHROPIC, GEMINI,
// CLAUDE_CLI) and built from a ProviderConfig.
//
// Generator is what pipeline stages use. CachingGenerator wraps a Client
// with a prompt cache and a call journal.
package llm

import (
	"context"
	"strings"
	"time"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
	"github.com/shroroh/teacherflow/pkg/flowgraph/registry"
)

// Client sends completion requests to a provider.
// Implementations must be safe for concurrent use.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// Generator turns a prompt into raw model text.
// allowCache permits serving a previously stored response.
type Generator interface {
	Generate(ctx context.Context, prompt string, allowCache bool) (string, error)
}

// DefaultTemperature is used when a provider config leaves it unset.
const DefaultTemperature = 0.7

// ProviderConfig selects and configures one provider.
type ProviderConfig struct {
	// Provider is the registered provider name, e.g. "OLLAMA".
	Provider    string
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// Factory builds a Client from its configuration.
type Factory func(cfg ProviderConfig) (Client, error)

// Providers holds the known provider factories.
var Providers = registry.New[string, Factory]("provider")

func init() {
	Providers.Register("OPENAI", newOpenAIFromConfig)
	Providers.Register("OLLAMA", newOpenAIFromConfig)
	Providers.Register("XAI", newOpenAIFromConfig)
	Providers.Register("ANTHROPIC", newAnthropicFromConfig)
	Providers.Register("GEMINI", newGeminiFromConfig)
	Providers.Register("CLAUDE_CLI", newClaudeCLIFromConfig)
}

// NewClient builds the client named by cfg.Provider.
// Names without a registered factory are treated as OpenAI-compatible
// endpoints, which requires a base URL.
func NewClient(cfg ProviderConfig) (Client, error) {
	name := strings.ToUpper(strings.TrimSpace(cfg.Provider))
	if name == "" {
		return nil, &fgerrors.ConfigurationError{Setting: "LLM_PROVIDER", Message: "no provider selected"}
	}
	cfg.Provider = name
	if cfg.Temperature == 0 {
		cfg.Temperature = DefaultTemperature
	}

	factory, ok := Providers.Get(name)
	if !ok {
		if cfg.BaseURL == "" {
			_, err := Providers.Lookup(name)
			return nil, &fgerrors.ConfigurationError{Setting: name + "_BASE_URL", Message: err.Error()}
		}
		factory = newOpenAIFromConfig
	}
	return factory(cfg)
}

// requireSetting returns a ConfigurationError when value is empty.
func requireSetting(provider, suffix, value string) error {
	if strings.TrimSpace(value) != "" {
		return nil
	}
	return &fgerrors.ConfigurationError{Setting: provider + "_" + suffix, Message: "not set"}
}

// promptText flattens user and assistant turns for providers that take
// a single prompt string.
func promptText(req CompletionRequest) string {
	var b strings.Builder
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleUser:
			b.WriteString(msg.Content)
			b.WriteString("\n")
		case RoleAssistant:
			if b.Len() > 0 {
				b.WriteString("\nAssistant: ")
				b.WriteString(msg.Content)
				b.WriteString("\n\nUser: ")
			}
		}
	}
	return strings.TrimSpace(b.String())
}
