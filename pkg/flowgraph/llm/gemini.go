package llm

import (
	"context"
	"errors"
	"sync"
	"time"

	"google.golang.org/genai"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

// GeminiClient calls the Gemini API through google.golang.org/genai.
// The SDK client is created on first use because construction needs a
// context.
type GeminiClient struct {
	cfg ProviderConfig

	once    sync.Once
	client  *genai.Client
	initErr error
}

func newGeminiFromConfig(cfg ProviderConfig) (Client, error) {
	return NewGeminiClient(cfg)
}

// NewGeminiClient validates cfg and returns a lazily connected client.
func NewGeminiClient(cfg ProviderConfig) (*GeminiClient, error) {
	if err := requireSetting(cfg.Provider, "MODEL", cfg.Model); err != nil {
		return nil, err
	}
	if err := requireSetting(cfg.Provider, "API_KEY", cfg.APIKey); err != nil {
		return nil, err
	}
	return &GeminiClient{cfg: cfg}, nil
}

func (c *GeminiClient) connect(ctx context.Context) (*genai.Client, error) {
	c.once.Do(func() {
		cc := &genai.ClientConfig{
			APIKey:  c.cfg.APIKey,
			Backend: genai.BackendGeminiAPI,
		}
		if c.cfg.BaseURL != "" {
			cc.HTTPOptions = genai.HTTPOptions{BaseURL: c.cfg.BaseURL}
		}
		c.client, c.initErr = genai.NewClient(ctx, cc)
	})
	return c.client, c.initErr
}

// Complete implements Client.
func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	client, err := c.connect(ctx)
	if err != nil {
		return nil, &fgerrors.GenerationError{Provider: "gemini", Message: "create client", Err: err}
	}

	model := c.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	temperature := c.cfg.Temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(temperature)),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	maxTokens := c.cfg.MaxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		config.MaxOutputTokens = int32(maxTokens)
	}

	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	resp, err := client.Models.GenerateContent(ctx, model, genai.Text(promptText(req)), config)
	if err != nil {
		genErr := &fgerrors.GenerationError{Provider: "gemini", Err: err}
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			genErr.StatusCode = apiErr.Code
			genErr.Message = apiErr.Message
		}
		return nil, genErr
	}

	out := &CompletionResponse{
		Content:  resp.Text(),
		Model:    model,
		Duration: time.Since(start),
	}
	if len(resp.Candidates) > 0 {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = TokenUsage{
			InputTokens:  int(u.PromptTokenCount),
			OutputTokens: int(u.CandidatesTokenCount),
			TotalTokens:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}
