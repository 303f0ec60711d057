package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	fgerrors "github.com/shroroh/teacherflow/pkg/flowgraph/errors"
)

// OpenAIClient calls any OpenAI-compatible /v1/chat/completions endpoint
// (OpenAI, Ollama, xAI, vLLM, ...).
type OpenAIClient struct {
	client      openai.Client
	provider    string
	model       string
	temperature float64
	maxTokens   int
}

func newOpenAIFromConfig(cfg ProviderConfig) (Client, error) {
	return NewOpenAIClient(cfg)
}

// NewOpenAIClient builds a client for an OpenAI-compatible endpoint.
// BaseURL may be given with or without the /v1 suffix; it is required for
// every provider except OPENAI.
func NewOpenAIClient(cfg ProviderConfig) (*OpenAIClient, error) {
	if err := requireSetting(cfg.Provider, "MODEL", cfg.Model); err != nil {
		return nil, err
	}
	if cfg.Provider != "OPENAI" {
		if err := requireSetting(cfg.Provider, "BASE_URL", cfg.BaseURL); err != nil {
			return nil, err
		}
	}

	opts := []option.RequestOption{
		// retries belong to the pipeline's retry policy
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(chatBaseURL(cfg.BaseURL)))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	return &OpenAIClient{
		client:      openai.NewClient(opts...),
		provider:    strings.ToLower(cfg.Provider),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
	}, nil
}

// chatBaseURL normalizes a server root to the SDK's expected ".../v1/".
func chatBaseURL(base string) string {
	base = strings.TrimRight(base, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base + "/"
}

// Complete implements Client.
func (c *OpenAIClient) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	start := time.Now()

	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	temperature := c.temperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(model),
		Messages:    c.convertMessages(req),
		Temperature: openai.Float(temperature),
	}
	maxTokens := c.maxTokens
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	if maxTokens > 0 {
		params.MaxTokens = openai.Int(int64(maxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, c.wrapError(err)
	}
	if len(completion.Choices) == 0 {
		return nil, &fgerrors.GenerationError{Provider: c.provider, Message: "response has no choices"}
	}

	choice := completion.Choices[0]
	return &CompletionResponse{
		Content:      choice.Message.Content,
		Model:        completion.Model,
		FinishReason: choice.FinishReason,
		Duration:     time.Since(start),
		Usage: TokenUsage{
			InputTokens:  int(completion.Usage.PromptTokens),
			OutputTokens: int(completion.Usage.CompletionTokens),
			TotalTokens:  int(completion.Usage.TotalTokens),
		},
	}, nil
}

func (c *OpenAIClient) convertMessages(req CompletionRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.SystemPrompt != "" {
		msgs = append(msgs, openai.SystemMessage(req.SystemPrompt))
	}
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		case RoleAssistant:
			msgs = append(msgs, openai.AssistantMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}
	return msgs
}

func (c *OpenAIClient) wrapError(err error) error {
	genErr := &fgerrors.GenerationError{Provider: c.provider, Err: err}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		genErr.StatusCode = apiErr.StatusCode
		genErr.Message = apiErr.Message
	}
	return genErr
}
