package agent

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/tailored-agentic-units/shellpilot/core/protocol"
)

// OpenAIProducer completes conversations through an OpenAI-compatible chat
// completions endpoint.
type OpenAIProducer struct {
	client openai.Client
	cfg    Config
}

// NewOpenAIProducer creates a producer from a fully populated Config.
func NewOpenAIProducer(cfg Config) *OpenAIProducer {
	opts := []option.RequestOption{
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if timeout := cfg.Timeout.Std(); timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(timeout))
	}

	return &OpenAIProducer{
		client: openai.NewClient(opts...),
		cfg:    cfg,
	}
}

// Model returns the configured model name.
func (p *OpenAIProducer) Model() string {
	return p.cfg.Model
}

// Complete sends messages as a chat completion and returns the first
// choice's content.
func (p *OpenAIProducer) Complete(ctx context.Context, messages []protocol.Message) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.cfg.Model),
		Messages: toOpenAIMessages(messages),
	}
	if p.cfg.Temperature != nil {
		params.Temperature = openai.Float(*p.cfg.Temperature)
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyReply
	}
	return resp.Choices[0].Message.Content, nil
}

// Models lists the model ids served by the endpoint.
func (p *OpenAIProducer) Models(ctx context.Context) ([]string, error) {
	page, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	ids := make([]string, 0, len(page.Data))
	for _, m := range page.Data {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func toOpenAIMessages(messages []protocol.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case protocol.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case protocol.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
