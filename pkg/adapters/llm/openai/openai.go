// Package openai talks to the Chat Completions API. Groq and other
// compatible endpoints are reached through Config.BaseURL.
package openai

import (
	"context"
	"errors"

	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/wilhg/toolwire/pkg/adapters/llm"
)

const defaultModel = "gpt-4o-mini"

// Chat is an llm.LLM over Chat Completions.
type Chat struct {
	client oa.Client
	params oa.ChatCompletionNewParams
}

func (c *Chat) Name() string { return "openai" }

// Generate sends one completion request built from the fixed params.
func (c *Chat) Generate(ctx context.Context, messages []llm.Message) (llm.Reply, error) {
	p := c.params
	p.Messages = convert(messages)
	resp, err := c.client.Chat.Completions.New(ctx, p)
	if err != nil {
		return llm.Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return llm.Reply{}, errors.New("openai: completion has no choices")
	}
	return llm.Reply{
		Text:  resp.Choices[0].Message.Content,
		Model: resp.Model,
		Usage: llm.Usage{
			Prompt: int(resp.Usage.PromptTokens),
			Output: int(resp.Usage.CompletionTokens),
			Total:  int(resp.Usage.TotalTokens),
		},
	}, nil
}

func convert(messages []llm.Message) []oa.ChatCompletionMessageParamUnion {
	out := make([]oa.ChatCompletionMessageParamUnion, len(messages))
	for i, m := range messages {
		switch m.Role {
		case llm.RoleSystem:
			out[i] = oa.SystemMessage(m.Content)
		case llm.RoleAssistant:
			out[i] = oa.AssistantMessage(m.Content)
		default:
			out[i] = oa.UserMessage(m.Content)
		}
	}
	return out
}

// Factory builds a Chat. The API key is required.
func Factory(_ context.Context, cfg llm.Config) (llm.LLM, error) { // nolint: revive
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing API key")
	}
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	params := oa.ChatCompletionNewParams{Model: shared.ChatModel(model)}
	if cfg.JSON {
		params.ResponseFormat = oa.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}
	if cfg.Temperature != nil {
		params.Temperature = oa.Float(*cfg.Temperature)
	}
	return &Chat{client: oa.NewClient(opts...), params: params}, nil
}

func init() {
	_ = llm.Register("openai", Factory)
}
