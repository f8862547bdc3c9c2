// Package gemini talks to the Gemini API through google.golang.org/genai.
package gemini

import (
	"context"
	"errors"

	genai "google.golang.org/genai"

	"github.com/wilhg/toolwire/pkg/adapters/llm"
)

const defaultModel = "gemini-2.0-flash"

// Chat is an llm.LLM over GenerateContent.
type Chat struct {
	client *genai.Client
	model  string
	json   bool
	temp   *float32
}

func (c *Chat) Name() string { return "gemini" }

// Generate moves system messages into the system instruction and sends the
// remaining turns as contents.
func (c *Chat) Generate(ctx context.Context, messages []llm.Message) (llm.Reply, error) {
	sys, turns := llm.Split(messages)
	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.Role(genai.RoleUser)
		if m.Role == llm.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	if len(contents) == 0 {
		return llm.Reply{}, errors.New("gemini: no user or assistant messages")
	}
	gc := &genai.GenerateContentConfig{Temperature: c.temp}
	if sys != "" {
		gc.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}
	if c.json {
		gc.ResponseMIMEType = "application/json"
	}
	res, err := c.client.Models.GenerateContent(ctx, c.model, contents, gc)
	if err != nil {
		return llm.Reply{}, err
	}
	out := llm.Reply{Text: res.Text(), Model: c.model}
	if u := res.UsageMetadata; u != nil {
		out.Usage = llm.Usage{
			Prompt: int(u.PromptTokenCount),
			Output: int(u.CandidatesTokenCount),
			Total:  int(u.TotalTokenCount),
		}
	}
	return out, nil
}

// Factory builds a Chat on the Gemini API backend.
func Factory(ctx context.Context, cfg llm.Config) (llm.LLM, error) { // nolint: revive
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: missing API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	c := &Chat{client: client, model: cfg.Model, json: cfg.JSON}
	if c.model == "" {
		c.model = defaultModel
	}
	if cfg.Temperature != nil {
		c.temp = genai.Ptr(float32(*cfg.Temperature))
	}
	return c, nil
}

func init() {
	_ = llm.Register("gemini", Factory)
}
