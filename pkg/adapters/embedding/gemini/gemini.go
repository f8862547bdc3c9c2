// Package gemini embeds text with the Gemini API.
package gemini

import (
	"context"
	"errors"

	genai "google.golang.org/genai"

	"github.com/wilhg/toolwire/pkg/adapters/embedding"
)

const defaultModel = "gemini-embedding-001"

// Embedder calls EmbedContent with the semantic similarity task type, which
// suits comparing a question with tool descriptions.
type Embedder struct {
	client *genai.Client
	model  string
	cfg    *genai.EmbedContentConfig
}

func (e *Embedder) Name() string { return "gemini" }

func (e *Embedder) Embed(ctx context.Context, inputs []string) ([]embedding.Vector, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(inputs))
	for i, s := range inputs {
		contents[i] = genai.NewContentFromText(s, genai.RoleUser)
	}
	res, err := e.client.Models.EmbedContent(ctx, e.model, contents, e.cfg)
	if err != nil {
		return nil, err
	}
	out := make([]embedding.Vector, len(res.Embeddings))
	for i, ce := range res.Embeddings {
		out[i] = ce.Values
	}
	return out, embedding.Check(inputs, out)
}

// Factory builds an Embedder. The API key is required.
func Factory(ctx context.Context, cfg embedding.Config) (embedding.Embedder, error) { // nolint: revive
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: missing API key")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: cfg.APIKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	e := &Embedder{client: client, model: cfg.Model, cfg: &genai.EmbedContentConfig{TaskType: "SEMANTIC_SIMILARITY"}}
	if e.model == "" {
		e.model = defaultModel
	}
	if cfg.Dim > 0 {
		e.cfg.OutputDimensionality = genai.Ptr(int32(cfg.Dim))
	}
	return e, nil
}

func init() {
	_ = embedding.Register("gemini", Factory)
}
