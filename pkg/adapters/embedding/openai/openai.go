// Package openai embeds text with the OpenAI embeddings API.
package openai

import (
	"context"
	"errors"
	"fmt"

	oa "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/wilhg/toolwire/pkg/adapters/embedding"
)

const defaultModel = "text-embedding-3-small"

// Embedder sends every batch as one request.
type Embedder struct {
	client oa.Client
	params oa.EmbeddingNewParams
}

func (e *Embedder) Name() string { return "openai" }

func (e *Embedder) Embed(ctx context.Context, inputs []string) ([]embedding.Vector, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	p := e.params
	p.Input = oa.EmbeddingNewParamsInputUnion{OfArrayOfStrings: inputs}
	resp, err := e.client.Embeddings.New(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(resp.Data) != len(inputs) {
		return nil, embedding.Check(inputs, make([]embedding.Vector, len(resp.Data)))
	}
	// data carries its input index; do not rely on response order
	out := make([]embedding.Vector, len(inputs))
	for _, d := range resp.Data {
		if d.Index < 0 || int(d.Index) >= len(out) || out[d.Index] != nil {
			return nil, fmt.Errorf("openai: bad embedding index %d", d.Index)
		}
		vec := make(embedding.Vector, len(d.Embedding))
		for j, f := range d.Embedding {
			vec[j] = float32(f)
		}
		out[d.Index] = vec
	}
	return out, nil
}

// Factory builds an Embedder. The API key is required.
func Factory(_ context.Context, cfg embedding.Config) (embedding.Embedder, error) { // nolint: revive
	if cfg.APIKey == "" {
		return nil, errors.New("openai: missing API key")
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	params := oa.EmbeddingNewParams{Model: model}
	if cfg.Dim > 0 {
		params.Dimensions = oa.Int(int64(cfg.Dim))
	}
	return &Embedder{client: oa.NewClient(option.WithAPIKey(cfg.APIKey)), params: params}, nil
}

func init() {
	_ = embedding.Register("openai", Factory)
}
