package embedding_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wilhg/toolwire/pkg/adapters/embedding"
	"github.com/wilhg/toolwire/pkg/adapters/embedding/hashed"
)

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	f := func(_ context.Context, cfg embedding.Config) (embedding.Embedder, error) {
		return hashed.New(cfg.Dim), nil
	}
	require.NoError(t, embedding.Register("test-embedder", f))
	require.Error(t, embedding.Register("test-embedder", f), "duplicate name")
	require.Error(t, embedding.Register("nil-factory", nil))

	e, err := embedding.New(ctx, "test-embedder", embedding.Config{Dim: 8})
	require.NoError(t, err)
	vecs, err := e.Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Len(t, vecs[0], 8)
	assert.Len(t, vecs[1], 8)

	require.Error(t, embedding.Check([]string{"a"}, vecs))
	require.NoError(t, embedding.Check([]string{"a", "b"}, vecs))
}

func TestNew_Rejects(t *testing.T) {
	_, err := embedding.New(context.Background(), "nope", embedding.Config{})
	require.ErrorContains(t, err, `unknown provider "nope"`)
	_, err = embedding.New(context.Background(), "hashed", embedding.Config{Dim: -1})
	require.ErrorContains(t, err, "negative dimension")
}

func TestProviders(t *testing.T) {
	assert.Contains(t, embedding.Providers(), "hashed")
}
