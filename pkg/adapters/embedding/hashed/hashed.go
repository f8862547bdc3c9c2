// Package hashed embeds text locally by feature-hashing its words. Texts
// sharing vocabulary end up close, which is enough to rank tool
// descriptions without a remote model.
package hashed

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"strings"
	"unicode"

	"github.com/wilhg/toolwire/pkg/adapters/embedding"
)

const defaultDim = 256

// Embedder is a deterministic bag-of-words embedder.
type Embedder struct {
	dim int
}

// New returns an embedder producing dim-sized vectors (minimum 4).
func New(dim int) *Embedder {
	if dim < 4 {
		dim = 4
	}
	return &Embedder{dim: dim}
}

func (e *Embedder) Name() string { return "hashed" }

func (e *Embedder) Embed(ctx context.Context, inputs []string) ([]embedding.Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]embedding.Vector, len(inputs))
	for i, s := range inputs {
		vec := make(embedding.Vector, e.dim)
		for _, w := range words(s) {
			h := sha256.Sum256([]byte(w))
			slot := binary.LittleEndian.Uint32(h[:4]) % uint32(e.dim)
			if h[4]&1 == 0 {
				vec[slot]++
			} else {
				vec[slot]--
			}
		}
		out[i] = vec
	}
	return out, nil
}

// words lower-cases s and splits it on anything that is not a letter or digit.
func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Factory builds the embedder; only Config.Dim is read.
func Factory(_ context.Context, cfg embedding.Config) (embedding.Embedder, error) { // nolint: revive
	dim := cfg.Dim
	if dim == 0 {
		dim = defaultDim
	}
	return New(dim), nil
}

func init() {
	_ = embedding.Register("hashed", Factory)
}
