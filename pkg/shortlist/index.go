package shortlist

import (
	"errors"
	"math"
	"sort"

	"github.com/wilhg/toolwire/pkg/adapters/embedding"
)

// match is one ranked catalog position.
type match struct {
	pos   int
	score float32
}

// rank scores every vector against query by cosine similarity and returns
// the k best positions. Ties keep catalog order.
func rank(query embedding.Vector, vecs []embedding.Vector, k int) ([]match, error) {
	qnorm := dot(query, query)
	if qnorm == 0 {
		return nil, errors.New("shortlist: zero-norm query vector")
	}
	qnorm = math.Sqrt(qnorm)

	matches := make([]match, 0, len(vecs))
	for i, v := range vecs {
		if len(v) != len(query) {
			// dimension mismatch scores lowest
			matches = append(matches, match{pos: i, score: -2})
			continue
		}
		matches = append(matches, match{pos: i, score: cosine(query, v, qnorm)})
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}

func cosine(a, b embedding.Vector, qnorm float64) float32 {
	denom := qnorm * math.Sqrt(dot(b, b))
	if denom == 0 {
		return 0
	}
	return float32(dot(a, b) / denom)
}

func dot(a, b embedding.Vector) float64 {
	n := min(len(a), len(b))
	var s float64
	for i := range n {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
