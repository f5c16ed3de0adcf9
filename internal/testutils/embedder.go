package testutils

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const bagDims = 256

// BagEmbedder is a deterministic bag-of-words embedder for tests. Texts
// sharing words end up close under cosine distance.
type BagEmbedder struct{}

func (BagEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = bag(t)
	}
	return out, nil
}

func bag(text string) []float32 {
	v := make([]float32, bagDims)
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		h.Write([]byte(w))
		v[h.Sum32()%bagDims]++
	}
	// constant component keeps empty texts off the zero vector
	v[0] += 0.01

	var norm float64
	for _, x := range v {
		norm += float64(x * x)
	}
	n := float32(math.Sqrt(norm))
	for i := range v {
		v[i] /= n
	}
	return v
}
