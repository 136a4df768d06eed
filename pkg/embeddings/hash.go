package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashDimensions is the vector size produced by HashEmbedder
const HashDimensions = 128

// HashEmbedder is a deterministic bag-of-words embedder used when no
// embedding API is configured. Vectors are L2-normalized.
type HashEmbedder struct{}

// NewHashEmbedder creates offline embedder
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

func (h *HashEmbedder) GetName() string {
	return "hash-128"
}

func (h *HashEmbedder) Generate(_ context.Context, text string) ([]float32, error) {
	return hashEmbedding(text), nil
}

func (h *HashEmbedder) GenerateBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = hashEmbedding(text)
	}
	return out, nil
}

func hashEmbedding(text string) []float32 {
	embedding := make([]float32, HashDimensions)

	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, word := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(word))
		embedding[h.Sum32()%HashDimensions] += 1.0
	}

	norm := float32(0.0)
	for _, v := range embedding {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))

	if norm > 0 {
		for i := range embedding {
			embedding[i] /= norm
		}
	}

	return embedding
}
