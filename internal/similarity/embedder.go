package similarity

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
)

// Embedder turns texts into fixed-dimension vectors.
type Embedder interface {
	// Embed returns one vector per text, in order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector length.
	Dimensions() int
	// Name identifies the model for logs.
	Name() string
}

// DefaultDimensions matches the width of small sentence-embedding models.
const DefaultDimensions = 384

// NGramEmbedder is a local, deterministic model: character 1-, 2- and
// 3-grams of the lower-cased name are hashed into a signed bag-of-ngrams
// vector and L2-normalised. Longer grams weigh more, so shared substrings
// dominate over shared letters.
type NGramEmbedder struct {
	dims int
}

// NewNGramEmbedder returns an embedder with dims dimensions (default 384).
func NewNGramEmbedder(dims int) *NGramEmbedder {
	if dims <= 0 {
		dims = DefaultDimensions
	}
	return &NGramEmbedder{dims: dims}
}

func (e *NGramEmbedder) Dimensions() int { return e.dims }

func (e *NGramEmbedder) Name() string { return fmt.Sprintf("ngram-%d", e.dims) }

// Embed never fails; ctx is only checked between texts.
func (e *NGramEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *NGramEmbedder) vector(text string) []float32 {
	v := make([]float32, e.dims)
	s := strings.ToLower(strings.TrimSpace(text))
	if s == "" {
		return v
	}

	plain := []rune(s)
	padded := []rune("^" + s + "$")
	for _, r := range plain {
		e.add(v, string(r), 1)
	}
	for n := 2; n <= 3; n++ {
		for i := 0; i+n <= len(padded); i++ {
			e.add(v, string(padded[i:i+n]), float32(n))
		}
	}
	normalize(v)
	return v
}

func (e *NGramEmbedder) add(v []float32, gram string, weight float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(gram))
	sum := h.Sum32()
	idx := int(sum % uint32(e.dims))
	if sum&(1<<31) != 0 {
		weight = -weight
	}
	v[idx] += weight
}

// normalize scales v to unit length in place; the zero vector is left alone.
func normalize(v []float32) {
	var sq float64
	for _, x := range v {
		sq += float64(x) * float64(x)
	}
	if sq == 0 {
		return
	}
	n := float32(math.Sqrt(sq))
	for i := range v {
		v[i] /= n
	}
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var s float64
	for i := 0; i < n; i++ {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}
