// Package similarity scores how closely a package name resembles a curated
// corpus of known-good names, to flag likely typosquats.
package similarity

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/1homsi/importrisk/internal/metrics"
	"go.uber.org/zap"
)

// Corpus is the immutable set of known-good names with their vectors,
// embedded once at startup.
type Corpus struct {
	names   []string
	vectors [][]float32
}

// NewCorpus trims, de-duplicates and embeds names.
func NewCorpus(ctx context.Context, embedder Embedder, names []string) (*Corpus, error) {
	seen := make(map[string]bool, len(names))
	clean := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		clean = append(clean, n)
	}
	sort.Strings(clean)

	c := &Corpus{names: clean}
	if len(clean) == 0 {
		return c, nil
	}

	vectors, err := embedder.Embed(ctx, clean)
	if err != nil {
		return nil, fmt.Errorf("embed known packages with %s: %w", embedder.Name(), err)
	}
	if len(vectors) != len(clean) {
		return nil, fmt.Errorf("embed known packages: got %d vectors for %d names", len(vectors), len(clean))
	}
	c.vectors = vectors
	return c, nil
}

// Len returns the number of distinct names.
func (c *Corpus) Len() int { return len(c.names) }

// Names returns a copy of the sorted names.
func (c *Corpus) Names() []string {
	return append([]string(nil), c.names...)
}

// Scorer computes the maximum similarity of a candidate against a Corpus.
// It holds no mutable state and is safe for concurrent use.
type Scorer struct {
	embedder Embedder
	corpus   *Corpus
	logger   *zap.Logger
}

// NewScorer pairs an embedder with a corpus it produced.
func NewScorer(embedder Embedder, corpus *Corpus, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{embedder: embedder, corpus: corpus, logger: logger}
}

// Similarity returns the largest dot product between name's vector and any
// corpus vector, clamped to [-1, 1]. An empty corpus or an embedding failure
// yields 0.
func (s *Scorer) Similarity(ctx context.Context, name string) float64 {
	if s.corpus == nil || s.corpus.Len() == 0 {
		return 0
	}

	t0 := time.Now()
	vecs, err := s.embedder.Embed(ctx, []string{name})
	if err != nil || len(vecs) != 1 {
		metrics.ObserveLookup(metrics.SignalSimilarity, "error", time.Since(t0))
		s.logger.Debug("embedding candidate failed", zap.String("package", name), zap.Error(err))
		return 0
	}

	best := -1.0
	for _, v := range s.corpus.vectors {
		if d := dot(vecs[0], v); d > best {
			best = d
		}
	}
	metrics.ObserveLookup(metrics.SignalSimilarity, "ok", time.Since(t0))
	return clamp(best)
}

func clamp(x float64) float64 {
	switch {
	case x > 1:
		return 1
	case x < -1:
		return -1
	default:
		return x
	}
}
