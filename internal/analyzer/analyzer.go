// Package analyzer runs the per-package verification pipeline: extract the
// imports of a snippet, look each one up in its registry, score it against
// the known-good corpus, fetch its popularity, and fuse the signals.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/1homsi/importrisk/internal/imports"
	"github.com/1homsi/importrisk/internal/metrics"
	"github.com/1homsi/importrisk/internal/registry"
	"github.com/1homsi/importrisk/internal/report"
	"github.com/1homsi/importrisk/internal/risk"
	"github.com/1homsi/importrisk/internal/sniff"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWorkers bounds concurrent per-package lookups.
const DefaultWorkers = 10

// RegistryChecker answers whether a package is published.
type RegistryChecker interface {
	Exists(ctx context.Context, name string, eco registry.Ecosystem) bool
}

// SimilarityScorer rates a name against the known-good corpus.
type SimilarityScorer interface {
	Similarity(ctx context.Context, name string) float64
}

// PopularityOracle returns a star count, or nil when unknown.
type PopularityOracle interface {
	Stars(ctx context.Context, name string) *int
}

// Timing holds aggregate timing information from one analysis call.
type Timing struct {
	Total           time.Duration
	ParseTime       time.Duration
	RegistryCalls   int
	SimilarityCalls int
	PopularityCalls int
	RegistryTime    time.Duration
	SimilarityTime  time.Duration
	PopularityTime  time.Duration
	Workers         int
	PackageCount    int
}

func (t *Timing) add(o Timing) {
	t.RegistryCalls += o.RegistryCalls
	t.SimilarityCalls += o.SimilarityCalls
	t.PopularityCalls += o.PopularityCalls
	t.RegistryTime += o.RegistryTime
	t.SimilarityTime += o.SimilarityTime
	t.PopularityTime += o.PopularityTime
}

// Analyzer is safe for concurrent use; it holds no per-call state.
type Analyzer struct {
	registry   RegistryChecker
	similarity SimilarityScorer
	popularity PopularityOracle
	workers    int
	logger     *zap.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithWorkers sets the worker pool size. Values below 1 are ignored.
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// New wires the three signal sources into an Analyzer.
func New(reg RegistryChecker, sim SimilarityScorer, pop PopularityOracle, opts ...Option) *Analyzer {
	a := &Analyzer{
		registry:   reg,
		similarity: sim,
		popularity: pop,
		workers:    DefaultWorkers,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze extracts the imports of code and verifies each one.
func (a *Analyzer) Analyze(ctx context.Context, code string, eco registry.Ecosystem) report.AnalysisReport {
	r, _ := a.AnalyzeWithTiming(ctx, code, eco)
	return r
}

// AnalyzeWithTiming is Analyze plus timing data. Unparseable code yields an
// error-only report and no lookups are made.
func (a *Analyzer) AnalyzeWithTiming(ctx context.Context, code string, eco registry.Ecosystem) (report.AnalysisReport, Timing) {
	t0 := time.Now()
	if !eco.Valid() {
		metrics.RecordAnalysis("invalid_ecosystem")
		return report.AnalysisReport{Error: fmt.Sprintf("unsupported ecosystem %s", eco)}, Timing{}
	}

	names, err := imports.Extract(ctx, []byte(code))
	parseTime := time.Since(t0)
	if err != nil {
		var pe *imports.ParseError
		if errors.As(err, &pe) {
			a.logger.Debug("source did not parse", zap.Int("line", pe.Line), zap.Int("column", pe.Column), zap.String("detail", pe.Detail))
		}
		metrics.RecordAnalysis("parse_error")
		return report.ParseFailure(err.Error()), Timing{Total: time.Since(t0), ParseTime: parseTime}
	}

	r, timing := a.verify(ctx, names, eco)
	timing.ParseTime = parseTime
	timing.Total = time.Since(t0)
	return r, timing
}

// AnalyzePackages verifies names that were already extracted elsewhere.
func (a *Analyzer) AnalyzePackages(ctx context.Context, names []string, eco registry.Ecosystem) report.AnalysisReport {
	r, _ := a.AnalyzePackagesWithTiming(ctx, names, eco)
	return r
}

// AnalyzePackagesWithTiming trims names, drops empty ones and duplicates,
// then verifies the rest.
func (a *Analyzer) AnalyzePackagesWithTiming(ctx context.Context, names []string, eco registry.Ecosystem) (report.AnalysisReport, Timing) {
	t0 := time.Now()
	if !eco.Valid() {
		metrics.RecordAnalysis("invalid_ecosystem")
		return report.AnalysisReport{Error: fmt.Sprintf("unsupported ecosystem %s", eco)}, Timing{}
	}
	r, timing := a.verify(ctx, cleanNames(names), eco)
	timing.Total = time.Since(t0)
	return r, timing
}

// ResolveEcosystem maps a hint to an ecosystem. An empty or "auto" hint sniffs
// the code; code that looks like neither language is treated as Python.
func (a *Analyzer) ResolveEcosystem(hint, code string) (registry.Ecosystem, error) {
	hint = strings.TrimSpace(hint)
	if hint != "" && !strings.EqualFold(hint, "auto") {
		return registry.ParseEcosystem(hint)
	}
	switch lang := sniff.Detect(code); lang {
	case sniff.JavaScript:
		return registry.JavaScript, nil
	case sniff.Python:
		return registry.Python, nil
	default:
		a.logger.Warn("could not detect language, assuming python")
		return registry.Python, nil
	}
}

func (a *Analyzer) verify(ctx context.Context, names []string, eco registry.Ecosystem) (report.AnalysisReport, Timing) {
	records := make([]report.VerificationRecord, len(names))
	timings := make([]Timing, len(names))

	workers := a.workers
	if len(names) < workers {
		workers = len(names)
	}

	if workers > 0 {
		var g errgroup.Group
		g.SetLimit(workers)
		for i, name := range names {
			g.Go(func() error {
				records[i], timings[i] = a.verifyOne(ctx, name, eco)
				return nil
			})
		}
		_ = g.Wait()
	}

	var total Timing
	pkgs := make(map[string]report.VerificationRecord, len(names))
	for i, name := range names {
		pkgs[name] = records[i]
		total.add(timings[i])
		metrics.RecordPackage(records[i].Risk.String())
	}
	total.Workers = workers
	total.PackageCount = len(names)
	metrics.RecordAnalysis("ok")

	a.logger.Debug("analysis complete",
		zap.Stringer("ecosystem", eco),
		zap.Int("packages", len(names)),
		zap.Int("workers", workers),
	)
	return report.AnalysisReport{Packages: pkgs}, total
}

func (a *Analyzer) verifyOne(ctx context.Context, name string, eco registry.Ecosystem) (report.VerificationRecord, Timing) {
	var t Timing

	t0 := time.Now()
	valid := a.registry.Exists(ctx, name, eco)
	t.RegistryTime = time.Since(t0)
	t.RegistryCalls = 1

	t0 = time.Now()
	sim := a.similarity.Similarity(ctx, name)
	t.SimilarityTime = time.Since(t0)
	t.SimilarityCalls = 1

	t0 = time.Now()
	stars := a.popularity.Stars(ctx, name)
	t.PopularityTime = time.Since(t0)
	t.PopularityCalls = 1

	return report.VerificationRecord{
		IsValid:     valid,
		Similarity:  sim,
		GithubStars: stars,
		Risk:        risk.Classify(valid, sim, stars),
	}, t
}

func cleanNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
