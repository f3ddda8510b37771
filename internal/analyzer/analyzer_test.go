package analyzer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/1homsi/importrisk/internal/imports"
	"github.com/1homsi/importrisk/internal/popularity"
	"github.com/1homsi/importrisk/internal/registry"
	"github.com/1homsi/importrisk/internal/report"
	"github.com/1homsi/importrisk/internal/risk"
	"github.com/1homsi/importrisk/internal/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRegistry struct {
	mu       sync.Mutex
	known    map[string]bool
	calls    []string
	delay    time.Duration
	inFlight int32
	peak     int32
}

func (f *fakeRegistry) Exists(_ context.Context, name string, _ registry.Ecosystem) bool {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		p := atomic.LoadInt32(&f.peak)
		if n <= p || atomic.CompareAndSwapInt32(&f.peak, p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	return f.known[name]
}

func (f *fakeRegistry) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeScorer map[string]float64

func (f fakeScorer) Similarity(_ context.Context, name string) float64 { return f[name] }

type fakeStars map[string]int

func (f fakeStars) Stars(_ context.Context, name string) *int {
	if n, ok := f[name]; ok {
		return &n
	}
	return nil
}

func intPtr(n int) *int { return &n }

func TestAnalyzeKeysMatchImports(t *testing.T) {
	code := `import os, sys
import numpy as np
from collections import OrderedDict
from .local import helper

def f():
    import json
    try:
        import ujson
    except ImportError:
        pass
`
	reg := &fakeRegistry{known: map[string]bool{"os": true, "sys": true, "numpy": true, "collections": true, "json": true}}
	a := New(reg, fakeScorer{}, fakeStars{})

	r := a.Analyze(context.Background(), code, registry.Python)
	require.False(t, r.IsError(), r.Error)

	want, err := imports.Extract(context.Background(), []byte(code))
	require.NoError(t, err)
	assert.Equal(t, want, r.Names())
	assert.ElementsMatch(t, []string{"collections", "json", "local", "numpy", "os", "sys", "ujson"}, r.Names())
	assert.Equal(t, len(want), reg.callCount(), "one registry lookup per package")
}

func TestAnalyzeKnownAndFakePackage(t *testing.T) {
	reg := &fakeRegistry{known: map[string]bool{"os": true}}
	scorer := fakeScorer{"os": 1.0, "totally_fake_pkg_xyz": 0.08}
	a := New(reg, scorer, fakeStars{})

	r := a.Analyze(context.Background(), "import os\nimport totally_fake_pkg_xyz", registry.Python)
	require.False(t, r.IsError())
	require.Len(t, r.Packages, 2)

	osRec := r.Packages["os"]
	assert.True(t, osRec.IsValid)
	assert.Nil(t, osRec.GithubStars)
	assert.Contains(t, []risk.Level{risk.Low, risk.Medium}, osRec.Risk)

	fake := r.Packages["totally_fake_pkg_xyz"]
	assert.False(t, fake.IsValid)
	assert.Contains(t, []risk.Level{risk.Medium, risk.High}, fake.Risk)
	assert.Equal(t, risk.Medium, fake.Risk)
}

func TestAnalyzeFusion(t *testing.T) {
	reg := &fakeRegistry{known: map[string]bool{"requests": true, "tinylib": true}}
	scorer := fakeScorer{"requests": 1.0, "reqeusts": 0.93, "tinylib": 0.1}
	stars := fakeStars{"requests": 52000, "reqeusts": 2, "tinylib": 12}
	a := New(reg, scorer, stars)

	r := a.AnalyzePackages(context.Background(), []string{"requests", "reqeusts", "tinylib"}, registry.Python)
	assert.Equal(t, report.VerificationRecord{IsValid: true, Similarity: 1.0, GithubStars: intPtr(52000), Risk: risk.Low}, r.Packages["requests"])
	assert.Equal(t, risk.High, r.Packages["reqeusts"].Risk)
	assert.Equal(t, risk.Medium, r.Packages["tinylib"].Risk)
}

func TestAnalyzeParseErrorIsErrorOnly(t *testing.T) {
	reg := &fakeRegistry{}
	a := New(reg, fakeScorer{}, fakeStars{})

	r := a.Analyze(context.Background(), "import os\ndef broken(:\n    pass\n", registry.Python)
	require.True(t, r.IsError())
	assert.True(t, strings.HasPrefix(r.Error, report.ParseErrorPrefix), r.Error)
	assert.Nil(t, r.Packages)
	assert.Zero(t, reg.callCount(), "no lookups after a parse failure")
}

func TestAnalyzeNoImports(t *testing.T) {
	a := New(&fakeRegistry{}, fakeScorer{}, fakeStars{})
	r, timing := a.AnalyzeWithTiming(context.Background(), "x = 1\nprint(x)\n", registry.Python)
	assert.False(t, r.IsError())
	assert.Empty(t, r.Packages)
	assert.Zero(t, timing.Workers)
}

func TestAnalyzeInvalidEcosystem(t *testing.T) {
	reg := &fakeRegistry{}
	a := New(reg, fakeScorer{}, fakeStars{})

	r := a.Analyze(context.Background(), "import os", registry.Ecosystem(0))
	assert.True(t, r.IsError())
	r = a.AnalyzePackages(context.Background(), []string{"os"}, registry.Ecosystem(42))
	assert.True(t, r.IsError())
	assert.Zero(t, reg.callCount())
}

func TestAnalyzePackagesCleansNames(t *testing.T) {
	reg := &fakeRegistry{known: map[string]bool{"flask": true}}
	a := New(reg, fakeScorer{}, fakeStars{})

	r := a.AnalyzePackages(context.Background(), []string{" flask", "flask ", "", "  ", "leftpad"}, registry.JavaScript)
	assert.Equal(t, []string{"flask", "leftpad"}, r.Names())
	assert.Equal(t, 2, reg.callCount())
}

func TestWorkerPoolIsBounded(t *testing.T) {
	reg := &fakeRegistry{known: map[string]bool{}, delay: 20 * time.Millisecond}
	a := New(reg, fakeScorer{}, fakeStars{}, WithWorkers(3))

	names := []string{"a", "b", "c", "d", "e", "f", "g", "h", "i", "j"}
	r, timing := a.AnalyzePackagesWithTiming(context.Background(), names, registry.Python)

	assert.Len(t, r.Packages, len(names))
	assert.Equal(t, 3, timing.Workers)
	assert.Equal(t, len(names), timing.PackageCount)
	assert.Equal(t, len(names), timing.RegistryCalls)
	assert.Equal(t, len(names), timing.SimilarityCalls)
	assert.Equal(t, len(names), timing.PopularityCalls)
	assert.LessOrEqual(t, atomic.LoadInt32(&reg.peak), int32(3))
}

func TestWorkersNeverExceedPackages(t *testing.T) {
	a := New(&fakeRegistry{}, fakeScorer{}, fakeStars{}, WithWorkers(50))
	_, timing := a.AnalyzePackagesWithTiming(context.Background(), []string{"a", "b"}, registry.Python)
	assert.Equal(t, 2, timing.Workers)
}

func TestParallelMatchesSequential(t *testing.T) {
	reg := &fakeRegistry{known: map[string]bool{"a": true, "c": true}}
	scorer := fakeScorer{"b": 0.95, "d": 0.2}
	stars := fakeStars{"c": 10}
	names := []string{"a", "b", "c", "d"}

	seq := New(reg, scorer, stars, WithWorkers(1)).AnalyzePackages(context.Background(), names, registry.Python)
	par := New(reg, scorer, stars, WithWorkers(4)).AnalyzePackages(context.Background(), names, registry.Python)
	assert.Equal(t, seq, par)
}

func TestResolveEcosystem(t *testing.T) {
	a := New(&fakeRegistry{}, fakeScorer{}, fakeStars{})
	tests := []struct {
		hint    string
		code    string
		want    registry.Ecosystem
		wantErr bool
	}{
		{"python", "const x = 1", registry.Python, false},
		{"JavaScript", "import os", registry.JavaScript, false},
		{"auto", "import os", registry.Python, false},
		{"", "console.log('hi')", registry.JavaScript, false},
		{"auto", "x = 1", registry.Python, false},
		{"cobol", "import os", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.hint+"/"+tt.code, func(t *testing.T) {
			got, err := a.ResolveEcosystem(tt.hint, tt.code)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestAnalyzeWithRealClients runs the pipeline over a fake PyPI, the local
// n-gram model and a popularity oracle without credentials.
func TestAnalyzeWithRealClients(t *testing.T) {
	pypi := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/pypi/requests/json", "/pypi/os/json":
			_, _ = w.Write([]byte(`{"info":{"name":"x"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer pypi.Close()

	reg, err := registry.NewClient(registry.Endpoints{
		PyPI: pypi.URL + "/pypi/{}/json",
		NPM:  pypi.URL + "/npm/{}",
	}, 2*time.Second)
	require.NoError(t, err)

	emb := similarity.NewNGramEmbedder(0)
	corpus, err := similarity.NewCorpus(context.Background(), emb, []string{"requests", "numpy", "os"})
	require.NoError(t, err)
	scorer := similarity.NewScorer(emb, corpus, nil)

	a := New(reg, scorer, popularity.New(popularity.Config{}))
	r := a.Analyze(context.Background(), "import os\nimport requests\nimport totally_fake_pkg_xyz\n", registry.Python)
	require.False(t, r.IsError())

	assert.Equal(t, risk.Low, r.Packages["os"].Risk)
	assert.Equal(t, risk.Low, r.Packages["requests"].Risk)
	assert.InDelta(t, 1.0, r.Packages["requests"].Similarity, 1e-5)
	assert.Nil(t, r.Packages["requests"].GithubStars)

	fake := r.Packages["totally_fake_pkg_xyz"]
	assert.False(t, fake.IsValid)
	assert.Equal(t, risk.Medium, fake.Risk)
}
