// Package apptest builds an App backed by an in-process fake registry.
package apptest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/1homsi/importrisk/internal/app"
	"github.com/1homsi/importrisk/internal/config"
)

// KnownPackages is the corpus every test App is built with.
var KnownPackages = []string{"requests", "numpy", "pandas", "flask", "os", "sys"}

// Registry lists the packages the fake registry publishes. PyPI values are
// the JSON body served for that package.
type Registry struct {
	PyPI map[string]string
	NPM  []string
}

// New starts the fake registry and returns an App wired to it. Popularity is
// disabled and similarity uses the local n-gram model.
func New(t *testing.T, reg Registry) *app.App {
	t.Helper()

	npm := make(map[string]bool, len(reg.NPM))
	for _, n := range reg.NPM {
		npm[n] = true
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.EscapedPath()
		switch {
		case strings.HasPrefix(path, "/pypi/") && strings.HasSuffix(path, "/json"):
			name := strings.TrimSuffix(strings.TrimPrefix(path, "/pypi/"), "/json")
			if body, ok := reg.PyPI[name]; ok {
				_, _ = w.Write([]byte(body))
				return
			}
		case strings.HasPrefix(path, "/npm/"):
			if npm[strings.TrimPrefix(path, "/npm/")] {
				_, _ = w.Write([]byte(`{}`))
				return
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	cfg := &config.Config{
		KnownPackages: KnownPackages,
		PyPIAPI:       srv.URL + "/pypi/{}/json",
		NPMAPI:        srv.URL + "/npm/{}",
		HTTPTimeout:   2 * time.Second,
		Similarity:    config.Similarity{Embedder: "ngram", Dimensions: 384},
		Workers:       4,
		Server:        config.Server{Addr: "127.0.0.1:0"},
	}
	a, err := app.New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("app.New() error = %v", err)
	}
	return a
}
