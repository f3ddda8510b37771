package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/1homsi/importrisk/internal/config"
	"github.com/1homsi/importrisk/internal/registry"
	"github.com/1homsi/importrisk/internal/risk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func testConfig(pypiURL string) *config.Config {
	return &config.Config{
		KnownPackages: []string{"requests", "numpy"},
		PyPIAPI:       pypiURL + "/pypi/{}/json",
		NPMAPI:        pypiURL + "/npm/{}",
		HTTPTimeout:   2 * time.Second,
		Similarity:    config.Similarity{Embedder: "ngram", Dimensions: 384},
		Workers:       4,
	}
}

func TestNewWiresAnalyzer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/pypi/requests/json" {
			_, _ = w.Write([]byte(`{"info":{"top_level":["requests"]}}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	a, err := New(context.Background(), testConfig(srv.URL), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, a.Corpus.Len())
	assert.False(t, a.Popularity.Enabled())

	r := a.Analyzer.Analyze(context.Background(), "import requests\nimport reqests_fake\n", registry.Python)
	require.False(t, r.IsError())
	assert.Equal(t, risk.Low, r.Packages["requests"].Risk)
	assert.False(t, r.Packages["reqests_fake"].IsValid)

	assert.Equal(t, []string{"requests"}, a.Registry.Subpackages(context.Background(), "requests"))
}

func TestNewRejectsBadEmbedder(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Similarity.Embedder = "bert"
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestNewMiniLMWithoutModelFiles(t *testing.T) {
	cfg := testConfig("http://localhost")
	cfg.Similarity.Embedder = "minilm"
	cfg.Similarity.Model = t.TempDir()
	_, err := New(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestAppClose(t *testing.T) {
	a, err := New(context.Background(), testConfig("http://localhost"), nil)
	require.NoError(t, err)
	assert.NoError(t, a.Close())
	assert.NoError(t, a.Close())
}

func TestLoadConfigErrorIsUsage(t *testing.T) {
	t.Setenv("IMPORTRISK_KNOWN_PACKAGES", "")
	path := filepath.Join(t.TempDir(), "importrisk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pypi_api: https://pypi.org/pypi/{}/json\n"), 0o600))

	_, err := Load(context.Background(), Options{ConfigFile: path}, nil)
	var exitErr *ExitError
	require.True(t, errors.As(err, &exitErr))
	assert.Equal(t, ExitUsage, exitErr.Code)

	var cfgErr *config.Error
	assert.True(t, errors.As(err, &cfgErr))
}

func TestOptionsLogger(t *testing.T) {
	t.Setenv("IMPORTRISK_VERBOSE", "")
	l, err := Options{}.Logger()
	require.NoError(t, err)
	assert.NotNil(t, l)

	l, err = Options{Verbose: true}.Logger()
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel), "development logger enables debug")
}

func TestReadSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snippet.py")
	require.NoError(t, os.WriteFile(path, []byte("import os\n"), 0o600))

	b, err := ReadSource(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "import os\n", string(b))

	b, err = ReadSource("-", strings.NewReader("import sys\n"))
	require.NoError(t, err)
	assert.Equal(t, "import sys\n", string(b))

	_, err = ReadSource(filepath.Join(t.TempDir(), "missing.py"), nil)
	assert.Error(t, err)
}
