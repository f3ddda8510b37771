// Package app wires configuration, logging and the signal clients into a
// ready-to-use analyzer shared by the CLI commands and the HTTP server.
package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/1homsi/importrisk/internal/analyzer"
	"github.com/1homsi/importrisk/internal/config"
	"github.com/1homsi/importrisk/internal/popularity"
	"github.com/1homsi/importrisk/internal/registry"
	"github.com/1homsi/importrisk/internal/similarity"
	"go.uber.org/zap"
)

// Exit codes shared by every command.
const (
	ExitOK    = 0
	ExitFail  = 1
	ExitUsage = 2
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// Options are the global flags.
type Options struct {
	ConfigFile string
	Verbose    bool
}

// Logger builds a production logger, or a development one when verbose is
// requested by flag or IMPORTRISK_VERBOSE=1.
func (o Options) Logger() (*zap.Logger, error) {
	if o.Verbose || os.Getenv("IMPORTRISK_VERBOSE") == "1" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// App holds the long-lived components. All of them are safe for concurrent
// use once built.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Registry   *registry.Client
	Embedder   similarity.Embedder
	Corpus     *similarity.Corpus
	Scorer     *similarity.Scorer
	Popularity *popularity.Oracle
	Analyzer   *analyzer.Analyzer
}

// Bootstrap builds the logger described by opts, then the App. The caller
// owns a.Logger and should Sync it on exit.
func Bootstrap(ctx context.Context, opts Options) (*App, error) {
	logger, err := opts.Logger()
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Err: fmt.Errorf("init logger: %w", err)}
	}
	a, err := Load(ctx, opts, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

// Load reads the configuration and builds an App. Configuration problems
// are returned as *ExitError with ExitUsage.
func Load(ctx context.Context, opts Options, logger *zap.Logger) (*App, error) {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Err: err}
	}
	a, err := New(ctx, cfg, logger)
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Err: err}
	}
	return a, nil
}

// New builds every component from cfg. The known-package corpus is embedded
// here, once.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	reg, err := registry.NewClient(cfg.Endpoints(), cfg.HTTPTimeout, registry.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("registry client: %w", err)
	}

	embCfg := similarity.EmbedderConfig{
		Provider: cfg.Similarity.Embedder,
		APIKey:   cfg.Similarity.APIKey,
		BaseURL:  cfg.Similarity.BaseURL,
		Model:    cfg.Similarity.Model,
		ModelDir: cfg.Similarity.ModelDir,
		Timeout:  cfg.HTTPTimeout,
	}
	if cfg.Similarity.Embedder == "ngram" {
		embCfg.Dims = cfg.Similarity.Dimensions
	}
	emb, err := similarity.NewEmbedder(embCfg)
	if err != nil {
		return nil, err
	}
	corpus, err := similarity.NewCorpus(ctx, emb, cfg.KnownPackages)
	if err != nil {
		closeEmbedder(emb)
		return nil, err
	}
	if corpus.Len() == 0 {
		logger.Warn("known_packages is empty; similarity will be 0 for every package")
	}
	scorer := similarity.NewScorer(emb, corpus, logger)

	pop := popularity.New(popularity.Config{
		Token:         cfg.Popularity.Token,
		SearchURL:     cfg.Popularity.SearchURL,
		Timeout:       cfg.HTTPTimeout,
		RatePerSecond: cfg.Popularity.RatePerSecond,
		Burst:         cfg.Popularity.Burst,
	}, popularity.WithLogger(logger))
	if !pop.Enabled() {
		logger.Info("no GitHub token configured; popularity signal disabled")
	}

	az := analyzer.New(reg, scorer, pop,
		analyzer.WithWorkers(cfg.Workers),
		analyzer.WithLogger(logger),
	)

	logger.Debug("components ready",
		zap.String("config", cfg.File),
		zap.String("embedder", emb.Name()),
		zap.Int("known_packages", corpus.Len()),
		zap.Int("workers", cfg.Workers),
	)

	return &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   reg,
		Embedder:   emb,
		Corpus:     corpus,
		Scorer:     scorer,
		Popularity: pop,
		Analyzer:   az,
	}, nil
}

// Close releases the embedding model and flushes the logger.
func (a *App) Close() error {
	var err error
	if c, ok := a.Embedder.(io.Closer); ok {
		err = c.Close()
	}
	if a.Logger != nil {
		_ = a.Logger.Sync()
	}
	return err
}

func closeEmbedder(emb similarity.Embedder) {
	if c, ok := emb.(io.Closer); ok {
		_ = c.Close()
	}
}
