// Package popularity looks up how many stars the best-matching GitHub
// repository for a package name has. Every failure collapses to nil.
package popularity

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"github.com/1homsi/importrisk/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config configures an Oracle.
type Config struct {
	Token         string        // empty disables the signal
	SearchURL     string        // default DefaultSearchURL
	Timeout       time.Duration // per lookup, including rate-limit wait
	RatePerSecond float64       // <= 0 means unlimited
	Burst         int
}

// Oracle queries the search API. It is safe for concurrent use.
type Oracle struct {
	token     string
	searchURL string
	timeout   time.Duration
	http      *http.Client
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *Oracle) { o.http = c }
}

// WithLogger sets the logger used for degraded lookups.
func WithLogger(l *zap.Logger) Option {
	return func(o *Oracle) {
		if l != nil {
			o.logger = l
		}
	}
}

// New returns an Oracle. A zero Timeout defaults to 10s.
func New(cfg Config, opts ...Option) *Oracle {
	searchURL := cfg.SearchURL
	if searchURL == "" {
		searchURL = DefaultSearchURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 && !math.IsInf(cfg.RatePerSecond, 1) {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	o := &Oracle{
		token:     cfg.Token,
		searchURL: searchURL,
		timeout:   timeout,
		http:      &http.Client{Timeout: timeout},
		limiter:   rate.NewLimiter(limit, burst),
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Enabled reports whether a credential is configured.
func (o *Oracle) Enabled() bool { return o.token != "" }

// Stars returns the star count of the top search result for name, or nil
// when the signal is disabled, the call fails, or nothing matches.
func (o *Oracle) Stars(ctx context.Context, name string) *int {
	if !o.Enabled() {
		metrics.ObserveLookup(metrics.SignalPopularity, "disabled", 0)
		return nil
	}

	t0 := time.Now()
	stars, err := o.stars(ctx, name)
	outcome := "stars"
	switch {
	case err != nil:
		outcome = "error"
		o.logger.Debug("popularity lookup failed", zap.String("package", name), zap.Error(err))
	case stars == nil:
		outcome = "no_result"
	}
	metrics.ObserveLookup(metrics.SignalPopularity, outcome, time.Since(t0))
	if err != nil {
		return nil
	}
	return stars
}

func (o *Oracle) stars(ctx context.Context, name string) (*int, error) {
	if name == "" {
		return nil, errors.New("empty package name")
	}
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	if err := o.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	target, err := searchURL(o.searchURL, name)
	if err != nil {
		return nil, err
	}
	resp, err := ghRequest(ctx, o.http, target, o.token)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := checkGHStatus(resp, "search "+name); err != nil {
		return nil, err
	}

	var out ghSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Items) == 0 {
		return nil, nil
	}
	return out.Items[0].StargazersCount, nil
}
