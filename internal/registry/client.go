// Package registry checks package names against the public PyPI and npm
// registries. Transport failures are reported as values, never raised.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/1homsi/importrisk/internal/metrics"
	"go.uber.org/zap"
)

// Placeholder is the token replaced by the package name in endpoint templates.
const Placeholder = "{}"

// Status is the outcome of a single registry lookup.
type Status int

const (
	Found Status = iota + 1
	NotFound
	Unreachable
)

func (s Status) String() string {
	switch s {
	case Found:
		return "found"
	case NotFound:
		return "not_found"
	case Unreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// Result describes one lookup. StatusCode is zero when no response arrived.
type Result struct {
	Status     Status
	StatusCode int
	Err        error
}

// Endpoints holds the URL templates for each ecosystem.
type Endpoints struct {
	PyPI string
	NPM  string
}

// DefaultEndpoints are the public registries.
var DefaultEndpoints = Endpoints{
	PyPI: "https://pypi.org/pypi/{}/json",
	NPM:  "https://registry.npmjs.org/{}",
}

// ValidateTemplate checks that tmpl has exactly one placeholder and expands
// to an absolute http(s) URL.
func ValidateTemplate(tmpl string) error {
	if n := strings.Count(tmpl, Placeholder); n != 1 {
		return fmt.Errorf("template %q must contain exactly one %s placeholder, found %d", tmpl, Placeholder, n)
	}
	u, err := url.Parse(strings.Replace(tmpl, Placeholder, "pkg", 1))
	if err != nil {
		return fmt.Errorf("template %q: %w", tmpl, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("template %q must be an absolute http(s) URL", tmpl)
	}
	return nil
}

// Validate checks both templates.
func (e Endpoints) Validate() error {
	if err := ValidateTemplate(e.PyPI); err != nil {
		return fmt.Errorf("pypi_api: %w", err)
	}
	if err := ValidateTemplate(e.NPM); err != nil {
		return fmt.Errorf("npm_api: %w", err)
	}
	return nil
}

// Client performs registry lookups. It is safe for concurrent use.
type Client struct {
	endpoints Endpoints
	http      *http.Client
	logger    *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default client. Its timeout is left untouched.
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.http = c }
}

// WithLogger sets the logger used for degraded lookups.
func WithLogger(l *zap.Logger) Option {
	return func(cl *Client) {
		if l != nil {
			cl.logger = l
		}
	}
}

// NewClient validates the endpoint templates and returns a Client whose
// requests are bounded by timeout.
func NewClient(endpoints Endpoints, timeout time.Duration, opts ...Option) (*Client, error) {
	if err := endpoints.Validate(); err != nil {
		return nil, err
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("registry timeout must be positive, got %s", timeout)
	}
	c := &Client{
		endpoints: endpoints,
		http:      &http.Client{Timeout: timeout},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// URL expands the metadata endpoint for name in eco.
func (c *Client) URL(name string, eco Ecosystem) (string, error) {
	switch eco {
	case Python:
		return strings.Replace(c.endpoints.PyPI, Placeholder, url.PathEscape(name), 1), nil
	case JavaScript:
		return strings.Replace(c.endpoints.NPM, Placeholder, escapeNPMName(name), 1), nil
	default:
		return "", fmt.Errorf("unsupported ecosystem %s", eco)
	}
}

// escapeNPMName keeps the scope marker and encodes the scope separator the
// way the npm registry expects: @scope/pkg → @scope%2fpkg.
func escapeNPMName(name string) string {
	if strings.HasPrefix(name, "@") {
		if scope, pkg, ok := strings.Cut(name[1:], "/"); ok {
			return "@" + url.PathEscape(scope) + "%2f" + url.PathEscape(pkg)
		}
	}
	return url.PathEscape(name)
}

// Lookup issues one GET against the metadata endpoint for name.
func (c *Client) Lookup(ctx context.Context, name string, eco Ecosystem) Result {
	t0 := time.Now()
	res := c.lookup(ctx, name, eco)
	metrics.ObserveLookup(metrics.SignalRegistry, res.Status.String(), time.Since(t0))
	if res.Status != Found {
		c.logger.Debug("registry lookup did not verify package",
			zap.String("package", name),
			zap.Stringer("ecosystem", eco),
			zap.Stringer("status", res.Status),
			zap.Int("http_status", res.StatusCode),
			zap.Error(res.Err),
		)
	}
	return res
}

func (c *Client) lookup(ctx context.Context, name string, eco Ecosystem) Result {
	resp, err := c.get(ctx, name, eco)
	if err != nil {
		return Result{Status: Unreachable, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK {
		return Result{Status: Found, StatusCode: resp.StatusCode}
	}
	return Result{
		Status:     NotFound,
		StatusCode: resp.StatusCode,
		Err:        fmt.Errorf("registry returned %d for %s", resp.StatusCode, name),
	}
}

// Exists reports whether the registry answered 200 for name. Any other
// status and any transport failure both yield false.
func (c *Client) Exists(ctx context.Context, name string, eco Ecosystem) bool {
	return c.Lookup(ctx, name, eco).Status == Found
}

type pypiMetadata struct {
	Info struct {
		TopLevel json.RawMessage `json:"top_level"`
	} `json:"info"`
}

// Subpackages returns the top-level modules PyPI declares for name. The
// field may be a string or a list of strings; any failure yields an empty
// slice.
func (c *Client) Subpackages(ctx context.Context, name string) []string {
	resp, err := c.get(ctx, name, Python)
	if err != nil {
		c.logger.Debug("subpackage lookup failed", zap.String("package", name), zap.Error(err))
		return []string{}
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return []string{}
	}

	var meta pypiMetadata
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		c.logger.Debug("decode package metadata", zap.String("package", name), zap.Error(err))
		return []string{}
	}
	return decodeTopLevel(meta.Info.TopLevel)
}

func decodeTopLevel(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return []string{}
		}
		return []string{single}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil && list != nil {
		return list
	}
	return []string{}
}

func (c *Client) get(ctx context.Context, name string, eco Ecosystem) (*http.Response, error) {
	if name == "" {
		return nil, errors.New("empty package name")
	}
	target, err := c.URL(name, eco)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}
