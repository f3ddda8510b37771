package similarity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultOpenAIBaseURL = "https://api.openai.com/v1"
	defaultOpenAIModel   = "text-embedding-3-small"
	defaultOpenAIDims    = 1536

	defaultOllamaBaseURL = "http://localhost:11434/v1"
	defaultOllamaModel   = "all-minilm"
	defaultOllamaDims    = 384

	defaultEmbeddingTimeout = 30 * time.Second
)

// EmbedderConfig selects and configures an Embedder.
type EmbedderConfig struct {
	Provider string // "minilm", "ngram", "openai" or "ollama"
	APIKey   string
	BaseURL  string
	Model    string
	ModelDir string // download cache for minilm
	Dims     int
	Timeout  time.Duration
}

// NewEmbedder builds the embedder named by cfg.Provider.
func NewEmbedder(cfg EmbedderConfig) (Embedder, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "minilm":
		emb, err := NewHugotEmbedder(cfg)
		if err != nil {
			return nil, err
		}
		return emb, nil
	case "ngram":
		return NewNGramEmbedder(cfg.Dims), nil
	case "openai":
		return NewHTTPEmbedder(withDefaults(cfg, defaultOpenAIBaseURL, defaultOpenAIModel, defaultOpenAIDims)), nil
	case "ollama":
		return NewHTTPEmbedder(withDefaults(cfg, defaultOllamaBaseURL, defaultOllamaModel, defaultOllamaDims)), nil
	default:
		return nil, fmt.Errorf("unknown embedder %q; choose minilm|ngram|openai|ollama", cfg.Provider)
	}
}

func withDefaults(cfg EmbedderConfig, baseURL, model string, dims int) EmbedderConfig {
	if cfg.BaseURL == "" {
		cfg.BaseURL = baseURL
	}
	if cfg.Model == "" {
		cfg.Model = model
	}
	if cfg.Dims <= 0 {
		cfg.Dims = dims
	}
	return cfg
}

// HTTPEmbedder calls an OpenAI-compatible POST /embeddings endpoint. Both
// the OpenAI API and a local Ollama server speak this format.
type HTTPEmbedder struct {
	apiKey  string
	baseURL string
	model   string
	dims    int
	client  *http.Client
}

// NewHTTPEmbedder creates an HTTP embedder. Empty fields are not defaulted;
// use NewEmbedder for provider defaults.
func NewHTTPEmbedder(cfg EmbedderConfig) *HTTPEmbedder {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultEmbeddingTimeout
	}
	return &HTTPEmbedder{
		apiKey:  cfg.APIKey,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		dims:    cfg.Dims,
		client:  &http.Client{Timeout: timeout},
	}
}

func (e *HTTPEmbedder) Dimensions() int { return e.dims }

func (e *HTTPEmbedder) Name() string { return e.model }

// Embed returns unit-length vectors ordered like texts.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(embeddingRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshalling embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("embedding error (status %d): %s", resp.StatusCode, string(body))
	}

	var embResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embResp); err != nil {
		return nil, fmt.Errorf("decoding embedding response: %w", err)
	}
	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(embResp.Data), len(texts))
	}

	out := make([][]float32, len(texts))
	for _, d := range embResp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding response index %d out of range", d.Index)
		}
		normalize(d.Embedding)
		out[d.Index] = d.Embedding
	}
	for i, v := range out {
		if v == nil {
			return nil, fmt.Errorf("embedding response missing vector %d", i)
		}
	}
	return out, nil
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Model string          `json:"model"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}
