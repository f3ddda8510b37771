package similarity

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/knights-analytics/hugot"
	"github.com/knights-analytics/hugot/pipelines"
)

const (
	// DefaultModel is the ONNX export of sentence-transformers/all-MiniLM-L6-v2.
	DefaultModel      = "KnightsAnalytics/all-MiniLM-L6-v2"
	defaultMiniLMDims = 384
)

type featureExtractor interface {
	RunPipeline(inputs []string) (*pipelines.FeatureExtractionOutput, error)
}

// loadPipeline resolves the model and starts an in-process inference
// session. The returned func releases the session.
var loadPipeline = func(model, dir string) (featureExtractor, func() error, error) {
	path, err := resolveModel(model, dir)
	if err != nil {
		return nil, nil, err
	}
	session, err := hugot.NewGoSession()
	if err != nil {
		return nil, nil, fmt.Errorf("start inference session: %w", err)
	}
	p, err := hugot.NewPipeline(session, hugot.FeatureExtractionConfig{
		ModelPath: path,
		Name:      "importrisk-similarity",
		Options:   []hugot.FeatureExtractionOption{pipelines.WithNormalization()},
	})
	if err != nil {
		_ = session.Destroy()
		return nil, nil, fmt.Errorf("load model %s: %w", path, err)
	}
	return p, session.Destroy, nil
}

// resolveModel returns a local model directory. model may already be one;
// otherwise it is a Hugging Face repository, fetched into dir on first use.
func resolveModel(model, dir string) (string, error) {
	if fi, err := os.Stat(model); err == nil && fi.IsDir() {
		return model, nil
	}
	if dir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return "", fmt.Errorf("model cache dir: %w", err)
		}
		dir = filepath.Join(cache, "importrisk", "models")
	}
	local := filepath.Join(dir, strings.ReplaceAll(model, "/", "_"))
	if _, err := os.Stat(filepath.Join(local, "tokenizer.json")); err == nil {
		return local, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path, err := hugot.DownloadModel(model, dir, hugot.NewDownloadOptions())
	if err != nil {
		return "", fmt.Errorf("download model %s: %w", model, err)
	}
	return path, nil
}

// HugotEmbedder runs a pretrained sentence-embedding model in process on
// the pure-Go backend. The model is loaded once by NewHugotEmbedder and the
// pipeline is shared by all callers.
type HugotEmbedder struct {
	model    string
	dims     int
	pipeline featureExtractor

	closeOnce sync.Once
	release   func() error
}

// NewHugotEmbedder loads cfg.Model (default DefaultModel), caching
// downloads under cfg.ModelDir.
func NewHugotEmbedder(cfg EmbedderConfig) (*HugotEmbedder, error) {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dims := cfg.Dims
	if dims <= 0 {
		dims = defaultMiniLMDims
	}
	p, release, err := loadPipeline(model, cfg.ModelDir)
	if err != nil {
		return nil, err
	}
	return &HugotEmbedder{model: model, dims: dims, pipeline: p, release: release}, nil
}

func (e *HugotEmbedder) Dimensions() int { return e.dims }

func (e *HugotEmbedder) Name() string { return e.model }

func (e *HugotEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := e.pipeline.RunPipeline(texts)
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if out == nil || len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embed: got %d vectors for %d texts", lenEmbeddings(out), len(texts))
	}
	vecs := make([][]float32, len(texts))
	for i, v := range out.Embeddings {
		if len(v) != e.dims {
			return nil, fmt.Errorf("embed: vector %d has %d dimensions, want %d", i, len(v), e.dims)
		}
		vecs[i] = append([]float32(nil), v...)
		normalize(vecs[i])
	}
	return vecs, nil
}

// Close releases the inference session. It is safe to call more than once.
func (e *HugotEmbedder) Close() error {
	var err error
	e.closeOnce.Do(func() {
		if e.release != nil {
			err = e.release()
		}
	})
	return err
}

func lenEmbeddings(out *pipelines.FeatureExtractionOutput) int {
	if out == nil {
		return 0
	}
	return len(out.Embeddings)
}
