// Package server exposes the analyzer over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/1homsi/importrisk/internal/registry"
	"github.com/1homsi/importrisk/internal/report"
	"github.com/1homsi/importrisk/internal/sniff"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Engine is the analysis surface the API serves.
type Engine interface {
	Analyze(ctx context.Context, code string, eco registry.Ecosystem) report.AnalysisReport
	AnalyzePackages(ctx context.Context, names []string, eco registry.Ecosystem) report.AnalysisReport
	ResolveEcosystem(hint, code string) (registry.Ecosystem, error)
}

// Config holds listener and rate-limit settings. RateLimitRPS <= 0 disables
// rate limiting.
type Config struct {
	Addr           string
	RateLimitRPS   int
	RateLimitBurst int
}

type Server struct {
	engine Engine
	cfg    Config
	logger *zap.Logger
	router *gin.Engine
}

// New builds the router. The caller chooses the gin mode.
func New(engine Engine, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{engine: engine, cfg: cfg, logger: logger}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(Prometheus())
	router.Use(bodyLimit(maxBodyBytes))
	if cfg.RateLimitRPS > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = cfg.RateLimitRPS * 2
		}
		router.Use(RateLimiter(cfg.RateLimitRPS, burst))
	}
	router.Use(requestLogger(logger))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/v1")
	v1.POST("/analyze", s.analyze)
	v1.POST("/check", s.check)
	v1.POST("/sniff", s.sniff)

	s.router = router
	return s
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	httpSrv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("importrisk API listening", zap.String("addr", s.cfg.Addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("shutting down API...")
	shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		return err
	}
	s.logger.Info("API stopped")
	return nil
}

type analyzeRequest struct {
	Code      string `json:"code"`
	Ecosystem string `json:"ecosystem"`
}

type checkRequest struct {
	Packages  []string `json:"packages" binding:"required"`
	Ecosystem string   `json:"ecosystem"`
}

type sniffRequest struct {
	Code string `json:"code"`
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	eco, err := s.engine.ResolveEcosystem(req.Ecosystem, req.Code)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.engine.Analyze(c.Request.Context(), req.Code, eco))
}

func (s *Server) check(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	hint := req.Ecosystem
	if strings.TrimSpace(hint) == "" {
		hint = registry.Python.String()
	}
	eco, err := registry.ParseEcosystem(hint)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.engine.AnalyzePackages(c.Request.Context(), req.Packages, eco))
}

func (s *Server) sniff(c *gin.Context) {
	var req sniffRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"language": sniff.Detect(req.Code)})
}
