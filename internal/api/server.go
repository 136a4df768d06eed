// Package api exposes the analysis pipeline over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/internal/health"
	"github.com/selivandex/thesis-engine/pkg/logger"
	"github.com/selivandex/thesis-engine/pkg/models"
)

// Analyzer produces a report for a ticker
type Analyzer interface {
	Analyze(ctx context.Context, ticker string) (*models.Report, error)
}

// Options configures the HTTP server
type Options struct {
	Port string
	// RateLimit is requests per second across all clients; 0 disables limiting
	RateLimit      float64
	RateBurst      int
	AnalyzeTimeout time.Duration
	CORSOrigins    []string
}

// Server is the HTTP API server
type Server struct {
	engine   *gin.Engine
	server   *http.Server
	analyzer Analyzer
	health   *health.Registry
	opts     Options
}

// NewServer builds the router
func NewServer(analyzer Analyzer, registry *health.Registry, opts Options) *Server {
	if opts.AnalyzeTimeout <= 0 {
		opts.AnalyzeTimeout = 60 * time.Second
	}

	engine := gin.New()
	engine.Use(gin.Recovery(), requestID(), accessLog())
	if len(opts.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{http.MethodGet, http.MethodOptions},
			AllowHeaders: []string{"Origin", "Content-Type", requestIDHeader},
		}))
	}

	s := &Server{
		engine:   engine,
		analyzer: analyzer,
		health:   registry,
		opts:     opts,
	}

	engine.GET("/health", s.handleHealth)
	engine.GET("/ready", s.handleReady)

	analyze := engine.Group("/analyze")
	if opts.RateLimit > 0 {
		analyze.Use(rateLimit(opts.RateLimit, opts.RateBurst))
	}
	analyze.GET("/:ticker", s.handleAnalyze)

	s.server = &http.Server{
		Addr:              ":" + opts.Port,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      opts.AnalyzeTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// Handler returns the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called
func (s *Server) Start() error {
	logger.Info("api server starting", zap.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	logger.Info("stopping api server...")
	return s.server.Shutdown(ctx)
}
