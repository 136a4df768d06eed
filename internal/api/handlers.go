package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/selivandex/thesis-engine/internal/analysis"
	"github.com/selivandex/thesis-engine/pkg/logger"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func (s *Server) handleAnalyze(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), s.opts.AnalyzeTimeout)
	defer cancel()

	report, err := s.analyzer.Analyze(ctx, c.Param("ticker"))
	if err != nil {
		status := StatusFor(err)
		if status >= http.StatusInternalServerError {
			logger.Error("analysis failed",
				zap.String("ticker", c.Param("ticker")),
				zap.Int("status", status),
				zap.String("request_id", c.GetString(requestIDKey)),
				zap.Error(err),
			)
		}
		c.JSON(status, errorResponse{Detail: err.Error()})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"ok": true})
		return
	}
	c.JSON(http.StatusOK, s.health.Liveness())
}

func (s *Server) handleReady(c *gin.Context) {
	if s.health == nil {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	status := s.health.Readiness()
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, status)
}

// StatusFor maps pipeline failures to HTTP status codes
func StatusFor(err error) int {
	switch {
	case errors.Is(err, analysis.ErrValidation), errors.Is(err, analysis.ErrDataUnavailable):
		return http.StatusBadRequest
	case errors.Is(err, analysis.ErrSynthesisFailure), errors.Is(err, analysis.ErrPayloadInvalid):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
