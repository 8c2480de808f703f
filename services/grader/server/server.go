// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/AleutianGrade/services/grader/assignment"
	"github.com/AleutianAI/AleutianGrade/services/grader/batch"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubrics"
	"github.com/AleutianAI/AleutianGrade/services/grader/telemetry"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidSource  = "INVALID_SOURCE"
	CodeRubricNotFound = "RUBRIC_NOT_FOUND"
	CodeInvalidOptions = "INVALID_OPTIONS"
	CodeReportNotFound = "REPORT_NOT_FOUND"
	CodeStoreDisabled  = "STORE_DISABLED"
	CodeCancelled      = "CANCELLED"
	CodeGradeFailed    = "GRADE_FAILED"
	CodeInternal       = "INTERNAL"
)

// ErrSourceOutsideRoot indicates a source path outside the configured root.
var ErrSourceOutsideRoot = errors.New("source is outside the submissions root")

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is a stable machine-readable code.
	Code string `json:"code,omitempty"`
}

// ReportGetter fetches stored reports. *store.Store satisfies it.
type ReportGetter interface {
	Get(ctx context.Context, runID string) (*assignment.Report, error)
}

// Option configures a Server.
type Option func(*Server)

// WithReports enables GET /v1/reports/:id.
func WithReports(reports ReportGetter) Option {
	return func(s *Server) {
		s.reports = reports
	}
}

// WithSourceRoot restricts grade requests to sources under root. An empty
// root allows any source.
func WithSourceRoot(root string) Option {
	return func(s *Server) {
		if root == "" {
			s.sourceRoot = ""
			return
		}
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
		s.sourceRoot = filepath.Clean(root)
	}
}

// WithDebug enables gin's request logger.
func WithDebug(debug bool) Option {
	return func(s *Server) {
		s.debug = debug
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Server holds the HTTP handlers.
//
// Thread Safety: safe for concurrent use.
type Server struct {
	runner     *batch.Runner
	registry   *rubrics.Registry
	reports    ReportGetter
	sourceRoot string
	debug      bool
	logger     *slog.Logger
	upgrader   websocket.Upgrader
	started    time.Time
}

// New creates a Server that grades through runner.
func New(runner *batch.Runner, registry *rubrics.Registry, opts ...Option) *Server {
	s := &Server{
		runner:   runner,
		registry: registry,
		logger:   slog.Default(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with all routes and middleware.
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	if s.debug {
		router.Use(gin.Logger())
	}
	router.Use(requestID())
	router.Use(otelgin.Middleware("grader"))

	v1 := router.Group("/v1")
	v1.GET("/health", s.HandleHealth)
	v1.GET("/rubrics", s.HandleListRubrics)
	v1.POST("/grade", s.HandleGrade)
	v1.GET("/grade/stream", s.HandleGradeStream)
	v1.GET("/reports/:id", s.HandleGetReport)

	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))
	return router
}

// requestID echoes or assigns X-Request-ID and stores it on the context.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Header("X-Request-ID", id)
		c.Set("request_id", id)
		c.Next()
	}
}

func (s *Server) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return s.logger.With(
		slog.String("request_id", c.GetString("request_id")),
		slog.String("handler", handler),
	)
}

// checkSource validates a job's source against the configured root.
func (s *Server) checkSource(source string) error {
	if s.sourceRoot == "" {
		return nil
	}
	abs, err := filepath.Abs(source)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(s.sourceRoot, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrSourceOutsideRoot
	}
	return nil
}

// errorStatus maps a grading error to an HTTP status and code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, rubrics.ErrNotFound):
		return http.StatusNotFound, CodeRubricNotFound
	case errors.Is(err, rubrics.ErrInvalidVersion):
		return http.StatusBadRequest, CodeInvalidRequest
	case errors.Is(err, assignment.ErrInvalidOptions):
		return http.StatusBadRequest, CodeInvalidOptions
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeCancelled
	default:
		return http.StatusInternalServerError, CodeGradeFailed
	}
}
