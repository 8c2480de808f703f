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
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/AleutianGrade/services/grader/batch"
	"github.com/AleutianAI/AleutianGrade/services/grader/store"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
)

// HealthResponse is the body of GET /v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Rubrics int    `json:"rubrics"`
	Store   bool   `json:"store"`
}

// RubricInfo describes one registered rubric.
type RubricInfo struct {
	Ref         string              `json:"ref"`
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	Description string              `json:"description,omitempty"`
	Manifest    submission.Manifest `json:"manifest"`
}

// HandleHealth handles GET /v1/health.
func (s *Server) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(s.started).Round(time.Second).String(),
		Rubrics: len(s.registry.List()),
		Store:   s.reports != nil,
	})
}

// HandleListRubrics handles GET /v1/rubrics.
func (s *Server) HandleListRubrics(c *gin.Context) {
	defs := s.registry.List()
	out := make([]RubricInfo, 0, len(defs))
	for _, d := range defs {
		out = append(out, RubricInfo{
			Ref:         d.Ref(),
			Name:        d.Name,
			Version:     d.Version,
			Description: d.Description,
			Manifest:    d.Manifest,
		})
	}
	c.JSON(http.StatusOK, out)
}

// HandleGrade handles POST /v1/grade.
//
// Description:
//
//	Grades one submission synchronously. The body is a batch.Job. The
//	report is returned even when persisting it failed; the failure is
//	reported in the X-Grader-Warning header.
//
// Responses:
//
//	200 - assignment.Report
//	400 - INVALID_REQUEST, INVALID_SOURCE, INVALID_OPTIONS
//	404 - RUBRIC_NOT_FOUND
//	500 - GRADE_FAILED
//	503 - CANCELLED
func (s *Server) HandleGrade(c *gin.Context) {
	logger := s.requestLogger(c, "HandleGrade")

	var job batch.Job
	if err := c.ShouldBindJSON(&job); err != nil {
		logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: CodeInvalidRequest})
		return
	}
	if err := s.checkSource(job.Source); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidSource})
		return
	}

	logger.Info("Grading", slog.String("assignment", job.Assignment), slog.String("user", job.User))
	res := s.runner.GradeOne(c.Request.Context(), job, nil)
	if res.Report == nil {
		status, code := errorStatus(res.Err)
		logger.Warn("Grade failed", slog.String("error", res.Error), slog.String("code", code))
		c.JSON(status, ErrorResponse{Error: res.Error, Code: code})
		return
	}
	if res.Err != nil {
		c.Header("X-Grader-Warning", res.Error)
	}
	c.JSON(http.StatusOK, res.Report)
}

// HandleGetReport handles GET /v1/reports/:id.
func (s *Server) HandleGetReport(c *gin.Context) {
	if s.reports == nil {
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "report store is disabled", Code: CodeStoreDisabled})
		return
	}
	report, err := s.reports.Get(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error(), Code: CodeReportNotFound})
	case errors.Is(err, store.ErrInvalidKey):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: CodeInvalidRequest})
	case err != nil:
		s.requestLogger(c, "HandleGetReport").Error("Report lookup failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "report lookup failed", Code: CodeInternal})
	default:
		c.JSON(http.StatusOK, report)
	}
}
