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
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/AleutianAI/AleutianGrade/services/grader/assignment"
	"github.com/AleutianAI/AleutianGrade/services/grader/batch"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
)

// Stream message types.
const (
	MessageOutcome = "outcome"
	MessageReport  = "report"
	MessageError   = "error"
)

// StreamMessage is one websocket frame sent by /v1/grade/stream.
type StreamMessage struct {
	Type    string             `json:"type"`
	Outcome *rubric.Outcome    `json:"outcome,omitempty"`
	Report  *assignment.Report `json:"report,omitempty"`
	Error   *ErrorResponse     `json:"error,omitempty"`
}

// HandleGradeStream handles GET /v1/grade/stream.
//
// Description:
//
//	After the upgrade the client sends one batch.Job. The server replies
//	with an "outcome" message per component as it finishes, then a
//	"report" message, then closes. Failures before grading starts are a
//	single "error" message.
func (s *Server) HandleGradeStream(c *gin.Context) {
	logger := s.requestLogger(c, "HandleGradeStream")

	ws, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("Websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	var job batch.Job
	if err := ws.ReadJSON(&job); err != nil || job.Assignment == "" || job.Source == "" {
		s.send(ws, logger, StreamMessage{Type: MessageError, Error: &ErrorResponse{Error: "invalid grade request", Code: CodeInvalidRequest}})
		return
	}
	if err := s.checkSource(job.Source); err != nil {
		s.send(ws, logger, StreamMessage{Type: MessageError, Error: &ErrorResponse{Error: err.Error(), Code: CodeInvalidSource}})
		return
	}

	writeFailed := false
	res := s.runner.GradeOne(c.Request.Context(), job, func(out rubric.Outcome) {
		if writeFailed {
			return
		}
		if err := s.send(ws, logger, StreamMessage{Type: MessageOutcome, Outcome: &out}); err != nil {
			writeFailed = true
		}
	})
	if writeFailed {
		return
	}
	if res.Report == nil {
		_, code := errorStatus(res.Err)
		s.send(ws, logger, StreamMessage{Type: MessageError, Error: &ErrorResponse{Error: res.Error, Code: code}})
		return
	}
	s.send(ws, logger, StreamMessage{Type: MessageReport, Report: res.Report})
	_ = ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (s *Server) send(ws *websocket.Conn, logger *slog.Logger, msg StreamMessage) error {
	err := ws.WriteJSON(msg)
	if err != nil {
		logger.Warn("Failed to write websocket JSON", slog.String("error", err.Error()))
	}
	return err
}
