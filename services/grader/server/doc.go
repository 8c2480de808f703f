// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package server exposes grading over HTTP.
//
// Endpoints:
//
//	POST /v1/grade           grade one submission, returns the report
//	GET  /v1/grade/stream    websocket; one outcome per message, then the report
//	GET  /v1/reports/:id     fetch a stored report
//	GET  /v1/rubrics         list registered rubrics
//	GET  /v1/health          liveness
//	GET  /metrics            prometheus
package server
