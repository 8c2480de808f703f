// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lint

import (
	"encoding/json"
	"fmt"
)

// Parser converts raw linter output into issues.
type Parser func(data []byte) ([]Issue, error)

// GetParser returns the parser for language, or nil.
func GetParser(language string) Parser {
	switch language {
	case "python":
		return parseRuffOutput
	case "go":
		return parseGolangCIOutput
	default:
		return nil
	}
}

// =============================================================================
// RUFF PARSER
// =============================================================================

type ruffIssue struct {
	Code     string       `json:"code"`
	Filename string       `json:"filename"`
	Location ruffLocation `json:"location"`
	Message  string       `json:"message"`
}

type ruffLocation struct {
	Column int `json:"column"`
	Row    int `json:"row"`
}

// parseRuffOutput parses the JSON array ruff writes with
// --output-format=json. Syntax errors arrive with an empty code.
func parseRuffOutput(data []byte) ([]Issue, error) {
	var raw []ruffIssue
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing ruff output: %w", err)
	}
	issues := make([]Issue, 0, len(raw))
	for _, ri := range raw {
		rule := ri.Code
		if rule == "" {
			rule = "E999"
		}
		issues = append(issues, Issue{
			File:    ri.Filename,
			Line:    ri.Location.Row,
			Column:  ri.Location.Column,
			Rule:    rule,
			Message: ri.Message,
			Linter:  "ruff",
		})
	}
	return issues, nil
}

// =============================================================================
// GOLANGCI-LINT PARSER
// =============================================================================

type golangciOutput struct {
	Issues []struct {
		FromLinter string `json:"FromLinter"`
		Text       string `json:"Text"`
		Pos        struct {
			Filename string `json:"Filename"`
			Line     int    `json:"Line"`
			Column   int    `json:"Column"`
		} `json:"Pos"`
	} `json:"Issues"`
}

// parseGolangCIOutput parses golangci-lint's JSON report.
func parseGolangCIOutput(data []byte) ([]Issue, error) {
	var out golangciOutput
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing golangci-lint output: %w", err)
	}
	issues := make([]Issue, 0, len(out.Issues))
	for _, gi := range out.Issues {
		issues = append(issues, Issue{
			File:    gi.Pos.Filename,
			Line:    gi.Pos.Line,
			Column:  gi.Pos.Column,
			Rule:    gi.FromLinter,
			Message: gi.Text,
			Linter:  "golangci-lint",
		})
	}
	return issues, nil
}
