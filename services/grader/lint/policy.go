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
	"strings"
	"sync"
)

// RulePolicy maps rule codes to how a grader treats them.
//
// Patterns match a rule exactly, as a path prefix ("errcheck" matches
// "errcheck/foo"), or as a code family ("E" matches "E501" and "F" matches
// "F401", but "E" does not match "ERA001"). Matching is case-insensitive.
type RulePolicy struct {
	// BlockOn rules make a style check fail when it carries points.
	BlockOn []string `yaml:"block_on"`

	// WarnOn rules are reported as style feedback. Unlisted rules are too.
	WarnOn []string `yaml:"warn_on"`

	// Ignore rules are kept out of feedback.
	Ignore []string `yaml:"ignore"`
}

// Classify returns the severity the policy assigns to rule. Ignore beats
// BlockOn, which beats WarnOn.
func (p *RulePolicy) Classify(rule string) Severity {
	switch {
	case p.matchesAny(p.Ignore, rule):
		return SeverityInfo
	case p.matchesAny(p.BlockOn, rule):
		return SeverityError
	default:
		return SeverityWarning
	}
}

func (p *RulePolicy) matchesAny(patterns []string, rule string) bool {
	rule = strings.ToLower(rule)
	for _, pattern := range patterns {
		if matchesRule(rule, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

func matchesRule(rule, pattern string) bool {
	if rule == pattern || strings.HasPrefix(rule, pattern+"/") {
		return true
	}
	if strings.HasPrefix(rule, pattern) && len(rule) > len(pattern) {
		next := rule[len(pattern)]
		return next >= '0' && next <= '9'
	}
	return false
}

// DefaultPythonPolicy blocks on code that cannot run (syntax errors,
// undefined names) and keeps import-order and docstring noise out of
// student feedback.
var DefaultPythonPolicy = RulePolicy{
	BlockOn: []string{"E9", "F63", "F7", "F82"},
	WarnOn:  []string{"E", "W", "F", "C90", "B"},
	Ignore:  []string{"I", "D"},
}

// DefaultGoPolicy blocks on correctness linters.
var DefaultGoPolicy = RulePolicy{
	BlockOn: []string{"typecheck", "errcheck", "staticcheck", "govet"},
	WarnOn:  []string{"ineffassign", "unused", "gosimple", "revive"},
	Ignore:  []string{"lll", "godox"},
}

// PolicyRegistry holds policies keyed by language.
//
// Thread Safety: safe for concurrent use.
type PolicyRegistry struct {
	mu       sync.RWMutex
	policies map[string]*RulePolicy
}

// NewPolicyRegistry creates a registry with the default policies.
func NewPolicyRegistry() *PolicyRegistry {
	return &PolicyRegistry{policies: map[string]*RulePolicy{
		"python": &DefaultPythonPolicy,
		"go":     &DefaultGoPolicy,
	}}
}

// Register sets the policy for language.
func (r *PolicyRegistry) Register(language string, policy *RulePolicy) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[language] = policy
}

// Get returns the policy for language, or an empty policy that warns on
// everything.
func (r *PolicyRegistry) Get(language string) *RulePolicy {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.policies[language]; ok {
		return p
	}
	return &RulePolicy{}
}

// ApplyPolicy splits issues by the severity the policy assigns.
func ApplyPolicy(issues []Issue, policy *RulePolicy) (blocking, warnings, infos []Issue) {
	blocking, warnings, infos = []Issue{}, []Issue{}, []Issue{}
	for _, issue := range issues {
		issue.Severity = policy.Classify(issue.Rule)
		switch issue.Severity {
		case SeverityError:
			blocking = append(blocking, issue)
		case SeverityWarning:
			warnings = append(warnings, issue)
		default:
			infos = append(infos, issue)
		}
	}
	return blocking, warnings, infos
}
