// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package assignment

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Sentinel errors for the assignment package.
var (
	// ErrInvalidOptions indicates options that fail validation or contain
	// unknown keys.
	ErrInvalidOptions = errors.New("invalid assignment options")

	// ErrNoComponents indicates an assignment without components.
	ErrNoComponents = errors.New("assignment has no components")

	// ErrNilComponent indicates a nil entry in the component list.
	ErrNilComponent = errors.New("component must not be nil")

	// ErrDuplicateLabel indicates two components with the same label.
	ErrDuplicateLabel = errors.New("duplicate component label")
)

// Options are the recognized assignment settings.
//
// Description:
//
//	Components that need filesystem context, such as style checks, read
//	InputDir when the rubric builds them, not at score time.
type Options struct {
	// Name identifies the assignment in reports, e.g. "hw0".
	Name string `yaml:"name" json:"name"`

	// InputDir is the submission location. It is not checked here: a
	// missing directory is a load failure and still produces a report.
	InputDir string `yaml:"input_dir" json:"input_dir"`

	// OutputDir receives summary.json when set.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// StyleMaxPoints overrides the weight of informational style checks.
	StyleMaxPoints float64 `yaml:"style_max_points" json:"style_max_points" validate:"gte=0"`

	// CallTimeout bounds each call into the submission.
	CallTimeout time.Duration `yaml:"call_timeout" json:"call_timeout" validate:"gte=0"`

	// QuestionTimeout bounds each question's whole scoring logic.
	QuestionTimeout time.Duration `yaml:"question_timeout" json:"question_timeout" validate:"gte=0"`

	// Manifest lists the callables the rubric requires. Set by the rubric.
	Manifest submission.Manifest `yaml:"-" json:"-" validate:"dive"`

	// Logger defaults to slog.Default().
	Logger *slog.Logger `yaml:"-" json:"-"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (o Options) Validate() error {
	if err := validate.Struct(o); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return nil
}

// OptionsFromMap decodes a loosely typed option bag.
//
// Description:
//
//	Keys follow the yaml tags of Options. An unrecognized key is a
//	construction-time error rather than being silently dropped. Durations
//	accept Go duration strings such as "5s".
//
// Inputs:
//
//	m - Option values keyed by name.
//
// Outputs:
//
//	Options - Decoded and validated options.
//	error - Wraps ErrInvalidOptions.
func OptionsFromMap(m map[string]any) (Options, error) {
	var opts Options
	raw, err := yaml.Marshal(m)
	if err != nil {
		return opts, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return opts, fmt.Errorf("%w: %v", ErrInvalidOptions, err)
	}
	return opts, opts.Validate()
}
