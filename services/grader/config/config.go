// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads the grader's YAML configuration.
//
// Loading order is defaults, then the YAML file, then GRADER_* environment
// variables. Unknown YAML keys are errors so that a misspelled option
// fails loudly instead of being ignored.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianGrade/pkg/logging"
	"github.com/AleutianAI/AleutianGrade/services/grader/assignment"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
	"github.com/AleutianAI/AleutianGrade/services/grader/telemetry"
)

// ErrInvalidConfig wraps every load or validation failure.
var ErrInvalidConfig = errors.New("invalid grader config")

// Config is the root of grader.yaml.
type Config struct {
	Grader    GraderConfig     `yaml:"grader"`
	Sandbox   SandboxConfig    `yaml:"sandbox"`
	Batch     BatchConfig      `yaml:"batch"`
	Server    ServerConfig     `yaml:"server"`
	Store     StoreConfig      `yaml:"store"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Logging   LoggingConfig    `yaml:"logging"`
}

// GraderConfig holds assignment defaults.
type GraderConfig struct {
	InputDir        string        `yaml:"input_dir"`
	OutputDir       string        `yaml:"output_dir"`
	StyleMaxPoints  float64       `yaml:"style_max_points" validate:"gte=0"`
	CallTimeout     time.Duration `yaml:"call_timeout" validate:"gte=0"`
	QuestionTimeout time.Duration `yaml:"question_timeout" validate:"gte=0"`
}

// SandboxConfig configures the Python submission process.
type SandboxConfig struct {
	Python       string `yaml:"python" validate:"required"`
	Entry        string `yaml:"entry" validate:"required"`
	MemoryMB     uint64 `yaml:"memory_mb"`
	CPUSeconds   uint64 `yaml:"cpu_seconds"`
	MaxOpenFiles uint64 `yaml:"max_open_files"`
	MaxOutputKB  int    `yaml:"max_output_kb" validate:"gte=0"`
}

// BatchConfig bounds concurrent grading.
type BatchConfig struct {
	Workers    int     `yaml:"workers" validate:"gte=1"`
	SpawnRate  float64 `yaml:"spawn_rate" validate:"gte=0"`
	SpawnBurst int     `yaml:"spawn_burst" validate:"gte=1"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port  int  `yaml:"port" validate:"gte=1,lte=65535"`
	Debug bool `yaml:"debug"`
}

// StoreConfig configures the report store.
type StoreConfig struct {
	Path     string `yaml:"path" validate:"required_without=InMemory"`
	InMemory bool   `yaml:"in_memory"`
}

// LoggingConfig configures pkg/logging.
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() Config {
	py := submission.DefaultPythonConfig()
	return Config{
		Grader: GraderConfig{
			CallTimeout:     5 * time.Second,
			QuestionTimeout: 30 * time.Second,
		},
		Sandbox: SandboxConfig{
			Python:       py.Interpreter,
			Entry:        py.Entry,
			MemoryMB:     py.Limits.MemoryBytes >> 20,
			CPUSeconds:   py.Limits.CPUSeconds,
			MaxOpenFiles: py.Limits.MaxOpenFiles,
			MaxOutputKB:  py.MaxOutputBytes >> 10,
		},
		Batch: BatchConfig{
			Workers:    4,
			SpawnRate:  20,
			SpawnBurst: 4,
		},
		Server:    ServerConfig{Port: 8085},
		Store:     StoreConfig{Path: "~/.grader/reports"},
		Telemetry: telemetry.DefaultConfig(),
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads path over the defaults, applies env overrides and validates.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		if err := decode(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML over the defaults without reading the environment.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := decode(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func decode(data []byte, cfg *Config) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// applyEnv overrides fields from GRADER_* variables.
func (c *Config) applyEnv() error {
	c.Grader.InputDir = getEnvOr("GRADER_INPUT_DIR", c.Grader.InputDir)
	c.Grader.OutputDir = getEnvOr("GRADER_OUTPUT_DIR", c.Grader.OutputDir)
	c.Sandbox.Python = getEnvOr("GRADER_PYTHON", c.Sandbox.Python)
	c.Store.Path = getEnvOr("GRADER_STORE_PATH", c.Store.Path)
	c.Logging.Level = getEnvOr("GRADER_LOG_LEVEL", c.Logging.Level)

	var errs []error
	if v := os.Getenv("GRADER_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		errs = append(errs, envErr("GRADER_CALL_TIMEOUT", err))
		if err == nil {
			c.Grader.CallTimeout = d
		}
	}
	if v := os.Getenv("GRADER_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("GRADER_WORKERS", err))
		if err == nil {
			c.Batch.Workers = n
		}
	}
	if v := os.Getenv("GRADER_PORT"); v != "" {
		n, err := strconv.Atoi(v)
		errs = append(errs, envErr("GRADER_PORT", err))
		if err == nil {
			c.Server.Port = n
		}
	}
	return errors.Join(errs...)
}

func envErr(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
}

func getEnvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// AssignmentOptions converts the grader section. The rubric fills in the
// name and manifest.
func (c Config) AssignmentOptions() assignment.Options {
	return assignment.Options{
		InputDir:        c.Grader.InputDir,
		OutputDir:       c.Grader.OutputDir,
		StyleMaxPoints:  c.Grader.StyleMaxPoints,
		CallTimeout:     c.Grader.CallTimeout,
		QuestionTimeout: c.Grader.QuestionTimeout,
	}
}

// PythonConfig converts the sandbox section for the submission loader.
func (c Config) PythonConfig() submission.PythonConfig {
	py := submission.DefaultPythonConfig()
	py.Interpreter = c.Sandbox.Python
	py.Entry = c.Sandbox.Entry
	py.Limits = submission.Limits{
		MemoryBytes:  c.Sandbox.MemoryMB << 20,
		CPUSeconds:   c.Sandbox.CPUSeconds,
		MaxOpenFiles: c.Sandbox.MaxOpenFiles,
	}
	py.MaxOutputBytes = c.Sandbox.MaxOutputKB << 10
	return py
}

// LoggerConfig converts the logging section for pkg/logging.
func (c Config) LoggerConfig(service string) (logging.Config, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return logging.Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return logging.Config{
		Level:   level,
		LogDir:  c.Logging.Dir,
		Service: service,
		JSON:    c.Logging.JSON,
	}, nil
}
