// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package submission

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

//go:embed harness.py
var harnessSource string

// =============================================================================
// Configuration
// =============================================================================

// Limits bounds the resources of one submission process. Zero disables a
// limit.
type Limits struct {
	// MemoryBytes caps the address space (RLIMIT_AS).
	MemoryBytes uint64 `yaml:"memory_bytes"`

	// CPUSeconds caps CPU time (RLIMIT_CPU).
	CPUSeconds uint64 `yaml:"cpu_seconds"`

	// MaxOpenFiles caps file descriptors (RLIMIT_NOFILE).
	MaxOpenFiles uint64 `yaml:"max_open_files"`
}

// PythonConfig configures the Python provider.
type PythonConfig struct {
	// Interpreter is the python executable. Default "python3".
	Interpreter string

	// Entry is the file inside the source dir that defines the capabilities.
	// Default "submission.py".
	Entry string

	// Limits are applied to every call process.
	Limits Limits

	// MaxOutputBytes bounds the captured stdout of one call. Default 1 MiB.
	MaxOutputBytes int

	// WaitDelay bounds how long to wait for pipes after a kill. Default 1s.
	WaitDelay time.Duration
}

// DefaultPythonConfig returns the configuration used by the CLI.
func DefaultPythonConfig() PythonConfig {
	return PythonConfig{
		Interpreter: "python3",
		Entry:       "submission.py",
		Limits: Limits{
			MemoryBytes:  512 << 20,
			CPUSeconds:   10,
			MaxOpenFiles: 64,
		},
		MaxOutputBytes: 1 << 20,
		WaitDelay:      time.Second,
	}
}

// PythonOption configures a PythonLoader.
type PythonOption func(*PythonLoader)

// WithPythonLogger sets the logger. Default slog.Default().
func WithPythonLogger(logger *slog.Logger) PythonOption {
	return func(l *PythonLoader) {
		l.logger = logger
	}
}

// =============================================================================
// Loader
// =============================================================================

// PythonLoader loads Python submissions from a directory.
//
// Thread Safety: safe for concurrent use.
type PythonLoader struct {
	cfg    PythonConfig
	logger *slog.Logger
}

// NewPythonLoader creates a loader. Zero config fields take defaults.
func NewPythonLoader(cfg PythonConfig, opts ...PythonOption) *PythonLoader {
	def := DefaultPythonConfig()
	if cfg.Interpreter == "" {
		cfg.Interpreter = def.Interpreter
	}
	if cfg.Entry == "" {
		cfg.Entry = def.Entry
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	if cfg.WaitDelay <= 0 {
		cfg.WaitDelay = def.WaitDelay
	}
	l := &PythonLoader{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load implements Loader.
//
// Description:
//
//	Reads the entry file from the source directory, discovers its
//	top-level functions and checks them against manifest. No student code
//	runs during Load.
//
// Inputs:
//
//	ctx - Cancels parsing.
//	source - Submission directory.
//	manifest - Capabilities the rubric requires.
//
// Outputs:
//
//	Submission - A *PythonSubmission on success.
//	error - Always a *LoadError on failure.
func (l *PythonLoader) Load(ctx context.Context, source string, manifest Manifest) (Submission, error) {
	dir, err := filepath.Abs(source)
	if err != nil {
		return nil, &LoadError{Source: source, Err: err}
	}
	entry := filepath.Join(dir, l.cfg.Entry)
	content, err := os.ReadFile(entry)
	if err != nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("read %s: %w", l.cfg.Entry, err)}
	}

	sigs, err := discoverPython(ctx, content)
	if err != nil {
		return nil, &LoadError{Source: source, Err: fmt.Errorf("%s: %w", l.cfg.Entry, err)}
	}
	if err := manifest.Check(source, sigs); err != nil {
		return nil, err
	}

	l.logger.Debug("python submission loaded",
		slog.String("source", source),
		slog.Int("functions", len(sigs)))

	byName := make(map[string]Signature, len(sigs))
	for _, s := range sigs {
		byName[s.Name] = s
	}
	return &PythonSubmission{
		dir:    dir,
		entry:  entry,
		sigs:   byName,
		cfg:    l.cfg,
		logger: l.logger,
	}, nil
}

// =============================================================================
// Submission
// =============================================================================

// PythonSubmission runs each call in a fresh interpreter process.
//
// Description:
//
//	A fresh process per call means module-level state, crashes and
//	runaway loops never carry over between questions. Cancelling ctx
//	kills the whole process group.
//
// Thread Safety: safe for concurrent use.
type PythonSubmission struct {
	dir    string
	entry  string
	sigs   map[string]Signature
	cfg    PythonConfig
	logger *slog.Logger
}

type harnessRequest struct {
	Dir      string `json:"dir"`
	Path     string `json:"path"`
	Function string `json:"function"`
	Args     []any  `json:"args"`
}

type harnessResponse struct {
	OK             bool            `json:"ok"`
	Value          json.RawMessage `json:"value"`
	Truthy         *bool           `json:"truthy"`
	NotImplemented bool            `json:"not_implemented"`
	Error          *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Call implements Submission.
func (s *PythonSubmission) Call(ctx context.Context, name string, args ...any) (any, error) {
	sig, ok := s.sigs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCapability, name)
	}
	if !sig.Accepts(len(args)) {
		return nil, fmt.Errorf("%w: %s accepts %s, got %d", ErrArity, name, sig, len(args))
	}
	if args == nil {
		args = []any{}
	}
	req, err := json.Marshal(harnessRequest{Dir: s.dir, Path: s.entry, Function: name, Args: args})
	if err != nil {
		return nil, fmt.Errorf("encode arguments for %s: %w", name, err)
	}

	stdout := &cappedBuffer{limit: s.cfg.MaxOutputBytes}
	stderr := &cappedBuffer{limit: 64 << 10}

	cmd := exec.CommandContext(ctx, s.cfg.Interpreter, "-I", "-B", "-c", harnessSource)
	cmd.Dir = s.dir
	cmd.Stdin = bytes.NewReader(req)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.Env = []string{"PATH=" + os.Getenv("PATH")}
	cmd.WaitDelay = s.cfg.WaitDelay
	configureProcess(cmd)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", s.cfg.Interpreter, err)
	}
	if err := applyLimits(cmd.Process.Pid, s.cfg.Limits); err != nil {
		s.logger.Warn("resource limits not applied",
			slog.String("function", name),
			slog.String("error", err.Error()))
	}
	waitErr := cmd.Wait()

	s.logger.Debug("python call finished",
		slog.String("function", name),
		slog.Duration("duration", time.Since(start)),
		slog.Int("stderr_bytes", stderr.Len()))

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if stdout.overflow {
		return nil, &ExecutionError{Function: name, Type: "OutputError", Message: ErrOutputTooLarge.Error()}
	}
	return decodeResponse(name, stdout.Bytes(), waitErr)
}

// Signatures implements Submission.
func (s *PythonSubmission) Signatures() []Signature {
	return sortedSignatures(s.sigs)
}

// SourceDir implements Submission.
func (s *PythonSubmission) SourceDir() string {
	return s.dir
}

func decodeResponse(name string, out []byte, waitErr error) (any, error) {
	var resp harnessResponse
	if len(bytes.TrimSpace(out)) == 0 || json.Unmarshal(out, &resp) != nil {
		msg := "process produced no result"
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			msg = "process " + exitErr.ProcessState.String()
		}
		return nil, &ExecutionError{Function: name, Type: "ProcessError", Message: msg}
	}

	switch {
	case resp.NotImplemented:
		return NotImplemented, nil
	case resp.Error != nil:
		return nil, &ExecutionError{Function: name, Type: resp.Error.Type, Message: resp.Error.Message}
	case resp.OK:
		dec := json.NewDecoder(bytes.NewReader(resp.Value))
		dec.UseNumber()
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, &ExecutionError{Function: name, Type: "ProcessError", Message: "undecodable return value"}
		}
		v = normalizeJSON(v)
		if resp.Truthy != nil && truthy(v) != *resp.Truthy {
			v = Opaque{Repr: formatValue(v), Truth: *resp.Truthy, Value: v}
		}
		return v, nil
	}
	return nil, &ExecutionError{Function: name, Type: "ProcessError", Message: "malformed result"}
}

// cappedBuffer keeps at most limit bytes and records overflow instead of
// failing the write, so a chatty process is not killed by EPIPE.
type cappedBuffer struct {
	bytes.Buffer
	limit    int
	overflow bool
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - b.Buffer.Len()
	if room <= 0 {
		b.overflow = b.overflow || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		b.overflow = true
		b.Buffer.Write(p[:room])
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
