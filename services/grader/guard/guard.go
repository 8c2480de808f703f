// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package guard

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"time"
)

// Default budgets.
const (
	DefaultTimeout     = 5 * time.Second
	DefaultGracePeriod = 500 * time.Millisecond
)

// =============================================================================
// Guard
// =============================================================================

// Guard runs functions with a deadline and panic recovery.
//
// Thread Safety: immutable after construction, safe for concurrent use.
type Guard struct {
	timeout time.Duration
	grace   time.Duration
	logger  *slog.Logger
}

// Option configures a Guard.
type Option func(*Guard)

// WithTimeout sets the per-call budget. Zero or negative disables the
// deadline; panics are still recovered.
func WithTimeout(d time.Duration) Option {
	return func(g *Guard) {
		g.timeout = d
	}
}

// WithGracePeriod sets how long to wait for a cancelled call to return
// before abandoning it.
func WithGracePeriod(d time.Duration) Option {
	return func(g *Guard) {
		if d >= 0 {
			g.grace = d
		}
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// New creates a Guard with DefaultTimeout and DefaultGracePeriod unless
// overridden.
func New(opts ...Option) *Guard {
	g := &Guard{
		timeout: DefaultTimeout,
		grace:   DefaultGracePeriod,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Timeout returns the configured per-call budget.
func (g *Guard) Timeout() time.Duration {
	return g.timeout
}

// Run executes fn under the guard.
//
// Description:
//
//	fn runs in its own goroutine with a context that expires after the
//	guard's timeout. Run returns when fn returns, or when the deadline
//	plus grace period has passed, whichever comes first.
//
// Inputs:
//
//	ctx - Parent context. Its cancellation is reported as ErrCancelled.
//	label - Names the call in errors, logs and metrics.
//	fn - The work. Should honour ctx.Done().
//
// Outputs:
//
//	error - fn's error, a *TimeoutError, a *PanicError, or an error
//	        wrapping ErrCancelled.
//
// Thread Safety: safe for concurrent use.
func (g *Guard) Run(ctx context.Context, label string, fn func(context.Context) error) error {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		recordCall(outcomeCancelled, 0)
		return cancelled(label, err)
	}

	var (
		runCtx context.Context
		cancel context.CancelFunc
	)
	if g.timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, g.timeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.invoke(runCtx, label, fn)
	}()

	select {
	case err := <-done:
		return g.finish(ctx, runCtx, label, start, err)
	case <-runCtx.Done():
	}

	grace := time.NewTimer(g.grace)
	defer grace.Stop()
	select {
	case err := <-done:
		return g.finish(ctx, runCtx, label, start, err)
	case <-grace.C:
		recordAbandoned()
		g.logger.Warn("guarded call abandoned after grace period",
			slog.String("label", label),
			slog.Duration("timeout", g.timeout),
			slog.Duration("grace", g.grace))
	}
	return g.finish(ctx, runCtx, label, start, runCtx.Err())
}

// invoke calls fn and converts a panic into *PanicError.
func (g *Guard) invoke(ctx context.Context, label string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			g.logger.Error("guarded call panicked",
				slog.String("label", label),
				slog.Any("panic", r),
				slog.String("stack", string(stack)))
			err = &PanicError{Label: label, Value: r, Stack: stack}
		}
	}()
	return fn(ctx)
}

// finish classifies the result of a call and records metrics.
func (g *Guard) finish(parent, runCtx context.Context, label string, start time.Time, err error) error {
	elapsed := time.Since(start)
	switch {
	case err == nil:
		recordCall(outcomeOK, elapsed)
		return nil
	case errors.Is(err, ErrPanic):
		recordCall(outcomePanic, elapsed)
		return err
	case parent.Err() != nil:
		recordCall(outcomeCancelled, elapsed)
		return cancelled(label, parent.Err())
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && !errors.Is(err, ErrTimeout):
		// An error after our own deadline is the callee reacting to it.
		recordCall(outcomeTimeout, elapsed)
		return &TimeoutError{Label: label, Timeout: g.timeout}
	case errors.Is(err, ErrTimeout):
		recordCall(outcomeTimeout, elapsed)
		return err
	default:
		recordCall(outcomeError, elapsed)
		return err
	}
}

// =============================================================================
// Panic Isolation Without a Deadline
// =============================================================================

// Safely runs fn on the calling goroutine and converts a panic into
// *PanicError.
//
// Description:
//
//	Used where the caller must stay on its own goroutine, for example to
//	keep component order deterministic, and where a deadline is enforced
//	further down.
func Safely(label string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			slog.Error("isolated call panicked",
				slog.String("label", label),
				slog.Any("panic", r),
				slog.String("stack", string(stack)))
			err = &PanicError{Label: label, Value: r, Stack: stack}
		}
	}()
	return fn()
}
