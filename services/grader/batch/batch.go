// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/AleutianGrade/services/grader/assignment"
	"github.com/AleutianAI/AleutianGrade/services/grader/guard"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubrics"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
)

// Sentinel errors for batch grading.
var (
	// ErrNoStore indicates Regrade was called on a runner without a store.
	ErrNoStore = errors.New("regrade requires a report store")

	// ErrNoPriorSubmission indicates a user with nothing to regrade.
	ErrNoPriorSubmission = errors.New("no prior submission")
)

// DefaultWorkers is the concurrency limit when none is set.
const DefaultWorkers = 4

// Job is one submission to grade.
type Job struct {
	// Assignment is a rubric reference such as "hw0" or "hw0@v1.0.0".
	Assignment string `json:"assignment" binding:"required"`

	// User identifies the student. Optional for one-off runs.
	User string `json:"user"`

	// Source is the submission directory.
	Source string `json:"source" binding:"required"`
}

// Result pairs a job with its report or error.
type Result struct {
	Job    Job                `json:"job"`
	Report *assignment.Report `json:"report,omitempty"`
	Err    error              `json:"-"`

	// Error is Err's text for JSON consumers.
	Error string `json:"error,omitempty"`
}

// ReportStore persists reports. *store.Store satisfies it.
type ReportStore interface {
	Put(ctx context.Context, report *assignment.Report) error
	Latest(ctx context.Context, assignmentName, user string) (*assignment.Report, error)
	Users(ctx context.Context, assignmentName string) ([]string, error)
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers bounds concurrent jobs.
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithSpawnRate limits how fast jobs start, in jobs per second. Zero
// disables the limit.
func WithSpawnRate(perSecond float64, burst int) Option {
	return func(r *Runner) {
		if perSecond <= 0 {
			r.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithStore persists every report and enables Regrade.
func WithStore(s ReportStore) Option {
	return func(r *Runner) {
		r.store = s
	}
}

// WithOutputDir writes {dir}/{assignment}/{user}/summary.json per job.
func WithOutputDir(dir string) Option {
	return func(r *Runner) {
		r.outputDir = dir
	}
}

// WithOptions sets the base assignment options every job starts from.
func WithOptions(opts assignment.Options) Option {
	return func(r *Runner) {
		r.base = opts
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Runner grades jobs concurrently.
//
// Thread Safety: safe for concurrent use. Concurrent Run calls share the
// per-submission locks but not the worker limit.
type Runner struct {
	registry  *rubrics.Registry
	loader    submission.Loader
	store     ReportStore
	base      assignment.Options
	outputDir string
	workers   int
	limiter   *rate.Limiter
	logger    *slog.Logger
	locks     *keyedMutex
}

// NewRunner creates a runner that resolves rubrics from registry and loads
// submissions with loader.
func NewRunner(registry *rubrics.Registry, loader submission.Loader, opts ...Option) *Runner {
	r := &Runner{
		registry: registry,
		loader:   loader,
		workers:  DefaultWorkers,
		limiter:  rate.NewLimiter(rate.Inf, 0),
		logger:   slog.Default(),
		locks:    newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run grades every job and returns results in job order.
//
// Description:
//
//	Jobs run on at most the configured number of workers. A job that
//	fails to build, load or persist carries its error in its Result;
//	the rest still run. When ctx is cancelled, jobs that have not
//	started get ctx's error.
func (r *Runner) Run(ctx context.Context, jobs []Job) []Result {
	start := time.Now()
	results := make([]Result, len(jobs))

	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, job := range jobs {
		g.Go(func() error {
			results[i] = r.runJob(ctx, job, nil)
			return nil
		})
	}
	_ = g.Wait()

	summary := Summarize(results)
	r.logger.Info("batch graded",
		slog.Int("jobs", summary.Total),
		slog.Int("graded", summary.Graded),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", time.Since(start)))
	return results
}

// Regrade re-runs each user's most recent submission for an assignment.
// With no users it regrades every user the store knows. Results follow the
// order of users; a user without a stored submission gets a failed result
// carrying ErrNoPriorSubmission in place.
func (r *Runner) Regrade(ctx context.Context, assignmentRef string, users []string) ([]Result, error) {
	if r.store == nil {
		return nil, ErrNoStore
	}
	def, err := r.registry.Lookup(assignmentRef)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		if users, err = r.store.Users(ctx, def.Name); err != nil {
			return nil, fmt.Errorf("list users: %w", err)
		}
	}

	results := make([]Result, len(users))
	jobs := make([]Job, 0, len(users))
	slots := make([]int, 0, len(users))
	missing := 0
	for i, user := range users {
		prev, err := r.store.Latest(ctx, def.Name, user)
		if err != nil || prev.Submission == "" {
			job := Job{Assignment: assignmentRef, User: user}
			results[i] = failed(job, fmt.Errorf("%w: %s", ErrNoPriorSubmission, user))
			missing++
			continue
		}
		jobs = append(jobs, Job{Assignment: assignmentRef, User: user, Source: prev.Submission})
		slots = append(slots, i)
	}

	r.logger.Info("regrading",
		slog.String("assignment", def.Ref()),
		slog.Int("users", len(users)),
		slog.Int("missing", missing))
	for j, res := range r.Run(ctx, jobs) {
		results[slots[j]] = res
	}
	return results, nil
}

// GradeOne grades a single job, calling onOutcome after each component.
// It honors the spawn limit and per-submission lock like Run.
func (r *Runner) GradeOne(ctx context.Context, job Job, onOutcome func(rubric.Outcome)) Result {
	return r.runJob(ctx, job, onOutcome)
}

func (r *Runner) runJob(ctx context.Context, job Job, onOutcome func(rubric.Outcome)) Result {
	if err := r.limiter.Wait(ctx); err != nil {
		return failed(job, err)
	}
	def, err := r.registry.Lookup(job.Assignment)
	if err != nil {
		batchJobsTotal.WithLabelValues("error").Inc()
		return failed(job, err)
	}
	// Keyed on the resolved ref so "hw0" and "hw0@v1.0.0" serialize.
	unlock := r.locks.Lock(def.Ref() + "\x00" + job.User)
	defer unlock()

	batchInFlight.Inc()
	defer batchInFlight.Dec()

	var result Result
	err = guard.Safely("batch/"+job.User, func() error {
		var err error
		result, err = r.grade(ctx, def, job, onOutcome)
		return err
	})
	if err != nil {
		batchJobsTotal.WithLabelValues("error").Inc()
		r.logger.Warn("batch job failed",
			slog.String("assignment", def.Ref()),
			slog.String("user", job.User),
			slog.String("error", err.Error()))
		return failed(job, err)
	}
	batchJobsTotal.WithLabelValues("graded").Inc()
	return result
}

func (r *Runner) grade(ctx context.Context, def rubrics.Definition, job Job, onOutcome func(rubric.Outcome)) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	opts := r.base
	opts.InputDir = job.Source
	a, err := def.New(opts)
	if err != nil {
		return Result{}, fmt.Errorf("build %s: %w", def.Ref(), err)
	}

	report := a.GradeSourceStream(ctx, r.loader, job.Source, onOutcome)
	report.User = job.User
	result := Result{Job: job, Report: report}

	var errs []error
	if r.store != nil {
		if err := r.store.Put(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("store report: %w", err))
		}
	}
	if r.outputDir != "" {
		user := job.User
		if user == "" {
			user = report.RunID
		}
		if _, err := report.WriteSummary(filepath.Join(r.outputDir, def.Name, user)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		// The report is still valid; persistence errors ride along.
		result.Err = err
		result.Error = err.Error()
	}
	return result, nil
}

func failed(job Job, err error) Result {
	return Result{Job: job, Err: err, Error: err.Error()}
}

// keyedMutex serializes work per key and drops idle keys.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

// Lock blocks until key is free and returns its unlock function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
