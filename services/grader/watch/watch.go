// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package watch regrades submissions when their files change.
//
// The watched root holds one directory per user:
//
//	root/
//	  alice/submission.py
//	  bob/submission.py
//
// Any change under root/<user>/ schedules that user for regrading. Changes
// are debounced so that an editor's save burst or a bulk copy triggers one
// grading run per user.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/AleutianAI/AleutianGrade/services/grader/batch"
)

// DefaultDebounce is the quiet period before a regrade.
const DefaultDebounce = 500 * time.Millisecond

// ErrAlreadyRunning indicates Run was called twice.
var ErrAlreadyRunning = errors.New("watcher already running")

// Grader runs jobs. *batch.Runner satisfies it.
type Grader interface {
	Run(ctx context.Context, jobs []batch.Job) []batch.Result
}

// ResultHandler receives each regrade's results.
type ResultHandler func(results []batch.Result)

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period. Default 500ms.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithIgnore adds base-name glob patterns to skip, on top of hidden files,
// __pycache__ and *.pyc.
func WithIgnore(patterns ...string) Option {
	return func(w *Watcher) {
		w.ignore = append(w.ignore, patterns...)
	}
}

// WithResultHandler receives results after each regrade.
func WithResultHandler(h ResultHandler) Option {
	return func(w *Watcher) {
		w.onResults = h
	}
}

// WithLogger sets the logger. Default slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// Watcher watches a submissions root and regrades changed users.
//
// Thread Safety: Run may be called once.
type Watcher struct {
	root       string
	assignment string
	grader     Grader
	debounce   time.Duration
	ignore     []string
	onResults  ResultHandler
	logger     *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a Watcher that regrades assignmentRef under root.
func New(root, assignmentRef string, grader Grader, opts ...Option) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", abs)
	}
	w := &Watcher{
		root:       abs,
		assignment: assignmentRef,
		grader:     grader,
		debounce:   DefaultDebounce,
		ignore:     []string{".*", "__pycache__", "*.pyc", "*.swp", "*~"},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled. Pending changes are graded before it
// returns.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return ErrAlreadyRunning
	}
	w.running = true
	w.mu.Unlock()

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}
	w.logger.Info("watching submissions",
		slog.String("root", w.root),
		slog.String("assignment", w.assignment),
		slog.Duration("debounce", w.debounce))

	pending := make(map[string]bool)
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func(ctx context.Context) {
		if timer != nil {
			timer.Stop()
			timer, timerC = nil, nil
		}
		if len(pending) == 0 {
			return
		}
		users := make([]string, 0, len(pending))
		for u := range pending {
			users = append(users, u)
		}
		clear(pending)
		w.regrade(ctx, users)
	}

	for {
		select {
		case <-ctx.Done():
			// Grade what was already collected; the run itself is not
			// bound to the cancelled context.
			flush(context.WithoutCancel(ctx))
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			user, ok := w.userFor(event.Name)
			if !ok {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fw, event.Name); err != nil {
						w.logger.Warn("cannot watch new directory",
							slog.String("path", event.Name),
							slog.String("error", err.Error()))
					}
				}
			}
			pending[user] = true
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case <-timerC:
			timer, timerC = nil, nil
			flush(ctx)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

func (w *Watcher) regrade(ctx context.Context, users []string) {
	sort.Strings(users)
	jobs := make([]batch.Job, 0, len(users))
	for _, u := range users {
		jobs = append(jobs, batch.Job{
			Assignment: w.assignment,
			User:       u,
			Source:     filepath.Join(w.root, u),
		})
	}
	w.logger.Info("regrading changed submissions", slog.Any("users", users))
	results := w.grader.Run(ctx, jobs)
	if w.onResults != nil {
		w.onResults(results)
	}
}

// userFor maps a changed path to the user directory that owns it.
func (w *Watcher) userFor(path string) (string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	for _, p := range parts {
		if w.ignored(p) {
			return "", false
		}
	}
	user := parts[0]
	// A plain file directly under root belongs to no user.
	if len(parts) == 1 {
		if info, err := os.Stat(path); err != nil || !info.IsDir() {
			return "", false
		}
	}
	return user, true
}

func (w *Watcher) ignored(name string) bool {
	for _, pattern := range w.ignore {
		if ok, _ := filepath.Match(pattern, name); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.root && w.ignored(d.Name()) {
			return filepath.SkipDir
		}
		if err := fw.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}
