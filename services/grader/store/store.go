// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package store persists scoring reports in BadgerDB.
//
// Layout:
//
//	report/{run_id}                         -> report JSON
//	index/{assignment}/{user}/{run_id}      -> started_at (unix nanos)
//
// The index lets a regrade find a student's latest submission with a
// prefix scan instead of decoding every report.
package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/AleutianGrade/services/grader/assignment"
)

// Sentinel errors for the store.
var (
	// ErrNotFound indicates no report matches.
	ErrNotFound = errors.New("report not found")

	// ErrInvalidKey indicates an id, assignment or user that cannot be
	// used as a key segment.
	ErrInvalidKey = errors.New("invalid key segment")

	// ErrClosed indicates use after Close.
	ErrClosed = errors.New("store closed")
)

const (
	reportPrefix = "report/"
	indexPrefix  = "index/"

	// anonymousUser keys reports graded without a user.
	anonymousUser = "_"
)

// Config holds store settings.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that triggers a rewrite.
	GCDiscardRatio float64

	// Logger receives badger's own log lines. Nil silences them.
	Logger *slog.Logger
}

// DefaultConfig returns durable settings for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     5 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig returns settings for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

// badgerLogger adapts slog.Logger to badger.Logger.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

// Store is a Badger-backed report store.
//
// Thread Safety: safe for concurrent use.
type Store struct {
	db     *badger.DB
	stopGC chan struct{}
	doneGC chan struct{}
}

// Open opens or creates the store.
//
// Inputs:
//
//	cfg - Path is required unless InMemory is set.
//
// Outputs:
//
//	*Store - Call Close when done.
//	error - Non-nil if the directory or database cannot be opened.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent store")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create store directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}

	s := &Store{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.stopGC = make(chan struct{})
		s.doneGC = make(chan struct{})
		go s.runGC(cfg.GCInterval, cfg.GCDiscardRatio, cfg.Logger)
	}
	return s, nil
}

func (s *Store) runGC(interval time.Duration, ratio float64, logger *slog.Logger) {
	defer close(s.doneGC)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// ErrNoRewrite means there was nothing to collect.
			if err := s.db.RunValueLogGC(ratio); err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
				logger.Warn("badger value log GC error", slog.String("error", err.Error()))
			}
		}
	}
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.stopGC != nil {
		close(s.stopGC)
		<-s.doneGC
		s.stopGC = nil
	}
	return s.db.Close()
}

// Put stores a report and indexes it by assignment and user.
func (s *Store) Put(ctx context.Context, report *assignment.Report) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if report == nil {
		return fmt.Errorf("%w: nil report", ErrInvalidKey)
	}
	user := report.User
	if user == "" {
		user = anonymousUser
	}
	for _, seg := range []string{report.RunID, report.Assignment, user} {
		if err := checkSegment(seg); err != nil {
			return err
		}
	}

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode report %s: %w", report.RunID, err)
	}
	stamp := make([]byte, 8)
	binary.BigEndian.PutUint64(stamp, uint64(report.StartedAt.UnixNano()))

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(reportKey(report.RunID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(report.Assignment, user, report.RunID), stamp)
	})
	if err != nil {
		return fmt.Errorf("put report %s: %w", report.RunID, wrapClosed(err))
	}
	return nil
}

// Get loads a report by run id.
func (s *Store) Get(ctx context.Context, runID string) (*assignment.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkSegment(runID); err != nil {
		return nil, err
	}
	var report *assignment.Report
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		report, err = getReport(txn, runID)
		return err
	})
	if err != nil {
		return nil, wrapClosed(err)
	}
	return report, nil
}

// ListBySubmission returns a user's reports for an assignment, oldest
// first. An empty user lists reports graded without one.
func (s *Store) ListBySubmission(ctx context.Context, assignmentName, user string) ([]*assignment.Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if user == "" {
		user = anonymousUser
	}
	for _, seg := range []string{assignmentName, user} {
		if err := checkSegment(seg); err != nil {
			return nil, err
		}
	}

	var reports []*assignment.Report
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(indexPrefix + assignmentName + "/" + user + "/")
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			runID := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			report, err := getReport(txn, runID)
			if errors.Is(err, ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			reports = append(reports, report)
		}
		return nil
	})
	if err != nil {
		return nil, wrapClosed(err)
	}
	sort.SliceStable(reports, func(i, j int) bool {
		return reports[i].StartedAt.Before(reports[j].StartedAt)
	})
	return reports, nil
}

// Latest returns the most recent report for a user, or ErrNotFound.
func (s *Store) Latest(ctx context.Context, assignmentName, user string) (*assignment.Report, error) {
	reports, err := s.ListBySubmission(ctx, assignmentName, user)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, assignmentName, user)
	}
	return reports[len(reports)-1], nil
}

// Users lists users with at least one report for an assignment, sorted.
func (s *Store) Users(ctx context.Context, assignmentName string) ([]string, error) {
	if err := checkSegment(assignmentName); err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := []byte(indexPrefix + assignmentName + "/")
		opts := badger.IteratorOptions{Prefix: prefix}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			rest := strings.TrimPrefix(string(it.Item().Key()), string(prefix))
			if user, _, ok := strings.Cut(rest, "/"); ok && user != anonymousUser {
				seen[user] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, wrapClosed(err)
	}
	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users, nil
}

func getReport(txn *badger.Txn, runID string) (*assignment.Report, error) {
	item, err := txn.Get(reportKey(runID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	var report assignment.Report
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &report)
	})
	if err != nil {
		return nil, fmt.Errorf("decode report %s: %w", runID, err)
	}
	return &report, nil
}

func reportKey(runID string) []byte {
	return []byte(reportPrefix + runID)
}

func indexKey(assignmentName, user, runID string) []byte {
	return []byte(indexPrefix + assignmentName + "/" + user + "/" + runID)
}

func checkSegment(s string) error {
	if s == "" || strings.ContainsAny(s, "/\x00") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, s)
	}
	return nil
}

func wrapClosed(err error) error {
	if errors.Is(err, badger.ErrDBClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return err
}
