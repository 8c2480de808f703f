// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianGrade/services/grader/assignment"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func report(runID, user string, started time.Time, earned float64) *assignment.Report {
	return &assignment.Report{
		RunID:      runID,
		Assignment: "hw0",
		User:       user,
		Submission: "/subs/" + user,
		Outcomes: []rubric.Outcome{
			{Label: "Q1", MaxPoints: 1, EarnedPoints: earned, Status: rubric.StatusPassed, Feedback: []string{}},
		},
		TotalEarned: earned,
		TotalMax:    1,
		StartedAt:   started,
	}
}

func TestStore_PutGet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, report("run-1", "alice", now, 1)))

	got, err := s.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User)
	assert.Equal(t, 1.0, got.TotalEarned)
	assert.Equal(t, rubric.StatusPassed, got.Outcomes[0].Status)
	assert.True(t, now.Equal(got.StartedAt))

	_, err = s.Get(ctx, "run-404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListBySubmission(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, report("b", "alice", base.Add(time.Hour), 1)))
	require.NoError(t, s.Put(ctx, report("a", "alice", base, 0)))
	require.NoError(t, s.Put(ctx, report("c", "bob", base, 1)))

	list, err := s.ListBySubmission(ctx, "hw0", "alice")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].RunID)
	assert.Equal(t, "b", list[1].RunID)

	latest, err := s.Latest(ctx, "hw0", "alice")
	require.NoError(t, err)
	assert.Equal(t, "b", latest.RunID)

	_, err = s.Latest(ctx, "hw0", "carol")
	assert.ErrorIs(t, err, ErrNotFound)

	users, err := s.Users(ctx, "hw0")
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func TestStore_AnonymousReports(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, report("anon", "", time.Now(), 1)))

	list, err := s.ListBySubmission(ctx, "hw0", "")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	users, err := s.Users(ctx, "hw0")
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestStore_InvalidKeys(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Put(ctx, report("", "alice", time.Now(), 1)), ErrInvalidKey)
	assert.ErrorIs(t, s.Put(ctx, report("r", "../etc", time.Now(), 1)), ErrInvalidKey)
	assert.ErrorIs(t, s.Put(ctx, nil), ErrInvalidKey)
	_, err := s.ListBySubmission(ctx, "hw0", "a/b")
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestStore_CancelledContext(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Put(ctx, report("r", "alice", time.Now(), 1)), context.Canceled)
	_, err := s.Get(ctx, "r")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	cfg := DefaultConfig(dir)
	cfg.GCInterval = time.Hour
	s, err := Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, report("persist", "alice", time.Now(), 1)))
	require.NoError(t, s.Close())

	s, err = Open(cfg)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, "persist")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.User)
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}
