// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGrade/pkg/ux"
	"github.com/AleutianAI/AleutianGrade/services/grader/batch"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
)

// ErrNoInputDir indicates neither --input-dir nor grader.input_dir was set.
var ErrNoInputDir = errors.New("no input directory: pass --input-dir or set grader.input_dir")

func runGrade(cmd *cobra.Command, f *cliFlags) error {
	a, err := newApp(cmd, f, f.save)
	if err != nil {
		return err
	}
	defer a.Close()

	source := a.cfg.Grader.InputDir
	if source == "" {
		return ErrNoInputDir
	}
	if source, err = filepath.Abs(source); err != nil {
		return err
	}

	var onOutcome func(rubric.Outcome)
	if a.out.Mode() == ux.ModeRich {
		// Show progress as each question finishes; the boxed report follows.
		onOutcome = func(o rubric.Outcome) { _ = a.out.Outcome(o) }
	}

	ctx := cmd.Context()
	job := batch.Job{Assignment: f.assignment, User: f.user, Source: source}
	res := a.runner.GradeOne(ctx, job, onOutcome)
	if res.Report == nil {
		return res.Err
	}
	a.reportPersistErrors(ctx, []batch.Result{res})
	if onOutcome != nil {
		fmt.Fprintln(cmd.OutOrStdout())
	}
	return a.out.Report(res.Report)
}

func runBatch(cmd *cobra.Command, f *cliFlags) error {
	a, err := newApp(cmd, f, !f.noStore)
	if err != nil {
		return err
	}
	defer a.Close()

	users, err := userDirs(f.root)
	if err != nil {
		return err
	}
	jobs := make([]batch.Job, len(users))
	for i, u := range users {
		jobs[i] = batch.Job{Assignment: f.assignment, User: u, Source: filepath.Join(f.root, u)}
	}

	ctx := cmd.Context()
	results := a.runner.Run(ctx, jobs)
	a.reportPersistErrors(ctx, results)
	if dir := a.cfg.Grader.OutputDir; dir != "" {
		path, err := batch.WriteResults(dir, results)
		if err != nil {
			return err
		}
		a.logger.Info("batch results written", slog.String("path", path))
	}
	return a.out.Batch(results)
}

func runRegrade(cmd *cobra.Command, f *cliFlags, users []string) error {
	a, err := newApp(cmd, f, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	results, err := a.runner.Regrade(ctx, f.assignment, users)
	if err != nil {
		return err
	}
	a.reportPersistErrors(ctx, results)
	return a.out.Batch(results)
}

// userDirs lists root's non-hidden subdirectories, sorted.
func userDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read submissions root: %w", err)
	}
	var users []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") || e.Name() == "__pycache__" {
			continue
		}
		users = append(users, e.Name())
	}
	sort.Strings(users)
	return users, nil
}
