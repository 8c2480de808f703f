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
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGrade/pkg/logging"
	"github.com/AleutianAI/AleutianGrade/pkg/ux"
	"github.com/AleutianAI/AleutianGrade/services/grader/batch"
	"github.com/AleutianAI/AleutianGrade/services/grader/config"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubrics"
	"github.com/AleutianAI/AleutianGrade/services/grader/store"
	"github.com/AleutianAI/AleutianGrade/services/grader/submission"
)

// loaderFactory builds the submission loader. Tests swap in a static one.
var loaderFactory = func(cfg config.Config, logger *slog.Logger) submission.Loader {
	return submission.NewPythonLoader(cfg.PythonConfig(), submission.WithPythonLogger(logger))
}

// app is the wired set of services one command needs.
type app struct {
	cfg      config.Config
	log      *logging.Logger
	logger   *slog.Logger
	registry *rubrics.Registry
	store    *store.Store
	runner   *batch.Runner
	out      *ux.Renderer
}

// newApp loads configuration, applies flag overrides and wires the runner.
// The store is opened only when withStore is set.
func newApp(cmd *cobra.Command, f *cliFlags, withStore bool) (*app, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.inputDir != "" {
		cfg.Grader.InputDir = f.inputDir
	}
	if f.outputDir != "" {
		cfg.Grader.OutputDir = f.outputDir
	}
	if f.storePath != "" {
		cfg.Store.Path = f.storePath
		cfg.Store.InMemory = false
	}

	logCfg, err := cfg.LoggerConfig("grader")
	if err != nil {
		return nil, err
	}
	logCfg.Output = cmd.ErrOrStderr()
	log := logging.New(logCfg)

	a := &app{
		cfg:      cfg,
		log:      log,
		logger:   log.Slog(),
		registry: rubrics.Default(),
		out:      newRenderer(cmd.OutOrStdout(), cmd.Flags()),
	}

	if withStore {
		storeCfg := store.DefaultConfig(cfg.Store.Path)
		if cfg.Store.InMemory {
			storeCfg = store.InMemoryConfig()
		}
		storeCfg.Logger = a.logger
		if a.store, err = store.Open(storeCfg); err != nil {
			_ = log.Close()
			return nil, fmt.Errorf("open report store: %w", err)
		}
	}

	opts := []batch.Option{
		batch.WithWorkers(cfg.Batch.Workers),
		batch.WithSpawnRate(cfg.Batch.SpawnRate, cfg.Batch.SpawnBurst),
		batch.WithOutputDir(cfg.Grader.OutputDir),
		batch.WithOptions(cfg.AssignmentOptions()),
		batch.WithLogger(a.logger),
	}
	if a.store != nil {
		opts = append(opts, batch.WithStore(a.store))
	}
	a.runner = batch.NewRunner(a.registry, loaderFactory(cfg, a.logger), opts...)
	return a, nil
}

// Close releases the store and log file.
func (a *app) Close() error {
	var errs []error
	if a.store != nil {
		errs = append(errs, a.store.Close())
	}
	errs = append(errs, a.log.Close())
	return errors.Join(errs...)
}

// reportPersistErrors logs results whose report was kept but could not be
// written out.
func (a *app) reportPersistErrors(ctx context.Context, results []batch.Result) {
	for _, res := range results {
		if res.Report != nil && res.Err != nil {
			a.logger.WarnContext(ctx, "report not persisted",
				slog.String("user", res.Job.User),
				slog.String("error", res.Err.Error()))
		}
	}
}
