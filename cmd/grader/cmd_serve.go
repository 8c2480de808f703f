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
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianGrade/services/grader/batch"
	"github.com/AleutianAI/AleutianGrade/services/grader/server"
	"github.com/AleutianAI/AleutianGrade/services/grader/telemetry"
	"github.com/AleutianAI/AleutianGrade/services/grader/watch"
)

const shutdownTimeout = 10 * time.Second

func runServe(cmd *cobra.Command, f *cliFlags) error {
	a, err := newApp(cmd, f, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, a.cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(sctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if a.cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := server.New(a.runner, a.registry,
		server.WithReports(a.store),
		server.WithSourceRoot(f.root),
		server.WithDebug(a.cfg.Server.Debug),
		server.WithLogger(a.logger))

	port := a.cfg.Server.Port
	if f.port != 0 {
		port = f.port
	}
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting grader server", slog.String("address", httpServer.Addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.logger.Info("shutting down grader server")
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(sctx)
}

func runWatch(cmd *cobra.Command, f *cliFlags) error {
	a, err := newApp(cmd, f, !f.noStore)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w, err := watch.New(f.root, f.assignment, a.runner,
		watch.WithDebounce(f.debounce),
		watch.WithLogger(a.logger),
		watch.WithResultHandler(func(results []batch.Result) {
			a.reportPersistErrors(ctx, results)
			if err := a.out.Batch(results); err != nil {
				a.logger.Warn("render results failed", slog.String("error", err.Error()))
			}
		}))
	if err != nil {
		return err
	}
	return w.Run(ctx)
}

func runRubrics(cmd *cobra.Command, f *cliFlags) error {
	a, err := newApp(cmd, f, false)
	if err != nil {
		return err
	}
	defer a.Close()
	return a.out.Rubrics(a.registry.List())
}
