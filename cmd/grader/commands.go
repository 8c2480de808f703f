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
	"io"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/AleutianAI/AleutianGrade/pkg/ux"
)

// cliFlags holds every flag value. One instance per command tree.
type cliFlags struct {
	configPath string
	jsonOutput bool
	output     string

	assignment string
	inputDir   string
	outputDir  string
	root       string
	user       string

	storePath string
	noStore   bool
	save      bool

	debounce time.Duration
	port     int
}

func newRootCmd() *cobra.Command {
	f := &cliFlags{}

	rootCmd := &cobra.Command{
		Use:   "grader",
		Short: "Score student submissions against versioned rubrics",
		Long: `grader runs a rubric's questions against a submission, isolating every
question so that one crash, hang or missing function never costs the
others their credit.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.configPath, "config", "c", "", "path to grader.yaml")
	pf.BoolVar(&f.jsonOutput, "json", false, "write JSON output")
	pf.StringVar(&f.output, "output", "", "output mode: rich, plain or json (default: detect)")
	pf.StringVar(&f.storePath, "store", "", "report store directory (overrides config)")

	gradeCmd := &cobra.Command{
		Use:   "grade",
		Short: "Grade one submission",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGrade(cmd, f)
		},
	}
	gradeCmd.Flags().StringVarP(&f.assignment, "assignment", "a", "", "rubric reference, e.g. hw0 or hw0@v1")
	gradeCmd.Flags().StringVarP(&f.inputDir, "input-dir", "i", "", "submission directory (default: config grader.input_dir)")
	gradeCmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "write summary.json under this directory")
	gradeCmd.Flags().StringVarP(&f.user, "user", "u", "", "student identifier")
	gradeCmd.Flags().BoolVar(&f.save, "save", false, "persist the report to the store")
	_ = gradeCmd.MarkFlagRequired("assignment")

	batchCmd := &cobra.Command{
		Use:   "batch",
		Short: "Grade every user directory under a root",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBatch(cmd, f)
		},
	}
	batchCmd.Flags().StringVarP(&f.assignment, "assignment", "a", "", "rubric reference")
	batchCmd.Flags().StringVarP(&f.root, "root", "r", "", "directory holding one subdirectory per user")
	batchCmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "write per-user summary.json and batch.json here")
	batchCmd.Flags().BoolVar(&f.noStore, "no-store", false, "do not persist reports")
	_ = batchCmd.MarkFlagRequired("assignment")
	_ = batchCmd.MarkFlagRequired("root")

	regradeCmd := &cobra.Command{
		Use:   "regrade [user...]",
		Short: "Regrade users' latest stored submissions",
		Long:  "Regrade re-runs each user's most recent stored submission. With no users it regrades everyone the store knows for the assignment.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegrade(cmd, f, args)
		},
	}
	regradeCmd.Flags().StringVarP(&f.assignment, "assignment", "a", "", "rubric reference")
	regradeCmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "write per-user summary.json here")
	_ = regradeCmd.MarkFlagRequired("assignment")

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Regrade users whenever their submission changes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, f)
		},
	}
	watchCmd.Flags().StringVarP(&f.assignment, "assignment", "a", "", "rubric reference")
	watchCmd.Flags().StringVarP(&f.root, "root", "r", "", "directory holding one subdirectory per user")
	watchCmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "write per-user summary.json here")
	watchCmd.Flags().DurationVar(&f.debounce, "debounce", 500*time.Millisecond, "quiet period before regrading")
	watchCmd.Flags().BoolVar(&f.noStore, "no-store", false, "do not persist reports")
	_ = watchCmd.MarkFlagRequired("assignment")
	_ = watchCmd.MarkFlagRequired("root")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the grading HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, f)
		},
	}
	serveCmd.Flags().IntVarP(&f.port, "port", "p", 0, "listen port (default: config server.port)")
	serveCmd.Flags().StringVarP(&f.root, "root", "r", "", "only grade sources under this directory")
	serveCmd.Flags().StringVarP(&f.outputDir, "output-dir", "o", "", "write per-user summary.json here")

	rubricsCmd := &cobra.Command{
		Use:   "rubrics",
		Short: "List registered rubrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRubrics(cmd, f)
		},
	}

	rootCmd.AddCommand(gradeCmd, batchCmd, regradeCmd, watchCmd, serveCmd, rubricsCmd)
	return rootCmd
}

// newRenderer picks the output mode from --json, --output, then the
// terminal.
func newRenderer(w io.Writer, flags *pflag.FlagSet) *ux.Renderer {
	if asJSON, err := flags.GetBool("json"); err == nil && asJSON {
		return ux.NewRenderer(w, ux.ModeJSON)
	}
	mode, _ := flags.GetString("output")
	return ux.NewRenderer(w, ux.ParseMode(mode))
}
