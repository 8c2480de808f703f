// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/AleutianAI/AleutianGrade/services/grader/assignment"
	"github.com/AleutianAI/AleutianGrade/services/grader/batch"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
	"github.com/AleutianAI/AleutianGrade/services/grader/rubrics"
)

// barWidth is the width of the score bar in rich mode.
const barWidth = 30

// Renderer writes grading results to a writer in one Mode.
//
// Thread Safety: Not safe for concurrent use.
type Renderer struct {
	w    io.Writer
	mode Mode
}

// NewRenderer creates a renderer. An empty mode is detected from w.
func NewRenderer(w io.Writer, mode Mode) *Renderer {
	if mode == "" {
		mode = DetectMode(w)
	}
	return &Renderer{w: w, mode: mode}
}

// Mode returns the renderer's mode.
func (r *Renderer) Mode() Mode {
	return r.mode
}

// Report renders one scoring report.
func (r *Renderer) Report(rep *assignment.Report) error {
	switch r.mode {
	case ModeJSON:
		return r.json(rep)
	case ModePlain:
		return r.plainReport(rep)
	default:
		return r.richReport(rep)
	}
}

// Outcome renders one component outcome as it completes. JSON mode writes
// one object per line.
func (r *Renderer) Outcome(o rubric.Outcome) error {
	switch r.mode {
	case ModeJSON:
		return r.jsonLine(o)
	case ModePlain:
		return r.plainOutcome(o)
	default:
		_, err := fmt.Fprint(r.w, richOutcome(o))
		return err
	}
}

// Batch renders every result followed by the aggregate summary.
func (r *Renderer) Batch(results []batch.Result) error {
	sum := batch.Summarize(results)
	if r.mode == ModeJSON {
		return r.json(struct {
			Summary batch.Summary  `json:"summary"`
			Results []batch.Result `json:"results"`
		}{sum, results})
	}

	for _, res := range results {
		if r.mode == ModePlain {
			if err := r.plainBatchRow(res); err != nil {
				return err
			}
			continue
		}
		if _, err := fmt.Fprintln(r.w, richBatchRow(res)); err != nil {
			return err
		}
	}

	if r.mode == ModePlain {
		_, err := fmt.Fprintf(r.w, "summary\ttotal=%d\tgraded=%d\tfailed=%d\tload_errors=%d\tmean=%.1f%%\n",
			sum.Total, sum.Graded, sum.Failed, sum.LoadErrors, sum.MeanPercent)
		return err
	}
	_, err := fmt.Fprintf(r.w, "\n%s %s  %s %s  %s %s  %s %s\n",
		Styles.Bold.Render(strconv.Itoa(sum.Graded)), Styles.Muted.Render("graded"),
		Styles.Error.Render(strconv.Itoa(sum.Failed)), Styles.Muted.Render("failed"),
		Styles.Warning.Render(strconv.Itoa(sum.LoadErrors)), Styles.Muted.Render("load errors"),
		Styles.Title.Render(fmt.Sprintf("%.1f%%", sum.MeanPercent)), Styles.Muted.Render("mean"),
	)
	return err
}

// Rubrics renders the registered rubric versions.
func (r *Renderer) Rubrics(defs []rubrics.Definition) error {
	if r.mode == ModeJSON {
		return r.json(defs)
	}
	for _, d := range defs {
		names := strings.Join(d.Manifest.Names(), ",")
		var err error
		if r.mode == ModePlain {
			_, err = fmt.Fprintf(r.w, "%s\t%s\t%s\t%s\n", d.Name, d.Version, names, d.Description)
		} else {
			_, err = fmt.Fprintf(r.w, "%s %s  %s\n    %s\n",
				Styles.Title.Render(d.Name),
				Styles.Subtitle.Render(d.Version),
				d.Description,
				Styles.Muted.Render("requires: "+names))
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Error renders a command failure.
func (r *Renderer) Error(err error) error {
	switch r.mode {
	case ModeJSON:
		return r.json(struct {
			Error string `json:"error"`
		}{err.Error()})
	case ModePlain:
		_, werr := fmt.Fprintf(r.w, "ERROR: %s\n", err)
		return werr
	default:
		_, werr := fmt.Fprintln(r.w, Styles.ErrorBox.Render(
			Styles.Error.Bold(true).Render("Error")+"\n"+err.Error()))
		return werr
	}
}

func (r *Renderer) json(v any) error {
	enc := json.NewEncoder(r.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (r *Renderer) jsonLine(v any) error {
	return json.NewEncoder(r.w).Encode(v)
}

func (r *Renderer) plainReport(rep *assignment.Report) error {
	var b strings.Builder
	fmt.Fprintf(&b, "assignment\t%s\n", rep.Assignment)
	if rep.User != "" {
		fmt.Fprintf(&b, "user\t%s\n", rep.User)
	}
	fmt.Fprintf(&b, "run\t%s\n", rep.RunID)
	if rep.LoadError != "" {
		fmt.Fprintf(&b, "load_error\t%s\n", rep.LoadError)
	}
	for _, o := range rep.Outcomes {
		writePlainOutcome(&b, o)
	}
	fmt.Fprintf(&b, "total\t%s/%s\t%.1f%%\n", points(rep.TotalEarned), points(rep.TotalMax), rep.Percent())
	_, err := io.WriteString(r.w, b.String())
	return err
}

func (r *Renderer) plainOutcome(o rubric.Outcome) error {
	var b strings.Builder
	writePlainOutcome(&b, o)
	_, err := io.WriteString(r.w, b.String())
	return err
}

func writePlainOutcome(b *strings.Builder, o rubric.Outcome) {
	fmt.Fprintf(b, "%s\t%s\t%s/%s\n", o.Label, o.Status, points(o.EarnedPoints), points(o.MaxPoints))
	for _, f := range o.Feedback {
		fmt.Fprintf(b, "\t- %s\n", f)
	}
}

func (r *Renderer) plainBatchRow(res batch.Result) error {
	user := res.Job.User
	if user == "" {
		user = "-"
	}
	var err error
	switch {
	case res.Report == nil:
		_, err = fmt.Fprintf(r.w, "%s\t%s\terror\t%s\n", user, res.Job.Assignment, res.Error)
	case res.Report.LoadError != "":
		_, err = fmt.Fprintf(r.w, "%s\t%s\tload_error\t%s/%s\n", user, res.Report.Assignment,
			points(res.Report.TotalEarned), points(res.Report.TotalMax))
	default:
		_, err = fmt.Fprintf(r.w, "%s\t%s\tgraded\t%s/%s\n", user, res.Report.Assignment,
			points(res.Report.TotalEarned), points(res.Report.TotalMax))
	}
	return err
}

func (r *Renderer) richReport(rep *assignment.Report) error {
	var b strings.Builder
	title := Styles.Title.Render(rep.Assignment)
	if rep.User != "" {
		title += " " + Styles.Subtitle.Render(rep.User)
	}
	b.WriteString(title + "\n")
	b.WriteString(Styles.Muted.Render("run "+rep.RunID) + "\n\n")

	if rep.LoadError != "" {
		b.WriteString(Styles.ErrorBox.Render(
			Styles.Error.Bold(true).Render("Submission could not be loaded")+"\n"+rep.LoadError) + "\n\n")
	}
	for _, o := range rep.Outcomes {
		b.WriteString(richOutcome(o))
	}
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s %s  %s\n",
		ProgressBar(rep.TotalEarned, rep.TotalMax, barWidth),
		Styles.Bold.Render(points(rep.TotalEarned)+" / "+points(rep.TotalMax)),
		Styles.Muted.Render(fmt.Sprintf("%.1f%%", rep.Percent())))

	_, err := fmt.Fprintln(r.w, Styles.Box.Render(strings.TrimRight(b.String(), "\n")))
	return err
}

func richOutcome(o rubric.Outcome) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s%s  %s\n",
		StatusIcon(o.Status).Render(),
		Styles.Label.Render(o.Label),
		Styles.Points.Render(points(o.EarnedPoints)+" / "+points(o.MaxPoints)),
		Styles.Muted.Render(o.Status.String()))
	for _, f := range o.Feedback {
		fmt.Fprintf(&b, "    %s %s\n", Styles.Muted.Render(string(IconBullet)), f)
	}
	return b.String()
}

func richBatchRow(res batch.Result) string {
	user := res.Job.User
	if user == "" {
		user = res.Job.Source
	}
	switch {
	case res.Report == nil:
		return fmt.Sprintf("%s %s %s", IconFailed.Render(), Styles.Label.Render(user), Styles.Error.Render(res.Error))
	case res.Report.LoadError != "":
		return fmt.Sprintf("%s %s %s", IconErrored.Render(), Styles.Label.Render(user), Styles.Warning.Render("load error"))
	default:
		rep := res.Report
		return fmt.Sprintf("%s %s%s %s",
			StatusIcon(overall(rep)).Render(),
			Styles.Label.Render(user),
			Styles.Points.Render(points(rep.TotalEarned)+" / "+points(rep.TotalMax)),
			ProgressBar(rep.TotalEarned, rep.TotalMax, barWidth/2))
	}
}

// overall summarizes a report as a single status for batch listings.
func overall(rep *assignment.Report) rubric.Status {
	counts := rep.StatusCounts()
	switch {
	case counts[rubric.StatusErrored] > 0:
		return rubric.StatusErrored
	case rep.TotalEarned >= rep.TotalMax:
		return rubric.StatusPassed
	default:
		return rubric.StatusFailed
	}
}

func points(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
