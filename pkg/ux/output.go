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
	"github.com/charmbracelet/lipgloss"

	"github.com/AleutianAI/AleutianGrade/services/grader/rubric"
)

// Brand palette
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#6C8A94")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style

	Box      lipgloss.Style
	ErrorBox lipgloss.Style

	Label  lipgloss.Style
	Points lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorMuted),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),

	Label:  lipgloss.NewStyle().Width(24),
	Points: lipgloss.NewStyle().Width(12).Align(lipgloss.Right),
}

// Icon is a status glyph.
type Icon string

const (
	IconPassed         Icon = "✓"
	IconFailed         Icon = "✗"
	IconNotImplemented Icon = "○"
	IconErrored        Icon = "⚠"
	IconBullet         Icon = "•"
)

// StatusIcon returns the glyph for a status.
func StatusIcon(s rubric.Status) Icon {
	switch s {
	case rubric.StatusPassed:
		return IconPassed
	case rubric.StatusFailed:
		return IconFailed
	case rubric.StatusErrored:
		return IconErrored
	default:
		return IconNotImplemented
	}
}

// Render returns the icon with styling for its status.
func (i Icon) Render() string {
	switch i {
	case IconPassed:
		return Styles.Success.Render(string(i))
	case IconFailed:
		return Styles.Error.Render(string(i))
	case IconErrored:
		return Styles.Warning.Render(string(i))
	case IconNotImplemented:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// ProgressBar renders a score bar of the given width.
func ProgressBar(earned, total float64, width int) string {
	if width <= 0 {
		return ""
	}
	pct := 0.0
	if total > 0 {
		pct = max(0, min(earned/total, 1))
	}
	filled := int(pct*float64(width) + 0.5)
	return Styles.Success.Render(repeat('█', filled)) +
		Styles.Muted.Render(repeat('░', width-filled))
}

func repeat(c rune, n int) string {
	if n <= 0 {
		return ""
	}
	out := make([]rune, n)
	for i := range out {
		out[i] = c
	}
	return string(out)
}
