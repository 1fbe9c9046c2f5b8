package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/fpang/photo-rater/internal/batch"
	"github.com/fpang/photo-rater/internal/export"
	"github.com/fpang/photo-rater/internal/rating"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
)

// critiqueWidth wraps long critiques in the results table.
const critiqueWidth = 72

var (
	gradeS        = color.New(color.FgHiGreen, color.Bold).SprintFunc()
	gradeA        = color.New(color.FgHiCyan).SprintFunc()
	gradeB        = color.New(color.FgHiYellow).SprintFunc()
	gradeRejected = color.New(color.FgHiRed).SprintFunc()
)

// ShouldColorize reports whether w is a terminal.
func ShouldColorize(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// GradeLabel returns the display label of g, colored when colorize is set.
func GradeLabel(g rating.Grade, colorize bool) string {
	label := string(g)
	switch g {
	case rating.GradeUnrated:
		label = export.UnratedPlaceholder
	case rating.GradeRejected:
		label = export.RejectedLabel
	}
	if !colorize {
		return label
	}
	switch g {
	case rating.GradeS:
		return gradeS(label)
	case rating.GradeA:
		return gradeA(label)
	case rating.GradeB:
		return gradeB(label)
	case rating.GradeRejected:
		return gradeRejected(label)
	default:
		return label
	}
}

// RenderResults renders the per-photo results table.
func RenderResults(items []batch.Item, colorize bool) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"#", "File", "Rating", "Critique"})

	for i, it := range items {
		tw.AppendRow(table.Row{i + 1, it.Name, GradeLabel(it.Rating, colorize), strings.TrimSpace(it.Critique)})
	}

	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight, AlignHeader: text.AlignLeft},
		{Number: 3, Align: text.AlignCenter, AlignHeader: text.AlignLeft},
		{Number: 4, WidthMax: critiqueWidth},
	})
	return tw.Render()
}

// RenderStats renders the grade distribution.
func RenderStats(s batch.Stats) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Total", "S", "A", "B", "Rejected", "Unrated"})
	tw.AppendRow(table.Row{s.Total, s.S, s.A, s.B, s.Failed, s.Total - s.Processed})
	return tw.Render()
}

// RenderReport renders a group report as plain text.
func RenderReport(r *rating.Report, colorize bool) string {
	var sb strings.Builder
	sb.WriteString("Overall grade: " + GradeLabel(r.Grade, colorize) + "\n\n")
	sb.WriteString(strings.TrimSpace(r.Summary) + "\n")
	if len(r.Strengths) > 0 {
		sb.WriteString("\nStrengths:\n")
		for _, s := range r.Strengths {
			sb.WriteString("  + " + s + "\n")
		}
	}
	if len(r.Improvements) > 0 {
		sb.WriteString("\nImprovements:\n")
		for _, s := range r.Improvements {
			sb.WriteString("  - " + s + "\n")
		}
	}
	return sb.String()
}

// FormatElapsed renders d as M:SS, or H:MM:SS from one hour on.
func FormatElapsed(d time.Duration) string {
	d = d.Truncate(time.Second)
	h, m, sec := int(d/time.Hour), int(d%time.Hour/time.Minute), int(d%time.Minute/time.Second)
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
