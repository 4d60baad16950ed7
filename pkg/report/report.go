// Package report renders run results for terminals.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/systemstart/piper/pkg/history"
	"github.com/systemstart/piper/pkg/processing"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	skipStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F7B801")).Bold(true)
	detailStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#A0AEC0"))
	defaultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#CCCCCC"))
)

// Render writes a human readable report of r.
func Render(w io.Writer, r *processing.RunResult) error {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("%s @ %s", r.Pipeline, r.Environment)))
	b.WriteString(detailStyle.Render(fmt.Sprintf("  version %s  run %s", r.Version, shortID(r.ID))))
	b.WriteString("\n")

	for _, f := range r.EnvironmentFailures {
		fmt.Fprintf(&b, "  %s %s: %s\n", failStyle.Render("✗"), f.Name, detailStyle.Render(f.Reason))
	}

	for _, s := range r.Steps {
		fmt.Fprintf(&b, "  %s %d. %s", outcomeLabel(s.Outcome), s.Index, s.Step)
		switch s.Outcome {
		case processing.Succeeded:
			b.WriteString(detailStyle.Render(fmt.Sprintf("  %s, %s output", duration(s.Duration), humanize.Bytes(uint64(len(s.Output))))))
		default:
			b.WriteString(detailStyle.Render("  " + s.Reason))
		}
		b.WriteString("\n")
	}

	b.WriteString(summaryStyle(r).Render(r.Summary()))
	fmt.Fprintf(&b, " %s\n", detailStyle.Render("in "+duration(r.Duration())))
	if r.TeardownError != "" {
		fmt.Fprintf(&b, "%s\n", skipStyle.Render("teardown: "+r.TeardownError))
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderHistory writes one line per record, newest last.
func RenderHistory(w io.Writer, recs []history.Record, now time.Time) error {
	if len(recs) == 0 {
		_, err := io.WriteString(w, detailStyle.Render("no runs recorded")+"\n")
		return err
	}

	var b strings.Builder
	for _, rec := range recs {
		label := defaultStyle
		switch processing.RunOutcome(rec.Outcome) {
		case processing.RunSucceeded:
			label = okStyle
		case processing.RunFailed:
			label = failStyle
		case processing.RunEnvironmentIneligible:
			label = skipStyle
		}
		fmt.Fprintf(&b, "%s %s %s @ %s %s",
			detailStyle.Render(shortID(rec.ID)),
			label.Render(fmt.Sprintf("%-22s", rec.Outcome)),
			rec.Pipeline, rec.Environment,
			detailStyle.Render(fmt.Sprintf("%s, took %s", humanize.RelTime(rec.StartedAt, now, "ago", "from now"), duration(rec.Duration))))
		if rec.FailedStep != "" {
			fmt.Fprintf(&b, " %s", detailStyle.Render(fmt.Sprintf("[%d %s: %s]", rec.FailedAt, rec.FailedStep, rec.Reason)))
		}
		b.WriteString("\n")
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func outcomeLabel(o processing.Outcome) string {
	switch o {
	case processing.Succeeded:
		return okStyle.Render("✓")
	case processing.Skipped:
		return skipStyle.Render("↷")
	default:
		return failStyle.Render("✗")
	}
}

func summaryStyle(r *processing.RunResult) lipgloss.Style {
	switch r.Outcome {
	case processing.RunSucceeded:
		return okStyle
	case processing.RunEnvironmentIneligible:
		return skipStyle
	default:
		return failStyle
	}
}

func duration(d time.Duration) string {
	switch {
	case d < time.Millisecond:
		return d.String()
	case d < time.Second:
		return d.Round(time.Millisecond).String()
	default:
		return d.Round(100 * time.Millisecond).String()
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
