package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bryanwahyu/ddq-validator/internal/domain/ddq"
	"github.com/bryanwahyu/ddq-validator/internal/infra/report"
)

func stylize(text string, noColor bool, color lipgloss.Color) string {
	if noColor {
		return text
	}
	return lipgloss.NewStyle().Foreground(color).Render(text)
}

func statusColor(s string) lipgloss.Color {
	switch ddq.Status(s) {
	case ddq.StatusOK:
		return lipgloss.Color("42")
	case ddq.StatusFlagged:
		return lipgloss.Color("220")
	case ddq.StatusEscalated:
		return lipgloss.Color("196")
	default:
		return lipgloss.Color("244")
	}
}

// renderSummary prints the outcome of a run that produced a report.
func renderSummary(rep *ddq.Report, paths report.Paths, runErr error, noColor bool) string {
	var headline string
	switch {
	case runErr != nil:
		headline = stylize(fmt.Sprintf("Run interrupted after %d rows (%v)", rep.Summary.TotalRows, runErr), noColor, lipgloss.Color("208"))
	case rep.Summary.TotalFlagged == 0:
		headline = stylize(fmt.Sprintf("Completed: %d rows, nothing flagged", rep.Summary.TotalRows), noColor, lipgloss.Color("42"))
	default:
		headline = stylize(fmt.Sprintf("Completed with %d flagged of %d rows", rep.Summary.TotalFlagged, rep.Summary.TotalRows), noColor, lipgloss.Color("220"))
	}
	if !noColor {
		headline = lipgloss.NewStyle().Bold(true).Render(headline)
	}

	statuses := make([]string, 0, len(rep.Summary.ByStatus))
	for s := range rep.Summary.ByStatus {
		statuses = append(statuses, s)
	}
	sort.Strings(statuses)
	var counts []string
	for _, s := range statuses {
		counts = append(counts, stylize(fmt.Sprintf("%-9s %d", s, rep.Summary.ByStatus[s]), noColor, statusColor(s)))
	}

	files := []string{"report  " + paths.ReportCSV, "summary " + paths.SummaryJSON}
	if paths.ReportXLSX != "" {
		files = append(files, "xlsx    "+paths.ReportXLSX)
	}
	footer := stylize(strings.Join(files, "\n"), noColor, lipgloss.Color("244"))

	runLine := stylize("run "+rep.RunID, noColor, lipgloss.Color("240"))
	return lipgloss.JoinVertical(lipgloss.Left, headline, runLine, "", strings.Join(counts, "\n"), "", footer)
}

// renderFailure prints a run-level failure. No report exists in that case.
func renderFailure(err error, noColor bool) string {
	return stylize(fmt.Sprintf("Run failed: %v", err), noColor, lipgloss.Color("196"))
}
