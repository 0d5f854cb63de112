package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/veroide/mergehost/internal/diff"
	"github.com/veroide/mergehost/internal/resolve"
	"github.com/veroide/mergehost/internal/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	theirsStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	yoursStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	sideStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)

	stateStyles = map[resolve.FileState]lipgloss.Style{
		resolve.StateUnresolved: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		resolve.StatePartial:    lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		resolve.StateResolved:   lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
	}
)

// renderHunk shows both sides of a hunk next to each other.
func renderHunk(path string, h diff.Hunk, index, total int) string {
	header := titleStyle.Render(fmt.Sprintf("%s  hunk %d/%d", path, index, total)) +
		dimStyle.Render(fmt.Sprintf("  theirs %s  yours %s", h.Theirs, h.Yours))

	theirs := sideStyle.Render(theirsStyle.Render("theirs") + "\n" + previewLines(h.TheirsLines))
	yours := sideStyle.Render(yoursStyle.Render("yours") + "\n" + previewLines(h.YoursLines))

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		lipgloss.JoinHorizontal(lipgloss.Top, theirs, " ", yours),
	)
}

func previewLines(lines []string) string {
	if len(lines) == 0 {
		return dimStyle.Render("(no lines)")
	}
	return strings.Join(lines, "\n")
}

// renderProgress prints one line per file with its state and counts.
func renderProgress(progress []session.FileProgress) string {
	var b strings.Builder
	for _, p := range progress {
		state := stateStyles[p.State].Render(fmt.Sprintf("%-10s", p.State))
		extra := ""
		if p.Override {
			extra = dimStyle.Render(" (override)")
		}
		fmt.Fprintf(&b, "  %s %d/%d  %s%s\n", state, p.ResolvedHunks, p.TotalHunks, p.Path, extra)
	}
	return b.String()
}
