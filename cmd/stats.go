package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/hc-nolan/ratingrelay/internal/relay"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Width(16)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
)

// writeStats prints the per-pass counter block.
func (r *Runner) writeStats(result *relay.PassResult, elapsed time.Duration) {
	var sb strings.Builder

	sb.WriteString(headerStyle.Render("PASS STATISTICS"))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("%s loves: %-6d hates: %d\n",
		labelStyle.Render("Plex:"), result.SourceLoved, result.SourceHated))

	names := make([]string, 0, len(result.Adapters))
	for name := range result.Adapters {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		stats := result.Adapters[name]
		line := fmt.Sprintf("%s loves: %-6d hates: %-6d resets: %-6d skipped: %d",
			labelStyle.Render(name+":"), stats.Loved, stats.Hated, stats.Resets, stats.Skipped)
		if stats.Failed {
			line += " " + warnStyle.Render("(abandoned)")
		}
		sb.WriteString(line + "\n")
	}

	sb.WriteString(fmt.Sprintf("%s staged: %-6d cleared: %-6d pending: %d\n",
		labelStyle.Render("Resets:"), result.ResetsStaged, result.ResetsCleared, result.ResetsPending))
	if result.SourceAdded > 0 {
		sb.WriteString(fmt.Sprintf("%s %d\n", labelStyle.Render("Imported:"), result.SourceAdded))
	}
	sb.WriteString(fmt.Sprintf("%s %.2fs\n", labelStyle.Render("Elapsed:"), elapsed.Seconds()))

	fmt.Fprint(r.output, sb.String())
}
