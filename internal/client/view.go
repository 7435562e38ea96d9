package client

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const (
	defaultWidth = 60
	promptText   = "Type command (play, pause, next, previous, info, switch <name>):"
)

func (m model) View() string {
	color := lipgloss.Color(m.opts.Color)
	labelStyle := lipgloss.NewStyle().Foreground(color).Bold(true)
	mutedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	highlight := lipgloss.NewStyle().Foreground(color)

	width := m.width
	if width <= 0 || width > defaultWidth+4 {
		width = defaultWidth + 4
	}
	// Border and padding take four columns
	inner := width - 4
	if inner < 10 {
		inner = 10
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(0, 1).
		Width(inner)

	// Info region
	var info strings.Builder
	info.WriteString(labelStyle.Render("Song Info:") + "\n")
	info.WriteString(clipLines(m.status, inner))

	// Command region
	var cmd strings.Builder
	cmd.WriteString(mutedStyle.Render(truncateText(promptText, inner)) + "\n")
	cursor := highlight.Render("█")
	if m.pending {
		cursor = mutedStyle.Render("…")
	}
	cmd.WriteString(highlight.Render("> ") + truncateText(string(m.input), inner-3) + cursor)
	if m.reply != "" {
		cmd.WriteString("\n" + clipLines(m.reply, inner))
	}

	help := mutedStyle.Render("Esc or Ctrl+C to quit")

	return lipgloss.JoinVertical(
		lipgloss.Left,
		boxStyle.Render(info.String()),
		boxStyle.Render(cmd.String()),
		help,
	)
}

// clipLines truncates every line of text to max runes.
func clipLines(text string, max int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	for i, line := range lines {
		lines[i] = truncateText(line, max)
	}
	return strings.Join(lines, "\n")
}
