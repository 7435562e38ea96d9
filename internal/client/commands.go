package client

import "strings"

// Commands is the vocabulary the client forwards to the server.
var Commands = []string{"play", "pause", "next", "previous", "info", "switch"}

// ValidCommand reports whether the first word of line is in Commands.
func ValidCommand(line string) bool {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return false
	}
	for _, c := range Commands {
		if fields[0] == c {
			return true
		}
	}
	return false
}

// truncateText clips text to max runes, marking the cut with "...".
func truncateText(text string, max int) string {
	runes := []rune(text)
	if max <= 0 || len(runes) <= max {
		return text
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}
