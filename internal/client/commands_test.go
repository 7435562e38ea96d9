package client

import "testing"

func TestValidCommand(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"play", true},
		{"pause", true},
		{"next", true},
		{"previous", true},
		{"info", true},
		{"switch spotify", true},
		{"PLAY", true},
		{"  Next  ", true},
		{"stop", false},
		{"", false},
		{"   ", false},
		{"playlist", false},
		{"quit", false},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := ValidCommand(tt.line); got != tt.want {
				t.Errorf("ValidCommand(%q) = %v; want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{"fits", "Song A", 10, "Song A"},
		{"exact", "0123456789", 10, "0123456789"},
		{"cut", "This is a long title", 10, "This is..."},
		{"tiny max", "abcdef", 2, "ab"},
		{"no limit", "abcdef", 0, "abcdef"},
		{"unicode", "Café del Mar sessions", 8, "Café ..."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := truncateText(tt.text, tt.max); got != tt.want {
				t.Errorf("truncateText(%q, %d) = %q; want %q", tt.text, tt.max, got, tt.want)
			}
		})
	}
}

func TestClipLines(t *testing.T) {
	got := clipLines("Song: A very long song title\nArtist: X\n", 12)
	want := "Song: A v...\nArtist: X"
	if got != want {
		t.Errorf("clipLines = %q; want %q", got, want)
	}
}
