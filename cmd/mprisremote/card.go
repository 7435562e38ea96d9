package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"mprisremote/internal/artwork"
	"mprisremote/internal/config"
	"mprisremote/internal/player"
)

const artTimeout = 5 * time.Second

// renderCard draws the "Now Playing" card for md, with album art on
// terminals that support Kitty graphics.
func renderCard(ctx context.Context, md player.Metadata, cfg config.Config, kitty bool, log zerolog.Logger) string {
	colorValue := cfg.UI.Color
	autoColor := cfg.UI.ColorMode == "auto"

	var art string
	if cfg.Artwork.Enabled && md.ArtURL != "" && (kitty || autoColor) {
		fetchCtx, cancel := context.WithTimeout(ctx, artTimeout)
		data, err := artwork.Fetch(fetchCtx, md.ArtURL)
		cancel()
		if err != nil {
			log.Debug().Err(err).Str("url", md.ArtURL).Msg("No artwork")
		} else {
			c, enc, err := artwork.Process(data, autoColor, artwork.Options{
				WidthPixels:  cfg.Artwork.WidthPixels,
				WidthColumns: cfg.Artwork.WidthColumns,
			})
			if err != nil {
				log.Debug().Err(err).Msg("Artwork not usable")
			}
			if c != "" {
				colorValue = c
			}
			if kitty {
				art = enc
			}
		}
	}

	color := lipgloss.Color(colorValue)
	highlight := lipgloss.NewStyle().Foreground(color)
	labelStyle := lipgloss.NewStyle().Foreground(color).Bold(true)

	// Text column width inside the border
	maxLen := cfg.UI.MaxWidth - 8
	if art != "" {
		maxLen -= cfg.Artwork.Padding
	}
	clip := lipgloss.NewStyle().MaxWidth(max(maxLen, 10))

	var text strings.Builder
	text.WriteString(highlight.Render("󰓃 Now Playing") + "\n\n")

	addLine := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&text, "%s %s\n", labelStyle.Render(label), clip.Render(value))
		}
	}
	addLine("󰎈 ", md.Title)
	addLine("󰠃 ", md.Artists(cfg.Format.ArtistSeparator))
	addLine("󰀥 ", md.Album)

	statusIcon := "󰐊 "
	switch strings.ToLower(md.Status) {
	case "paused":
		statusIcon = "󰏤 "
	case "stopped":
		statusIcon = "󰓛 "
	}
	addLine(statusIcon, md.Status)

	content := strings.TrimRight(text.String(), "\n")
	if art != "" {
		content = art + lipgloss.NewStyle().PaddingLeft(cfg.Artwork.Padding).Render(content)
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(color).
		Padding(1, 2).
		Width(cfg.UI.MaxWidth).
		Render(content)
}
