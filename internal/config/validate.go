package config

import (
	"fmt"
	"net"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"mprisremote/internal/player"
)

// configError describes one invalid setting.
type configError struct {
	field   string
	message string
}

func (e configError) Error() string {
	return fmt.Sprintf("%s: %s", e.field, e.message)
}

var hexColor = regexp.MustCompile(`^#([0-9a-fA-F]{3}|[0-9a-fA-F]{6})$`)

// isValidColor accepts ANSI codes 0-255 and #RGB / #RRGGBB hex colors.
func isValidColor(color string) bool {
	if hexColor.MatchString(color) {
		return true
	}
	n, err := strconv.Atoi(color)
	if err != nil || strconv.Itoa(n) != color {
		return false
	}
	return n >= 0 && n <= 255
}

func validDriver(d string) bool {
	return slices.Contains(player.Drivers, d)
}

// validateConfig checks every field and returns one error per invalid field.
func validateConfig(cfg *Config) []error {
	var errs []error
	add := func(field, format string, args ...interface{}) {
		errs = append(errs, configError{field: field, message: fmt.Sprintf(format, args...)})
	}

	if _, _, err := net.SplitHostPort(cfg.Server.Listen); err != nil {
		add("server.listen", "invalid listen address '%s'", cfg.Server.Listen)
	}
	if cfg.Server.PollIntervalMs < 100 || cfg.Server.PollIntervalMs > 60000 {
		add("server.poll_interval_ms", "must be between 100 and 60000 (got %d)", cfg.Server.PollIntervalMs)
	}
	if cfg.Server.StopTimeoutMs <= 0 {
		add("server.stop_timeout_ms", "must be positive (got %d)", cfg.Server.StopTimeoutMs)
	}
	if cfg.Server.ReadBuffer < 64 || cfg.Server.ReadBuffer > 65536 {
		add("server.read_buffer", "must be between 64 and 65536 (got %d)", cfg.Server.ReadBuffer)
	}
	if !validDriver(cfg.Backend.Driver) {
		add("backend.driver", "must be one of %s (got '%s')", strings.Join(player.Drivers, ", "), cfg.Backend.Driver)
	}
	if cfg.Backend.Driver == "mpd" && cfg.Backend.MPDAddress == "" {
		add("backend.mpd_address", "must be set for the mpd driver")
	}
	if cfg.Preference.Path == "" {
		add("preference.path", "must not be empty")
	}
	if cfg.Client.PollIntervalMs < 100 || cfg.Client.PollIntervalMs > 60000 {
		add("client.poll_interval_ms", "must be between 100 and 60000 (got %d)", cfg.Client.PollIntervalMs)
	}
	if cfg.Client.ClearDelayMs < 0 {
		add("client.clear_delay_ms", "must not be negative (got %d)", cfg.Client.ClearDelayMs)
	}
	if cfg.Client.RequestTimeoutMs < 0 {
		add("client.request_timeout_ms", "must not be negative (got %d)", cfg.Client.RequestTimeoutMs)
	}
	if !isValidColor(cfg.Client.Color) {
		add("client.color", "invalid color format '%s'", cfg.Client.Color)
	}
	if !isValidColor(cfg.UI.Color) {
		add("ui.color", "invalid color format '%s'", cfg.UI.Color)
	}
	if cfg.UI.ColorMode != "manual" && cfg.UI.ColorMode != "auto" {
		add("ui.color_mode", "must be 'manual' or 'auto' (got '%s')", cfg.UI.ColorMode)
	}
	if cfg.UI.MaxWidth < 20 {
		add("ui.max_width", "must be at least 20 (got %d)", cfg.UI.MaxWidth)
	}
	if cfg.Artwork.Padding < 0 || (cfg.UI.MaxWidth >= 20 && cfg.Artwork.Padding >= cfg.UI.MaxWidth) {
		add("artwork.padding", "must be between 0 and max_width (got %d)", cfg.Artwork.Padding)
	}
	if cfg.Artwork.WidthPixels < 50 || cfg.Artwork.WidthPixels > 2000 {
		add("artwork.width_pixels", "must be between 50 and 2000 (got %d)", cfg.Artwork.WidthPixels)
	}
	if cfg.Artwork.WidthColumns < 1 || cfg.Artwork.WidthColumns > 100 {
		add("artwork.width_columns", "must be between 1 and 100 (got %d)", cfg.Artwork.WidthColumns)
	}
	if cfg.Feed.Listen != "" {
		if _, _, err := net.SplitHostPort(cfg.Feed.Listen); err != nil {
			add("feed.listen", "invalid listen address '%s'", cfg.Feed.Listen)
		}
	}
	if _, err := zerolog.ParseLevel(cfg.Log.Level); err != nil || cfg.Log.Level == "" {
		add("log.level", "unknown level '%s'", cfg.Log.Level)
	}

	return errs
}

// applyDefaultsForInvalidFields resets every field named in errs to its default.
func applyDefaultsForInvalidFields(cfg *Config, errs []error) {
	for _, err := range errs {
		ce, ok := err.(configError)
		if !ok {
			continue
		}
		switch ce.field {
		case "server.listen":
			cfg.Server.Listen = ":8888"
		case "server.poll_interval_ms":
			cfg.Server.PollIntervalMs = 2000
		case "server.stop_timeout_ms":
			cfg.Server.StopTimeoutMs = 5000
		case "server.read_buffer":
			cfg.Server.ReadBuffer = 1024
		case "backend.driver":
			cfg.Backend.Driver = "dbus"
		case "backend.mpd_address":
			cfg.Backend.MPDAddress = "localhost:6600"
		case "preference.path":
			cfg.Preference.Path = "player_pref.json"
		case "client.poll_interval_ms":
			cfg.Client.PollIntervalMs = 2000
		case "client.clear_delay_ms":
			cfg.Client.ClearDelayMs = 5000
		case "client.request_timeout_ms":
			cfg.Client.RequestTimeoutMs = 10000
		case "client.color":
			cfg.Client.Color = "2"
		case "ui.color":
			cfg.UI.Color = "2"
		case "ui.color_mode":
			cfg.UI.ColorMode = "manual"
		case "ui.max_width":
			cfg.UI.MaxWidth = 45
			if cfg.Artwork.Padding >= cfg.UI.MaxWidth {
				cfg.Artwork.Padding = 16
			}
		case "artwork.padding":
			cfg.Artwork.Padding = 16
		case "artwork.width_pixels":
			cfg.Artwork.WidthPixels = 300
		case "artwork.width_columns":
			cfg.Artwork.WidthColumns = 13
		case "feed.listen":
			cfg.Feed.Listen = ""
		case "log.level":
			cfg.Log.Level = "info"
		}
	}
}

// printConfigWarnings reports invalid settings on stderr.
func printConfigWarnings(errs []error) {
	for _, err := range errs {
		fmt.Fprintf(os.Stderr, "Warning: invalid config %v, using default\n", err)
	}
}
