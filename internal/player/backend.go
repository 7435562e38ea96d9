package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ServicePrefix is the bus namespace every MPRIS player registers under.
const ServicePrefix = "org.mpris.MediaPlayer2."

// ErrNoMetadata is returned when a player is reachable but reports no track.
var ErrNoMetadata = errors.New("no song info available")

// Command is a transport command understood by every backend.
type Command string

const (
	Play     Command = "play"
	Pause    Command = "pause"
	Next     Command = "next"
	Previous Command = "previous"
)

// Commands lists the transport commands in protocol order.
var Commands = []Command{Play, Pause, Next, Previous}

// ParseCommand matches s case-insensitively against the transport commands.
func ParseCommand(s string) (Command, bool) {
	c := Command(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Commands {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Method returns the MPRIS method name for the command (e.g. "Play").
func (c Command) Method() string {
	if c == "" {
		return ""
	}
	return strings.ToUpper(string(c[:1])) + string(c[1:])
}

// Backend issues transport commands and metadata queries against one named player.
type Backend interface {
	Metadata(ctx context.Context, service string) (Metadata, error)
	Control(ctx context.Context, service string, cmd Command) error
}

// Registry enumerates the players currently reachable.
type Registry interface {
	Services(ctx context.Context) ([]string, error)
}

// Bus is a driver that is both a Backend and a Registry.
type Bus interface {
	Backend
	Registry
	Close() error
}

// ServiceName returns the fully qualified bus name for a short player name.
// The prefix is always added, even to names that already carry it.
func ServiceName(name string) string {
	return ServicePrefix + name
}

// ShortName strips the MPRIS prefix ("org.mpris.MediaPlayer2.mpv" -> "mpv").
func ShortName(service string) string {
	return strings.TrimPrefix(service, ServicePrefix)
}

// IsLive reports whether service is in the registry's current listing.
func IsLive(ctx context.Context, reg Registry, service string) (bool, error) {
	if service == "" {
		return false, nil
	}
	services, err := reg.Services(ctx)
	if err != nil {
		return false, fmt.Errorf("list players: %w", err)
	}
	for _, s := range services {
		if s == service {
			return true, nil
		}
	}
	return false, nil
}

// Metadata is a snapshot of the track a player reports. It is never cached.
type Metadata struct {
	Title  string
	Artist []string
	Album  string
	ArtURL string
	Status string
}

// Empty reports whether the player returned nothing worth showing.
func (m Metadata) Empty() bool {
	return m.Title == "" && len(m.Artist) == 0 && m.Album == ""
}

// Artists joins the artist list with sep.
func (m Metadata) Artists(sep string) string {
	return strings.Join(m.Artist, sep)
}

// Text renders the three-line snapshot sent over the wire.
func (m Metadata) Text(artistSep string) string {
	return fmt.Sprintf("Song: %s\nArtist: %s\nAlbum: %s", m.Title, m.Artists(artistSep), m.Album)
}
