package player

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// runFunc executes playerctl with args and returns its stdout.
type runFunc func(ctx context.Context, args ...string) (string, error)

// PlayerctlBus implements Bus by shelling out to playerctl.
type PlayerctlBus struct {
	run runFunc
}

// NewPlayerctlBus returns a driver backed by the playerctl binary on PATH.
func NewPlayerctlBus() *PlayerctlBus {
	return &PlayerctlBus{run: runPlayerctl}
}

// errNoPlayer is returned when playerctl finds no player to talk to.
var errNoPlayer = errors.New("playerctl: no player")

func runPlayerctl(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "playerctl", args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if strings.HasPrefix(msg, "No player") {
			return "", errNoPlayer
		}
		if msg != "" {
			return "", fmt.Errorf("playerctl: %s: %w", msg, err)
		}
		return "", fmt.Errorf("playerctl: %w", err)
	}
	return strings.TrimRight(out.String(), "\r\n"), nil
}

// Services lists the running players as fully qualified bus names.
func (p *PlayerctlBus) Services(ctx context.Context) ([]string, error) {
	out, err := p.run(ctx, "--list-all")
	if err != nil {
		// playerctl exits non-zero when no player is running
		return nil, nil
	}
	var services []string
	for _, line := range strings.Split(out, "\n") {
		if name := strings.TrimSpace(line); name != "" {
			services = append(services, ServiceName(name))
		}
	}
	return services, nil
}

func (p *PlayerctlBus) Metadata(ctx context.Context, service string) (Metadata, error) {
	// Tab separator avoids conflicts with | in metadata (e.g. "Artist | Sessions")
	out, err := p.run(ctx, "--player", ShortName(service), "metadata", "--format",
		"{{title}}\t{{artist}}\t{{album}}\t{{status}}\t{{mpris:artUrl}}")
	if errors.Is(err, errNoPlayer) || (err == nil && out == "") {
		return Metadata{}, ErrNoMetadata
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("metadata for %s: %w", ShortName(service), err)
	}

	parts := strings.Split(out, "\t")
	if len(parts) != 5 {
		return Metadata{}, fmt.Errorf("unexpected metadata format: got %d parts, expected 5", len(parts))
	}

	md := Metadata{
		Title:  strings.TrimSpace(parts[0]),
		Album:  strings.TrimSpace(parts[2]),
		Status: strings.TrimSpace(parts[3]),
		ArtURL: strings.TrimSpace(parts[4]),
	}
	if artist := strings.TrimSpace(parts[1]); artist != "" {
		md.Artist = []string{artist}
	}
	if md.Empty() {
		return Metadata{}, ErrNoMetadata
	}
	return md, nil
}

func (p *PlayerctlBus) Control(ctx context.Context, service string, cmd Command) error {
	if _, ok := ParseCommand(string(cmd)); !ok {
		return fmt.Errorf("invalid command: %s", cmd)
	}
	if _, err := p.run(ctx, "--player", ShortName(service), string(cmd)); err != nil {
		return fmt.Errorf("playerctl %s failed: %w", cmd, err)
	}
	return nil
}

// Close is a no-op; playerctl holds no connection.
func (p *PlayerctlBus) Close() error { return nil }
