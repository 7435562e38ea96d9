package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"mprisremote/internal/artwork"
	"mprisremote/internal/config"
	"mprisremote/internal/player"
	"mprisremote/internal/prefs"
	"mprisremote/internal/session"
)

var (
	errNoLivePlayer = errors.New("preferred player is not running")
	errNoPlayers    = errors.New("no MPRIS players running")
)

// app runs the one-shot modes against the preferred player.
type app struct {
	bus   player.Bus
	store *prefs.Store
	cfg   config.Config
	log   zerolog.Logger
	in    io.Reader
	out   io.Writer
	kitty func() bool
}

// livePreference returns the stored preference if that player is running.
func (a *app) livePreference(ctx context.Context) (string, error) {
	service, err := a.store.Load()
	if err != nil {
		return "", err
	}
	live, err := player.IsLive(ctx, a.bus, service)
	if err != nil {
		return "", err
	}
	if !live {
		return "", errNoLivePlayer
	}
	return service, nil
}

func (a *app) control(ctx context.Context, name string) error {
	cmd, ok := player.ParseCommand(name)
	if !ok {
		return fmt.Errorf("invalid command %q", name)
	}
	service, err := a.livePreference(ctx)
	if err != nil {
		return fmt.Errorf("cannot control player: %w", err)
	}
	if err := a.bus.Control(ctx, service, cmd); err != nil {
		return fmt.Errorf("error in controlling player: %w", err)
	}
	a.log.Debug().Str("player", service).Str("command", string(cmd)).Msg("Command sent")
	return nil
}

// show prints the preferred player's metadata, asking for a player first if
// none is running.
func (a *app) show(ctx context.Context, info bool) error {
	service, err := a.livePreference(ctx)
	if errors.Is(err, errNoLivePlayer) {
		return a.reselect(ctx, info)
	}
	if err != nil {
		return err
	}
	return a.print(ctx, service, info)
}

// reselect asks the operator to pick a player, stores it and prints it.
func (a *app) reselect(ctx context.Context, info bool) error {
	services, err := a.bus.Services(ctx)
	if err != nil {
		return fmt.Errorf("list players: %w", err)
	}
	if len(services) == 0 {
		return errNoPlayers
	}

	service, err := selectPlayer(a.in, a.out, services)
	if err != nil {
		return err
	}
	if err := a.store.Save(service); err != nil {
		return err
	}
	a.log.Debug().Str("player", service).Str("path", a.store.Path()).Msg("Preference saved")
	return a.print(ctx, service, info)
}

// selectPlayer lists services by short name, numbered from 1, and reads the
// chosen number from in.
func selectPlayer(in io.Reader, out io.Writer, services []string) (string, error) {
	header := lipgloss.NewStyle().Bold(true)
	num := lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	fmt.Fprintln(out, header.Render("Available players:"))
	for i, s := range services {
		fmt.Fprintf(out, "%s %s\n", num.Render(strconv.Itoa(i+1)+"."), player.ShortName(s))
	}
	fmt.Fprint(out, "Select your preferred player by entering its corresponding number: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", fmt.Errorf("read selection: %w", err)
	}

	choice := strings.TrimSpace(line)
	n, err := strconv.Atoi(choice)
	if err != nil || n < 1 || n > len(services) {
		return "", fmt.Errorf("invalid selection %q", choice)
	}
	return services[n-1], nil
}

func (a *app) print(ctx context.Context, service string, info bool) error {
	md, err := a.bus.Metadata(ctx, service)
	if errors.Is(err, player.ErrNoMetadata) {
		fmt.Fprintln(a.out, session.ReplyNoInfo)
		return nil
	}
	if err != nil {
		return fmt.Errorf("error in processing service: %w", err)
	}

	if info {
		fmt.Fprintln(a.out, md.Text(a.cfg.Format.ArtistSeparator))
		return nil
	}

	kitty := artwork.SupportsKitty
	if a.kitty != nil {
		kitty = a.kitty
	}
	fmt.Fprintln(a.out, renderCard(ctx, md, a.cfg, kitty(), a.log))
	return nil
}
