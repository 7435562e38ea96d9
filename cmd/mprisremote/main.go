// Command mprisremote reads and controls the preferred MPRIS media player and
// can serve it to remote clients over TCP.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"

	"mprisremote/internal/config"
	"mprisremote/internal/logging"
	"mprisremote/internal/player"
	"mprisremote/internal/prefs"
)

// cliFlags are the mode selectors; everything else on the command line is
// config and goes through config.Load.
type cliFlags struct {
	info       bool
	tcp        bool
	control    string
	reselect   bool
	configFile string
}

func newFlagSet(cli *cliFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("mprisremote", pflag.ContinueOnError)
	fs.BoolVar(&cli.info, "info", false, "Output limited to the song name, the artist, and the album")
	fs.BoolVar(&cli.tcp, "tcp", false, "Operate as a TCP server for remote clients")
	fs.StringVar(&cli.control, "control", "", "Control media playback (play, pause, next, previous)")
	fs.BoolVar(&cli.reselect, "reselect", false, "Re-select the preferred media player")
	fs.StringVar(&cli.configFile, "config", "", "Path to config file")

	fs.String("listen", "", "Server listen address (host:port)")
	fs.String("driver", "", "Player backend (dbus, playerctl or mpd)")
	fs.String("mpd-address", "", "MPD server host:port or socket path (mpd driver)")
	fs.String("preference", "", "Path of the preferred player record")
	fs.Bool("push-status", false, "Also push status snapshots to connected clients")
	fs.StringP("color", "c", "", "Set the desired color (ANSI code or hex)")
	fs.Bool("no-artwork", false, "Disable album artwork display")
	fs.String("feed-listen", "", "Serve a WebSocket status feed on this address (host:port)")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("log-file", "", "Write logs to this file instead of stderr")
	return fs
}

func parseFlags(args []string) (*pflag.FlagSet, cliFlags, error) {
	var cli cliFlags
	fs := newFlagSet(&cli)
	if err := fs.Parse(args); err != nil {
		return nil, cli, err
	}
	if fs.NArg() > 0 {
		return nil, cli, fmt.Errorf("unexpected argument %q", fs.Arg(0))
	}

	modes := 0
	for _, set := range []bool{cli.tcp, cli.control != "", cli.reselect} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return nil, cli, errors.New("--tcp, --control and --reselect are mutually exclusive")
	}
	if cli.control != "" {
		if _, ok := player.ParseCommand(cli.control); !ok {
			return nil, cli, fmt.Errorf("invalid --control %q: want play, pause, next or previous", cli.control)
		}
	}
	return fs, cli, nil
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	flags, cli, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	loader, err := config.Load(cli.configFile, flags)
	if err != nil {
		return err
	}
	cfg := loader.Get()

	log, closer, err := logging.New(cfg.Log.Level, cfg.Log.File, os.Stderr)
	if err != nil {
		return err
	}
	defer closer.Close()

	bus, err := player.Open(cfg.Backend.Driver, player.DriverOptions{
		MPDAddress:  cfg.Backend.MPDAddress,
		MPDPassword: cfg.Backend.MPDPassword,
	})
	if err != nil {
		return err
	}
	defer bus.Close()

	store := prefs.NewStore(afero.NewOsFs(), cfg.Preference.Path)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cli.tcp {
		return runServer(ctx, loader, bus, store, stdout, log)
	}

	a := &app{bus: bus, store: store, cfg: cfg, log: log, in: stdin, out: stdout}
	switch {
	case cli.control != "":
		return a.control(ctx, cli.control)
	case cli.reselect:
		return a.reselect(ctx, cli.info)
	default:
		return a.show(ctx, cli.info)
	}
}
