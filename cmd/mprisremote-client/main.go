// Command mprisremote-client connects to an mprisremote server and shows the
// current song while forwarding playback commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"mprisremote/internal/client"
	"mprisremote/internal/config"
	"mprisremote/internal/logging"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newFlagSet(configFile *string) *pflag.FlagSet {
	fs := pflag.NewFlagSet("mprisremote-client", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: mprisremote-client [flags] host:port")
		fs.PrintDefaults()
	}
	fs.StringVar(configFile, "config", "", "Path to config file")
	fs.StringP("color", "c", "", "Set the desired color (ANSI code or hex)")
	fs.String("log-level", "", "Log level (debug, info, warn, error)")
	fs.String("log-file", "", "Write logs to this file (default: no logging)")
	return fs
}

func run(args []string) error {
	var configFile string
	fs := newFlagSet(&configFile)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if fs.NArg() != 1 {
		fs.Usage()
		return errors.New("expected exactly one host:port argument")
	}
	addr := fs.Arg(0)

	loader, err := config.Load(configFile, fs)
	if err != nil {
		return err
	}
	cfg := loader.Get()

	// The terminal belongs to the TUI; log only to a file.
	log, closer, err := logging.New(cfg.Log.Level, cfg.Log.File, nil)
	if err != nil {
		return err
	}
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	conn, err := client.Dial(ctx, addr, cfg.ClientRequestTimeout())
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info().Str("addr", addr).Msg("Connected")

	opts := client.Options{
		PollInterval: cfg.ClientPollInterval(),
		ClearDelay:   cfg.ClientClearDelay(),
		Color:        clientColor(cfg, fs),
	}
	err = client.Run(ctx, conn, opts, log)
	if errors.Is(err, client.ErrDisconnected) {
		fmt.Fprintln(os.Stdout, "Connection closed by server.")
		return nil
	}
	return err
}

// clientColor prefers --color, then client.color.
func clientColor(cfg config.Config, fs *pflag.FlagSet) string {
	if fs.Changed("color") {
		return cfg.UI.Color
	}
	return cfg.Client.Color
}
