package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"mprisremote/internal/config"
	"mprisremote/internal/feed"
	"mprisremote/internal/player"
	"mprisremote/internal/prefs"
	"mprisremote/internal/session"
)

func sessionOptions(cfg config.Config) session.Options {
	return session.Options{
		PollInterval:    cfg.ServerPollInterval(),
		StopTimeout:     cfg.ServerStopTimeout(),
		ReadBuffer:      cfg.Server.ReadBuffer,
		ArtistSeparator: cfg.Format.ArtistSeparator,
		PushStatus:      cfg.Server.PushStatus,
	}
}

// runServer serves clients until ctx is cancelled. Config file changes are
// applied to sessions accepted afterwards.
func runServer(ctx context.Context, loader *config.Loader, bus player.Bus, store *prefs.Store, out io.Writer, log zerolog.Logger) error {
	cfg := loader.Get()
	console := newConsoleSink(out, cfg.UI.Color)

	// Repaint only a real terminal; otherwise snapshots go to the debug log
	var sink session.StatusSink = session.LogSink{Log: log}
	if isTerminal(out) {
		sink = console
	}

	var hub *feed.Hub
	if cfg.Feed.Listen != "" {
		hub = feed.NewHub()
		sink = session.MultiSink{sink, hub}
	}
	srv := session.NewServer(cfg.Server.Listen, bus, store, sink, sessionOptions(cfg), log)

	loader.Watch(func(cfg config.Config) {
		srv.SetOptions(sessionOptions(cfg))
		log.Info().Msg("Configuration reloaded")
	})

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(ctx)
	})
	g.Go(func() error {
		return console.Run(ctx)
	})
	if hub != nil {
		fs := feed.NewServer(hub, log)
		g.Go(func() error {
			return fs.ListenAndServe(ctx, cfg.Feed.Listen)
		})
	}
	return g.Wait()
}

type snapshot struct {
	session string
	text    string
}

// consoleSink repaints the server terminal with the latest snapshot from any
// session. Only Run writes to out.
type consoleSink struct {
	out   io.Writer
	color string
	ch    chan snapshot
	clear bool
}

func newConsoleSink(out io.Writer, color string) *consoleSink {
	return &consoleSink{out: out, color: color, ch: make(chan snapshot, 16), clear: true}
}

// Status queues text for display. It never blocks the broadcasting session;
// when the display falls behind, the snapshot is dropped.
func (c *consoleSink) Status(sessionID, text string) {
	select {
	case c.ch <- snapshot{session: sessionID, text: text}:
	default:
	}
}

// Run drains snapshots until ctx is done.
func (c *consoleSink) Run(ctx context.Context) error {
	label := lipgloss.NewStyle().Foreground(lipgloss.Color(c.color)).Bold(true)
	muted := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	for {
		select {
		case <-ctx.Done():
			return nil
		case s := <-c.ch:
			var b strings.Builder
			if c.clear {
				b.WriteString("\033[H\033[2J")
			}
			fmt.Fprintf(&b, "%s %s\n%s\n", label.Render("Now playing"), muted.Render("("+shortID(s.session)+")"), s.text)
			io.WriteString(c.out, b.String())
		}
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
