package player

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/fhs/gompd/v2/mpd"
)

// MPDService is the bus name under which an MPD server is exposed.
var MPDService = ServiceName("mpd")

// Used when the caller's context has no deadline
const mpdTimeout = 3 * time.Second

// mpdClient is the part of *mpd.Client the driver needs.
type mpdClient interface {
	Status() (mpd.Attrs, error)
	CurrentSong() (mpd.Attrs, error)
	Play(pos int) error
	Pause(pause bool) error
	Next() error
	Previous() error
	Ping() error
	Close() error
}

type mpdDialFunc func(network, addr, password string) (mpdClient, error)

// MPDBus implements Bus against a single MPD server, shown as one player
// named "mpd" while the server is reachable.
type MPDBus struct {
	network  string
	addr     string
	password string
	dial     mpdDialFunc
}

// NewMPDBus returns a driver for the MPD server at addr. An addr starting
// with "/" is a unix socket.
func NewMPDBus(addr, password string) *MPDBus {
	network := "tcp"
	if strings.HasPrefix(addr, "/") {
		network = "unix"
	}
	return &MPDBus{network: network, addr: addr, password: password, dial: dialMPD}
}

func dialMPD(network, addr, password string) (mpdClient, error) {
	if password != "" {
		return mpd.DialAuthenticated(network, addr, password)
	}
	return mpd.Dial(network, addr)
}

// do runs fn on a short-lived connection, bounded by ctx.
func (b *MPDBus) do(ctx context.Context, fn func(mpdClient) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, mpdTimeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		c, err := b.dial(b.network, b.addr, b.password)
		if err != nil {
			done <- fmt.Errorf("connect to mpd at %s: %w", b.addr, err)
			return
		}
		err = fn(c)
		c.Close()
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("mpd at %s: %w", b.addr, ctx.Err())
	}
}

// Services lists MPDService when the server answers a ping.
func (b *MPDBus) Services(ctx context.Context) ([]string, error) {
	if err := b.do(ctx, func(c mpdClient) error { return c.Ping() }); err != nil {
		// An unreachable server means no player, as with playerctl
		return nil, nil
	}
	return []string{MPDService}, nil
}

func (b *MPDBus) Metadata(ctx context.Context, service string) (Metadata, error) {
	if service != MPDService {
		return Metadata{}, ErrNoMetadata
	}

	var song, status mpd.Attrs
	err := b.do(ctx, func(c mpdClient) error {
		var err error
		if song, err = c.CurrentSong(); err != nil {
			return err
		}
		status, err = c.Status()
		return err
	})
	if err != nil {
		return Metadata{}, err
	}

	md := metadataFromAttrs(song, status)
	if md.Empty() {
		return Metadata{}, ErrNoMetadata
	}
	return md, nil
}

func metadataFromAttrs(song, status mpd.Attrs) Metadata {
	md := Metadata{
		Title: song["Title"],
		Album: song["Album"],
	}
	if md.Title == "" {
		md.Title = song["Name"]
	}
	if md.Title == "" && song["file"] != "" {
		md.Title = path.Base(song["file"])
	}
	if a := song["Artist"]; a != "" {
		md.Artist = []string{a}
	}

	switch status["state"] {
	case "play":
		md.Status = "Playing"
	case "pause":
		md.Status = "Paused"
	case "stop":
		md.Status = "Stopped"
	}
	return md
}

func (b *MPDBus) Control(ctx context.Context, service string, cmd Command) error {
	if service != MPDService {
		return fmt.Errorf("mpd driver has no player %s", service)
	}

	return b.do(ctx, func(c mpdClient) error {
		switch cmd {
		case Play:
			status, err := c.Status()
			if err != nil {
				return err
			}
			if status["state"] == "pause" {
				return c.Pause(false)
			}
			return c.Play(-1)
		case Pause:
			return c.Pause(true)
		case Next:
			return c.Next()
		case Previous:
			return c.Previous()
		}
		return fmt.Errorf("unsupported command %q", cmd)
	})
}

func (b *MPDBus) Close() error { return nil }
