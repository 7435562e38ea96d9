package player

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

const (
	objectPath      = dbus.ObjectPath("/org/mpris/MediaPlayer2")
	playerInterface = "org.mpris.MediaPlayer2.Player"
	propertiesGet   = "org.freedesktop.DBus.Properties.Get"
)

// DBusBus talks to MPRIS players directly over the session bus.
type DBusBus struct {
	conn *dbus.Conn
}

// NewDBusBus connects to the user's session bus.
func NewDBusBus() (*DBusBus, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &DBusBus{conn: conn}, nil
}

// Services lists every bus name under the MPRIS prefix.
func (b *DBusBus) Services(ctx context.Context) ([]string, error) {
	var names []string
	if err := b.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("ListNames: %w", err)
	}
	var services []string
	for _, n := range names {
		if strings.HasPrefix(n, ServicePrefix) {
			services = append(services, n)
		}
	}
	return services, nil
}

// Metadata reads the Metadata and PlaybackStatus properties of the player.
func (b *DBusBus) Metadata(ctx context.Context, service string) (Metadata, error) {
	obj := b.conn.Object(service, objectPath)

	var v dbus.Variant
	err := obj.CallWithContext(ctx, propertiesGet, 0, playerInterface, "Metadata").Store(&v)
	if err != nil {
		return Metadata{}, fmt.Errorf("get metadata from %s: %w", service, err)
	}
	raw, _ := v.Value().(map[string]dbus.Variant)
	md := metadataFromVariants(raw)

	var status dbus.Variant
	if err := obj.CallWithContext(ctx, propertiesGet, 0, playerInterface, "PlaybackStatus").Store(&status); err == nil {
		md.Status, _ = status.Value().(string)
	}

	if md.Empty() {
		return Metadata{}, ErrNoMetadata
	}
	return md, nil
}

// Control invokes Play, Pause, Next or Previous on the player.
func (b *DBusBus) Control(ctx context.Context, service string, cmd Command) error {
	if _, ok := ParseCommand(string(cmd)); !ok {
		return fmt.Errorf("invalid command: %s", cmd)
	}
	call := b.conn.Object(service, objectPath).CallWithContext(ctx, playerInterface+"."+cmd.Method(), 0)
	if call.Err != nil {
		return fmt.Errorf("%s %s failed: %w", ShortName(service), cmd, call.Err)
	}
	return nil
}

// Close releases the bus connection.
func (b *DBusBus) Close() error {
	return b.conn.Close()
}

// metadataFromVariants pulls the xesam fields out of an MPRIS metadata map.
func metadataFromVariants(raw map[string]dbus.Variant) Metadata {
	var md Metadata
	if v, ok := raw["xesam:title"]; ok {
		md.Title, _ = v.Value().(string)
	}
	if v, ok := raw["xesam:album"]; ok {
		md.Album, _ = v.Value().(string)
	}
	if v, ok := raw["mpris:artUrl"]; ok {
		md.ArtURL, _ = v.Value().(string)
	}
	if v, ok := raw["xesam:artist"]; ok {
		switch a := v.Value().(type) {
		case []string:
			md.Artist = a
		case string:
			md.Artist = []string{a}
		}
	}
	return md
}
