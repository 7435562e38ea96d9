package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for one writer and a polling reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsoleSinkRendersSnapshots(t *testing.T) {
	out := &syncBuffer{}
	sink := newConsoleSink(out, "2")
	sink.clear = false

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sink.Run(ctx) }()

	sink.Status("0123456789abcdef", "Song: Song A\nArtist: Artist X\nAlbum: Album Y")

	deadline := time.Now().Add(time.Second)
	for !strings.Contains(out.String(), "Album: Album Y") {
		if time.Now().After(deadline) {
			t.Fatalf("snapshot never rendered, got %q", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	if !strings.Contains(out.String(), "01234567") {
		t.Error("session id not shown")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}

func TestConsoleSinkNeverBlocks(t *testing.T) {
	sink := newConsoleSink(&bytes.Buffer{}, "2")

	// Nobody drains the channel
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			sink.Status("s", "text")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Status blocked with a full queue")
	}
}

func TestSessionOptions(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.PollIntervalMs = 500
	cfg.Server.PushStatus = true
	cfg.Format.ArtistSeparator = ", "

	opts := sessionOptions(cfg)
	if opts.PollInterval != 500*time.Millisecond {
		t.Errorf("PollInterval = %v", opts.PollInterval)
	}
	if opts.StopTimeout != 5*time.Second {
		t.Errorf("StopTimeout = %v", opts.StopTimeout)
	}
	if opts.ReadBuffer != 1024 {
		t.Errorf("ReadBuffer = %d", opts.ReadBuffer)
	}
	if !opts.PushStatus || opts.ArtistSeparator != ", " {
		t.Errorf("opts = %+v", opts)
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("abc"); got != "abc" {
		t.Errorf("shortID(abc) = %q", got)
	}
	if got := shortID("0123456789"); got != "01234567" {
		t.Errorf("shortID = %q", got)
	}
}

func TestIsTerminal(t *testing.T) {
	if isTerminal(&bytes.Buffer{}) {
		t.Error("buffer reported as terminal")
	}
	f, err := os.CreateTemp(t.TempDir(), "out")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if isTerminal(f) {
		t.Error("regular file reported as terminal")
	}
}
