package session

import (
	"context"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mprisremote/internal/player"
	"mprisremote/internal/player/playertest"
)

const (
	mpv     = "org.mpris.MediaPlayer2.mpv"
	spotify = "org.mpris.MediaPlayer2.spotify"
)

// staticPrefs is a prefs.Loader returning a fixed value.
type staticPrefs struct {
	service string
	err     error
}

func (p staticPrefs) Load() (string, error) { return p.service, p.err }

// recordingSink counts and keeps every snapshot it receives.
type recordingSink struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingSink) Status(_, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
}

func (r *recordingSink) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.texts)
}

func (r *recordingSink) Last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.texts) == 0 {
		return ""
	}
	return r.texts[len(r.texts)-1]
}

func testOptions() Options {
	return Options{
		PollInterval: 10 * time.Millisecond,
		StopTimeout:  time.Second,
		ReadBuffer:   1024,
	}
}

// songA is the metadata from the end-to-end scenarios.
var songA = player.Metadata{Title: "Song A", Artist: []string{"Artist X"}, Album: "Album Y"}

type harness struct {
	sess   *Session
	client net.Conn
	done   chan error
}

// startSession runs a Session over an in-memory pipe.
func startSession(t *testing.T, bus *playertest.Bus, preferred string, sink StatusSink, opts Options) *harness {
	t.Helper()
	server, client := net.Pipe()
	sess := New(server, bus, staticPrefs{service: preferred}, sink, opts, zerolog.Nop())

	h := &harness{sess: sess, client: client, done: make(chan error, 1)}
	go func() { h.done <- sess.Run(context.Background()) }()
	t.Cleanup(func() { client.Close() })
	return h
}

// request sends one command and returns the single reply read back.
func (h *harness) request(t *testing.T, cmd string) string {
	t.Helper()
	h.client.SetDeadline(time.Now().Add(2 * time.Second))
	if _, err := h.client.Write([]byte(cmd)); err != nil {
		t.Fatalf("write %q: %v", cmd, err)
	}
	buf := make([]byte, 4096)
	n, err := h.client.Read(buf)
	if err != nil {
		t.Fatalf("read reply to %q: %v", cmd, err)
	}
	return string(buf[:n])
}

// waitDone waits for Run to return.
func (h *harness) waitDone(t *testing.T, within time.Duration) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	case <-time.After(within):
		t.Fatalf("session did not finish within %v", within)
		return nil
	}
}

// expectEOF asserts the peer closed the connection.
func (h *harness) expectEOF(t *testing.T) {
	t.Helper()
	h.client.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := h.client.Read(make([]byte, 16))
	if err != io.EOF {
		t.Errorf("expected EOF after close, got %v", err)
	}
}

// nopConn returns one end of a pipe nobody reads; for sessions that are never Run.
func nopConn() net.Conn {
	c, _ := net.Pipe()
	return c
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, within time.Duration, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(within)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v: %s", within, msg)
}

func assertEqual(t *testing.T, got, want interface{}, msg string) {
	t.Helper()
	if got != want {
		t.Errorf("%s: got %v, want %v", msg, got, want)
	}
}
