package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"mprisremote/internal/player"
)

// StatusSink receives the snapshots produced by a session's status broadcast.
type StatusSink interface {
	Status(sessionID, text string)
}

// NopSink discards snapshots.
type NopSink struct{}

func (NopSink) Status(string, string) {}

// LogSink writes snapshots to a logger at debug level.
type LogSink struct {
	Log zerolog.Logger
}

func (l LogSink) Status(sessionID, text string) {
	l.Log.Debug().Str("session", sessionID).Str("status", text).Msg("Now playing")
}

// MultiSink forwards each snapshot to every sink in order.
type MultiSink []StatusSink

func (m MultiSink) Status(sessionID, text string) {
	for _, s := range m {
		s.Status(sessionID, text)
	}
}

// statusTask is the handle for one running broadcast loop.
type statusTask struct {
	stop chan struct{}
	done chan struct{}
}

func (t *statusTask) stopping() bool {
	select {
	case <-t.stop:
		return true
	default:
		return false
	}
}

// startStatus launches the broadcast loop. At most one runs per session.
func (s *Session) startStatus(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != nil {
		return
	}
	t := &statusTask{stop: make(chan struct{}), done: make(chan struct{})}
	s.status = t
	go s.broadcast(ctx, t)
}

// stopStatus signals the loop and waits for it to exit, up to StopTimeout.
// The loop is never interrupted mid-iteration.
func (s *Session) stopStatus() {
	s.mu.Lock()
	t := s.status
	s.status = nil
	s.mu.Unlock()
	if t == nil {
		return
	}

	close(t.stop)
	select {
	case <-t.done:
	case <-time.After(s.opts.StopTimeout):
		s.log.Warn().Dur("timeout", s.opts.StopTimeout).Msg("Status task did not stop in time")
	}
}

// statusRunning reports whether a broadcast loop is attached to the session.
func (s *Session) statusRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status != nil
}

func (s *Session) broadcast(ctx context.Context, t *statusTask) {
	defer close(t.done)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		s.pushStatus(ctx, t)

		select {
		case <-t.stop:
			return
		case <-ticker.C:
		}
	}
}

// pushStatus does one broadcast iteration. The preferred player is re-read
// every time so a switch takes effect on the next tick.
func (s *Session) pushStatus(ctx context.Context, t *statusTask) {
	if t.stopping() {
		return
	}
	md, err := s.bus.Metadata(ctx, s.Preferred())
	if err != nil {
		if !errors.Is(err, player.ErrNoMetadata) {
			s.log.Debug().Err(err).Msg("Status query failed")
		}
		return
	}
	if t.stopping() {
		return
	}

	text := md.Text(s.opts.ArtistSeparator)
	s.sink.Status(s.id, text)
	if s.opts.PushStatus {
		if err := s.write(text); err != nil && !errors.Is(err, ErrClosed) {
			s.log.Debug().Err(err).Msg("Status push failed")
		}
	}
}
