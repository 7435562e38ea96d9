package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mprisremote/internal/player"
	"mprisremote/internal/prefs"
)

// Server accepts TCP connections and runs one Session per connection.
// There is no cap on concurrent sessions.
type Server struct {
	addr  string
	bus   player.Bus
	prefs prefs.Loader
	sink  StatusSink
	log   zerolog.Logger

	optsMu sync.RWMutex
	opts   Options

	mu       sync.Mutex
	listener net.Listener
	sessions sync.WaitGroup
}

// NewServer creates a server that will listen on addr.
func NewServer(addr string, bus player.Bus, store prefs.Loader, sink StatusSink, opts Options, log zerolog.Logger) *Server {
	return &Server{
		addr:  addr,
		bus:   bus,
		prefs: store,
		sink:  sink,
		opts:  opts,
		log:   log,
	}
}

// SetOptions changes the options used for sessions accepted from now on.
func (s *Server) SetOptions(opts Options) {
	s.optsMu.Lock()
	defer s.optsMu.Unlock()
	s.opts = opts
}

func (s *Server) options() Options {
	s.optsMu.RLock()
	defer s.optsMu.RUnlock()
	return s.opts
}

// Addr returns the bound address once listening, or the configured one.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled or ln is closed,
// then waits for running sessions to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.log.Info().Str("addr", ln.Addr().String()).Msg("Listening")

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	s.acceptLoop(ctx, ln)

	s.sessions.Wait()
	s.log.Info().Msg("Server stopped")
	return nil
}

// Backoff bounds after a failed Accept
const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// nextAcceptDelay doubles the previous delay, capped at maxAcceptDelay.
func nextAcceptDelay(prev time.Duration) time.Duration {
	if prev == 0 {
		return minAcceptDelay
	}
	if next := prev * 2; next < maxAcceptDelay {
		return next
	}
	return maxAcceptDelay
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			delay = nextAcceptDelay(delay)
			s.log.Error().Err(err).Dur("retry_in", delay).Msg("Accept error")
			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		s.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Client connected")

		sess := New(conn, s.bus, s.prefs, s.sink, s.options(), s.log)
		s.sessions.Add(1)
		go func() {
			defer s.sessions.Done()
			if err := sess.Run(ctx); err != nil {
				s.log.Warn().Err(err).Str("session", sess.ID()).Msg("Session ended")
			}
		}()
	}
}

// Close stops accepting new connections. Running sessions end on their own
// or when the Serve context is cancelled.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
