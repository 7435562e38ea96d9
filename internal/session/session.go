// Package session implements the remote-control protocol: one Session per
// accepted connection, dispatching text commands to the preferred player and
// running a status broadcast alongside the command loop.
package session

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"mprisremote/internal/player"
	"mprisremote/internal/prefs"
)

// Fixed protocol replies.
const (
	ReplyNoInfo  = "No song info available."
	ReplyInvalid = "Invalid command. Commands can be: play, pause, next, previous, info."
)

var (
	// ErrNoPreference means the session could not resolve a live preferred player.
	ErrNoPreference = errors.New("no live preferred player")
	// ErrClosed is returned by writes after teardown.
	ErrClosed = errors.New("session closed")
)

// State is the protocol state of a Session.
type State int

const (
	AwaitingPreference State = iota
	Active
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingPreference:
		return "awaiting-preference"
	case Active:
		return "active"
	case Closed:
		return "closed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Options tunes a Session.
type Options struct {
	PollInterval    time.Duration // status broadcast period
	StopTimeout     time.Duration // bounded wait for the status task on teardown
	ReadBuffer      int           // bytes per read; one read is one request batch
	ArtistSeparator string
	PushStatus      bool // also write broadcast snapshots to the connection
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		PollInterval: 2 * time.Second,
		StopTimeout:  5 * time.Second,
		ReadBuffer:   1024,
	}
}

// Session owns one client connection from accept to teardown.
type Session struct {
	id    string
	conn  net.Conn
	bus   player.Bus
	prefs prefs.Loader
	sink  StatusSink
	opts  Options
	log   zerolog.Logger

	mu        sync.RWMutex
	preferred string
	state     State

	wmu    sync.Mutex // serializes every write to conn
	closed bool

	status       *statusTask
	teardownOnce sync.Once
}

// New prepares a Session for conn. Nothing happens until Run.
func New(conn net.Conn, bus player.Bus, store prefs.Loader, sink StatusSink, opts Options, log zerolog.Logger) *Session {
	def := DefaultOptions()
	if opts.ReadBuffer <= 0 {
		opts.ReadBuffer = def.ReadBuffer
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.StopTimeout <= 0 {
		opts.StopTimeout = def.StopTimeout
	}
	if sink == nil {
		sink = NopSink{}
	}
	id := uuid.NewString()
	return &Session{
		id:    id,
		conn:  conn,
		bus:   bus,
		prefs: store,
		sink:  sink,
		opts:  opts,
		log:   log.With().Str("session", id).Str("remote", remoteAddr(conn)).Logger(),
	}
}

func remoteAddr(conn net.Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// ID returns the session identifier used in logs and sink calls.
func (s *Session) ID() string { return s.id }

// Preferred returns the player the session currently targets.
func (s *Session) Preferred() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.preferred
}

// State returns the current protocol state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// Run resolves the preferred player, then serves requests until quit,
// disconnect or ctx cancellation. The connection is closed on return.
func (s *Session) Run(ctx context.Context) error {
	if err := s.resolve(ctx); err != nil {
		s.log.Warn().Err(err).Msg("Rejecting connection")
		s.teardown()
		return err
	}

	s.log.Info().Str("player", s.Preferred()).Msg("Session active")
	s.startStatus(ctx)

	// Unblock the pending read on shutdown; teardown then runs as for a disconnect.
	stop := context.AfterFunc(ctx, func() { s.conn.SetReadDeadline(time.Now()) })
	defer stop()
	defer s.teardown()

	buf := make([]byte, s.opts.ReadBuffer)
	for {
		n, err := s.conn.Read(buf)
		if err != nil {
			s.log.Info().Err(err).Msg("Client disconnected")
			return nil
		}

		for _, line := range splitRequests(buf[:n]) {
			reply, quit := s.Handle(ctx, line)
			if quit {
				s.log.Info().Msg("Client quit")
				return nil
			}
			if err := s.write(reply); err != nil {
				s.log.Info().Err(err).Msg("Write failed, closing session")
				return nil
			}
		}
	}
}

// resolve loads the stored preference and checks it against the registry.
func (s *Session) resolve(ctx context.Context) error {
	service, err := s.prefs.Load()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoPreference, err)
	}
	if service == "" {
		return fmt.Errorf("%w: none selected", ErrNoPreference)
	}
	live, err := player.IsLive(ctx, s.bus, service)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNoPreference, err)
	}
	if !live {
		return fmt.Errorf("%w: %s is not running", ErrNoPreference, service)
	}

	s.mu.Lock()
	s.preferred = service
	s.state = Active
	s.mu.Unlock()
	return nil
}

// splitRequests turns one read into its non-empty, trimmed lines.
func splitRequests(b []byte) []string {
	var out []string
	for _, line := range strings.Split(string(b), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// Handle dispatches one request and returns the reply. quit is true when the
// client asked to end the session; the reply is then empty.
func (s *Session) Handle(ctx context.Context, line string) (reply string, quit bool) {
	msg := strings.ToLower(strings.TrimSpace(line))
	s.log.Debug().Str("command", msg).Msg("Request")

	if cmd, ok := player.ParseCommand(msg); ok {
		return s.control(ctx, cmd), false
	}

	switch {
	case msg == "info":
		return s.info(ctx), false
	case strings.HasPrefix(msg, "switch "):
		return s.switchTo(ctx, strings.TrimSpace(strings.TrimPrefix(msg, "switch "))), false
	case msg == "quit":
		return "", true
	default:
		return ReplyInvalid, false
	}
}

func (s *Session) control(ctx context.Context, cmd player.Command) string {
	service := s.Preferred()
	if err := s.bus.Control(ctx, service, cmd); err != nil {
		s.log.Error().Err(err).Str("command", string(cmd)).Msg("Control failed")
		return "Error: " + err.Error()
	}
	return s.info(ctx)
}

func (s *Session) info(ctx context.Context) string {
	md, err := s.bus.Metadata(ctx, s.Preferred())
	if errors.Is(err, player.ErrNoMetadata) {
		return ReplyNoInfo
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Metadata query failed")
		return "Error: " + err.Error()
	}
	return md.Text(s.opts.ArtistSeparator)
}

// switchTo retargets this session only; the stored preference is untouched.
func (s *Session) switchTo(ctx context.Context, name string) string {
	service := player.ServiceName(name)
	live, err := player.IsLive(ctx, s.bus, service)
	if err != nil {
		s.log.Error().Err(err).Msg("Player listing failed")
		return "Error: " + err.Error()
	}
	if !live {
		return fmt.Sprintf("No such service %s.", service)
	}

	s.mu.Lock()
	s.preferred = service
	s.mu.Unlock()
	s.log.Info().Str("player", service).Msg("Switched player")
	return fmt.Sprintf("Switched to %s.", service)
}

// write sends msg as one Write under the session write lock.
func (s *Session) write(msg string) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if s.closed {
		return ErrClosed
	}
	_, err := s.conn.Write([]byte(msg))
	return err
}

// teardown stops the status task, then closes the connection. Safe to call
// more than once.
func (s *Session) teardown() {
	s.teardownOnce.Do(func() {
		s.stopStatus()

		s.wmu.Lock()
		s.closed = true
		s.conn.Close()
		s.wmu.Unlock()

		s.setState(Closed)
		s.log.Debug().Msg("Session closed")
	})
}
