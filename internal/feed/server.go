package feed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/labstack/echo"
	"github.com/labstack/echo/middleware"
	"github.com/rs/zerolog"
)

const (
	writeTimeout    = 5 * time.Second
	shutdownTimeout = 5 * time.Second
)

// Server exposes a Hub over HTTP:
//
//	GET /api/health       liveness
//	GET /api/now_playing  latest snapshot as JSON
//	GET /ws               WebSocket stream of snapshots
type Server struct {
	hub  *Hub
	echo *echo.Echo
	log  zerolog.Logger
}

func NewServer(hub *Hub, log zerolog.Logger) *Server {
	s := &Server{hub: hub, log: log}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.LoggerWithConfig(middleware.LoggerConfig{
		Format: "method=${method}, uri=${uri}, status=${status}\n",
		Output: debugWriter{log},
	}))

	api := e.Group("/api")
	api.GET("/health", s.healthHandler)
	api.GET("/now_playing", s.nowPlayingHandler)
	e.GET("/ws", s.wsHandler)

	s.echo = e
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.echo }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("Status feed listening")
		errc <- s.echo.Start(addr)
	}()

	select {
	case err := <-errc:
		s.hub.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Hijacked WebSocket connections are not tracked by Shutdown
	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) healthHandler(c echo.Context) error {
	return c.String(http.StatusOK, "I am up and running!")
}

func (s *Server) nowPlayingHandler(c echo.Context) error {
	snap, ok := s.hub.Latest()
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{
			"state": "idle",
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"state":   "running",
		"session": snap.Session,
		"text":    snap.Text,
		"time":    snap.Time,
	})
}

func (s *Server) wsHandler(c echo.Context) error {
	conn, err := websocket.Accept(c.Response().Writer, c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true, // allow any origin
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("WebSocket accept failed")
		return nil
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	// Clients only listen; CloseRead cancels ctx when they go away
	ctx := conn.CloseRead(c.Request().Context())

	updates, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	if snap, ok := s.hub.Latest(); ok {
		if err := writeSnapshot(ctx, conn, snap); err != nil {
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case snap, ok := <-updates:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return nil
			}
			if err := writeSnapshot(ctx, conn, snap); err != nil {
				s.log.Debug().Err(err).Msg("WebSocket write failed")
				return nil
			}
		}
	}
}

func writeSnapshot(ctx context.Context, conn *websocket.Conn, snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}

// debugWriter sends echo's access log lines to zerolog at debug level.
type debugWriter struct {
	log zerolog.Logger
}

func (w debugWriter) Write(p []byte) (int, error) {
	w.log.Debug().Msg(string(trimNewline(p)))
	return len(p), nil
}

func trimNewline(p []byte) []byte {
	for len(p) > 0 && (p[len(p)-1] == '\n' || p[len(p)-1] == '\r') {
		p = p[:len(p)-1]
	}
	return p
}
