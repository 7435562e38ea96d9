// Package client is the remote side of the protocol: a command prompt and a
// status poller sharing one connection, rendered by a single Bubble Tea program.
package client

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
)

// Options controls the client's timing and colour.
type Options struct {
	PollInterval time.Duration
	ClearDelay   time.Duration
	Color        string
}

// Status poll tick
type pollMsg time.Time

// Result of an info poll
type statusMsg struct {
	text string
	err  error
}

// Reply to an operator command
type replyMsg struct {
	seq  int
	text string
	err  error
}

// Clears the command region if no newer reply has arrived
type clearMsg struct {
	seq int
}

// model is the Bubble Tea model. The info region is written only by status
// messages and the command region only by key, reply and clear messages.
type model struct {
	conn Requester
	opts Options
	log  zerolog.Logger

	width  int
	height int

	// Info region
	status  string
	polling bool

	// Command region
	input   []rune
	reply   string
	seq     int
	pending bool

	disconnected error
}

func newModel(conn Requester, opts Options, log zerolog.Logger) model {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.Color == "" {
		opts.Color = "2"
	}
	// Init issues the first poll
	return model{conn: conn, opts: opts, log: log, status: "Waiting for server...", polling: true}
}

// Run starts the interactive client and blocks until the operator quits or
// the server goes away.
func Run(ctx context.Context, conn Requester, opts Options, log zerolog.Logger) error {
	p := tea.NewProgram(newModel(conn, opts, log), tea.WithAltScreen(), tea.WithContext(ctx))
	final, err := p.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	if m, ok := final.(model); ok && m.disconnected != nil {
		return m.disconnected
	}
	return nil
}

// Schedule next status poll
func pollCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

// Schedule clearing of the command reply
func clearCmd(d time.Duration, seq int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearMsg{seq: seq}
	})
}

// Fetch song info in background (doesn't block UI)
func (m model) fetchStatus() tea.Cmd {
	conn := m.conn
	return func() tea.Msg {
		text, err := conn.Do(context.Background(), "info")
		return statusMsg{text: text, err: err}
	}
}

// Send an operator command in background
func (m model) send(line string, seq int) tea.Cmd {
	conn := m.conn
	return func() tea.Msg {
		text, err := conn.Do(context.Background(), line)
		return replyMsg{seq: seq, text: text, err: err}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchStatus(),
		pollCmd(m.opts.PollInterval),
	)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			return m.submit()
		case tea.KeyBackspace:
			if len(m.input) > 0 {
				m.input = m.input[:len(m.input)-1]
			}
		case tea.KeySpace:
			m.input = append(m.input, ' ')
		case tea.KeyRunes:
			m.input = append(m.input, msg.Runes...)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case pollMsg:
		// Skip this round if the previous poll has not come back yet
		if m.polling {
			return m, pollCmd(m.opts.PollInterval)
		}
		m.polling = true
		return m, tea.Batch(
			pollCmd(m.opts.PollInterval),
			m.fetchStatus(),
		)

	case statusMsg:
		m.polling = false
		if msg.err != nil {
			return m.handleError(msg.err, func(m *model, text string) { m.status = text })
		}
		m.status = msg.text
		return m, nil

	case replyMsg:
		m.pending = false
		if msg.err != nil {
			next, cmd := m.handleError(msg.err, func(m *model, text string) { m.reply = text })
			if cmd != nil {
				return next, cmd
			}
			return next, clearCmd(m.opts.ClearDelay, msg.seq)
		}
		m.reply = msg.text
		return m, clearCmd(m.opts.ClearDelay, msg.seq)

	case clearMsg:
		if msg.seq == m.seq {
			m.reply = ""
		}
	}

	return m, nil
}

// submit handles Enter: local validation, then one request at a time.
func (m model) submit() (tea.Model, tea.Cmd) {
	if m.pending {
		return m, nil
	}
	line := strings.TrimSpace(string(m.input))
	m.input = nil
	if line == "" {
		return m, nil
	}

	m.seq++
	if !ValidCommand(line) {
		m.reply = "Invalid command"
		return m, clearCmd(m.opts.ClearDelay, m.seq)
	}

	m.log.Debug().Str("command", line).Msg("Sending")
	m.pending = true
	m.reply = ""
	return m, m.send(line, m.seq)
}

// handleError quits on disconnect and otherwise shows the error via show.
func (m model) handleError(err error, show func(*model, string)) (tea.Model, tea.Cmd) {
	if errors.Is(err, ErrDisconnected) {
		m.log.Info().Err(err).Msg("Connection closed")
		m.disconnected = err
		return m, tea.Quit
	}
	m.log.Warn().Err(err).Msg("Request failed")
	show(&m, "Error: "+err.Error())
	return m, nil
}
