// Package logging builds the zerolog logger shared by both binaries.
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger at level. Output goes to file when set,
// otherwise to fallback. The returned closer releases the file.
func New(level, file string, fallback io.Writer) (zerolog.Logger, io.Closer, error) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return zerolog.Nop(), nopCloser{}, fmt.Errorf("log level: %w", err)
	}

	out := fallback
	var closer io.Closer = nopCloser{}
	noColor := false
	if file != "" {
		f, err := os.OpenFile(file, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Nop(), nopCloser{}, fmt.Errorf("open log file: %w", err)
		}
		out, closer, noColor = f, f, true
	}
	if out == nil {
		return zerolog.Nop(), closer, nil
	}

	w := zerolog.ConsoleWriter{Out: out, TimeFormat: time.TimeOnly, NoColor: noColor}
	return zerolog.New(w).Level(lvl).With().Timestamp().Logger(), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
