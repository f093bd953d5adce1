// Package logging builds the zerolog loggers used by the command line tool.
package logging

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// New returns a human-readable console logger writing to w. Verbose enables
// debug output (stage timings, model loading); otherwise only info and above
// are written.
func New(verbose bool, w io.Writer) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen, NoColor: true}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// WithRun tags every event of l with a run identifier.
func WithRun(l zerolog.Logger, runID string) zerolog.Logger {
	return l.With().Str("run", runID).Logger()
}
