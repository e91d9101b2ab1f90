// Package logging provides the zerolog loggers of worldfeed: a console
// writer on terminals, JSON lines for daemons, and context helpers that
// tag every line of a polling cycle with its region, category and cycle id.
//
//	ctx := logging.WithRegion(context.Background(), "pc")
//	logging.FromContext(ctx).Debug().Msg("Fetching feed")
package logging

import (
	"io"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	defaultLogger = fromEnvironment()

	// Nop discards everything.
	Nop = zerolog.Nop()
)

// fromEnvironment builds the logger used before any configuration is
// loaded. LOG_LEVEL and LOG_FORMAT=json override the terminal defaults.
func fromEnvironment() zerolog.Logger {
	level := parseLevel(os.Getenv("LOG_LEVEL"))
	if os.Getenv("LOG_LEVEL") == "" && os.Getenv("DEBUG") != "" {
		level = zerolog.DebugLevel
	}

	var w io.Writer = os.Stderr
	if terminal(os.Stderr) && os.Getenv("LOG_FORMAT") != "json" {
		w = console(os.Stderr, os.Getenv("NO_COLOR") != "")
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Default returns the process logger.
func Default() *zerolog.Logger {
	return &defaultLogger
}

// SetDefault replaces the process logger, including zerolog's global one.
func SetDefault(logger zerolog.Logger) {
	defaultLogger = logger
	log.Logger = logger
}

// New creates a JSON logger on w at the default logger's level.
func New(w io.Writer) zerolog.Logger {
	return zerolog.New(w).Level(defaultLogger.GetLevel()).With().Timestamp().Logger()
}

func console(w io.Writer, noColor bool) zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{Out: w, TimeFormat: time.DateTime, NoColor: noColor}
}

func terminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
