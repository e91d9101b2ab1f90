package app

import (
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/agentstation/worldfeed/internal/config"
	"github.com/agentstation/worldfeed/pkg/logging"
)

// Flags holds the global command line flags.
type Flags struct {
	ConfigFile string
	Verbose    bool
	Quiet      bool
	LogLevel   string
	Format     string
}

// NewLogger creates the process logger.
// Log level precedence (highest to lowest):
//  1. --log-level flag
//  2. -v/--verbose (debug) and -q/--quiet (warn)
//  3. log.level from the configuration (file, WORLDFEED_LOG_LEVEL)
//  4. info
func NewLogger(flags *Flags, cfg config.Log, stderr io.Writer) zerolog.Logger {
	level := determineLogLevel(flags, cfg.Level, stderr)
	return logging.NewLoggerFromConfig(&logging.Config{
		Level:     level,
		Format:    cfg.Format,
		Output:    cfg.Output,
		AddCaller: level == "debug" || level == "trace",
	})
}

func determineLogLevel(flags *Flags, configured string, stderr io.Writer) string {
	if flags.LogLevel != "" {
		validated := validateLogLevel(flags.LogLevel)
		if validated != flags.LogLevel {
			_, _ = fmt.Fprintf(stderr, "Warning: invalid log level %q, using %q\n", flags.LogLevel, validated)
		}
		return validated
	}

	if flags.Verbose && flags.Quiet {
		_, _ = fmt.Fprintln(stderr, "Warning: both --verbose and --quiet specified, using --quiet")
		return "warn"
	}
	if flags.Verbose {
		return "debug"
	}
	if flags.Quiet {
		return "warn"
	}

	if configured != "" {
		return validateLogLevel(configured)
	}
	return "info"
}

// validateLogLevel returns level when it is known, info otherwise.
func validateLogLevel(level string) string {
	switch level {
	case "trace", "debug", "info", "warn", "error":
		return level
	case "warning":
		return "warn"
	default:
		return "info"
	}
}
