package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/worldfeed/pkg/constants"
)

// Config describes the process logger, usually taken from the log section
// of the configuration file.
type Config struct {
	Level     string         // trace, debug, info, warn, error, disabled
	Format    string         // json, console or auto
	Output    string         // stderr, stdout, discard or a file path
	NoColor   bool           // plain console output
	AddCaller bool           // file:line on every line
	Fields    map[string]any // added to every line
}

// DefaultConfig logs at info to stderr, as console output on a terminal.
func DefaultConfig() *Config {
	return &Config{
		Level:   "info",
		Format:  "auto",
		Output:  "stderr",
		NoColor: os.Getenv("NO_COLOR") != "",
	}
}

// NewLoggerFromConfig creates a logger. An unwritable output file falls
// back to stderr.
func NewLoggerFromConfig(cfg *Config) zerolog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	level := parseLevel(cfg.Level)

	logCtx := zerolog.New(writer(cfg)).Level(level).With().Timestamp()
	if cfg.AddCaller || level <= zerolog.DebugLevel {
		logCtx = logCtx.Caller()
	}
	for k, v := range cfg.Fields {
		logCtx = addField(logCtx, k, v)
	}
	return logCtx.Logger()
}

func writer(cfg *Config) io.Writer {
	out, isStderr := output(cfg.Output)

	switch strings.ToLower(cfg.Format) {
	case "console", "pretty":
		return console(out, cfg.NoColor)
	case "json":
		return out
	default:
		if isStderr && terminal(os.Stderr) {
			return console(out, cfg.NoColor)
		}
		return out
	}
}

func output(name string) (io.Writer, bool) {
	switch strings.ToLower(name) {
	case "", "stderr":
		return os.Stderr, true
	case "stdout":
		return os.Stdout, false
	case "discard", "none":
		return io.Discard, false
	}
	f, err := os.OpenFile(name, os.O_CREATE|os.O_APPEND|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return os.Stderr, true
	}
	return f, false
}

var levelAliases = map[string]zerolog.Level{
	"":        zerolog.InfoLevel,
	"warning": zerolog.WarnLevel,
	"none":    zerolog.Disabled,
	"off":     zerolog.Disabled,
}

// parseLevel maps a level name to a zerolog level. Unknown names log at info.
func parseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	if l, ok := levelAliases[level]; ok {
		return l
	}
	l, err := zerolog.ParseLevel(level)
	if err != nil || l == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return l
}

func addField(ctx zerolog.Context, key string, value any) zerolog.Context {
	switch v := value.(type) {
	case string:
		return ctx.Str(key, v)
	case int:
		return ctx.Int(key, v)
	case int64:
		return ctx.Int64(key, v)
	case bool:
		return ctx.Bool(key, v)
	case time.Time:
		return ctx.Time(key, v)
	case time.Duration:
		return ctx.Dur(key, v)
	case error:
		return ctx.AnErr(key, v)
	default:
		return ctx.Interface(key, v)
	}
}
