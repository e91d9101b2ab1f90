package logging

import (
	"context"

	"github.com/rs/zerolog"
)

type contextKey int

const loggerKey contextKey = iota

// WithLogger adds a logger to the context.
func WithLogger(ctx context.Context, logger *zerolog.Logger) context.Context {
	if logger == nil {
		logger = Default()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext extracts the logger from context, or returns the default logger.
func FromContext(ctx context.Context) *zerolog.Logger {
	if ctx == nil {
		return Default()
	}
	if logger, ok := ctx.Value(loggerKey).(*zerolog.Logger); ok && logger != nil {
		return logger
	}
	return Default()
}

// WithField adds a single field to the logger in the context.
func WithField(ctx context.Context, key string, value any) context.Context {
	logCtx := addField(FromContext(ctx).With(), key, value)
	newLogger := logCtx.Logger()
	return WithLogger(ctx, &newLogger)
}

// WithRegion adds the region to the context logger.
func WithRegion(ctx context.Context, region string) context.Context {
	return WithField(ctx, "region", region)
}

// WithCategory adds an entity category to the context logger.
func WithCategory(ctx context.Context, category string) context.Context {
	return WithField(ctx, "category", category)
}

// WithCycle tags every log line of one polling cycle.
func WithCycle(ctx context.Context, cycleID string) context.Context {
	return WithField(ctx, "cycle", cycleID)
}
