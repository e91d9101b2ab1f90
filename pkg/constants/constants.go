// Package constants provides shared constants used throughout the worldfeed codebase.
// This includes timeouts, retention limits, file permissions, and cadence values
// that should be consistent across the application.
package constants

import "time"

// Timeout constants define various timeout durations used in the application
const (
	// DefaultFetchTimeout bounds a single feed download
	DefaultFetchTimeout = 10 * time.Second

	// DefaultHTTPTimeout is the standard timeout for outbound notification requests
	DefaultHTTPTimeout = 30 * time.Second

	// CycleTimeout bounds one full region cycle, fetch through checkpoint
	CycleTimeout = 2 * time.Minute

	// ShutdownTimeout is how long a graceful shutdown waits for running cycles
	ShutdownTimeout = 30 * time.Second

	// ManifestRefreshInterval is how often a running process re-downloads
	// the name manifest
	ManifestRefreshInterval = 6 * time.Hour
)

// Cadence constants drive the scheduler
const (
	// DefaultShortInterval is the near-real-time polling cadence
	DefaultShortInterval = 1 * time.Minute

	// DefaultLongEvery is the number of short ticks per long tick
	DefaultLongEvery = 60

	// DefaultStartTick is the tick counter value used when no tick file exists
	DefaultStartTick = 59
)

// File permission constants define standard Unix file permissions
const (
	// DirPermissions is the default permission for created directories (rwxr-xr-x)
	DirPermissions = 0755

	// FilePermissions is the default permission for created files (rw-r--r--)
	FilePermissions = 0644

	// SecureFilePermissions is for sensitive files like the device registry (rw-------)
	SecureFilePermissions = 0600
)

// Limit constants define various limits and capacities
const (
	// RetentionCeiling is the active entity count that triggers archival
	RetentionCeiling = 1000

	// RetentionBatch is how many of the oldest entities one archival moves
	RetentionBatch = 500

	// PushPageSize is the maximum number of device ids per push request
	PushPageSize = 999

	// MaxPostLength is the character limit for a single social post
	MaxPostLength = 140

	// MaxFeedSize caps the size of a feed body read into memory
	MaxFeedSize = 32 << 20
)

// File names used in the data and output directories
const (
	CheckpointFile     = "checkpoint.yaml"
	VersionHistoryFile = "versionhistory.json"
	VersionChangelog   = "versionhistory.md"
	TickFile           = "currenttick.txt"
	RegistryFile       = "devices.db"
	ArchiveDir         = "archive"
	ClanLogDir         = "clanlogs"
	InvasionLogDir     = "invasionlogs"
	TargetLogDir       = "targetlogs"
	ConflictLogDir     = "conflictlogs"
)
