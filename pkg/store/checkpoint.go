package store

import (
	"path/filepath"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
)

// Checkpoint records the last accepted feed of a region.
type Checkpoint struct {
	LastFeedTime int64     `yaml:"last_feed_time" json:"last_feed_time"`
	BuildLabel   string    `yaml:"build_label" json:"build_label,omitempty"`
	UpdatedAt    time.Time `yaml:"updated_at" json:"updated_at"`
}

// IsStale reports whether a feed time does not advance past the checkpoint.
func (c Checkpoint) IsStale(feedTime int64) bool {
	return feedTime <= c.LastFeedTime
}

// CheckpointPath returns the checkpoint file of a region store.
func (r *Regional) CheckpointPath() string {
	return filepath.Join(r.dir, constants.CheckpointFile)
}

// LoadCheckpoint reads the region checkpoint. A missing file yields the zero
// checkpoint.
func (r *Regional) LoadCheckpoint() (Checkpoint, error) {
	var cp Checkpoint
	path := r.CheckpointPath()
	data, err := readIfExists(path)
	if err != nil || data == nil {
		return cp, err
	}
	if err := yaml.Unmarshal(data, &cp); err != nil {
		return Checkpoint{}, errors.WrapParse("yaml", path, err)
	}
	return cp, nil
}

// SaveCheckpoint replaces the region checkpoint.
func (r *Regional) SaveCheckpoint(cp Checkpoint) error {
	data, err := yaml.Marshal(cp)
	if err != nil {
		return errors.WrapParse("yaml", r.CheckpointPath(), err)
	}
	return WriteFileAtomic(r.CheckpointPath(), data)
}
