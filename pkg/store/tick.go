package store

import (
	"path/filepath"
	"strconv"
	"strings"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
)

// TickPath returns the tick counter file under dir.
func TickPath(dir string) string {
	return filepath.Join(dir, constants.TickFile)
}

// ReadTick returns the persisted tick counter, or the default start tick
// when the file is missing or unreadable as a number.
func ReadTick(dir string) (int, error) {
	data, err := readIfExists(TickPath(dir))
	if err != nil {
		return constants.DefaultStartTick, err
	}
	if data == nil {
		return constants.DefaultStartTick, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || n < 0 {
		return constants.DefaultStartTick, nil
	}
	return n, nil
}

// WriteTick persists the tick counter.
func WriteTick(dir string, tick int) error {
	if tick < 0 {
		return errors.NewValidationError("tick", tick, "tick must not be negative")
	}
	return WriteFileAtomic(TickPath(dir), []byte(strconv.Itoa(tick)))
}
