package store

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
)

// WriteFileAtomic replaces path with data. The data is written to a temporary
// file in the same directory, synced, then renamed over the target, so readers
// only ever see the old or the new content.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WrapIO("create", "temp file", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.WrapIO("write", path, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return errors.WrapIO("sync", path, err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return errors.WrapIO("close", path, err)
	}
	if err := os.Chmod(tmpPath, constants.FilePermissions); err != nil {
		cleanup()
		return errors.WrapIO("chmod", path, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		cleanup()
		return errors.WrapIO("rename", path, err)
	}
	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry of a rename. Not every platform
// supports it, so failures are ignored.
func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	_ = d.Close()
}

// readIfExists returns nil data and no error for a missing file.
func readIfExists(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return data, nil
}

// logName checks that a feed-supplied value can be used as a single file
// name inside a log directory.
func logName(field, name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return errors.NewValidationError(field, name, "not a usable file name")
	case strings.ContainsAny(name, `/\`+"\x00"), strings.Contains(name, ".."):
		return errors.NewValidationError(field, name, "file name must not contain separators or ..")
	}
	return nil
}

// appendLines appends lines to path, creating its directory. header is
// written first when the file is new.
func appendLines(path, header string, lines []string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return errors.WrapIO("create", dir, err)
	}
	_, statErr := os.Stat(path)
	fresh := os.IsNotExist(statErr)

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, constants.FilePermissions)
	if err != nil {
		return errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()

	var b strings.Builder
	if fresh && header != "" {
		b.WriteString(header)
		b.WriteByte('\n')
	}
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if _, err := f.WriteString(b.String()); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}
