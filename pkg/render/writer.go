package render

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/store"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Writer stores artifacts under <dir>/<region>/, leaving files whose content
// did not change untouched.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the output directory of a region.
func (w *Writer) Dir(region worldstate.Region) string {
	return filepath.Join(w.dir, region.String())
}

// Write stores the artifacts of a region and returns the names of the files
// it actually wrote.
func (w *Writer) Write(region worldstate.Region, artifacts []Artifact) ([]string, error) {
	dir := w.Dir(region)
	var written []string
	for _, a := range artifacts {
		path := filepath.Join(dir, a.Name)
		existing, err := os.ReadFile(path)
		if err == nil && bytes.Equal(existing, a.Data) {
			continue
		}
		if err != nil && !os.IsNotExist(err) {
			return written, errors.WrapIO("read", path, err)
		}
		if err := store.WriteFileAtomic(path, a.Data); err != nil {
			return written, err
		}
		written = append(written, a.Name)
	}
	return written, nil
}

// Read returns a previously written artifact.
func (w *Writer) Read(region worldstate.Region, name string) ([]byte, error) {
	path := filepath.Join(w.Dir(region), filepath.Base(name))
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, errors.NewNotFoundError("artifact", name)
	}
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	return data, nil
}
