package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Collection is the keyed store of one category in one region.
//
// The active mapping lives in <dir>/<category>.json. Retention moves the
// oldest records into numbered, write-once segments under <dir>/archive.
type Collection[T worldstate.Entity] struct {
	mu       sync.Mutex
	category worldstate.Category
	dir      string
	ceiling  int
	batch    int
	records  map[string]worldstate.Record[T]
	segments int
}

func newCollection[T worldstate.Entity](dir string, category worldstate.Category, ceiling, batch int) *Collection[T] {
	return &Collection[T]{
		category: category,
		dir:      dir,
		ceiling:  ceiling,
		batch:    batch,
		records:  make(map[string]worldstate.Record[T]),
	}
}

// Category returns the category this collection stores.
func (c *Collection[T]) Category() worldstate.Category { return c.category }

// Path returns the active document path.
func (c *Collection[T]) Path() string {
	return filepath.Join(c.dir, c.category.String()+".json")
}

func (c *Collection[T]) archiveDir() string {
	return filepath.Join(c.dir, constants.ArchiveDir)
}

// pendingPath marks a retention pass whose segment may be written while the
// active document still holds its records. It contains the segment number.
func (c *Collection[T]) pendingPath() string {
	return filepath.Join(c.archiveDir(), c.category.String()+".pending")
}

func (c *Collection[T]) segmentPath(n int) string {
	return filepath.Join(c.archiveDir(), fmt.Sprintf("%s_%d.json", c.category, n))
}

// Get returns the record stored under id.
func (c *Collection[T]) Get(id string) (worldstate.Record[T], bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.records[id]
	return r, ok
}

// Len returns the number of active records.
func (c *Collection[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

// View returns a copy of the active mapping for reconciliation.
func (c *Collection[T]) View() map[string]worldstate.Record[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	view := make(map[string]worldstate.Record[T], len(c.records))
	for id, r := range c.records {
		view[id] = r
	}
	return view
}

// Records returns the active records ordered by activation, then id.
func (c *Collection[T]) Records() []worldstate.Record[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return sortedRecords(c.records)
}

// Apply merges a changeset into the active mapping. New, updated and
// unchanged observations replace the stored record; completed entities are
// kept and flagged. Nothing is removed.
func (c *Collection[T]) Apply(cs *worldstate.Changeset[T]) error {
	if cs == nil {
		return nil
	}
	if cs.Category != c.category {
		return errors.NewValidationError("category", cs.Category, fmt.Sprintf("changeset for %s applied to %s store", cs.Category, c.category))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, change := range cs.All() {
		record := change.New
		if change.Type == worldstate.ChangeCompleted {
			record.Completed = true
			if record.CompletedAt == 0 {
				record.CompletedAt = cs.FeedTime
			}
		}
		c.records[change.ID] = record
	}
	return nil
}

// EnforceRetention archives the oldest records while the active count is at
// or above the ceiling. Each pass writes one archive segment durably before
// the active document is rewritten without its records. It returns the
// number of archived records.
func (c *Collection[T]) EnforceRetention() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	archived := 0
	for c.ceiling > 0 && len(c.records) >= c.ceiling {
		ordered := sortedRecords(c.records)
		n := c.batch
		if n <= 0 || n > len(ordered) {
			n = len(ordered)
		}
		oldest := ordered[:n]

		segment := make(map[string]worldstate.Record[T], n)
		for _, r := range oldest {
			segment[r.Entity.Key()] = r
		}
		data, err := json.Marshal(segment)
		if err != nil {
			return archived, errors.WrapIO("encode", c.segmentPath(c.segments+1), err)
		}
		path := c.nextSegmentPath()
		if err := WriteFileAtomic(c.pendingPath(), []byte(strconv.Itoa(c.segments+1))); err != nil {
			return archived, err
		}
		if err := WriteFileAtomic(path, data); err != nil {
			return archived, err
		}
		c.segments++

		for id := range segment {
			delete(c.records, id)
		}
		if err := c.persistLocked(); err != nil {
			return archived + n, err
		}
		archived += n
	}
	return archived, nil
}

// nextSegmentPath picks the first unused segment number so a segment is
// never overwritten.
func (c *Collection[T]) nextSegmentPath() string {
	for {
		path := c.segmentPath(c.segments + 1)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		c.segments++
	}
}

// Persist writes the full active mapping, replacing the previous document.
func (c *Collection[T]) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistLocked()
}

func (c *Collection[T]) persistLocked() error {
	data, err := json.Marshal(c.records)
	if err != nil {
		return errors.WrapIO("encode", c.Path(), err)
	}
	if err := WriteFileAtomic(c.Path(), data); err != nil {
		return err
	}
	if err := os.Remove(c.pendingPath()); err != nil && !os.IsNotExist(err) {
		return errors.WrapIO("remove", c.pendingPath(), err)
	}
	return nil
}

// Load reads the active document and the archive index. A missing document
// leaves the collection empty. A retention pass interrupted between the
// archive write and the active write is finished: the records of its
// segment are dropped and the active document is rewritten.
func (c *Collection[T]) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	records := make(map[string]worldstate.Record[T])
	data, err := readIfExists(c.Path())
	if err != nil {
		return err
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &records); err != nil {
			return errors.WrapParse("json", c.Path(), err)
		}
	}

	latest, err := c.latestSegment()
	if err != nil {
		return err
	}
	c.segments = latest
	c.records = records

	pending, err := c.pendingSegment()
	if err != nil || pending == 0 {
		return err
	}
	archived, err := c.readSegment(pending)
	if err != nil {
		return err
	}
	for id := range archived {
		delete(records, id)
	}
	return c.persistLocked()
}

// pendingSegment returns the segment of an unfinished retention pass, or 0.
func (c *Collection[T]) pendingSegment() (int, error) {
	data, err := readIfExists(c.pendingPath())
	if err != nil || data == nil {
		return 0, err
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, errors.WrapParse("text", c.pendingPath(), err)
	}
	return n, nil
}

// Archived returns every archived record, oldest segment first.
func (c *Collection[T]) Archived() ([]worldstate.Record[T], error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	latest, err := c.latestSegment()
	if err != nil {
		return nil, err
	}
	var all []worldstate.Record[T]
	for n := 1; n <= latest; n++ {
		segment, err := c.readSegment(n)
		if err != nil {
			return nil, err
		}
		all = append(all, sortedRecords(segment)...)
	}
	return all, nil
}

func (c *Collection[T]) readSegment(n int) (map[string]worldstate.Record[T], error) {
	path := c.segmentPath(n)
	data, err := readIfExists(path)
	if err != nil || data == nil {
		return nil, err
	}
	segment := make(map[string]worldstate.Record[T])
	if err := json.Unmarshal(data, &segment); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	return segment, nil
}

func (c *Collection[T]) latestSegment() (int, error) {
	entries, err := os.ReadDir(c.archiveDir())
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.WrapIO("read", c.archiveDir(), err)
	}
	prefix := c.category.String() + "_"
	latest := 0
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json"))
		if err == nil && n > latest {
			latest = n
		}
	}
	return latest, nil
}

func sortedRecords[T worldstate.Entity](records map[string]worldstate.Record[T]) []worldstate.Record[T] {
	out := make([]worldstate.Record[T], 0, len(records))
	for _, r := range records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := out[i].Entity.ActivatedAt(), out[j].Entity.ActivatedAt()
		if ai != aj {
			return ai < aj
		}
		return out[i].Entity.Key() < out[j].Entity.Key()
	})
	return out
}
