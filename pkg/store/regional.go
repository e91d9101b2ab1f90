package store

import (
	"os"
	"path/filepath"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Regional owns every keyed collection of one region.
type Regional struct {
	Region     worldstate.Region
	Alerts     *Collection[worldstate.Alert]
	Goals      *Collection[worldstate.Goal]
	Invasions  *Collection[worldstate.Invasion]
	Badlands   *Collection[worldstate.BadlandNode]
	DailyDeals *Collection[worldstate.DailyDeal]

	dir string
}

// Option configures a regional store.
type Option func(*options)

type options struct {
	ceiling int
	batch   int
}

// WithRetention overrides the retention ceiling and archive batch size.
func WithRetention(ceiling, batch int) Option {
	return func(o *options) {
		o.ceiling = ceiling
		o.batch = batch
	}
}

// Open creates the region directory under dataDir and loads every collection.
func Open(dataDir string, region worldstate.Region, opts ...Option) (*Regional, error) {
	o := options{ceiling: constants.RetentionCeiling, batch: constants.RetentionBatch}
	for _, opt := range opts {
		opt(&o)
	}

	dir := filepath.Join(dataDir, region.String())
	if err := os.MkdirAll(dir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", dir, err)
	}

	r := &Regional{
		Region:     region,
		dir:        dir,
		Alerts:     newCollection[worldstate.Alert](dir, worldstate.CategoryAlerts, o.ceiling, o.batch),
		Goals:      newCollection[worldstate.Goal](dir, worldstate.CategoryGoals, o.ceiling, o.batch),
		Invasions:  newCollection[worldstate.Invasion](dir, worldstate.CategoryInvasions, o.ceiling, o.batch),
		Badlands:   newCollection[worldstate.BadlandNode](dir, worldstate.CategoryBadlands, o.ceiling, o.batch),
		DailyDeals: newCollection[worldstate.DailyDeal](dir, worldstate.CategoryDailyDeals, o.ceiling, o.batch),
	}
	for _, c := range r.collections() {
		if err := c.Load(); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Dir returns the region data directory.
func (r *Regional) Dir() string { return r.dir }

// maintained is the category independent part of a collection.
type maintained interface {
	Category() worldstate.Category
	Load() error
	Persist() error
	EnforceRetention() (int, error)
	Len() int
}

func (r *Regional) collections() []maintained {
	return []maintained{r.Alerts, r.Goals, r.Invasions, r.Badlands, r.DailyDeals}
}

// Maintain enforces retention and persists the given categories. It keeps
// going after a failure and returns the first error per category.
func (r *Regional) Maintain(categories []worldstate.Category) map[worldstate.Category]error {
	want := make(map[worldstate.Category]bool, len(categories))
	for _, c := range categories {
		want[c] = true
	}
	failures := make(map[worldstate.Category]error)
	for _, c := range r.collections() {
		if !want[c.Category()] {
			continue
		}
		if _, err := c.EnforceRetention(); err != nil {
			failures[c.Category()] = err
			continue
		}
		if err := c.Persist(); err != nil {
			failures[c.Category()] = err
		}
	}
	return failures
}

// Counts returns the active record count per keyed category.
func (r *Regional) Counts() map[worldstate.Category]int {
	counts := make(map[worldstate.Category]int)
	for _, c := range r.collections() {
		counts[c.Category()] = c.Len()
	}
	return counts
}

// View is a point-in-time copy of every collection of a region.
type View struct {
	Region     worldstate.Region
	Alerts     map[string]worldstate.Record[worldstate.Alert]
	Goals      map[string]worldstate.Record[worldstate.Goal]
	Invasions  map[string]worldstate.Record[worldstate.Invasion]
	Badlands   map[string]worldstate.Record[worldstate.BadlandNode]
	DailyDeals map[string]worldstate.Record[worldstate.DailyDeal]
}

// View copies the current state of every collection.
func (r *Regional) View() *View {
	return &View{
		Region:     r.Region,
		Alerts:     r.Alerts.View(),
		Goals:      r.Goals.View(),
		Invasions:  r.Invasions.View(),
		Badlands:   r.Badlands.View(),
		DailyDeals: r.DailyDeals.View(),
	}
}
