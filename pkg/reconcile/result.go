package reconcile

import (
	"fmt"
	"runtime/debug"
	"time"

	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/store"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Input is everything one region needs to reconcile a snapshot.
type Input struct {
	Snapshot *worldstate.Snapshot
	View     *store.View
	Resolver names.Resolver

	// PreviousBuild is the build label of the last accepted snapshot.
	PreviousBuild string
	// LongTick advances the invasion progress marks.
	LongTick bool
	// Now is the detection time of build label transitions.
	Now time.Time
}

// Result holds the changesets of every keyed category of one region.
// Categories that failed have a nil changeset and an entry in Errors.
type Result struct {
	Region     worldstate.Region
	FeedTime   int64
	BuildLabel string

	Alerts     *worldstate.Changeset[worldstate.Alert]
	Goals      *worldstate.Changeset[worldstate.Goal]
	Invasions  *worldstate.Changeset[worldstate.Invasion]
	Badlands   *worldstate.Changeset[worldstate.BadlandNode]
	DailyDeals *worldstate.Changeset[worldstate.DailyDeal]

	// Version is set when the build label changed.
	Version *worldstate.VersionRecord

	Errors map[worldstate.Category]error
}

// All reconciles every keyed category of the snapshot. Each category runs in
// its own guarded scope: an error or a panic fails that category only.
func All(in Input) *Result {
	snap := in.Snapshot
	view := in.View
	if view == nil {
		view = &store.View{Region: snap.Region}
	}
	res := &Result{
		Region:     snap.Region,
		FeedTime:   snap.Time,
		BuildLabel: snap.BuildLabel,
		Errors:     make(map[worldstate.Category]error),
	}
	feedTime := snap.Time

	res.guard(worldstate.CategoryAlerts, func() (err error) {
		res.Alerts, err = Reconcile(snap.Alerts, view.Alerts, Rules[worldstate.Alert]{
			Category: worldstate.CategoryAlerts,
			FeedTime: feedTime,
		})
		return err
	})
	res.guard(worldstate.CategoryGoals, func() (err error) {
		res.Goals, err = Reconcile(snap.Goals, view.Goals, Rules[worldstate.Goal]{
			Category: worldstate.CategoryGoals,
			FeedTime: feedTime,
		})
		return err
	})
	res.guard(worldstate.CategoryInvasions, func() (err error) {
		res.Invasions, err = Invasions(snap.Invasions, view.Invasions, feedTime, in.LongTick)
		return err
	})
	res.guard(worldstate.CategoryBadlands, func() (err error) {
		res.Badlands, err = Badlands(snap.BadlandNodes, view.Badlands, feedTime, in.Resolver)
		return err
	})
	res.guard(worldstate.CategoryDailyDeals, func() (err error) {
		res.DailyDeals, err = Reconcile(snap.DailyDeals, view.DailyDeals, Rules[worldstate.DailyDeal]{
			Category: worldstate.CategoryDailyDeals,
			FeedTime: feedTime,
		})
		return err
	})

	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	res.Version = CheckBuild(snap.BuildLabel, in.PreviousBuild, now.Unix())
	return res
}

func (r *Result) guard(category worldstate.Category, fn func() error) {
	err := func() (err error) {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("panic: %v\n%s", p, debug.Stack())
			}
		}()
		return fn()
	}()
	if err == nil {
		return
	}
	r.Errors[category] = errors.WrapCategory(r.Region.String(), category.String(), err)
	r.clear(category)
}

// clear drops any partial changeset of a failed category.
func (r *Result) clear(category worldstate.Category) {
	switch category {
	case worldstate.CategoryAlerts:
		r.Alerts = nil
	case worldstate.CategoryGoals:
		r.Goals = nil
	case worldstate.CategoryInvasions:
		r.Invasions = nil
	case worldstate.CategoryBadlands:
		r.Badlands = nil
	case worldstate.CategoryDailyDeals:
		r.DailyDeals = nil
	}
}

// Succeeded returns the categories that produced a changeset.
func (r *Result) Succeeded() []worldstate.Category {
	var out []worldstate.Category
	for _, c := range worldstate.KeyedCategories() {
		if _, failed := r.Errors[c]; !failed {
			out = append(out, c)
		}
	}
	return out
}

// Summaries counts the changes of each successful category.
func (r *Result) Summaries() map[worldstate.Category]worldstate.ChangesetSummary {
	out := make(map[worldstate.Category]worldstate.ChangesetSummary)
	if r.Alerts != nil {
		out[worldstate.CategoryAlerts] = r.Alerts.Summary()
	}
	if r.Goals != nil {
		out[worldstate.CategoryGoals] = r.Goals.Summary()
	}
	if r.Invasions != nil {
		out[worldstate.CategoryInvasions] = r.Invasions.Summary()
	}
	if r.Badlands != nil {
		out[worldstate.CategoryBadlands] = r.Badlands.Summary()
	}
	if r.DailyDeals != nil {
		out[worldstate.CategoryDailyDeals] = r.DailyDeals.Summary()
	}
	return out
}

// Progress returns the invasion progress by id.
func (r *Result) Progress() map[string]*worldstate.Progress {
	out := make(map[string]*worldstate.Progress)
	if r.Invasions == nil {
		return out
	}
	for _, c := range r.Invasions.All() {
		if c.Progress != nil {
			out[c.ID] = c.Progress
		}
	}
	return out
}

// Apply merges every successful changeset into the regional store.
func (r *Result) Apply(s *store.Regional) map[worldstate.Category]error {
	failures := make(map[worldstate.Category]error)
	record := func(c worldstate.Category, err error) {
		if err != nil {
			failures[c] = err
		}
	}
	if r.Alerts != nil {
		record(worldstate.CategoryAlerts, s.Alerts.Apply(r.Alerts))
	}
	if r.Goals != nil {
		record(worldstate.CategoryGoals, s.Goals.Apply(r.Goals))
	}
	if r.Invasions != nil {
		record(worldstate.CategoryInvasions, s.Invasions.Apply(r.Invasions))
	}
	if r.Badlands != nil {
		record(worldstate.CategoryBadlands, s.Badlands.Apply(r.Badlands))
		record(worldstate.CategoryBadlands, s.AppendClanEvents(r.Badlands.ClanEvents))
	}
	if r.DailyDeals != nil {
		record(worldstate.CategoryDailyDeals, s.DailyDeals.Apply(r.DailyDeals))
	}
	return failures
}
