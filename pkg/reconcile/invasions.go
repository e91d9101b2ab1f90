package reconcile

import (
	"fmt"
	"math"

	"github.com/agentstation/worldfeed/pkg/worldstate"
)

const infestation = "FC_INFESTATION"

// Percent returns the progress percentage of an invasion.
func Percent(inv worldstate.Invasion) float64 {
	return percentOf(inv, inv.Count, inv.Goal)
}

// percentOf uses the scale of inv for an arbitrary count and goal. The
// attacker mission faction takes precedence over the invasion faction.
func percentOf(inv worldstate.Invasion, count, goal int) float64 {
	ratio := float64(count) / float64(goal)
	switch {
	case inv.AttackerMissionInfo.Faction == infestation:
		return ratio * 100
	case inv.Faction == infestation:
		return 100 + ratio*100
	default:
		return 50 + ratio*50
	}
}

// ETAMinutes estimates the minutes until the invasion resolves given the
// percent change observed over elapsed minutes. A negative change estimates
// the swing to the other side. ok is false when no estimate exists.
func ETAMinutes(percent, change, elapsed float64) (minutes float64, ok bool) {
	switch {
	case change > 0:
		minutes = (100 - percent) / change * elapsed
	case change < 0:
		minutes = percent / math.Abs(change) * elapsed
	default:
		return 0, false
	}
	if math.IsNaN(minutes) || math.IsInf(minutes, 0) || minutes < 0 {
		return 0, false
	}
	return minutes, true
}

// FormatETA renders minutes as "N mins" below two hours and "N hrs" otherwise.
func FormatETA(minutes float64) string {
	if minutes < 120 {
		return fmt.Sprintf("%d mins", int(minutes))
	}
	return fmt.Sprintf("%d hrs", int(minutes/60))
}

// Tampered reports a goal change of more than one between observations.
func Tampered(goal, previousGoal int) bool {
	d := goal - previousGoal
	return d > 1 || d < -1
}

func baseline(old *worldstate.Record[worldstate.Invasion]) worldstate.ProgressMark {
	if old.Mark != nil {
		return *old.Mark
	}
	return worldstate.ProgressMark{Count: old.Entity.Count, Goal: old.Entity.Goal, Time: old.LastSeen}
}

func markOf(inv worldstate.Invasion, feedTime int64) *worldstate.ProgressMark {
	return &worldstate.ProgressMark{Count: inv.Count, Goal: inv.Goal, Time: feedTime}
}

// invasionProgress computes the metrics of inv against the stored baseline.
// With refresh the stored mark moves to the current observation.
func invasionProgress(feedTime int64, refresh bool) func(old, rec *worldstate.Record[worldstate.Invasion]) *worldstate.Progress {
	return func(old, rec *worldstate.Record[worldstate.Invasion]) *worldstate.Progress {
		inv := rec.Entity
		percent := Percent(inv)
		if old == nil {
			rec.Mark = markOf(inv, feedTime)
			return &worldstate.Progress{Percent: percent, Previous: percent}
		}

		base := baseline(old)
		previous := percentOf(inv, base.Count, base.Goal)
		p := &worldstate.Progress{
			Percent:  percent,
			Previous: previous,
			Change:   percent - previous,
			Tampered: Tampered(inv.Goal, base.Goal),
			Winning:  worldstate.SideDefender,
		}
		if percent > previous {
			p.Winning = worldstate.SideAttacker
		}
		elapsed := float64(feedTime-base.Time) / 60
		if minutes, ok := ETAMinutes(percent, p.Change, elapsed); ok {
			p.ETAMinutes = minutes
			p.ETA = FormatETA(minutes)
		}

		if refresh || old.Mark == nil {
			rec.Mark = markOf(inv, feedTime)
		}
		return p
	}
}

// Invasions reconciles invasions. Progress is measured against the stored
// mark, which advances only when refreshMarks is set (on long ticks) so that
// the estimate spans a meaningful interval.
func Invasions(items []worldstate.Invasion, view map[string]worldstate.Record[worldstate.Invasion], feedTime int64, refreshMarks bool) (*worldstate.Changeset[worldstate.Invasion], error) {
	return Reconcile(items, view, Rules[worldstate.Invasion]{
		Category: worldstate.CategoryInvasions,
		FeedTime: feedTime,
		Finished: func(inv worldstate.Invasion) bool { return inv.Completed },
		Progress: invasionProgress(feedTime, refreshMarks),
	})
}
