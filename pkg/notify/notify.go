// Package notify decides whether a cycle is worth announcing and delivers
// the announcements: device pushes, social posts and live events.
//
// Every channel is best effort. Delivery failures are logged and reported,
// never returned as cycle errors.
package notify

import (
	"fmt"

	"github.com/agentstation/worldfeed/pkg/reconcile"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Payload is the rendered data sent to devices.
type Payload struct {
	AlertsGCM    string
	InvasionsGCM string
	// EarliestExpiry bounds the push time to live. Zero leaves the default.
	EarliestExpiry int64
}

// Decision describes what a cycle has to announce.
type Decision struct {
	Region   worldstate.Region         `json:"region"`
	FeedTime int64                     `json:"feed_time"`
	Notable  bool                      `json:"notable"`
	Reasons  []string                  `json:"reasons,omitempty"`
	Version  *worldstate.VersionRecord `json:"version,omitempty"`
	Posts    []Post                    `json:"posts,omitempty"`

	Summary map[worldstate.Category]worldstate.ChangesetSummary `json:"summary"`
}

// EventRegion tags live update events with the decision's region.
func (d Decision) EventRegion() string { return d.Region.String() }

// Decide inspects the changesets of a cycle. A cycle is notable when any
// category saw a new entity or an invasion completed.
func Decide(res *reconcile.Result) Decision {
	d := Decision{
		Region:   res.Region,
		FeedTime: res.FeedTime,
		Summary:  res.Summaries(),
		Version:  res.Version,
	}
	for _, category := range worldstate.KeyedCategories() {
		s, ok := d.Summary[category]
		if !ok {
			continue
		}
		if s.New > 0 {
			d.Reasons = append(d.Reasons, fmt.Sprintf("%s: %d new", category, s.New))
		}
		if category.ProgressBearing() && s.Completed > 0 {
			d.Reasons = append(d.Reasons, fmt.Sprintf("%s: %d completed", category, s.Completed))
		}
	}
	d.Notable = len(d.Reasons) > 0
	return d
}
