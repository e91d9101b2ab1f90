// Package reconcile classifies the entities of a snapshot against the stored
// state of a region and derives progress metrics and change events.
//
// Reconciliation never mutates the store. It produces changesets that the
// store applies afterwards.
package reconcile

import (
	"fmt"
	"sort"

	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Rules configures the reconciliation of one category.
type Rules[T worldstate.Entity] struct {
	Category worldstate.Category
	FeedTime int64

	// Differ decides whether an observed entity was updated. Defaults to
	// comparing every exported field.
	Differ *Differ

	// Finished reports whether the entity itself says it is done. A known
	// entity that turns finished is completed while still in the feed.
	Finished func(T) bool

	// Progress derives metrics for a classified entity and may set the
	// stored progress mark on rec. old is nil for new entities.
	Progress func(old *worldstate.Record[T], rec *worldstate.Record[T]) *worldstate.Progress
}

// Reconcile classifies items against the stored view.
//
// An entity missing from view is new, a known entity is updated or unchanged
// depending on its tracked fields, and a stored entity absent from items is
// completed. Completion is reported once: an already completed record is
// never completed again, and it is never reported as new when its id
// reappears.
func Reconcile[T worldstate.Entity](items []T, view map[string]worldstate.Record[T], rules Rules[T]) (*worldstate.Changeset[T], error) {
	differ := rules.Differ
	if differ == nil {
		differ = NewDiffer()
	}
	cs := worldstate.NewChangeset[T](rules.Category, rules.FeedTime)

	seen := make(map[string]bool, len(items))
	for i, item := range items {
		id := item.Key()
		if id == "" {
			return nil, errors.NewValidationError(fmt.Sprintf("%s[%d].id", rules.Category, i), id, "entity has no id")
		}
		if seen[id] {
			return nil, errors.NewValidationError(fmt.Sprintf("%s[%d].id", rules.Category, i), id, "duplicate id in snapshot")
		}
		seen[id] = true

		stored, known := view[id]
		if !known {
			rec := worldstate.Record[T]{Entity: item, FirstSeen: rules.FeedTime, LastSeen: rules.FeedTime}
			if rules.Finished != nil && rules.Finished(item) {
				// Already over when first seen; nothing left to complete.
				rec.Completed = true
				rec.CompletedAt = rules.FeedTime
			}
			change := worldstate.Change[T]{ID: id, Type: worldstate.ChangeNew, New: rec}
			if rules.Progress != nil {
				change.Progress = rules.Progress(nil, &change.New)
			}
			cs.Add(change)
			continue
		}

		old := stored
		rec := worldstate.Record[T]{
			Entity:      item,
			FirstSeen:   old.FirstSeen,
			LastSeen:    rules.FeedTime,
			Completed:   old.Completed,
			CompletedAt: old.CompletedAt,
			Mark:        old.Mark,
		}
		change := worldstate.Change[T]{ID: id, Old: &old, New: rec}
		change.Fields = differ.Fields(old.Entity, item)
		switch {
		case !old.Completed && rules.Finished != nil && rules.Finished(item):
			change.Type = worldstate.ChangeCompleted
			change.New.Completed = true
			change.New.CompletedAt = rules.FeedTime
		case len(change.Fields) > 0:
			change.Type = worldstate.ChangeUpdated
		default:
			change.Type = worldstate.ChangeUnchanged
		}
		if rules.Progress != nil {
			change.Progress = rules.Progress(&old, &change.New)
		}
		cs.Add(change)
	}

	var gone []string
	for id, rec := range view {
		if !seen[id] && !rec.Completed {
			gone = append(gone, id)
		}
	}
	sort.Strings(gone)
	for _, id := range gone {
		old := view[id]
		rec := old
		rec.Completed = true
		rec.CompletedAt = rules.FeedTime
		cs.Add(worldstate.Change[T]{ID: id, Type: worldstate.ChangeCompleted, Old: &old, New: rec})
	}

	return cs, nil
}
