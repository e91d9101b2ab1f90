package worldstate

import (
	"fmt"
	"strings"
)

// ChangeType classifies an entity's transition between two snapshots.
type ChangeType string

const (
	// ChangeNew indicates an entity not seen before.
	ChangeNew ChangeType = "new"
	// ChangeUpdated indicates a known entity whose tracked fields changed.
	ChangeUpdated ChangeType = "updated"
	// ChangeUnchanged indicates a known entity observed again without changes.
	ChangeUnchanged ChangeType = "unchanged"
	// ChangeCompleted indicates an entity that finished or vanished from the feed.
	ChangeCompleted ChangeType = "completed"
)

// Side is one party of an invasion.
type Side string

const (
	SideNone     Side = ""
	SideAttacker Side = "attacker"
	SideDefender Side = "defender"
)

// Progress holds the metrics derived for progress-bearing entities.
type Progress struct {
	Percent  float64 `json:"percent"`
	Previous float64 `json:"previous"`
	Change   float64 `json:"change"`
	// ETA is "N mins" or "N hrs"; empty when no estimate is available.
	ETA        string  `json:"eta,omitempty"`
	ETAMinutes float64 `json:"eta_minutes,omitempty"`
	Tampered   bool    `json:"tampered"`
	Winning    Side    `json:"winning,omitempty"`
}

// HasETA reports whether an estimate could be computed.
func (p *Progress) HasETA() bool { return p != nil && p.ETA != "" }

// Change is one classified entity.
type Change[T Entity] struct {
	ID       string
	Type     ChangeType
	Old      *Record[T] // nil for new entities
	New      Record[T]  // the record to store
	Fields   []string   // tracked fields that differ, for updates
	Progress *Progress
}

// ClanEventKind names a territory node change.
type ClanEventKind string

const (
	ClanTaxChanged       ClanEventKind = "TAX_CHANGED_2"
	ClanMOTDChanged      ClanEventKind = "MOTD_CHANGED"
	ClanBattlePayChanged ClanEventKind = "BATTLE_PAY_CHANGED_2"
	ClanNameChanged      ClanEventKind = "NAME_CHANGED"
	ClanAttacking        ClanEventKind = "ATTACKING"
)

// ClanEvent is one line of a clan activity log.
type ClanEvent struct {
	Time       int64
	ClanID     string
	ClanName   string
	IsAlliance bool
	Kind       ClanEventKind
	Node       string
	Fields     []string
}

// Changeset is the reconciliation result for one category of one region.
type Changeset[T Entity] struct {
	Category   Category
	FeedTime   int64
	New        []Change[T]
	Updated    []Change[T]
	Unchanged  []Change[T]
	Completed  []Change[T]
	ClanEvents []ClanEvent
}

// NewChangeset returns an empty changeset.
func NewChangeset[T Entity](category Category, feedTime int64) *Changeset[T] {
	return &Changeset[T]{Category: category, FeedTime: feedTime}
}

// Add files a change under its type.
func (c *Changeset[T]) Add(change Change[T]) {
	switch change.Type {
	case ChangeNew:
		c.New = append(c.New, change)
	case ChangeUpdated:
		c.Updated = append(c.Updated, change)
	case ChangeUnchanged:
		c.Unchanged = append(c.Unchanged, change)
	case ChangeCompleted:
		c.Completed = append(c.Completed, change)
	}
}

// All returns every change in classification order.
func (c *Changeset[T]) All() []Change[T] {
	all := make([]Change[T], 0, len(c.New)+len(c.Updated)+len(c.Unchanged)+len(c.Completed))
	all = append(all, c.New...)
	all = append(all, c.Updated...)
	all = append(all, c.Unchanged...)
	return append(all, c.Completed...)
}

// Summary counts changes by type.
func (c *Changeset[T]) Summary() ChangesetSummary {
	if c == nil {
		return ChangesetSummary{}
	}
	return ChangesetSummary{
		New:       len(c.New),
		Updated:   len(c.Updated),
		Unchanged: len(c.Unchanged),
		Completed: len(c.Completed),
	}
}

// ChangesetSummary provides summary statistics for a changeset.
type ChangesetSummary struct {
	New       int `json:"new"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Completed int `json:"completed"`
}

// HasChanges reports whether anything other than unchanged observations happened.
func (s ChangesetSummary) HasChanges() bool {
	return s.New+s.Updated+s.Completed > 0
}

// String returns a human-readable summary of the changeset.
func (s ChangesetSummary) String() string {
	if !s.HasChanges() {
		return "no changes"
	}
	var parts []string
	if s.New > 0 {
		parts = append(parts, fmt.Sprintf("%d new", s.New))
	}
	if s.Updated > 0 {
		parts = append(parts, fmt.Sprintf("%d updated", s.Updated))
	}
	if s.Completed > 0 {
		parts = append(parts, fmt.Sprintf("%d completed", s.Completed))
	}
	return strings.Join(parts, ", ")
}
