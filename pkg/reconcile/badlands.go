package reconcile

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Badlands reconciles territory nodes. Node history is merged with the stored
// history, and clan activity events are derived for known nodes.
func Badlands(items []worldstate.BadlandNode, view map[string]worldstate.Record[worldstate.BadlandNode], feedTime int64, resolver names.Resolver) (*worldstate.Changeset[worldstate.BadlandNode], error) {
	merged := make([]worldstate.BadlandNode, len(items))
	for i, node := range items {
		if old, ok := view[node.Key()]; ok && node.History != nil {
			node.History = MergeHistory(old.Entity.History, node.History)
		}
		merged[i] = node
	}

	cs, err := Reconcile(merged, view, Rules[worldstate.BadlandNode]{
		Category: worldstate.CategoryBadlands,
		FeedTime: feedTime,
	})
	if err != nil {
		return nil, err
	}

	for _, change := range cs.All() {
		if change.Old == nil || change.Type == worldstate.ChangeCompleted {
			continue
		}
		where := nodeLabel(resolver, change.New.Entity.Node)
		cs.ClanEvents = append(cs.ClanEvents, ClanEvents(change.Old.Entity, change.New.Entity, feedTime, where)...)
	}
	return cs, nil
}

func nodeLabel(resolver names.Resolver, node string) string {
	planet, region := resolver.Region(node)
	return fmt.Sprintf("%s (%s)", planet, region)
}

// MergeHistory keeps every stored conflict the current history no longer
// lists, keyed by start time, and orders the result newest first.
func MergeHistory(stored, current []worldstate.BadlandHistory) []worldstate.BadlandHistory {
	present := make(map[int64]bool, len(current))
	for _, h := range current {
		present[h.Start.Sec] = true
	}
	out := make([]worldstate.BadlandHistory, 0, len(current)+len(stored))
	out = append(out, current...)
	for _, h := range stored {
		if !present[h.Start.Sec] {
			out = append(out, h)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start.Sec > out[j].Start.Sec
	})
	return out
}

// ClanEvents derives the activity of the defending and attacking clans of a
// node between two observations. Attacker checks are skipped when a
// different clan took over the attack.
func ClanEvents(old, node worldstate.BadlandNode, feedTime int64, where string) []worldstate.ClanEvent {
	var events []worldstate.ClanEvent

	if old.DefenderInfo != nil && node.DefenderInfo != nil && old.DefenderInfo.ID == node.DefenderInfo.ID {
		events = append(events, infoEvents(old.DefenderInfo, node.DefenderInfo, feedTime, where)...)
	}

	if node.AttackerInfo != nil {
		if old.AttackerInfo == nil || old.AttackerInfo.ID == node.AttackerInfo.ID {
			events = append(events, infoEvents(old.AttackerInfo, node.AttackerInfo, feedTime, where)...)
		}
		if old.AttackerInfo == nil {
			events = append(events, clanEvent(node.AttackerInfo, feedTime, worldstate.ClanAttacking, where,
				node.AttackerInfo.DeployerName))
		}
	}
	return events
}

func infoEvents(old, info *worldstate.BadlandInfo, feedTime int64, where string) []worldstate.ClanEvent {
	var events []worldstate.ClanEvent
	if HasTaxChanged(old, info) {
		events = append(events, clanEvent(info, feedTime, worldstate.ClanTaxChanged, where,
			formatRate(info.CreditsTaxRate),
			formatRate(info.ItemsTaxRate),
			formatRate(info.MemberCreditsTaxRate),
			formatRate(info.MemberItemsTaxRate),
			info.TaxLastChangedBy,
			info.TaxLastChangedByClan))
	}
	if HasMOTDChanged(old, info) {
		events = append(events, clanEvent(info, feedTime, worldstate.ClanMOTDChanged, where,
			escapeField(deref(info.MOTD)),
			escapeField(deref(info.MOTDAuthor))))
	}
	if HasBattlePayChanged(old, info) {
		events = append(events, clanEvent(info, feedTime, worldstate.ClanBattlePayChanged, where,
			formatRate(info.BattlePayReserve),
			formatRate(info.MissionBattlePay),
			info.BattlePaySetBy,
			info.BattlePaySetByClan))
	}
	if HasClanNameChanged(old, info) {
		events = append(events, clanEvent(info, feedTime, worldstate.ClanNameChanged, "", info.Name))
	}
	return events
}

func clanEvent(info *worldstate.BadlandInfo, feedTime int64, kind worldstate.ClanEventKind, where string, fields ...string) worldstate.ClanEvent {
	return worldstate.ClanEvent{
		Time:       feedTime,
		ClanID:     info.ID,
		ClanName:   info.Name,
		IsAlliance: info.IsAlliance,
		Kind:       kind,
		Node:       where,
		Fields:     fields,
	}
}

// HasTaxChanged compares the tax change timestamps of two observations.
func HasTaxChanged(old, info *worldstate.BadlandInfo) bool {
	if old == nil || old.TaxChangeAllowedTime == nil {
		return info != nil && info.TaxChangeAllowedTime != nil
	}
	if info == nil || info.TaxChangeAllowedTime == nil {
		return false
	}
	return old.TaxChangeAllowedTime.Sec != info.TaxChangeAllowedTime.Sec
}

// HasMOTDChanged reports a new message of the day. A message without an
// author is ignored.
func HasMOTDChanged(old, info *worldstate.BadlandInfo) bool {
	if info == nil || info.MOTDAuthor == nil {
		return false
	}
	return old == nil || deref(old.MOTD) != deref(info.MOTD)
}

// HasBattlePayChanged reports a changed mission battle pay.
func HasBattlePayChanged(old, info *worldstate.BadlandInfo) bool {
	if info == nil {
		return false
	}
	if old == nil {
		return info.MissionBattlePay != nil
	}
	return info.BattlePayReserve != nil && !equalRate(old.MissionBattlePay, info.MissionBattlePay)
}

// HasClanNameChanged reports a renamed clan.
func HasClanNameChanged(old, info *worldstate.BadlandInfo) bool {
	return old != nil && info != nil && old.Name != info.Name
}

func equalRate(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func formatRate(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// escapeField keeps free text from splitting a comma separated log line.
func escapeField(s string) string {
	return strings.ReplaceAll(s, ",", "{*}")
}
