package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/reconcile"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

const (
	invasionsEmptyHTML = `<div class="invasion-entry">No invasions at the moment.</div>`
	infestationName    = "Infestation"
	infestationCode    = "FC_INFESTATION"
)

// InvasionJSON is the document form of an invasion.
type InvasionJSON struct {
	ID           string           `json:"Id"`
	Node         string           `json:"Node"`
	Region       string           `json:"Region"`
	Percentage   float64          `json:"Percentage"`
	Eta          string           `json:"Eta"`
	Description  string           `json:"Description"`
	Activation   int64            `json:"Activation"`
	Count        int              `json:"Count"`
	Goal         int              `json:"Goal"`
	InvaderInfo  InvasionSideJSON `json:"InvaderInfo"`
	DefenderInfo InvasionSideJSON `json:"DefenderInfo"`
}

// InvasionSideJSON describes one side of an invasion.
type InvasionSideJSON struct {
	Faction     string `json:"Faction"`
	AISpec      string `json:"AISpec"`
	MissionType string `json:"MissionType"`
	MinLevel    int    `json:"MinLevel"`
	MaxLevel    int    `json:"MaxLevel"`
	Reward      string `json:"Reward"`
	Winning     bool   `json:"Winning"`
}

// InvasionSides returns the invading and defending faction names. The
// defending faction is the one the attacker mission is run against.
func InvasionSides(inv worldstate.Invasion) (invader, defender string) {
	return names.FactionName(inv.Faction), names.FactionName(inv.AttackerMissionInfo.Faction)
}

// InvasionRewards returns the attacker and defender reward texts. An
// Infestation invader offers no reward.
func (r *Renderer) InvasionRewards(inv worldstate.Invasion) (attacker, defender string) {
	if inv.Faction == infestationCode {
		attacker = "0cr"
	} else {
		attacker = r.sideReward(inv.AttackerReward)
	}
	return attacker, r.sideReward(inv.DefenderReward)
}

func (r *Renderer) sideReward(reward worldstate.Reward) string {
	if len(reward.CountedItems) > 0 {
		return r.countedItem(reward.CountedItems[0])
	}
	if reward.Credits != nil {
		return r.n0(*reward.Credits) + "cr"
	}
	return ""
}

func sideMission(m worldstate.SideMission) string {
	if m.MissionType == "" {
		return "???"
	}
	return names.MissionType(m.MissionType)
}

func infested(faction, mission string) string {
	if faction == infestationName {
		return mission + "Infest"
	}
	return mission
}

func percentString(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func runningTime(elapsed time.Duration) string {
	switch {
	case elapsed.Hours() > 24:
		return percentString(elapsed.Hours()/24) + "d"
	case elapsed.Hours() > 1:
		return percentString(elapsed.Hours()) + "h"
	default:
		return percentString(elapsed.Minutes()) + "m"
	}
}

func factionBar(faction string) string {
	switch faction {
	case infestationName:
		return "-success"
	case "Grineer":
		return "-danger"
	default:
		return ""
	}
}

func (r *Renderer) invasions(in Input, out *Output) error {
	invasions := in.Snapshot.Invasions
	order := r.byRegionThenActivation(len(invasions),
		func(i int) string { return invasions[i].Node },
		func(i int) int64 { return invasions[i].Activation.Sec },
		func(i int) string { return invasions[i].ID },
	)

	var page, raw, mini, gcm strings.Builder
	raw.WriteString(strconv.FormatInt(in.Snapshot.Time, 10) + "\n")
	docs := []InvasionJSON{}
	for _, i := range order {
		inv := invasions[i]
		if inv.Completed {
			continue
		}
		invader, defender := InvasionSides(inv)
		invMission := sideMission(inv.AttackerMissionInfo)
		defMission := sideMission(inv.DefenderMissionInfo)
		node, region := r.names.Region(inv.Node)
		atk, def := r.InvasionRewards(inv)
		desc := r.names.String(inv.LocTag)

		percent := reconcile.Percent(inv)
		eta := ""
		winner := ""
		if p := in.Progress[inv.ID]; p != nil {
			percent = p.Percent
			eta = p.ETA
			switch p.Winning {
			case worldstate.SideAttacker:
				winner = invader
			case worldstate.SideDefender:
				winner = defender
			}
		}
		invPercent := percentString(percent)
		defPercent := percentString(100 - mustFloat(invPercent))

		atkLevels := fmt.Sprintf("%d-%d", inv.AttackerMissionInfo.MinEnemyLevel, inv.AttackerMissionInfo.MaxEnemyLevel)
		defLevels := fmt.Sprintf("%d-%d", inv.DefenderMissionInfo.MinEnemyLevel, inv.DefenderMissionInfo.MaxEnemyLevel)

		title := fmt.Sprintf("%d/%d - Running time: %s", inv.Count, inv.Goal,
			runningTime(in.Now.Sub(time.Unix(inv.Activation.Sec, 0))))
		if eta != "" {
			title += " - ETA: " + eta
		}

		leftBadge := ""
		if inv.Faction != infestationCode {
			leftBadge = fmt.Sprintf(`<span class="badge" style="float:left;">%s</span>`, html.EscapeString(atk))
		}
		rightBadge := fmt.Sprintf(`<span class="badge" style="float:right;">%s</span>`, html.EscapeString(def))

		hidden := func(faction string) string {
			if faction == infestationName {
				return "display:none;"
			}
			return ""
		}
		arrow := func(faction, direction string) string {
			if winner != "" && winner == faction {
				return direction
			}
			return ""
		}

		fmt.Fprintf(&page, `<div class="invasion-entry"><table class="invasion-table"><tbody><tr><td valign="bottom" class="invading-cell">%s</td>`, leftBadge)
		fmt.Fprintf(&page, `<td><span class="invasion-node">%s</span> (<span class="invasion-region">%s</span>) - `, html.EscapeString(node), html.EscapeString(region))
		fmt.Fprintf(&page, `<span class="invasion-desc" title="%s"></span>`, html.EscapeString(desc))
		fmt.Fprintf(&page, ` <span class="invading-fc">%s</span> <span class="invading-type" title="Level: %s" style="%s">(%s)</span>`, invader, atkLevels, hidden(invader), html.EscapeString(invMission))
		fmt.Fprintf(&page, ` vs <span class="defending-type">%s</span> <span class="defending-fc" title="Level: %s" style="%s">(%s)</span> - `, defender, defLevels, hidden(defender), html.EscapeString(defMission))
		fmt.Fprintf(&page, `<span class="invasion-percent" title="%s">%s%%</span></td><td valign="bottom" class="defending-cell">%s</td></tr></tbody></table>`, html.EscapeString(title), invPercent, rightBadge)
		fmt.Fprintf(&page, `<div class="progress"><div class="progress-bar %s %s progress-bar%s" style="width:%s%%"><span class="faction-bar"><img src="img/%s.png" style="height:20px;float:left;"></span></div>`,
			arrow(invader, "arrow-right"), invader, factionBar(invader), invPercent, strings.ToLower(invader))
		fmt.Fprintf(&page, `<div class="progress-bar %s %s progress-bar%s" style="width:%s%%"><span class="faction-bar"><img src="img/%s.png" style="height:20px;float:right;"></span></div></div></div>`,
			arrow(defender, "arrow-left"), defender, factionBar(defender), defPercent, strings.ToLower(defender))

		activation := strconv.FormatInt(inv.Activation.Sec, 10)
		raw.WriteString(joinLine(
			inv.ID, node, region,
			invader, infested(invader, invMission), atk, atkLevels, names.EnemySpec(inv.AttackerMissionInfo.EnemySpec),
			defender, infested(defender, defMission), def, defLevels, names.EnemySpec(inv.DefenderMissionInfo.EnemySpec),
			activation, strconv.Itoa(inv.Count), strconv.Itoa(inv.Goal), invPercent, eta, desc,
		))
		mini.WriteString(joinLine(
			inv.ID, node, region,
			invader, infested(invader, invMission), atk,
			infested(defender, defMission), defMission, def,
			activation, desc,
		))
		gcm.WriteString(joinLine(
			inv.ID, node, region,
			invader, infested(invader, invMission), atk,
			defender, infested(defender, defMission), def,
		))
		docs = append(docs, InvasionJSON{
			ID:          inv.ID,
			Node:        node,
			Region:      region,
			Percentage:  percent,
			Eta:         eta,
			Description: desc,
			Activation:  inv.Activation.Sec,
			Count:       inv.Count,
			Goal:        inv.Goal,
			InvaderInfo: InvasionSideJSON{
				Faction:     invader,
				AISpec:      names.EnemySpec(inv.AttackerMissionInfo.EnemySpec),
				MissionType: invMission,
				MinLevel:    inv.AttackerMissionInfo.MinEnemyLevel,
				MaxLevel:    inv.AttackerMissionInfo.MaxEnemyLevel,
				Reward:      atk,
				Winning:     winner != "" && winner == invader,
			},
			DefenderInfo: InvasionSideJSON{
				Faction:     defender,
				AISpec:      names.EnemySpec(inv.DefenderMissionInfo.EnemySpec),
				MissionType: defMission,
				MinLevel:    inv.DefenderMissionInfo.MinEnemyLevel,
				MaxLevel:    inv.DefenderMissionInfo.MaxEnemyLevel,
				Reward:      def,
				Winning:     winner != "" && winner == defender,
			},
		})
	}
	if len(docs) == 0 {
		page.WriteString(invasionsEmptyHTML)
	}

	out.InvasionsGCM = gcm.String()
	out.add(worldstate.CategoryInvasions, "invasions.html", []byte(page.String()))
	out.add(worldstate.CategoryInvasions, "invasionsraw.txt", []byte(raw.String()))
	out.add(worldstate.CategoryInvasions, "invasionsmini.txt", []byte(mini.String()))
	out.add(worldstate.CategoryInvasions, "invasionsgcm.txt", []byte(out.InvasionsGCM))
	return out.addJSON(worldstate.CategoryInvasions, "invasions.json", docs)
}

// mustFloat parses a number this package formatted itself.
func mustFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}
