package render

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

const (
	alertHTMLFormat = `<li class="list-group-item"><span class="badge time" data-starttime="%d" data-endtime="%d"></span>%s` +
		`<span class="alert-node">%s (%s)</span> | <span class="alert-type">%s</span> (<span class="alert-fc">%s</span>) | Level: %d-%d</li>`
	alertsEmptyHTML = `<li class="list-group-item">No alerts at this time.</li>`

	nightmareDesc = "/Lotus/Language/Alerts/NightmareAlertDesc"
)

// AlertJSON is the document form of an alert.
type AlertJSON struct {
	ID          string `json:"Id"`
	Node        string `json:"Node"`
	Region      string `json:"Region"`
	Mission     string `json:"Mission"`
	Faction     string `json:"Faction"`
	MinLevel    int    `json:"MinLevel"`
	MaxLevel    int    `json:"MaxLevel"`
	Activation  int64  `json:"Activation"`
	Expiry      int64  `json:"Expiry"`
	Rewards     string `json:"Rewards"`
	Description string `json:"Description"`
}

// AlertRewards lists the rewards of an alert as "7,000cr - 2 Item - Item".
func (r *Renderer) AlertRewards(reward worldstate.MissionReward) string {
	var b strings.Builder
	b.WriteString(r.n0(reward.Credits) + "cr")
	for _, item := range reward.CountedItems {
		b.WriteString(" - " + r.countedItem(item))
	}
	for _, item := range reward.Items {
		b.WriteString(" - " + r.names.DisplayName(item))
	}
	return b.String()
}

func (r *Renderer) countedItem(item worldstate.CountedItem) string {
	name := r.names.DisplayName(item.ItemType)
	if item.ItemCount == 1 {
		return name
	}
	return strconv.Itoa(item.ItemCount) + " " + name
}

// AlertMission returns the mission display name, marking nightmare missions.
func AlertMission(info worldstate.MissionInfo) string {
	mission := names.MissionType(info.MissionType)
	if info.Nightmare || info.DescText == nightmareDesc {
		mission = "Nightmare " + mission
	}
	return mission
}

// AlertDescription returns the localized description of an alert.
func (r *Renderer) AlertDescription(a worldstate.Alert) string {
	if a.Tactical != nil {
		return fmt.Sprintf("Tactical Alert - %s - Conclave: %d", r.names.String(a.Tactical.Desc), a.Tactical.MaxConclave)
	}
	desc := r.names.String(a.MissionInfo.DescText)
	if a.MissionInfo.ArchwingRequired {
		if a.MissionInfo.IsSharkwing {
			desc += " (Sharkwing)"
		} else {
			desc += " (Archwing)"
		}
	}
	return desc
}

func alertBadges(rewards string) string {
	var b strings.Builder
	for _, part := range strings.Split(rewards, " - ") {
		style := ""
		if !strings.HasSuffix(part, "cr") {
			style = ` style="background-color:blue;"`
		}
		fmt.Fprintf(&b, `<span class="badge"%s>%s</span>`, style, html.EscapeString(part))
	}
	return b.String()
}

func (r *Renderer) alerts(in Input, out *Output) error {
	alerts := in.Snapshot.Alerts
	now := in.Now.Unix()
	order := r.byRegionThenActivation(len(alerts),
		func(i int) string { return alerts[i].MissionInfo.Location },
		func(i int) int64 { return alerts[i].Activation.Sec },
		func(i int) string { return alerts[i].ID },
	)

	var page, raw, gcm strings.Builder
	docs := []AlertJSON{}
	for _, i := range order {
		a := alerts[i]
		if a.Expiry.Sec < now {
			continue
		}
		if rec, ok := in.View.Alerts[a.ID]; ok && rec.Completed {
			continue
		}
		info := a.MissionInfo
		rewards := strings.ReplaceAll(r.AlertRewards(info.MissionReward), "BP", "Blueprint")
		node, region := r.names.Region(info.Location)
		mission := AlertMission(info)
		faction := names.Faction(info.Faction)
		desc := r.AlertDescription(a)

		fmt.Fprintf(&page, alertHTMLFormat, a.Activation.Sec, a.Expiry.Sec, alertBadges(rewards),
			html.EscapeString(node), html.EscapeString(region), html.EscapeString(mission), html.EscapeString(faction),
			info.MinEnemyLevel, info.MaxEnemyLevel)
		raw.WriteString(joinLine(a.ID, node, region, mission, faction,
			strconv.Itoa(info.MinEnemyLevel), strconv.Itoa(info.MaxEnemyLevel),
			strconv.FormatInt(a.Activation.Sec, 10), strconv.FormatInt(a.Expiry.Sec, 10), rewards, desc))
		gcm.WriteString(joinLine(a.ID, node, region, mission, faction,
			strconv.FormatInt(a.Activation.Sec, 10), strconv.FormatInt(a.Expiry.Sec, 10), rewards))
		docs = append(docs, AlertJSON{
			ID:          a.ID,
			Node:        node,
			Region:      region,
			Mission:     mission,
			Faction:     faction,
			MinLevel:    info.MinEnemyLevel,
			MaxLevel:    info.MaxEnemyLevel,
			Activation:  a.Activation.Sec,
			Expiry:      a.Expiry.Sec,
			Rewards:     rewards,
			Description: desc,
		})

		if out.EarliestExpiry == 0 || a.Expiry.Sec < out.EarliestExpiry {
			out.EarliestExpiry = a.Expiry.Sec
		}
	}
	if len(docs) == 0 {
		page.WriteString(alertsEmptyHTML)
	}

	out.AlertsGCM = gcm.String()
	out.add(worldstate.CategoryAlerts, "alerts.html", []byte(page.String()))
	out.add(worldstate.CategoryAlerts, "alertsraw.txt", []byte(raw.String()))
	out.add(worldstate.CategoryAlerts, "alertsgcm.txt", []byte(out.AlertsGCM))
	return out.addJSON(worldstate.CategoryAlerts, "alerts.json", docs)
}

// joinLine joins fields with "|" and terminates the line.
func joinLine(fields ...string) string {
	return strings.Join(fields, "|") + "\n"
}
