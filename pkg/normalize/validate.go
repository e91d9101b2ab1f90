package normalize

import (
	"encoding/json"
	"fmt"
)

// required lists the fields each keyed list entry must carry.
var required = map[string][]string{
	"Alerts":       {"id", "Activation", "Expiry", "MissionInfo"},
	"Goals":        {"id", "Activation"},
	"Invasions":    {"id", "Activation", "Node", "Faction", "Count", "Goal", "AttackerMissionInfo", "DefenderMissionInfo"},
	"BadlandNodes": {"id", "Node"},
	"DailyDeals":   {"Activation"},
}

func (n *normalizer) validate(tree map[string]any) error {
	t, ok := tree["Time"]
	if !ok {
		return n.malformed("Time", "missing feed time", nil)
	}
	if _, ok := t.(json.Number); !ok {
		return n.malformed("Time", "feed time is not a number", nil)
	}

	for list, fields := range required {
		raw, ok := tree[list]
		if !ok || raw == nil {
			continue
		}
		items, ok := raw.([]any)
		if !ok {
			return n.malformed(list, "expected a list", nil)
		}
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return n.malformed(fmt.Sprintf("%s[%d]", list, i), "expected an object", nil)
			}
			for _, field := range fields {
				if v, ok := obj[field]; !ok || v == nil {
					return n.malformed(fmt.Sprintf("%s[%d].%s", list, i, field), "missing required field", nil)
				}
			}
			if id, ok := obj["id"]; ok {
				if s, isString := id.(string); !isString || s == "" {
					return n.malformed(fmt.Sprintf("%s[%d].id", list, i), "identifier is not a string", nil)
				}
			}
		}
	}

	if invasions, ok := tree["Invasions"].([]any); ok {
		for i, item := range invasions {
			if goal, ok := item.(map[string]any)["Goal"].(json.Number); ok && goal.String() == "0" {
				return n.malformed(fmt.Sprintf("Invasions[%d].Goal", i), "goal must be non-zero", nil)
			}
		}
	}
	return nil
}
