package normalize

import (
	"fmt"

	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// classifyGoals tags every goal with its variant. A goal is a bounty when it
// carries both a bounty flag and a conclave ceiling.
func (n *normalizer) classifyGoals(tree map[string]any) {
	goals, ok := tree["Goals"].([]any)
	if !ok {
		return
	}
	for _, item := range goals {
		obj := item.(map[string]any)
		kind := worldstate.GoalStandard
		if obj["Bounty"] != nil && obj["MaxConclave"] != nil {
			kind = worldstate.GoalBounty
		}
		obj["Kind"] = string(kind)
	}
}

// promoteBounties surfaces bounty goals in the alert list.
func (n *normalizer) promoteBounties(snap *worldstate.Snapshot) error {
	for i, goal := range snap.Goals {
		if goal.Kind != worldstate.GoalBounty {
			continue
		}
		if goal.MissionInfo == nil {
			return n.malformed(fmt.Sprintf("Goals[%d].MissionInfo", i), "bounty goal has no mission", nil)
		}
		info := *goal.MissionInfo
		if goal.Reward != nil {
			info.MissionReward = *goal.Reward
		}
		if info.Location == "" {
			info.Location = goal.Node
		}
		snap.Alerts = append(snap.Alerts, worldstate.Alert{
			ID:          goal.ID,
			Activation:  goal.Activation,
			Expiry:      goal.Expiry,
			MissionInfo: info,
			Tactical: &worldstate.TacticalInfo{
				GoalID:      goal.ID,
				Desc:        goal.Desc,
				MaxConclave: goal.MaxConclave,
			},
		})
	}
	return nil
}
