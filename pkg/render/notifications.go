package render

import (
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// notifications renders the device payload and the update marker. It runs
// after alerts and invasions.
func (r *Renderer) notifications(in Input, out *Output) error {
	payload := map[string]string{
		"alerts":    out.AlertsGCM,
		"invasions": out.InvasionsGCM,
	}
	if err := out.addJSON(worldstate.CategoryAlerts, "notifications.json", payload); err != nil {
		return err
	}
	return out.addJSON("", "lastupdate.json", map[string]int64{"LastUpdate": in.Snapshot.Time})
}
