package store

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Progress logs are append-only CSV series sampled once per cycle. They are
// never read back by the engine.

// InvasionLogPath returns the progress log of one invasion, keyed by its
// node display name and activation.
func (r *Regional) InvasionLogPath(node string, activation int64) (string, error) {
	if err := logName("node", node); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%d.csv", node, activation)
	return filepath.Join(r.dir, constants.InvasionLogDir, name), nil
}

// AppendInvasionProgress appends a "time,goal,count" line for every running
// invasion. nodeName maps a raw node to the name used in the log file.
func (r *Regional) AppendInvasionProgress(feedTime int64, invasions []worldstate.Invasion, nodeName func(string) string) error {
	var errs []error
	for _, inv := range invasions {
		if inv.Completed {
			continue
		}
		path, err := r.InvasionLogPath(nodeName(inv.Node), inv.Activation.Sec)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		line := fmt.Sprintf("%d,%d,%d", feedTime, inv.Goal, inv.Count)
		if err := appendLines(path, "", []string{line}); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// TargetLogPath returns the progress log of a library scan target.
func (r *Regional) TargetLogPath(enemy string) (string, error) {
	if err := logName("enemy", enemy); err != nil {
		return "", err
	}
	return filepath.Join(r.dir, constants.TargetLogDir, enemy+".txt"), nil
}

// AppendTargetProgress appends a "time,percent" line for the current scan
// target once it has started. enemy is the resolved target name.
func (r *Regional) AppendTargetProgress(feedTime, now int64, info *worldstate.LibraryInfo, enemy string) error {
	if info == nil || info.CurrentTarget == nil || info.CurrentTarget.EnemyType == "" {
		return nil
	}
	target := info.CurrentTarget
	if now < target.StartTime.Sec {
		return nil
	}
	path, err := r.TargetLogPath(enemy)
	if err != nil {
		return err
	}
	line := fmt.Sprintf("%d,%s", feedTime, formatFloat(&target.ProgressPercent))
	return appendLines(path, "", []string{line})
}

// ConflictLogPath returns the log of one territory conflict, keyed by node id
// and the attacker's deployment time.
func (r *Regional) ConflictLogPath(nodeID string, deployed int64) (string, error) {
	if err := logName("node_id", nodeID); err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%d.csv", nodeID, deployed)
	return filepath.Join(r.dir, constants.ConflictLogDir, name), nil
}

// AppendConflictProgress samples every node under attack. A new log starts
// with a "<defender>,<attacker>" header; each line holds the feed time then
// remaining strength, max strength, mission battle pay and battle pay
// reserve of the defender followed by the same four for the attacker.
// Conflicts that have not started or have expired at now are skipped.
func (r *Regional) AppendConflictProgress(feedTime, now int64, nodes []worldstate.BadlandNode) error {
	var errs []error
	for _, node := range nodes {
		deployed, ok := conflictStart(node, now)
		if !ok {
			continue
		}
		path, err := r.ConflictLogPath(node.ID, deployed)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		def, att := node.DefenderInfo, node.AttackerInfo
		line := fmt.Sprintf("%d,%s,%s", feedTime, conflictSide(def), conflictSide(att))
		if err := appendLines(path, def.Name+","+att.Name, []string{line}); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func conflictStart(node worldstate.BadlandNode, now int64) (int64, bool) {
	att := node.AttackerInfo
	if att == nil || node.DefenderInfo == nil || att.DeploymentActivationTime == nil {
		return 0, false
	}
	if node.ConflictExpiration == nil || node.ConflictExpiration.Sec < now {
		return 0, false
	}
	deployed := att.DeploymentActivationTime.Sec
	return deployed, now >= deployed
}

func conflictSide(info *worldstate.BadlandInfo) string {
	return formatFloat(info.StrengthRemaining) + "," +
		formatFloat(info.MaxStrength) + "," +
		formatFloat(info.MissionBattlePay) + "," +
		formatFloat(info.BattlePayReserve)
}

// formatFloat renders the shortest exact form; a missing value is empty.
func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
