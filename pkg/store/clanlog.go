package store

import (
	stderrors "errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// ClanLogPath returns the activity log of a clan. The clan id comes from the
// feed and must be a plain file name.
func (r *Regional) ClanLogPath(clanID string) (string, error) {
	if err := logName("clan_id", clanID); err != nil {
		return "", err
	}
	return filepath.Join(r.dir, constants.ClanLogDir, clanID+".csv"), nil
}

// AppendClanEvents appends events to their clan activity logs. A new log
// starts with a "<name>,<A|C>" header line. A clan whose log cannot be
// written does not stop the others; the failures are joined.
func (r *Regional) AppendClanEvents(events []worldstate.ClanEvent) error {
	if len(events) == 0 {
		return nil
	}
	byClan := make(map[string][]worldstate.ClanEvent)
	var order []string
	for _, e := range events {
		if e.ClanID == "" {
			continue
		}
		if _, ok := byClan[e.ClanID]; !ok {
			order = append(order, e.ClanID)
		}
		byClan[e.ClanID] = append(byClan[e.ClanID], e)
	}

	var errs []error
	for _, clanID := range order {
		if err := r.appendClanLog(clanID, byClan[clanID]); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

func (r *Regional) appendClanLog(clanID string, events []worldstate.ClanEvent) error {
	path, err := r.ClanLogPath(clanID)
	if err != nil {
		return err
	}
	kind := "C"
	if events[0].IsAlliance {
		kind = "A"
	}
	lines := make([]string, 0, len(events))
	for _, e := range events {
		lines = append(lines, FormatClanEvent(e))
	}
	return appendLines(path, events[0].ClanName+","+kind, lines)
}

// FormatClanEvent renders one activity log line.
func FormatClanEvent(e worldstate.ClanEvent) string {
	parts := make([]string, 0, len(e.Fields)+3)
	parts = append(parts, fmt.Sprint(e.Time), string(e.Kind))
	if e.Node != "" {
		parts = append(parts, e.Node)
	}
	parts = append(parts, e.Fields...)
	return strings.Join(parts, ",")
}
