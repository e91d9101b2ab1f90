package render

import (
	"fmt"

	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// sorties renders the first sortie. Nothing is produced without one.
func (r *Renderer) sorties(in Input, out *Output) error {
	if len(in.Snapshot.Sorties) == 0 {
		return nil
	}
	sortie := in.Snapshot.Sorties[0]
	variants := make([]worldstate.SortieVariant, len(sortie.Variants))
	for i, v := range sortie.Variants {
		if v.MissionType != "" {
			v.MissionType = names.MissionType(v.MissionType)
		}
		if v.Node != "" {
			v.Node = names.PlanetWithRegion(r.names, v.Node)
		}
		variants[i] = v
	}
	sortie.Variants = variants
	return out.addJSON(worldstate.CategorySorties, "sorties.json", sortie)
}

// fissures renders active relic missions with "Planet (Region) (Mission)"
// nodes. Nothing is produced without fissures.
func (r *Renderer) fissures(in Input, out *Output) error {
	if len(in.Snapshot.ActiveMissions) == 0 {
		return nil
	}
	fissures := make([]worldstate.Fissure, len(in.Snapshot.ActiveMissions))
	for i, f := range in.Snapshot.ActiveMissions {
		if f.Node != "" {
			f.Node = fmt.Sprintf("%s (%s)", names.PlanetWithRegion(r.names, f.Node), r.names.NodeMission(f.Node))
		}
		fissures[i] = f
	}
	return out.addJSON(worldstate.CategoryFissures, "fissures.json", fissures)
}

func (r *Renderer) persistentEnemies(in Input, out *Output) error {
	enemies := make([]worldstate.PersistentEnemy, len(in.Snapshot.PersistentEnemies))
	for i, e := range in.Snapshot.PersistentEnemies {
		if e.AgentType != "" {
			e.AgentType = r.names.DisplayName(e.AgentType)
		}
		if e.LocTag != "" {
			e.LocTag = r.names.String(e.LocTag)
		}
		if e.LastDiscoveredLocation != "" {
			e.LastDiscoveredLocation = r.planet(e.LastDiscoveredLocation)
		}
		enemies[i] = e
	}
	return out.addJSON(worldstate.CategoryPersistentEnemies, "persistentenemies.json", enemies)
}

func (r *Renderer) library(in Input, out *Output) error {
	info := in.Snapshot.LibraryInfo
	if info == nil || info.CurrentTarget == nil {
		return nil
	}
	target := *info.CurrentTarget
	target.TargetType = r.names.DisplayName(target.TargetType)
	return out.addJSON(worldstate.CategoryLibrary, "library.json", target)
}
