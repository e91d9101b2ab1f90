// Package names maps raw feed identifiers to display strings.
//
// Lookups never fail: an unresolved identifier falls back to a readable form
// derived from the identifier itself.
package names

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Resolver maps raw identifiers to display strings.
type Resolver interface {
	// DisplayName resolves an item or store item path.
	DisplayName(raw string) string
	// Region resolves a node to its planet (node display name) and region.
	Region(node string) (planet, region string)
	// String resolves a localization key.
	String(key string) string
	// NodeMission resolves the mission type a node runs.
	NodeMission(node string) string
}

// UnknownRegion is reported for nodes no source knows about.
const UnknownRegion = "-"

var missionTypes = map[string]string{
	"mt_defense":        "Defense",
	"mt_assassination":  "Assassination",
	"mt_extermination":  "Extermination",
	"mt_survival":       "Survival",
	"mt_intel":          "Spy",
	"mt_capture":        "Capture",
	"mt_sabotage":       "Sabotage",
	"mt_counter_intel":  "Deception",
	"mt_rescue":         "Rescue",
	"mt_mobile_defense": "Mobile Defense",
	"mt_territory":      "Interception",
	"mt_retrieval":      "Retrieval",
	"mt_hive":           "Hive Sabotage",
	"mt_excavate":       "Excavation",
}

var missionIndexes = map[int]string{
	0: "Assassination", 1: "Extermination", 2: "Survival", 3: "Rescue",
	4: "Sabotage", 5: "Capture", 6: "Deception", 7: "Spy", 8: "Defense",
	9: "Mobile Defense", 10: "Relay/Conclave", 13: "Interception", 14: "Hijack",
	16: "Hive", 18: "Excavation", 21: "Region Shortcut", 22: "Infested Salvage",
	23: "Arena", 24: "Junction", 25: "Pursuit", 26: "Rush", 27: "Assault",
}

var factions = map[string]string{
	"fc_orokin":      "Corrupted",
	"fc_grineer":     "Grineer",
	"fc_infestation": "Infestation",
	"fc_corpus":      "Corpus",
}

// MissionType maps a mission type code to its display name.
func MissionType(raw string) string {
	if name, ok := missionTypes[strings.ToLower(raw)]; ok {
		return name
	}
	return raw
}

// MissionTypeByIndex maps a numeric mission index to its display name.
func MissionTypeByIndex(index int) string {
	if name, ok := missionIndexes[index]; ok {
		return name
	}
	return fmt.Sprintf("Unknown: %d", index)
}

// Faction maps a faction code to its display name.
func Faction(raw string) string {
	if name, ok := factions[strings.ToLower(raw)]; ok {
		return name
	}
	return raw
}

// FactionName derives a display name from the text after the code prefix,
// e.g. "FC_GRINEER" becomes "Grineer".
func FactionName(code string) string {
	_, rest, found := strings.Cut(code, "_")
	if !found {
		rest = code
	}
	return Title(rest)
}

// EnemySpec strips the type path prefixes from an enemy spec.
func EnemySpec(raw string) string {
	if raw == "" {
		return "?"
	}
	raw = strings.ReplaceAll(raw, "/Lotus/Types/Game/EnemySpecs/", "")
	return strings.ReplaceAll(raw, "/Lotus/Types/Game/", "")
}

// UnknownName derives a display name from the last path segment.
func UnknownName(raw string) string {
	return strings.ReplaceAll(lastSegment(raw), "StoreItem", "")
}

// UnknownString derives a display string from the last path segment.
func UnknownString(raw string) string {
	return lastSegment(raw)
}

// Title lowercases s and capitalizes each word. Casers are stateful, so one
// is created per call.
func Title(s string) string {
	return cases.Title(language.English).String(strings.ToLower(s))
}

// PlanetWithRegion formats a node as "Planet (Region)".
func PlanetWithRegion(r Resolver, node string) string {
	planet, region := r.Region(node)
	if region == UnknownRegion {
		return planet
	}
	return fmt.Sprintf("%s (%s)", planet, region)
}

func lastSegment(raw string) string {
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		return raw[i+1:]
	}
	return raw
}
