// Package worldstate defines the canonical world state model shared by the
// normalizer, the entity store, reconciliation, rendering and notification.
package worldstate

import (
	"fmt"
	"strings"

	"github.com/agentstation/worldfeed/pkg/errors"
)

// Region identifies an independent platform partition with its own feed,
// store, checkpoint and outputs.
type Region string

// Known regions.
const (
	RegionPC    Region = "pc"
	RegionPS4   Region = "ps4"
	RegionXbox  Region = "xbox"
	RegionChina Region = "china"
)

// String returns the region identifier.
func (r Region) String() string { return string(r) }

// Regions returns every known region in a stable order.
func Regions() []Region {
	return []Region{RegionPC, RegionPS4, RegionXbox, RegionChina}
}

// ParseRegion parses a region identifier, case-insensitively.
func ParseRegion(s string) (Region, error) {
	r := Region(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Regions() {
		if r == known {
			return r, nil
		}
	}
	return "", errors.NewValidationError("region", s, fmt.Sprintf("unknown region %q", s))
}

// Category enumerates the entity kinds tracked by the engine.
type Category string

// Keyed categories are reconciled and stored; the rest are single-instance
// structures that are only rendered from the current snapshot.
const (
	CategoryAlerts     Category = "alerts"
	CategoryGoals      Category = "goals"
	CategoryInvasions  Category = "invasions"
	CategoryBadlands   Category = "badlands"
	CategoryDailyDeals Category = "dailydeals"

	CategoryNews              Category = "news"
	CategoryFlashSales        Category = "flashsales"
	CategoryVoidTraders       Category = "voidtraders"
	CategorySorties           Category = "sorties"
	CategoryFissures          Category = "fissures"
	CategoryPersistentEnemies Category = "persistentenemies"
	CategoryLibrary           Category = "library"
)

// String returns the category identifier.
func (c Category) String() string { return string(c) }

// KeyedCategories returns the categories that own an entity store.
func KeyedCategories() []Category {
	return []Category{CategoryAlerts, CategoryGoals, CategoryInvasions, CategoryBadlands, CategoryDailyDeals}
}

// ProgressBearing reports whether completion of an entity in this category is notable.
func (c Category) ProgressBearing() bool {
	return c == CategoryInvasions
}
