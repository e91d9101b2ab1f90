package render

import (
	"sort"
	"strconv"
	"strings"

	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

func (r *Renderer) flashSales(in Input, out *Output) error {
	var raw strings.Builder
	for _, sale := range in.Snapshot.FlashSales {
		raw.WriteString(joinLine(
			r.names.DisplayName(sale.TypeName),
			strconv.Itoa(sale.Discount),
			strconv.Itoa(sale.PremiumOverride),
			strconv.Itoa(sale.RegularOverride),
			strconv.FormatInt(sale.StartDate.Sec, 10),
			strconv.FormatInt(sale.EndDate.Sec, 10),
		))
	}
	out.add(worldstate.CategoryFlashSales, "flashsalesraw.txt", []byte(raw.String()))
	return nil
}

func (r *Renderer) dailyDeals(in Input, out *Output) error {
	deals := make([]worldstate.DailyDeal, 0, len(in.Snapshot.DailyDeals))
	for _, d := range in.Snapshot.DailyDeals {
		d.StoreItem = r.names.DisplayName(d.StoreItem)
		deals = append(deals, d)
	}
	return out.addJSON(worldstate.CategoryDailyDeals, "dailydeals.json", deals)
}

func (r *Renderer) voidTraders(in Input, out *Output) error {
	traders := make([]worldstate.VoidTrader, 0, len(in.Snapshot.VoidTraders))
	for _, t := range in.Snapshot.VoidTraders {
		t.Manifest = r.manifest(t.Manifest)
		if t.Config != nil {
			cfg := *t.Config
			nodes := make([]string, len(cfg.Nodes))
			for i, n := range cfg.Nodes {
				nodes[i] = names.PlanetWithRegion(r.names, n)
			}
			cfg.Nodes = nodes
			manifests := make([][]worldstate.ManifestItem, len(cfg.Manifests))
			for i, m := range cfg.Manifests {
				manifests[i] = r.manifest(m)
			}
			cfg.Manifests = manifests
			t.Config = &cfg
		}
		t.Node = names.PlanetWithRegion(r.names, t.Node)
		traders = append(traders, t)
	}
	return out.addJSON(worldstate.CategoryVoidTraders, "voidtraders.json", traders)
}

func (r *Renderer) manifest(items []worldstate.ManifestItem) []worldstate.ManifestItem {
	if items == nil {
		return nil
	}
	out := make([]worldstate.ManifestItem, len(items))
	for i, item := range items {
		item.ItemType = r.names.DisplayName(item.ItemType)
		out[i] = item
	}
	return out
}

// badlands renders the stored territory nodes with display names, ordered
// by id.
func (r *Renderer) badlands(in Input, out *Output) error {
	ids := make([]string, 0, len(in.View.Badlands))
	for id := range in.View.Badlands {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	nodes := make([]worldstate.BadlandNode, 0, len(ids))
	for _, id := range ids {
		node := in.View.Badlands[id].Entity
		node.NodeDisplayName, node.NodeRegionName = r.names.Region(node.Node)
		node.NodeGameType = r.names.NodeMission(node.Node)
		nodes = append(nodes, node)
	}
	return out.addJSON(worldstate.CategoryBadlands, "badlands.json", nodes)
}
