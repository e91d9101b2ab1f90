package names

import (
	"os"
	"strings"
	"sync"

	"github.com/goccy/go-yaml"

	"github.com/agentstation/worldfeed/pkg/errors"
)

// Node describes a star chart node.
type Node struct {
	Planet  string `yaml:"planet"`
	Region  string `yaml:"region"`
	Mission string `yaml:"mission"`
}

// Catalog is a file-backed Resolver.
//
// The YAML layout is:
//
//	nodes:
//	  SolNode1: {planet: Galatea, region: Neptune, mission: MT_CAPTURE}
//	items:
//	  /Lotus/StoreItems/Weapons/Rifle: Braton
//	strings:
//	  /Lotus/Language/Alerts/Desc: Rescue the hostage
type Catalog struct {
	mu      sync.RWMutex
	path    string
	Nodes   map[string]Node   `yaml:"nodes"`
	Items   map[string]string `yaml:"items"`
	Strings map[string]string `yaml:"strings"`
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		Nodes:   map[string]Node{},
		Items:   map[string]string{},
		Strings: map[string]string{},
	}
}

// LoadCatalog reads a catalog file. A missing file yields an empty catalog.
func LoadCatalog(path string) (*Catalog, error) {
	c := NewCatalog()
	c.path = path
	if err := c.Reload(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reload re-reads the catalog file it was loaded from.
func (c *Catalog) Reload() error {
	if c.path == "" {
		return nil
	}
	data, err := os.ReadFile(c.path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WrapIO("read", c.path, err)
	}

	fresh := NewCatalog()
	if err := yaml.Unmarshal(data, fresh); err != nil {
		return errors.WrapParse("yaml", c.path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Nodes, c.Items, c.Strings = fresh.Nodes, fresh.Items, fresh.Strings
	return nil
}

// DisplayName implements Resolver.
func (c *Catalog) DisplayName(raw string) string {
	if raw == "" {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name, ok := c.Items[raw]; ok && name != "" && !strings.Contains(name, "Placeholder") {
		return name
	}
	return UnknownName(raw)
}

// Region implements Resolver.
func (c *Catalog) Region(node string) (string, string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n, ok := c.Nodes[node]; ok {
		return n.Planet, n.Region
	}
	return node, UnknownRegion
}

// String implements Resolver.
func (c *Catalog) String(key string) string {
	if key == "" {
		return ""
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if s, ok := c.Strings[key]; ok {
		return s
	}
	return UnknownString(key)
}

// NodeMission implements Resolver.
func (c *Catalog) NodeMission(node string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if n, ok := c.Nodes[node]; ok {
		return MissionType(n.Mission)
	}
	return UnknownRegion
}
