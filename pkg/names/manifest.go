package names

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/logging"
)

// Manifest resolves names from a remote export manifest and caches the
// results, deferring to a fallback Resolver for anything it does not know.
//
// The manifest document maps export names to entry lists:
//
//	{"ExportWeapons": [{"uniqueName": "/Lotus/...", "name": "BRATON"}],
//	 "ExportRegions": [{"uniqueName": "SolNode1", "name": "Galatea", "systemName": "Neptune", "missionIndex": 5}]}
type Manifest struct {
	url      string
	client   *http.Client
	fallback Resolver
	interval time.Duration
	logger   *zerolog.Logger

	mu     sync.RWMutex
	items  *cache.Cache
	nodes  *cache.Cache
	loaded time.Time
}

// ManifestOption configures a Manifest.
type ManifestOption func(*Manifest)

// WithHTTPClient sets the client used to download the manifest.
func WithHTTPClient(client *http.Client) ManifestOption {
	return func(m *Manifest) { m.client = client }
}

// WithRefreshInterval sets how often Watch re-downloads the manifest.
func WithRefreshInterval(interval time.Duration) ManifestOption {
	return func(m *Manifest) { m.interval = interval }
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) ManifestOption {
	return func(m *Manifest) { m.logger = logger }
}

// NewManifest creates a manifest-backed resolver.
func NewManifest(url string, fallback Resolver, opts ...ManifestOption) *Manifest {
	m := &Manifest{
		url:      url,
		client:   &http.Client{Timeout: constants.DefaultHTTPTimeout},
		fallback: fallback,
		interval: constants.ManifestRefreshInterval,
		logger:   logging.Default(),
		items:    cache.New(cache.NoExpiration, 0),
		nodes:    cache.New(cache.NoExpiration, 0),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

type manifestEntry struct {
	UniqueName   string `json:"uniqueName"`
	Name         string `json:"name"`
	SystemName   string `json:"systemName"`
	MissionIndex *int   `json:"missionIndex"`
}

// Refresh downloads the manifest and replaces the cached entries in one
// step. Entries never expire; a failed refresh keeps the previous ones.
func (m *Manifest) Refresh(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return fmt.Errorf("creating manifest request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return errors.NewFetchError("manifest", m.url, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errors.NewFetchError("manifest", m.url, resp.StatusCode, nil)
	}

	var doc map[string][]manifestEntry
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return errors.WrapParse("json", m.url, err)
	}

	items := cache.New(cache.NoExpiration, 0)
	nodes := cache.New(cache.NoExpiration, 0)
	for export, entries := range doc {
		for _, e := range entries {
			if e.UniqueName == "" {
				continue
			}
			if export == "ExportRegions" {
				nodes.Set(e.UniqueName, e, cache.NoExpiration)
				continue
			}
			name := e.Name
			if name == strings.ToUpper(name) {
				name = Title(name)
			}
			items.Set(e.UniqueName, name, cache.NoExpiration)
		}
	}

	m.mu.Lock()
	m.items, m.nodes, m.loaded = items, nodes, time.Now()
	m.mu.Unlock()
	m.logger.Info().Int("items", items.ItemCount()).Int("nodes", nodes.ItemCount()).Msg("Loaded name manifest")
	return nil
}

// Loaded returns when the entries in use were downloaded, or the zero time.
func (m *Manifest) Loaded() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.loaded
}

// Watch refreshes the manifest every refresh interval until ctx is done.
// Failures are logged and the previous names stay in use.
func (m *Manifest) Watch(ctx context.Context) {
	if m.interval <= 0 {
		return
	}
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, constants.DefaultHTTPTimeout)
			if err := m.Refresh(refreshCtx); err != nil {
				m.logger.Warn().Err(err).Str("url", m.url).Msg("Name manifest refresh failed, keeping previous names")
			}
			cancel()
		}
	}
}

func (m *Manifest) item(key string) (string, bool) {
	m.mu.RLock()
	items := m.items
	m.mu.RUnlock()
	if v, ok := items.Get(key); ok {
		return v.(string), true
	}
	return "", false
}

func (m *Manifest) node(id string) (manifestEntry, bool) {
	m.mu.RLock()
	nodes := m.nodes
	m.mu.RUnlock()
	if v, ok := nodes.Get(id); ok {
		return v.(manifestEntry), true
	}
	return manifestEntry{}, false
}

// DisplayName implements Resolver.
func (m *Manifest) DisplayName(raw string) string {
	if name, ok := m.item(raw); ok {
		return name
	}
	return m.fallback.DisplayName(raw)
}

// Region implements Resolver.
func (m *Manifest) Region(node string) (string, string) {
	if e, ok := m.node(node); ok {
		return e.Name, e.SystemName
	}
	return m.fallback.Region(node)
}

// String implements Resolver.
func (m *Manifest) String(key string) string {
	if name, ok := m.item(key); ok {
		return name
	}
	return m.fallback.String(key)
}

// NodeMission implements Resolver.
func (m *Manifest) NodeMission(node string) string {
	if e, ok := m.node(node); ok && e.MissionIndex != nil {
		return MissionTypeByIndex(*e.MissionIndex)
	}
	return m.fallback.NodeMission(node)
}
