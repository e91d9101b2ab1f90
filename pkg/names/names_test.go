package names_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/logging"
	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticMaps(t *testing.T) {
	assert.Equal(t, "Deception", names.MissionType("MT_COUNTER_INTEL"))
	assert.Equal(t, "Interception", names.MissionType("mt_territory"))
	assert.Equal(t, "MT_NEW", names.MissionType("MT_NEW"))
	assert.Equal(t, "Hijack", names.MissionTypeByIndex(14))
	assert.Equal(t, "Unknown: 99", names.MissionTypeByIndex(99))
	assert.Equal(t, "Corrupted", names.Faction("FC_OROKIN"))
	assert.Equal(t, "FC_SENTIENT", names.Faction("FC_SENTIENT"))
	assert.Equal(t, "Infestation", names.FactionName("FC_INFESTATION"))
	assert.Equal(t, "Grineer", names.FactionName("FC_GRINEER"))
}

func TestEnemySpec(t *testing.T) {
	assert.Equal(t, "?", names.EnemySpec(""))
	assert.Equal(t, "GrineerInvasionAgent", names.EnemySpec("/Lotus/Types/Game/EnemySpecs/GrineerInvasionAgent"))
	assert.Equal(t, "Other/Spec", names.EnemySpec("/Lotus/Types/Game/Other/Spec"))
}

func TestFallbacks(t *testing.T) {
	assert.Equal(t, "Rifle", names.UnknownName("/Lotus/StoreItems/Weapons/RifleStoreItem"))
	assert.Equal(t, "Desc", names.UnknownString("/Lotus/Language/Desc"))
	assert.Equal(t, "plain", names.UnknownString("plain"))
}

func TestCatalog(t *testing.T) {
	c, err := names.LoadCatalog(filepath.Join("testdata", "catalog.yaml"))
	require.NoError(t, err)

	t.Run("display names", func(t *testing.T) {
		assert.Equal(t, "Nitain Extract", c.DisplayName("/Lotus/Types/Items/Alertium"))
		assert.Equal(t, "Weird", c.DisplayName("/Lotus/StoreItems/Weird"))
		assert.Equal(t, "Unseen", c.DisplayName("/Lotus/StoreItems/UnseenStoreItem"))
		assert.Equal(t, "", c.DisplayName(""))
	})

	t.Run("regions", func(t *testing.T) {
		planet, region := c.Region("SolNode1")
		assert.Equal(t, "Apollodorus", planet)
		assert.Equal(t, "Mercury", region)
		planet, region = c.Region("SolNode404")
		assert.Equal(t, "SolNode404", planet)
		assert.Equal(t, names.UnknownRegion, region)
		assert.Equal(t, "Apollodorus (Mercury)", names.PlanetWithRegion(c, "SolNode1"))
		assert.Equal(t, "SolNode404", names.PlanetWithRegion(c, "SolNode404"))
	})

	t.Run("strings and missions", func(t *testing.T) {
		assert.Equal(t, "Defend the outpost", c.String("/Lotus/Language/Alerts/Desc"))
		assert.Equal(t, "Other", c.String("/Lotus/Language/Other"))
		assert.Equal(t, "", c.String(""))
		assert.Equal(t, "Defense", c.NodeMission("SolNode2"))
		assert.Equal(t, "-", c.NodeMission("nowhere"))
	})
}

func TestCatalogMissingFileAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.yaml")
	c, err := names.LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "X", c.String("/a/X"))

	require.NoError(t, os.WriteFile(path, []byte("strings:\n  /a/X: Ex\n"), 0o644))
	require.NoError(t, c.Reload())
	assert.Equal(t, "Ex", c.String("/a/X"))
}

func TestCatalogInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.yaml")
	require.NoError(t, os.WriteFile(path, []byte("nodes: [unterminated"), 0o644))
	_, err := names.LoadCatalog(path)
	require.Error(t, err)
	var parseErr *errors.ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestManifest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{
			"ExportWeapons": [{"uniqueName": "/Lotus/Weapons/Braton", "name": "BRATON PRIME"}],
			"ExportResources": [{"uniqueName": "/Lotus/Types/Items/Alertium", "name": "Nitain"}],
			"ExportRegions": [{"uniqueName": "SolNode9", "name": "Cervantes", "systemName": "Earth", "missionIndex": 8}]
		}`))
	}))
	defer srv.Close()

	m := names.NewManifest(srv.URL, names.NewCatalog())
	require.NoError(t, m.Refresh(context.Background()))

	assert.Equal(t, "Braton Prime", m.DisplayName("/Lotus/Weapons/Braton"))
	assert.Equal(t, "Nitain", m.DisplayName("/Lotus/Types/Items/Alertium"))
	assert.Equal(t, "Thing", m.DisplayName("/Lotus/StoreItems/ThingStoreItem"))

	planet, region := m.Region("SolNode9")
	assert.Equal(t, "Cervantes", planet)
	assert.Equal(t, "Earth", region)
	assert.Equal(t, "Defense", m.NodeMission("SolNode9"))
	assert.Equal(t, "-", m.NodeMission("SolNode1"))
}

func TestManifestFetchFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := names.NewManifest(srv.URL, names.NewCatalog())
	err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsFetch(err))
	assert.Equal(t, "Alertium", m.DisplayName("/Lotus/Types/Items/Alertium"))
}

func TestManifestNamesOutliveRefreshInterval(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) > 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"ExportWeapons": [{"uniqueName": "/Lotus/Weapons/Braton", "name": "BRATON PRIME"}]}`))
	}))
	defer srv.Close()

	m := names.NewManifest(srv.URL, names.NewCatalog(), names.WithRefreshInterval(50*time.Millisecond))
	require.NoError(t, m.Refresh(context.Background()))
	loaded := m.Loaded()
	require.False(t, loaded.IsZero())

	time.Sleep(120 * time.Millisecond)
	assert.Equal(t, "Braton Prime", m.DisplayName("/Lotus/Weapons/Braton"))

	require.Error(t, m.Refresh(context.Background()))
	assert.Equal(t, "Braton Prime", m.DisplayName("/Lotus/Weapons/Braton"))
	assert.Equal(t, loaded, m.Loaded())
}

func TestManifestWatchReplacesNames(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch calls.Add(1) {
		case 1:
			_, _ = w.Write([]byte(`{"ExportWeapons": [{"uniqueName": "/Lotus/Weapons/Braton", "name": "BRATON"}]}`))
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = w.Write([]byte(`{"ExportWeapons": [{"uniqueName": "/Lotus/Weapons/Braton", "name": "Braton Vandal"}]}`))
		}
	}))
	defer srv.Close()

	m := names.NewManifest(srv.URL, names.NewCatalog(),
		names.WithRefreshInterval(20*time.Millisecond),
		names.WithLogger(logging.NewNopLogger()))
	require.NoError(t, m.Refresh(context.Background()))
	assert.Equal(t, "Braton", m.DisplayName("/Lotus/Weapons/Braton"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Watch(ctx)

	require.Eventually(t, func() bool {
		return m.DisplayName("/Lotus/Weapons/Braton") == "Braton Vandal"
	}, 2*time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, calls.Load(), int32(3))
}
