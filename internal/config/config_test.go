package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/notify"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "worldfeed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(WithEnvFiles())
	require.NoError(t, err)

	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "output", cfg.OutputDir)
	assert.Equal(t, constants.DefaultShortInterval, cfg.Cadence.Interval)
	assert.Equal(t, constants.DefaultLongEvery, cfg.Cadence.LongEvery)
	assert.Equal(t, constants.DefaultFetchTimeout, cfg.Cadence.FetchTimeout)
	assert.Equal(t, constants.RetentionCeiling, cfg.Retention.Ceiling)
	assert.Equal(t, constants.RetentionBatch, cfg.Retention.Batch)
	assert.Equal(t, notify.DefaultGCMEndpoint, cfg.Push.Endpoint)
	assert.Empty(t, cfg.File)

	require.Len(t, cfg.Feeds, 4)
	assert.Equal(t, []worldstate.Region{worldstate.RegionPC}, cfg.Regions())
	assert.Equal(t, DefaultFeeds[worldstate.RegionXbox], cfg.FeedURL(worldstate.RegionXbox))
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
data_dir: /var/lib/worldfeed
output_dir: /srv/www
cadence:
  interval: 30s
  long_every: 10
feeds:
  pc:
    url: http://feeds.example.com/pc
    enabled: true
  ps4:
    url: http://feeds.example.com/ps4
    enabled: true
  china:
    url: http://feeds.example.com/china
    enabled: false
routes:
  pc:
    push: true
    invasion_progress: pc-invasions
    alerts: pc-alerts
  ps4:
    push: true
`)

	cfg, err := Load(WithFile(path), WithEnvFiles())
	require.NoError(t, err)

	assert.Equal(t, path, cfg.File)
	assert.Equal(t, "/var/lib/worldfeed", cfg.DataDir)
	assert.Equal(t, 30*time.Second, cfg.Cadence.Interval)
	assert.Equal(t, 10, cfg.Cadence.LongEvery)
	assert.Equal(t, []worldstate.Region{worldstate.RegionPC, worldstate.RegionPS4}, cfg.Regions())
	assert.Equal(t, []string{"china", "pc", "ps4"}, cfg.FeedNames())

	pc := cfg.Route(worldstate.RegionPC)
	assert.True(t, pc.Push)
	assert.Equal(t, "pc-invasions", pc.InvasionProgress)
	assert.Equal(t, "pc-alerts", pc.Alerts)
	assert.Empty(t, pc.InvasionNew)

	routes := cfg.RouteMap()
	assert.Len(t, routes, 2)
	assert.True(t, routes[worldstate.RegionPS4].Push)
	assert.False(t, cfg.Route(worldstate.RegionXbox).Push)
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	path := writeConfig(t, "data_dir: from-file\n")
	t.Setenv("WORLDFEED_DATA_DIR", "from-env")
	t.Setenv("WORLDFEED_CADENCE_LONG_EVERY", "5")

	cfg, err := Load(WithFile(path), WithEnvFiles())
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.DataDir)
	assert.Equal(t, 5, cfg.Cadence.LongEvery)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("WORLDFEED_PUSH_KEY=secret-from-dotenv\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("WORLDFEED_PUSH_KEY") })

	cfg, err := Load(WithFile(writeConfig(t, "output_dir: out\n")), WithEnvFiles(envFile))
	require.NoError(t, err)
	assert.Equal(t, "secret-from-dotenv", cfg.Push.Key)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "unknown region",
			body: "feeds:\n  switch:\n    url: http://feeds.example.com/switch\n    enabled: true\n",
		},
		{
			name: "feed without url",
			body: "feeds:\n  pc:\n    enabled: true\n",
		},
		{
			name: "batch above ceiling",
			body: "retention:\n  ceiling: 10\n  batch: 20\n",
		},
		{
			name: "zero interval",
			body: "cadence:\n  interval: 0s\n",
		},
		{
			name: "bad webhook",
			body: "webhook:\n  url: not a url\n",
		},
		{
			name: "unknown route region",
			body: "routes:\n  mars:\n    push: true\n",
		},
		{
			name: "bad log level",
			body: "log:\n  level: loud\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(WithFile(writeConfig(t, tt.body)), WithEnvFiles())
			require.Error(t, err)
			var cfgErr *errors.ConfigError
			assert.ErrorAs(t, err, &cfgErr)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(WithFile(filepath.Join(t.TempDir(), "absent.yaml")), WithEnvFiles())
	require.Error(t, err)
}

func TestReloadPicksUpChanges(t *testing.T) {
	path := writeConfig(t, "cadence:\n  long_every: 60\n")
	loader := NewLoader(WithFile(path), WithEnvFiles())

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.Cadence.LongEvery)

	require.NoError(t, os.WriteFile(path, []byte("cadence:\n  long_every: 15\n"), 0o644))
	cfg, err = loader.Reload()
	require.NoError(t, err)
	assert.Equal(t, 15, cfg.Cadence.LongEvery)

	require.NoError(t, os.WriteFile(path, []byte("cadence:\n  long_every: -1\n"), 0o644))
	_, err = loader.Reload()
	assert.Error(t, err)
}

func TestReloadSearchedFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "worldfeed.yaml"), []byte("output_dir: first\n"), 0o644))

	loader := NewLoader(WithEnvFiles())
	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "first", cfg.OutputDir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "worldfeed.yaml"), []byte("output_dir: second\n"), 0o644))
	cfg, err = loader.Reload()
	require.NoError(t, err)
	assert.Equal(t, "second", cfg.OutputDir)
}
