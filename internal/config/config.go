// Package config loads the worldfeed configuration from defaults, a
// worldfeed.yaml file, .env files and WORLDFEED_ environment variables.
package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/notify"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// EnvPrefix prefixes every environment override, e.g. WORLDFEED_DATA_DIR.
const EnvPrefix = "WORLDFEED"

// FileName is the base name of the configuration file searched for.
const FileName = "worldfeed"

// Config is the complete worldfeed configuration.
type Config struct {
	DataDir     string `mapstructure:"data_dir" validate:"required"`
	OutputDir   string `mapstructure:"output_dir" validate:"required"`
	CatalogPath string `mapstructure:"catalog_path"`
	ManifestURL string `mapstructure:"manifest_url" validate:"omitempty,url"`

	// ManifestRefresh is how often a running process re-downloads the
	// manifest. Zero disables it.
	ManifestRefresh time.Duration `mapstructure:"manifest_refresh" validate:"gte=0"`

	// Feeds maps a region name to its feed.
	Feeds map[string]Feed `mapstructure:"feeds" validate:"required,min=1,dive,keys,oneof=pc ps4 xbox china,endkeys"`
	// Routes maps a region name to its notification delivery settings.
	Routes map[string]notify.Route `mapstructure:"routes" validate:"dive,keys,oneof=pc ps4 xbox china,endkeys"`

	Cadence   Cadence   `mapstructure:"cadence"`
	Retention Retention `mapstructure:"retention"`
	Push      Push      `mapstructure:"push"`
	Webhook   Webhook   `mapstructure:"webhook"`
	Server    Server    `mapstructure:"server"`
	Log       Log       `mapstructure:"log"`

	// File is the configuration file that was read, if any.
	File string `mapstructure:"-"`
}

// Feed is the source of one region.
type Feed struct {
	URL     string `mapstructure:"url" validate:"required,url"`
	Enabled bool   `mapstructure:"enabled"`
}

// Cadence drives the scheduler.
type Cadence struct {
	Interval     time.Duration `mapstructure:"interval" validate:"gt=0"`
	LongEvery    int           `mapstructure:"long_every" validate:"gt=0"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
}

// Retention bounds the active entities of a category.
type Retention struct {
	Ceiling int `mapstructure:"ceiling" validate:"gt=0"`
	Batch   int `mapstructure:"batch" validate:"gt=0,ltefield=Ceiling"`
}

// Push configures device notifications.
type Push struct {
	Key      string `mapstructure:"key"`
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url"`
}

// Webhook configures social posts.
type Webhook struct {
	URL   string `mapstructure:"url" validate:"omitempty,url"`
	Token string `mapstructure:"token"`
}

// Server configures the HTTP surface.
type Server struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port" validate:"gte=0,lte=65535"`
	PathPrefix  string        `mapstructure:"path_prefix"`
	AdminKey    string        `mapstructure:"admin_key"`
	CORSOrigins []string      `mapstructure:"cors_origins" validate:"dive,required"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl"`
	RateLimit   int           `mapstructure:"rate_limit" validate:"gte=0"`
}

// Log configures the process logger.
type Log struct {
	Level  string `mapstructure:"level" validate:"omitempty,oneof=trace debug info warn warning error fatal panic disabled"`
	Format string `mapstructure:"format" validate:"omitempty,oneof=json console auto"`
	Output string `mapstructure:"output"`
}

// DefaultFeeds are the public world state endpoints.
var DefaultFeeds = map[worldstate.Region]string{
	worldstate.RegionPC:    "http://content.warframe.com/dynamic/worldState.php",
	worldstate.RegionPS4:   "http://content.ps4.warframe.com/dynamic/worldState.php",
	worldstate.RegionXbox:  "http://content.xb1.warframe.com/dynamic/worldState.php",
	worldstate.RegionChina: "http://content.zhb.warframe.com/dynamic/worldState.php",
}

// Loader reads the configuration. A Loader remembers its sources so that
// Reload re-reads the same file.
type Loader struct {
	v        *viper.Viper
	file     string
	envFiles []string
	validate *validator.Validate
}

// Option configures a Loader.
type Option func(*Loader)

// WithFile reads the configuration from path instead of searching for it.
func WithFile(path string) Option {
	return func(l *Loader) {
		l.file = path
	}
}

// WithEnvFiles replaces the .env files loaded before the environment is read.
func WithEnvFiles(files ...string) Option {
	return func(l *Loader) {
		l.envFiles = files
	}
}

// NewLoader creates a loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		envFiles: []string{".env", ".env.local"},
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the configuration from all sources in order of precedence:
// environment variables, .env files, the config file, then defaults.
func Load(opts ...Option) (*Config, error) {
	return NewLoader(opts...).Load()
}

// Load reads and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	loadEnvFiles(l.envFiles)

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if l.file != "" {
		v.SetConfigFile(l.file)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", FileName))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !stderrors.As(err, &notFound) {
			return nil, errors.NewConfigError("config", "failed to read config file", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.NewConfigError("config", "failed to decode config", err)
	}
	cfg.File = v.ConfigFileUsed()
	if len(cfg.Feeds) == 0 {
		cfg.Feeds = defaultFeeds()
	}
	if err := l.validate.Struct(&cfg); err != nil {
		return nil, errors.NewConfigError("config", "invalid configuration", err)
	}

	l.v = v
	return &cfg, nil
}

// Reload re-reads the same sources. The previous configuration stays in use
// by the caller when Reload fails.
func (l *Loader) Reload() (*Config, error) {
	if l.v != nil && l.file == "" {
		l.file = l.v.ConfigFileUsed()
	}
	return l.Load()
}

// Regions returns the enabled regions in canonical order.
func (c *Config) Regions() []worldstate.Region {
	var out []worldstate.Region
	for _, r := range worldstate.Regions() {
		if f, ok := c.Feeds[r.String()]; ok && f.Enabled {
			out = append(out, r)
		}
	}
	return out
}

// Route returns the delivery settings of a region.
func (c *Config) Route(region worldstate.Region) notify.Route {
	return c.Routes[region.String()]
}

// RouteMap returns the routes keyed by region.
func (c *Config) RouteMap() map[worldstate.Region]notify.Route {
	out := make(map[worldstate.Region]notify.Route, len(c.Routes))
	for name, route := range c.Routes {
		r, err := worldstate.ParseRegion(name)
		if err != nil {
			continue
		}
		out[r] = route
	}
	return out
}

// FeedURL returns the feed of a region, empty when it is not configured.
func (c *Config) FeedURL(region worldstate.Region) string {
	return c.Feeds[region.String()].URL
}

// FeedNames returns the configured region names sorted.
func (c *Config) FeedNames() []string {
	names := make([]string, 0, len(c.Feeds))
	for name := range c.Feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("data_dir", "data")
	v.SetDefault("output_dir", "output")
	v.SetDefault("catalog_path", "")
	v.SetDefault("manifest_url", "")
	v.SetDefault("manifest_refresh", constants.ManifestRefreshInterval)

	v.SetDefault("cadence.interval", constants.DefaultShortInterval)
	v.SetDefault("cadence.long_every", constants.DefaultLongEvery)
	v.SetDefault("cadence.fetch_timeout", constants.DefaultFetchTimeout)

	v.SetDefault("retention.ceiling", constants.RetentionCeiling)
	v.SetDefault("retention.batch", constants.RetentionBatch)

	v.SetDefault("push.key", "")
	v.SetDefault("push.endpoint", notify.DefaultGCMEndpoint)
	v.SetDefault("webhook.url", "")
	v.SetDefault("webhook.token", "")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.path_prefix", "/api/v1")
	v.SetDefault("server.admin_key", "")
	v.SetDefault("server.cache_ttl", time.Minute)
	v.SetDefault("server.rate_limit", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "auto")
	v.SetDefault("log.output", "stderr")
}

func defaultFeeds() map[string]Feed {
	feeds := make(map[string]Feed, len(DefaultFeeds))
	for region, url := range DefaultFeeds {
		feeds[region.String()] = Feed{URL: url, Enabled: region == worldstate.RegionPC}
	}
	return feeds
}

// loadEnvFiles loads the files in order; later files do not override
// variables that are already set.
func loadEnvFiles(files []string) {
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}
