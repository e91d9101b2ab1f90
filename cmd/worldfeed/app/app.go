// Package app provides the application container of the worldfeed CLI. It
// owns the configuration, the logger and the lazily built polling engine
// shared by every command.
package app

import (
	"context"
	stderrors "errors"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/agentstation/worldfeed"
	"github.com/agentstation/worldfeed/internal/config"
	"github.com/agentstation/worldfeed/internal/fetch"
	"github.com/agentstation/worldfeed/internal/registry"
	"github.com/agentstation/worldfeed/internal/server/events"
	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/logging"
	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/notify"
	"github.com/agentstation/worldfeed/pkg/store"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// App represents the worldfeed application with all its dependencies.
type App struct {
	version string
	commit  string
	date    string
	builtBy string

	flags  *Flags
	loader *config.Loader
	config *config.Config
	logger *zerolog.Logger

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	// fetcher overrides the HTTP feed client.
	fetcher worldfeed.Fetcher

	mu         sync.Mutex
	broker     *events.Broker
	catalog    *names.Catalog
	manifest   *names.Manifest
	registry   *registry.Store
	dispatcher *notify.Dispatcher
	ctrl       *worldfeed.Controller
	svc        *worldfeed.Service
}

// Option configures an App.
type Option func(*App) error

// WithConfig uses cfg instead of loading the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(a *App) error {
		a.config = cfg
		return nil
	}
}

// WithFetcher replaces the HTTP feed client.
func WithFetcher(f worldfeed.Fetcher) Option {
	return func(a *App) error {
		a.fetcher = f
		return nil
	}
}

// WithIO replaces the standard streams.
func WithIO(in io.Reader, out, errOut io.Writer) Option {
	return func(a *App) error {
		a.stdin, a.stdout, a.stderr = in, out, errOut
		return nil
	}
}

// New creates a new App with the given version information. The
// configuration is read once the command line has been parsed.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	a := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		flags:   &Flags{},
		logger:  logging.Default(),
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// configure loads the configuration, unless one was injected, and
// rebuilds the logger from it.
func (a *App) configure() error {
	if a.config == nil {
		var opts []config.Option
		if a.flags.ConfigFile != "" {
			opts = append(opts, config.WithFile(a.flags.ConfigFile))
		}
		a.loader = config.NewLoader(opts...)
		cfg, err := a.loader.Load()
		if err != nil {
			return err
		}
		a.config = cfg
	}

	logger := NewLogger(a.flags, a.config.Log, a.stderr)
	logging.SetDefault(logger)
	a.logger = &logger
	if a.config.File != "" {
		a.logger.Debug().Str("file", a.config.File).Msg("Configuration loaded")
	}
	return nil
}

// Controller returns the polling engine, creating it on first use.
func (a *App) Controller(ctx context.Context) (*worldfeed.Controller, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.ctrl != nil {
		return a.ctrl, nil
	}

	cfg := a.config
	if err := os.MkdirAll(cfg.DataDir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", cfg.DataDir, err)
	}

	resolver, err := a.resolver(ctx)
	if err != nil {
		return nil, err
	}
	reg, err := a.openRegistry()
	if err != nil {
		return nil, err
	}

	a.broker = events.NewBroker(a.logger)
	a.dispatcher = notify.NewDispatcher(a.dispatcherOptions(reg)...)

	fetcher := a.fetcher
	if fetcher == nil {
		fetcher = fetch.New(
			fetch.WithTimeout(cfg.Cadence.FetchTimeout),
			fetch.WithUserAgent("worldfeed/"+a.version),
		)
	}

	ctrl, err := worldfeed.New(cfg.DataDir,
		worldfeed.WithFeeds(feedURLs(cfg)),
		worldfeed.WithFetcher(fetcher),
		worldfeed.WithResolver(resolver),
		worldfeed.WithDispatcher(a.dispatcher),
		worldfeed.WithPublisher(a.broker),
		worldfeed.WithOutputDir(cfg.OutputDir),
		worldfeed.WithRetention(cfg.Retention.Ceiling, cfg.Retention.Batch),
		worldfeed.WithLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	a.ctrl = ctrl
	return ctrl, nil
}

// Service returns the scheduler, creating it on first use.
func (a *App) Service(ctx context.Context) (*worldfeed.Service, error) {
	ctrl, err := a.Controller(ctx)
	if err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.svc != nil {
		return a.svc, nil
	}
	svc, err := worldfeed.NewService(ctrl, cadence(a.config))
	if err != nil {
		return nil, err
	}
	a.svc = svc
	return svc, nil
}

// Broker returns the event broker shared by the engine and the HTTP server.
func (a *App) Broker() *events.Broker {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.broker
}

// Registry returns the device registry, opening it on first use.
func (a *App) Registry() (*registry.Store, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.MkdirAll(a.config.DataDir, constants.DirPermissions); err != nil {
		return nil, errors.WrapIO("create", a.config.DataDir, err)
	}
	return a.openRegistry()
}

func (a *App) openRegistry() (*registry.Store, error) {
	if a.registry != nil {
		return a.registry, nil
	}
	reg, err := registry.Open(filepath.Join(a.config.DataDir, constants.RegistryFile))
	if err != nil {
		return nil, err
	}
	a.registry = reg
	return reg, nil
}

// resolver builds the name resolver: the catalog file, fronted by the
// remote manifest when one is configured. A manifest that cannot be
// downloaded leaves the catalog in charge.
func (a *App) resolver(ctx context.Context) (names.Resolver, error) {
	catalog, err := names.LoadCatalog(a.config.CatalogPath)
	if err != nil {
		return nil, err
	}
	a.catalog = catalog
	if a.config.ManifestURL == "" {
		return catalog, nil
	}

	a.manifest = names.NewManifest(a.config.ManifestURL, catalog,
		names.WithRefreshInterval(a.config.ManifestRefresh),
		names.WithLogger(a.logger))
	refreshCtx, cancel := context.WithTimeout(ctx, constants.DefaultHTTPTimeout)
	defer cancel()
	if err := a.manifest.Refresh(refreshCtx); err != nil {
		a.logger.Warn().Err(err).Str("url", a.config.ManifestURL).Msg("Name manifest unavailable, using catalog only")
	}
	return a.manifest, nil
}

func (a *App) dispatcherOptions(reg *registry.Store) []notify.Option {
	cfg := a.config
	opts := []notify.Option{
		notify.WithRegistry(reg),
		notify.WithRoutes(cfg.RouteMap()),
		notify.WithPublisher(a.broker),
		notify.WithLogger(a.logger),
	}
	if cfg.Push.Key != "" {
		opts = append(opts, notify.WithPusher(notify.NewGCMPusher(cfg.Push.Key, notify.WithGCMEndpoint(cfg.Push.Endpoint))))
	}
	if cfg.Webhook.URL != "" {
		opts = append(opts, notify.WithPoster(notify.NewWebhookPoster(cfg.Webhook.URL, nil, notify.WithBearerToken(cfg.Webhook.Token))))
	}
	return opts
}

// Tick returns the tick counter of the running scheduler, or the persisted
// counter when nothing is polling.
func (a *App) Tick() int {
	a.mu.Lock()
	svc, dataDir := a.svc, a.config.DataDir
	a.mu.Unlock()
	if svc != nil {
		return svc.Tick()
	}
	tick, err := store.ReadTick(dataDir)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Could not read tick counter")
	}
	return tick
}

// SetTick replaces the tick counter.
func (a *App) SetTick(tick int) error {
	if tick < 0 {
		return errors.NewValidationError("tick", tick, "tick must not be negative")
	}
	a.mu.Lock()
	svc, dataDir := a.svc, a.config.DataDir
	a.mu.Unlock()
	if svc != nil {
		return svc.SetTick(tick)
	}
	return store.WriteTick(dataDir, tick)
}

// Reload re-reads the configuration and the name catalog. Feeds, routes
// and the cadence are swapped in place; running cycles are not touched.
// The previous configuration stays active when the new one is invalid.
func (a *App) Reload(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.loader == nil {
		return errors.NewConfigError("config", "configuration was not loaded from a file", nil)
	}
	cfg, err := a.loader.Reload()
	if err != nil {
		a.logger.Error().Err(err).Msg("Reload failed, keeping previous configuration")
		return err
	}
	a.config = cfg

	if a.ctrl != nil {
		a.ctrl.SetFeeds(feedURLs(cfg))
	}
	if a.dispatcher != nil {
		a.dispatcher.SetRoutes(cfg.RouteMap())
	}
	if a.svc != nil {
		if err := a.svc.Reload(cadence(cfg)); err != nil {
			return err
		}
	}
	if err := a.reloadNames(ctx); err != nil {
		return err
	}
	a.logger.Info().
		Int("regions", len(cfg.Regions())).
		Str("file", cfg.File).
		Msg("Configuration reloaded")
	return nil
}

// Manifest returns the remote name manifest, or nil when none is configured
// or the controller was not built yet.
func (a *App) Manifest() *names.Manifest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.manifest
}

// ReloadNames re-reads the name catalog and refreshes the manifest.
func (a *App) ReloadNames(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reloadNames(ctx)
}

func (a *App) reloadNames(ctx context.Context) error {
	if a.catalog != nil {
		if err := a.catalog.Reload(); err != nil {
			return err
		}
	}
	if a.manifest != nil {
		refreshCtx, cancel := context.WithTimeout(ctx, constants.DefaultHTTPTimeout)
		defer cancel()
		if err := a.manifest.Refresh(refreshCtx); err != nil {
			a.logger.Warn().Err(err).Msg("Name manifest refresh failed")
		}
	}
	return nil
}

// Shutdown stops the scheduler, if running, and closes the registry.
func (a *App) Shutdown(ctx context.Context) error {
	a.mu.Lock()
	svc, reg := a.svc, a.registry
	a.registry = nil
	a.mu.Unlock()

	var errs []error
	if svc != nil {
		if err := svc.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if reg != nil {
		if err := reg.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// feedURLs returns the URLs of the enabled regions.
func feedURLs(cfg *config.Config) map[worldstate.Region]string {
	out := make(map[worldstate.Region]string)
	for _, region := range cfg.Regions() {
		out[region] = cfg.FeedURL(region)
	}
	return out
}

func cadence(cfg *config.Config) worldfeed.Cadence {
	return worldfeed.Cadence{Interval: cfg.Cadence.Interval, LongEvery: cfg.Cadence.LongEvery}
}
