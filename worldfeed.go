// Package worldfeed runs the polling cycles of the world state feeds.
//
// A Controller owns one store per region and turns a fetched feed into
// updated records, rendered artifacts and notifications. A Service drives
// the Controller on a cadence.
package worldfeed

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/agentstation/worldfeed/internal/server/events"
	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/logging"
	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/normalize"
	"github.com/agentstation/worldfeed/pkg/notify"
	"github.com/agentstation/worldfeed/pkg/reconcile"
	"github.com/agentstation/worldfeed/pkg/render"
	"github.com/agentstation/worldfeed/pkg/store"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Fetcher downloads the raw feed of a region.
type Fetcher interface {
	Fetch(ctx context.Context, region worldstate.Region, url string) ([]byte, error)
}

// Dispatcher announces a cycle.
type Dispatcher interface {
	Dispatch(ctx context.Context, region worldstate.Region, decision notify.Decision, payload notify.Payload) *notify.Report
}

// RunOptions selects what one cycle does.
type RunOptions struct {
	Region worldstate.Region
	// LongTick advances invasion progress marks and enables progress posts.
	LongTick bool
}

// CycleReport describes one cycle of one region.
type CycleReport struct {
	ID         string            `json:"id"`
	Region     worldstate.Region `json:"region"`
	LongTick   bool              `json:"long_tick"`
	FeedTime   int64             `json:"feed_time"`
	BuildLabel string            `json:"build_label,omitempty"`
	Started    time.Time         `json:"started"`
	Finished   time.Time         `json:"finished"`

	// Stale is set when the feed did not advance and the cycle was skipped.
	Stale bool `json:"stale"`

	Summary  map[worldstate.Category]worldstate.ChangesetSummary `json:"summary,omitempty"`
	Written  []string                                            `json:"written,omitempty"`
	Version  *worldstate.VersionRecord                           `json:"version,omitempty"`
	Decision *notify.Decision                                    `json:"decision,omitempty"`
	Dispatch *notify.Report                                      `json:"dispatch,omitempty"`

	// Errors holds the contained failures of the cycle by stage or category.
	Errors map[string]string `json:"errors,omitempty"`
}

func (r *CycleReport) fail(scope string, err error) {
	if r.Errors == nil {
		r.Errors = make(map[string]string)
	}
	if prev, ok := r.Errors[scope]; ok {
		r.Errors[scope] = prev + "; " + err.Error()
		return
	}
	r.Errors[scope] = err.Error()
}

// Duration returns how long the cycle ran.
func (r *CycleReport) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// regionState serializes the cycles of one region.
type regionState struct {
	mu      sync.Mutex
	running atomic.Bool
	store   *store.Regional
}

// Controller runs cycles. Regions never share state: each owns its store,
// checkpoint and output directory.
type Controller struct {
	*hooks

	dataDir   string
	outputDir string
	ceiling   int
	batch     int

	fetcher    Fetcher
	resolver   names.Resolver
	dispatcher Dispatcher
	publisher  notify.Publisher
	renderer   *render.Renderer
	writer     *render.Writer
	composer   *notify.Composer
	logger     *zerolog.Logger
	now        func() time.Time

	mu      sync.RWMutex
	feeds   map[worldstate.Region]string
	regions map[worldstate.Region]*regionState
}

// New creates a Controller storing region data under dataDir.
func New(dataDir string, opts ...Option) (*Controller, error) {
	if dataDir == "" {
		return nil, errors.NewValidationError("dataDir", dataDir, "data directory is required")
	}
	c := &Controller{
		hooks:     newHooks(),
		dataDir:   dataDir,
		outputDir: dataDir,
		ceiling:   constants.RetentionCeiling,
		batch:     constants.RetentionBatch,
		logger:    logging.Default(),
		now:       time.Now,
		feeds:     map[worldstate.Region]string{},
		regions:   map[worldstate.Region]*regionState{},
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("applying options: %w", err)
		}
	}
	if c.fetcher == nil {
		return nil, errors.NewValidationError("fetcher", nil, "a feed fetcher is required")
	}
	if c.resolver == nil {
		c.resolver = names.NewCatalog()
	}
	if c.dispatcher == nil {
		c.dispatcher = notify.NewDispatcher(notify.WithLogger(c.logger), notify.WithPublisher(c.publisher))
	}
	c.renderer = render.New(c.resolver)
	c.writer = render.NewWriter(c.outputDir)
	c.composer = notify.NewComposer(c.resolver)
	return c, nil
}

// DataDir returns the directory holding region stores and process files.
func (c *Controller) DataDir() string { return c.dataDir }

// Writer returns the artifact writer.
func (c *Controller) Writer() *render.Writer { return c.writer }

// SetFeeds swaps the feed URLs. A region without a URL is no longer polled;
// its store stays open.
func (c *Controller) SetFeeds(feeds map[worldstate.Region]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.feeds = copyFeeds(feeds)
}

// Regions returns the regions that have a feed, in canonical order.
func (c *Controller) Regions() []worldstate.Region {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []worldstate.Region
	for _, r := range worldstate.Regions() {
		if c.feeds[r] != "" {
			out = append(out, r)
		}
	}
	return out
}

func (c *Controller) feedURL(region worldstate.Region) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.feeds[region]
}

// state returns the region state, opening its store on first use.
func (c *Controller) state(region worldstate.Region) (*regionState, error) {
	c.mu.RLock()
	rs, ok := c.regions[region]
	c.mu.RUnlock()
	if ok {
		return rs, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if rs, ok := c.regions[region]; ok {
		return rs, nil
	}
	st, err := store.Open(c.dataDir, region, store.WithRetention(c.ceiling, c.batch))
	if err != nil {
		return nil, err
	}
	rs = &regionState{store: st}
	c.regions[region] = rs
	return rs, nil
}

// Store returns the store of a region.
func (c *Controller) Store(region worldstate.Region) (*store.Regional, error) {
	rs, err := c.state(region)
	if err != nil {
		return nil, err
	}
	return rs.store, nil
}

// Artifact returns a rendered artifact of a region as last written.
func (c *Controller) Artifact(region worldstate.Region, name string) ([]byte, error) {
	return c.writer.Read(region, name)
}

// Versions returns the build label history of a region, newest first.
func (c *Controller) Versions(region worldstate.Region) ([]worldstate.VersionRecord, error) {
	st, err := c.Store(region)
	if err != nil {
		return nil, err
	}
	return st.Versions()
}

// Running reports whether a cycle of the region is in progress.
func (c *Controller) Running(region worldstate.Region) bool {
	c.mu.RLock()
	rs, ok := c.regions[region]
	c.mu.RUnlock()
	return ok && rs.running.Load()
}

// RunOnce runs one cycle: fetch, normalize, stale check, reconcile, apply
// with retention and persistence, render, dispatch and checkpoint.
//
// A second call for a region whose cycle is still running returns
// ErrCycleInProgress without waiting. A stale feed is a clean skip: the
// report has Stale set and nothing was written.
func (c *Controller) RunOnce(ctx context.Context, opts RunOptions) (*CycleReport, error) {
	region := opts.Region
	url := c.feedURL(region)
	if url == "" {
		return nil, errors.NewNotFoundError("feed", region.String())
	}
	rs, err := c.state(region)
	if err != nil {
		return nil, err
	}
	if !rs.mu.TryLock() {
		return nil, fmt.Errorf("%s: %w", region, errors.ErrCycleInProgress)
	}
	defer rs.mu.Unlock()
	rs.running.Store(true)
	defer rs.running.Store(false)

	report := &CycleReport{
		ID:       uuid.NewString(),
		Region:   region,
		LongTick: opts.LongTick,
		Started:  c.now(),
	}
	logger := c.logger.With().
		Str("region", region.String()).
		Str("cycle", report.ID).
		Bool("long_tick", opts.LongTick).
		Logger()
	ctx = logging.WithLogger(ctx, &logger)

	err = c.cycle(ctx, rs.store, url, report)
	report.Finished = c.now()
	switch {
	case err != nil:
		logger.Error().Err(err).Dur("took", report.Duration()).Msg("Cycle failed")
		c.publish(events.CycleFailed, map[string]any{"region": region, "cycle": report.ID, "error": err.Error()})
		return report, err
	case report.Stale:
		c.publish(events.CycleSkipped, map[string]any{"region": region, "cycle": report.ID, "feed_time": report.FeedTime})
		return report, nil
	}

	logger.Info().
		Int64("feed_time", report.FeedTime).
		Int("written", len(report.Written)).
		Int("errors", len(report.Errors)).
		Dur("took", report.Duration()).
		Msg("Cycle finished")
	c.hooks.trigger(report)
	return report, nil
}

func (c *Controller) cycle(ctx context.Context, st *store.Regional, url string, report *CycleReport) error {
	logger := logging.FromContext(ctx)
	region := report.Region

	raw, err := c.fetcher.Fetch(ctx, region, url)
	if err != nil {
		return err
	}
	snap, err := normalize.Normalize(region, raw)
	if err != nil {
		return err
	}
	report.FeedTime = snap.Time
	report.BuildLabel = snap.BuildLabel

	cp, err := st.LoadCheckpoint()
	if err != nil {
		return err
	}
	if cp.IsStale(snap.Time) {
		report.Stale = true
		logger.Info().
			Int64("feed_time", snap.Time).
			Int64("last_feed_time", cp.LastFeedTime).
			Err(errors.ErrStaleFeed).
			Msg("Feed did not advance, skipping cycle")
		return nil
	}

	now := c.now()
	res := reconcile.All(reconcile.Input{
		Snapshot:      snap,
		View:          st.View(),
		Resolver:      c.resolver,
		PreviousBuild: cp.BuildLabel,
		LongTick:      report.LongTick,
		Now:           now,
	})
	for category, cerr := range res.Errors {
		logger.Error().Err(cerr).Str("category", category.String()).Msg("Category reconciliation failed")
		report.fail(category.String(), cerr)
	}
	report.Summary = res.Summaries()

	// Nothing has touched the store yet; an abandoned cycle stops here.
	if err := ctx.Err(); err != nil {
		return err
	}

	for category, aerr := range res.Apply(st) {
		logger.Error().Err(aerr).Str("category", category.String()).Msg("Apply failed")
		report.fail(category.String(), aerr)
	}
	for category, merr := range st.Maintain(res.Succeeded()) {
		logger.Error().Err(merr).Str("category", category.String()).Msg("Persist failed")
		report.fail(category.String(), merr)
	}
	if perr := c.logProgress(st, snap, now); perr != nil {
		logger.Error().Err(perr).Msg("Writing progress logs failed")
		report.fail("progress", perr)
	}

	out, err := c.renderer.Render(render.Input{
		Snapshot: snap,
		View:     st.View(),
		Progress: res.Progress(),
		Now:      now,
	})
	if err != nil {
		logger.Error().Err(err).Msg("Render failed")
		report.fail("render", err)
		out = &render.Output{}
	} else {
		written, werr := c.writer.Write(region, out.Artifacts)
		report.Written = written
		if werr != nil {
			logger.Error().Err(werr).Msg("Writing artifacts failed")
			report.fail("render", werr)
		}
	}

	decision := notify.Decide(res)
	decision.Posts = c.composer.Compose(res, report.LongTick, now)
	report.Decision = &decision
	report.Dispatch = c.dispatcher.Dispatch(ctx, region, decision, notify.Payload{
		AlertsGCM:      out.AlertsGCM,
		InvasionsGCM:   out.InvasionsGCM,
		EarliestExpiry: out.EarliestExpiry,
	})

	if res.Version != nil {
		report.Version = res.Version
		logger.Info().Str("build", res.Version.BuildLabel).Msg("Build label changed")
		if verr := st.AppendVersion(*res.Version); verr != nil {
			logger.Error().Err(verr).Msg("Recording version failed")
			report.fail("versions", verr)
		}
	}

	next := store.Checkpoint{LastFeedTime: snap.Time, BuildLabel: cp.BuildLabel, UpdatedAt: now.UTC()}
	if snap.BuildLabel != "" {
		next.BuildLabel = snap.BuildLabel
	}
	if err := st.SaveCheckpoint(next); err != nil {
		return err
	}
	return nil
}

// logProgress appends this cycle's samples to the invasion, scan target and
// conflict progress logs.
func (c *Controller) logProgress(st *store.Regional, snap *worldstate.Snapshot, now time.Time) error {
	planet := func(node string) string {
		name, _ := c.resolver.Region(node)
		return name
	}
	var enemy string
	if lib := snap.LibraryInfo; lib != nil && lib.CurrentTarget != nil {
		enemy = c.resolver.DisplayName(lib.CurrentTarget.EnemyType)
	}
	return stderrors.Join(
		st.AppendInvasionProgress(snap.Time, snap.Invasions, planet),
		st.AppendTargetProgress(snap.Time, now.Unix(), snap.LibraryInfo, enemy),
		st.AppendConflictProgress(snap.Time, now.Unix(), snap.BadlandNodes),
	)
}

func (c *Controller) publish(t events.EventType, data any) {
	if c.publisher != nil {
		c.publisher.Publish(t, data)
	}
}

// RunAll runs one cycle for every region with a feed, concurrently. Every
// region whose cycle started gets a report, including one whose fetch or
// later stage failed. A region that was already running or whose store could
// not be opened has no report. The error joins the failures of all regions.
func (c *Controller) RunAll(ctx context.Context, longTick bool) (map[worldstate.Region]*CycleReport, error) {
	var (
		mu      sync.Mutex
		reports = make(map[worldstate.Region]*CycleReport)
		errs    []error
		wg      conc.WaitGroup
	)
	for _, region := range c.Regions() {
		wg.Go(func() {
			report, err := c.RunOnce(ctx, RunOptions{Region: region, LongTick: longTick})
			mu.Lock()
			defer mu.Unlock()
			if report != nil {
				reports[region] = report
			}
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", region, err))
			}
		})
	}
	wg.Wait()

	sort.Slice(errs, func(i, j int) bool { return errs[i].Error() < errs[j].Error() })
	return reports, stderrors.Join(errs...)
}

// RegionStatus is the persisted state of a region.
type RegionStatus struct {
	Region     worldstate.Region           `json:"region"`
	Feed       string                      `json:"feed,omitempty"`
	Checkpoint store.Checkpoint            `json:"checkpoint"`
	Counts     map[worldstate.Category]int `json:"counts"`
	Running    bool                        `json:"running"`
}

// Status reports every region that has a feed.
func (c *Controller) Status() ([]RegionStatus, error) {
	var out []RegionStatus
	for _, region := range c.Regions() {
		st, err := c.Store(region)
		if err != nil {
			return nil, err
		}
		cp, err := st.LoadCheckpoint()
		if err != nil {
			return nil, err
		}
		out = append(out, RegionStatus{
			Region:     region,
			Feed:       c.feedURL(region),
			Checkpoint: cp,
			Counts:     st.Counts(),
			Running:    c.Running(region),
		})
	}
	return out, nil
}
