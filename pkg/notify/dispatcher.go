package notify

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"

	"github.com/agentstation/worldfeed/internal/server/events"
	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/logging"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Registry is the set of devices to push to.
type Registry interface {
	IDs(ctx context.Context) ([]string, error)
	Remove(ctx context.Context, ids ...string) (int, error)
	Replace(ctx context.Context, oldID, newID string) error
}

// Publisher receives live events.
type Publisher interface {
	Publish(eventType events.EventType, data any)
}

// Route holds the delivery settings of one region.
type Route struct {
	// Push enables device pushes.
	Push bool `mapstructure:"push" yaml:"push" json:"push"`
	// Channels receiving invasion progress, new invasions and alert posts.
	// An empty channel disables that post.
	InvasionProgress string `mapstructure:"invasion_progress" yaml:"invasion_progress" json:"invasion_progress,omitempty"`
	InvasionNew      string `mapstructure:"invasion_new" yaml:"invasion_new" json:"invasion_new,omitempty"`
	Alerts           string `mapstructure:"alerts" yaml:"alerts" json:"alerts,omitempty"`
}

// channels returns the channels a post kind is sent to. New invasions also
// appear on the progress channel.
func (r Route) channels(kind PostKind) []string {
	var out []string
	add := func(ch string) {
		if ch != "" {
			out = append(out, ch)
		}
	}
	switch kind {
	case PostInvasionNew:
		add(r.InvasionProgress)
		add(r.InvasionNew)
	case PostInvasionProgress, PostInvasionCompleted:
		add(r.InvasionProgress)
	case PostAlert, PostTacticalAlert:
		add(r.Alerts)
	}
	return out
}

// CollapseKey returns the push collapse key of a region.
func CollapseKey(region worldstate.Region) string {
	switch region {
	case worldstate.RegionPS4, worldstate.RegionXbox:
		return region.String()
	default:
		return "alerts"
	}
}

// PushData returns the push payload keys of a region.
func PushData(region worldstate.Region, p Payload) map[string]any {
	suffix := ""
	data := map[string]any{}
	if region == worldstate.RegionPS4 || region == worldstate.RegionXbox {
		suffix = "_" + region.String()
		data[region.String()] = "1"
	}
	data["alerts"+suffix] = p.AlertsGCM
	data["invasions"+suffix] = p.InvasionsGCM
	return data
}

// pushable reports whether a region has a push audience at all.
func pushable(region worldstate.Region) bool {
	return region != worldstate.RegionChina
}

// Report summarizes a dispatch.
type Report struct {
	Region   worldstate.Region `json:"region"`
	Notable  bool              `json:"notable"`
	Devices  int               `json:"devices"`
	Pages    int               `json:"pages"`
	Removed  int               `json:"removed"`
	Replaced int               `json:"replaced"`
	Posted   int               `json:"posted"`
	Errors   []string          `json:"errors,omitempty"`
}

func (r *Report) fail(err error) {
	r.Errors = append(r.Errors, err.Error())
}

// Dispatcher delivers the announcements of a cycle.
type Dispatcher struct {
	mu     sync.RWMutex
	routes map[worldstate.Region]Route

	registry  Registry
	pusher    Pusher
	poster    Poster
	publisher Publisher
	pageSize  int
	workers   int
	logger    *zerolog.Logger
	now       func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRegistry sets the device registry.
func WithRegistry(r Registry) Option { return func(d *Dispatcher) { d.registry = r } }

// WithPusher sets the push transport.
func WithPusher(p Pusher) Option { return func(d *Dispatcher) { d.pusher = p } }

// WithPoster sets the social post transport.
func WithPoster(p Poster) Option { return func(d *Dispatcher) { d.poster = p } }

// WithPublisher sets the live event sink.
func WithPublisher(p Publisher) Option { return func(d *Dispatcher) { d.publisher = p } }

// WithRoutes sets the per-region delivery settings.
func WithRoutes(routes map[worldstate.Region]Route) Option {
	return func(d *Dispatcher) { d.routes = copyRoutes(routes) }
}

// WithPageSize overrides the number of devices per push request.
func WithPageSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zerolog.Logger) Option { return func(d *Dispatcher) { d.logger = logger } }

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option { return func(d *Dispatcher) { d.now = now } }

// NewDispatcher creates a Dispatcher. Missing transports disable their
// channel.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		routes:   map[worldstate.Region]Route{},
		pageSize: constants.PushPageSize,
		workers:  4,
		logger:   logging.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetRoutes swaps the delivery settings, e.g. after a configuration reload.
func (d *Dispatcher) SetRoutes(routes map[worldstate.Region]Route) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.routes = copyRoutes(routes)
}

func (d *Dispatcher) route(region worldstate.Region) Route {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.routes[region]
}

func copyRoutes(routes map[worldstate.Region]Route) map[worldstate.Region]Route {
	out := make(map[worldstate.Region]Route, len(routes))
	for k, v := range routes {
		out[k] = v
	}
	return out
}

// Dispatch delivers a decision: live event, social posts and, for notable
// decisions, the device push followed by the wake signal.
func (d *Dispatcher) Dispatch(ctx context.Context, region worldstate.Region, decision Decision, payload Payload) *Report {
	logger := d.logger.With().Str("region", region.String()).Logger()
	report := &Report{Region: region, Notable: decision.Notable}
	route := d.route(region)

	if d.publisher != nil {
		d.publisher.Publish(events.RegionUpdated, decision)
		if decision.Version != nil {
			d.publisher.Publish(events.BuildChanged, map[string]any{
				"region":  region,
				"version": decision.Version,
			})
		}
	}

	d.post(ctx, &logger, route, decision.Posts, report)

	if decision.Notable {
		d.push(ctx, &logger, region, route, payload, report)
	}

	logger.Info().
		Bool("notable", report.Notable).
		Int("devices", report.Devices).
		Int("removed", report.Removed).
		Int("replaced", report.Replaced).
		Int("posted", report.Posted).
		Int("errors", len(report.Errors)).
		Msg("Dispatch finished")
	return report
}

func (d *Dispatcher) post(ctx context.Context, logger *zerolog.Logger, route Route, posts []Post, report *Report) {
	for _, p := range posts {
		for _, channel := range route.channels(p.Kind) {
			logger.Info().Str("channel", channel).Str("kind", string(p.Kind)).Str("text", p.Text).Msg("Posting status")
			if d.poster == nil {
				continue
			}
			if err := d.poster.Post(ctx, channel, p.Text); err != nil {
				logger.Warn().Err(err).Str("channel", channel).Msg("Post failed")
				report.fail(err)
				continue
			}
			report.Posted++
		}
	}
}

func (d *Dispatcher) push(ctx context.Context, logger *zerolog.Logger, region worldstate.Region, route Route, payload Payload, report *Report) {
	switch {
	case !pushable(region):
		logger.Info().Msg("Region has no push support")
		return
	case !route.Push:
		logger.Debug().Msg("Push disabled for region")
		return
	case d.registry == nil || d.pusher == nil:
		logger.Warn().Msg("Push transport not configured, skipping push")
		return
	}

	ids, err := d.registry.IDs(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to list devices")
		report.fail(err)
		return
	}
	if len(ids) == 0 {
		logger.Warn().Msg("No registered devices, skipping push")
		return
	}
	report.Devices = len(ids)

	var ttl time.Duration
	if payload.EarliestExpiry > 0 {
		ttl = time.Unix(payload.EarliestExpiry, 0).Sub(d.now())
	}
	data := Message{CollapseKey: CollapseKey(region), TTL: ttl, Data: PushData(region, payload)}
	tickle := Message{CollapseKey: "tickle", Data: map[string]any{"tickle": true}}

	for _, msg := range []Message{data, tickle} {
		pages, errs := d.sendPages(ctx, ids, msg)
		report.Pages += len(pages)
		for _, err := range errs {
			logger.Warn().Err(err).Str("collapse_key", msg.CollapseKey).Msg("Push page failed")
			report.fail(err)
		}
		gone, canonical := collect(pages)
		d.cleanup(ctx, logger, gone, canonical, report)
		// Later messages skip devices that no longer exist.
		ids = surviving(ids, gone, canonical)
		if len(ids) == 0 {
			return
		}
	}
}

type page struct {
	index  int
	ids    []string
	result Result
}

// sendPages pushes msg to ids in pages, concurrently.
func (d *Dispatcher) sendPages(ctx context.Context, ids []string, msg Message) ([]page, []error) {
	p := pool.NewWithResults[page]().WithContext(ctx).WithMaxGoroutines(d.workers)

	var (
		mu   sync.Mutex
		errs []error
	)
	for i := 0; i*d.pageSize < len(ids); i++ {
		start := i * d.pageSize
		end := min(start+d.pageSize, len(ids))
		index, chunk := i, ids[start:end]
		p.Go(func(ctx context.Context) (page, error) {
			m := msg
			m.IDs = chunk
			res, err := d.pusher.Push(ctx, m)
			if err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return page{}, err
			}
			return page{index: index, ids: chunk, result: res}, nil
		})
	}
	pages, _ := p.Wait()

	out := pages[:0]
	for _, pg := range pages {
		if pg.ids != nil {
			out = append(out, pg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].index < out[j].index })
	return out, errs
}

// collect pairs device results with the ids they were sent to.
func collect(pages []page) (gone []string, canonical map[string]string) {
	canonical = map[string]string{}
	for _, pg := range pages {
		for i, r := range pg.result.Results {
			if i >= len(pg.ids) {
				break
			}
			id := pg.ids[i]
			switch {
			case r.Gone():
				gone = append(gone, id)
			case r.CanonicalID != "" && r.CanonicalID != id:
				canonical[id] = r.CanonicalID
			}
		}
	}
	return gone, canonical
}

func (d *Dispatcher) cleanup(ctx context.Context, logger *zerolog.Logger, gone []string, canonical map[string]string, report *Report) {
	if len(gone) > 0 {
		n, err := d.registry.Remove(ctx, gone...)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to remove devices")
			report.fail(err)
		} else {
			logger.Warn().Int("count", n).Msg("Removed invalid devices")
			report.Removed += n
		}
	}

	olds := make([]string, 0, len(canonical))
	for old := range canonical {
		olds = append(olds, old)
	}
	sort.Strings(olds)
	for _, old := range olds {
		if err := d.registry.Replace(ctx, old, canonical[old]); err != nil {
			logger.Error().Err(err).Str("device", old).Msg("Failed to replace device id")
			report.fail(err)
			continue
		}
		logger.Warn().Str("old", old).Str("new", canonical[old]).Msg("Device id changed")
		report.Replaced++
	}
}

func surviving(ids, gone []string, canonical map[string]string) []string {
	removed := make(map[string]bool, len(gone))
	for _, id := range gone {
		removed[id] = true
	}
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if removed[id] {
			continue
		}
		if c, ok := canonical[id]; ok {
			id = c
		}
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
