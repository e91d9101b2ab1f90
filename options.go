package worldfeed

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/notify"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Option is a function that configures a Controller
type Option func(*Controller) error

// WithFeed sets the feed URL of a region and enables it
func WithFeed(region worldstate.Region, url string) Option {
	return func(c *Controller) error {
		c.feeds[region] = url
		return nil
	}
}

// WithFeeds replaces every feed URL
func WithFeeds(feeds map[worldstate.Region]string) Option {
	return func(c *Controller) error {
		c.feeds = copyFeeds(feeds)
		return nil
	}
}

// WithFetcher configures how feeds are downloaded
func WithFetcher(f Fetcher) Option {
	return func(c *Controller) error {
		c.fetcher = f
		return nil
	}
}

// WithResolver configures the name resolver used for rendering and posts
func WithResolver(r names.Resolver) Option {
	return func(c *Controller) error {
		c.resolver = r
		return nil
	}
}

// WithDispatcher configures where notable cycles are announced
func WithDispatcher(d Dispatcher) Option {
	return func(c *Controller) error {
		c.dispatcher = d
		return nil
	}
}

// WithPublisher configures the sink of cycle lifecycle events
func WithPublisher(p notify.Publisher) Option {
	return func(c *Controller) error {
		c.publisher = p
		return nil
	}
}

// WithOutputDir configures where rendered artifacts are written
func WithOutputDir(dir string) Option {
	return func(c *Controller) error {
		c.outputDir = dir
		return nil
	}
}

// WithRetention configures the archival ceiling and batch of every category
func WithRetention(ceiling, batch int) Option {
	return func(c *Controller) error {
		c.ceiling, c.batch = ceiling, batch
		return nil
	}
}

// WithLogger configures the controller logger
func WithLogger(logger *zerolog.Logger) Option {
	return func(c *Controller) error {
		c.logger = logger
		return nil
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(c *Controller) error {
		c.now = now
		return nil
	}
}

func copyFeeds(feeds map[worldstate.Region]string) map[worldstate.Region]string {
	out := make(map[worldstate.Region]string, len(feeds))
	for k, v := range feeds {
		out[k] = v
	}
	return out
}
