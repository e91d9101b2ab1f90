package worldfeed

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/store"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// Cadence configures the scheduler.
type Cadence struct {
	// Interval between short ticks.
	Interval time.Duration
	// LongEvery makes every Nth tick a long tick.
	LongEvery int
}

// DefaultCadence polls every minute with a long tick every hour.
func DefaultCadence() Cadence {
	return Cadence{Interval: constants.DefaultShortInterval, LongEvery: constants.DefaultLongEvery}
}

func (c Cadence) validate() error {
	if c.Interval <= 0 {
		return errors.NewValidationError("interval", c.Interval, "interval must be positive")
	}
	if c.LongEvery <= 0 {
		return errors.NewValidationError("long_every", c.LongEvery, "long tick period must be positive")
	}
	return nil
}

// Service drives a Controller on a cadence. One ticker goroutine advances
// the persisted tick counter and hands each tick to a worker goroutine per
// region. A worker still busy with the previous cycle drops the tick.
type Service struct {
	ctrl   *Controller
	logger *zerolog.Logger

	mu       sync.Mutex
	cadence  Cadence
	tick     int
	tickDir  string
	ticker   *time.Ticker
	reset    chan time.Duration
	workers  map[worldstate.Region]chan bool
	cancel   context.CancelFunc
	stopCh   chan struct{}
	loop     conc.WaitGroup
	running  conc.WaitGroup
	started  bool
	stopping bool
}

// NewService creates a stopped service. The tick counter is read from the
// controller data directory.
func NewService(ctrl *Controller, cadence Cadence) (*Service, error) {
	if err := cadence.validate(); err != nil {
		return nil, err
	}
	tick, err := store.ReadTick(ctrl.DataDir())
	if err != nil {
		ctrl.logger.Warn().Err(err).Int("tick", tick).Msg("Could not read tick counter, using default")
	}
	return &Service{
		ctrl:    ctrl,
		logger:  ctrl.logger,
		cadence: cadence,
		tick:    tick,
		tickDir: ctrl.DataDir(),
	}, nil
}

// Start begins polling. It returns immediately. A service starts once.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return errors.NewValidationError("service", "started", "service was already started")
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.stopCh = make(chan struct{})
	s.reset = make(chan time.Duration, 1)
	s.workers = make(map[worldstate.Region]chan bool)
	s.ticker = time.NewTicker(s.cadence.Interval)
	s.started = true
	s.stopping = false

	ticker, stopCh, reset := s.ticker, s.stopCh, s.reset
	s.loop.Go(func() {
		for {
			select {
			case <-ticker.C:
				s.advance(ctx)
			case d := <-reset:
				ticker.Reset(d)
			case <-ctx.Done():
				return
			case <-stopCh:
				return
			}
		}
	})

	s.logger.Info().
		Dur("interval", s.cadence.Interval).
		Int("long_every", s.cadence.LongEvery).
		Int("tick", s.tick).
		Msg("Scheduler started")
	return nil
}

// advance moves the tick counter and hands the tick to every region.
func (s *Service) advance(ctx context.Context) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return
	}
	s.tick++
	tick := s.tick
	long := tick%s.cadence.LongEvery == 0
	if err := store.WriteTick(s.tickDir, tick); err != nil {
		s.logger.Warn().Err(err).Msg("Could not persist tick counter")
	}

	regions := s.ctrl.Regions()
	active := make(map[worldstate.Region]bool, len(regions))
	for _, region := range regions {
		active[region] = true
		ch, ok := s.workers[region]
		if !ok {
			ch = make(chan bool, 1)
			s.workers[region] = ch
			s.startWorker(ctx, region, ch)
		}
		select {
		case ch <- long:
		default:
			s.logger.Warn().Str("region", region.String()).Int("tick", tick).Msg("Region still busy, dropping tick")
		}
	}
	// Regions removed by a reload stop polling.
	for region, ch := range s.workers {
		if !active[region] {
			close(ch)
			delete(s.workers, region)
		}
	}
	s.mu.Unlock()

	s.logger.Debug().Int("tick", tick).Bool("long", long).Msg("Tick")
}

func (s *Service) startWorker(ctx context.Context, region worldstate.Region, ticks <-chan bool) {
	stopCh := s.stopCh
	s.running.Go(func() {
		for long := range ticks {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			default:
			}
			cycleCtx, cancel := context.WithTimeout(ctx, constants.CycleTimeout)
			_, err := s.ctrl.RunOnce(cycleCtx, RunOptions{Region: region, LongTick: long})
			cancel()
			if err == nil {
				continue
			}
			if stderrors.Is(err, context.Canceled) && ctx.Err() != nil {
				return
			}
			if stderrors.Is(err, errors.ErrCycleInProgress) {
				s.logger.Warn().Str("region", region.String()).Msg("Cycle already running")
			}
		}
	})
}

// Tick returns the tick counter.
func (s *Service) Tick() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tick
}

// SetTick replaces and persists the tick counter.
func (s *Service) SetTick(tick int) error {
	if err := store.WriteTick(s.tickDir, tick); err != nil {
		return err
	}
	s.mu.Lock()
	s.tick = tick
	s.mu.Unlock()
	s.logger.Info().Int("tick", tick).Msg("Tick counter set")
	return nil
}

// Cadence returns the scheduler settings.
func (s *Service) Cadence() Cadence {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cadence
}

// Reload swaps the cadence without interrupting running cycles.
func (s *Service) Reload(cadence Cadence) error {
	if err := cadence.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := cadence.Interval != s.cadence.Interval
	s.cadence = cadence
	if changed && s.started {
		select {
		case s.reset <- cadence.Interval:
		default:
		}
	}
	s.logger.Info().Dur("interval", cadence.Interval).Int("long_every", cadence.LongEvery).Msg("Scheduler reloaded")
	return nil
}

// Stop ends polling and waits for running cycles to finish, or for ctx.
func (s *Service) Stop(ctx context.Context) error {
	if !s.halt() {
		return nil
	}
	done := make(chan struct{})
	go func() {
		s.loop.Wait()
		s.running.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Int("tick", s.Tick()).Msg("Scheduler stopped")
		return nil
	case <-ctx.Done():
		s.Kill()
		<-done
		return ctx.Err()
	}
}

// Kill ends polling and cancels running cycles immediately. A cancelled
// cycle that has not reached the store leaves it untouched.
func (s *Service) Kill() {
	s.halt()
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.logger.Warn().Int("tick", s.Tick()).Msg("Scheduler killed")
}

// halt stops the ticker and closes the worker queues. It reports whether
// the service was running.
func (s *Service) halt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started || s.stopping {
		return false
	}
	s.stopping = true
	s.ticker.Stop()
	close(s.stopCh)
	for region, ch := range s.workers {
		close(ch)
		delete(s.workers, region)
	}
	return true
}

// Wait blocks until the scheduler loop and every worker have exited.
func (s *Service) Wait() {
	s.loop.Wait()
	s.running.Wait()
}
