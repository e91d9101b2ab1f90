package worldfeed

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/worldfeed/pkg/constants"
	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/store"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

// advancingFetcher serves a feed whose time moves forward on every call.
func advancingFetcher() (Fetcher, *atomic.Int64) {
	var calls atomic.Int64
	return fetchFunc(func(_ context.Context, _ worldstate.Region, _ string) ([]byte, error) {
		n := calls.Add(1)
		return feedJSON(t0+n*60, "b", []string{"a1"}, 10), nil
	}), &calls
}

func TestServiceValidatesCadence(t *testing.T) {
	h := newHarness(t)
	_, err := NewService(h.ctrl, Cadence{Interval: 0, LongEvery: 1})
	assert.True(t, errors.IsValidationError(err))
	_, err = NewService(h.ctrl, Cadence{Interval: time.Second})
	assert.True(t, errors.IsValidationError(err))

	svc, err := NewService(h.ctrl, DefaultCadence())
	require.NoError(t, err)
	assert.Equal(t, constants.DefaultStartTick, svc.Tick())
	assert.True(t, errors.IsValidationError(svc.Reload(Cadence{Interval: -time.Second, LongEvery: 2})))
}

func TestServiceRunsCyclesOnCadence(t *testing.T) {
	fetcher, calls := advancingFetcher()
	h := newHarness(t, WithFetcher(fetcher))

	var (
		mu    sync.Mutex
		longs []bool
	)
	h.ctrl.OnCycle(func(r *CycleReport) {
		mu.Lock()
		defer mu.Unlock()
		longs = append(longs, r.LongTick)
	})

	svc, err := NewService(h.ctrl, Cadence{Interval: 10 * time.Millisecond, LongEvery: 2})
	require.NoError(t, err)
	require.NoError(t, svc.SetTick(0))
	require.NoError(t, svc.Start(context.Background()))
	assert.Error(t, svc.Start(context.Background()))

	require.Eventually(t, func() bool { return calls.Load() >= 4 }, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, svc.Stop(ctx))
	require.NoError(t, svc.Stop(ctx))

	tick := svc.Tick()
	assert.GreaterOrEqual(t, tick, 4)
	persisted, err := store.ReadTick(h.dataDir)
	require.NoError(t, err)
	assert.Equal(t, tick, persisted)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, longs, true)
	assert.Contains(t, longs, false)
}

func TestServiceSetTickPersists(t *testing.T) {
	h := newHarness(t)
	svc, err := NewService(h.ctrl, DefaultCadence())
	require.NoError(t, err)

	require.NoError(t, svc.SetTick(359))
	assert.Equal(t, 359, svc.Tick())

	again, err := NewService(h.ctrl, DefaultCadence())
	require.NoError(t, err)
	assert.Equal(t, 359, again.Tick())

	assert.Error(t, svc.SetTick(-1))
	assert.Equal(t, 359, svc.Tick())
}

func TestServiceReloadKeepsRunning(t *testing.T) {
	fetcher, calls := advancingFetcher()
	h := newHarness(t, WithFetcher(fetcher))

	svc, err := NewService(h.ctrl, Cadence{Interval: time.Hour, LongEvery: 60})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(svc.Kill)

	require.NoError(t, svc.Reload(Cadence{Interval: 10 * time.Millisecond, LongEvery: 5}))
	assert.Equal(t, 5, svc.Cadence().LongEvery)
	require.Eventually(t, func() bool { return calls.Load() >= 2 }, 5*time.Second, 5*time.Millisecond)
}

func TestServiceKillCancelsRunningCycle(t *testing.T) {
	entered := make(chan struct{})
	var once sync.Once
	blocking := fetchFunc(func(ctx context.Context, _ worldstate.Region, _ string) ([]byte, error) {
		once.Do(func() { close(entered) })
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := newHarness(t, WithFetcher(blocking))

	svc, err := NewService(h.ctrl, Cadence{Interval: 10 * time.Millisecond, LongEvery: 60})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	<-entered

	svc.Kill()
	svc.Wait()

	assert.False(t, h.ctrl.Running(worldstate.RegionPC))
	st, err := h.ctrl.Store(worldstate.RegionPC)
	require.NoError(t, err)
	cp, err := st.LoadCheckpoint()
	require.NoError(t, err)
	assert.Zero(t, cp.LastFeedTime)
}

func TestServiceStopTimesOut(t *testing.T) {
	entered := make(chan struct{})
	var once sync.Once
	blocking := fetchFunc(func(ctx context.Context, _ worldstate.Region, _ string) ([]byte, error) {
		once.Do(func() { close(entered) })
		<-ctx.Done()
		return nil, ctx.Err()
	})
	h := newHarness(t, WithFetcher(blocking))

	svc, err := NewService(h.ctrl, Cadence{Interval: 10 * time.Millisecond, LongEvery: 60})
	require.NoError(t, err)
	require.NoError(t, svc.Start(context.Background()))
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, svc.Stop(ctx), context.DeadlineExceeded)
}
