package reconcile

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/worldfeed/pkg/errors"
	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/store"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

func alert(id string, activation int64) worldstate.Alert {
	return worldstate.Alert{
		ID:         id,
		Activation: worldstate.Timestamp{Sec: activation},
		Expiry:     worldstate.Timestamp{Sec: activation + 3600},
		MissionInfo: worldstate.MissionInfo{
			Location:    "SolNode1",
			MissionType: "MT_DEFENSE",
		},
	}
}

func stored[T worldstate.Entity](entities ...T) map[string]worldstate.Record[T] {
	view := make(map[string]worldstate.Record[T])
	for _, e := range entities {
		view[e.Key()] = worldstate.Record[T]{Entity: e, FirstSeen: 100, LastSeen: 100}
	}
	return view
}

func alertRules(feedTime int64) Rules[worldstate.Alert] {
	return Rules[worldstate.Alert]{Category: worldstate.CategoryAlerts, FeedTime: feedTime}
}

func TestReconcileClassifies(t *testing.T) {
	changed := alert("b", 10)
	changed.MissionInfo.MissionType = "MT_SURVIVAL"

	view := stored(alert("a", 10), alert("b", 10), alert("c", 10))
	cs, err := Reconcile([]worldstate.Alert{alert("a", 10), changed, alert("d", 20)}, view, alertRules(200))
	require.NoError(t, err)

	require.Len(t, cs.New, 1)
	assert.Equal(t, "d", cs.New[0].ID)
	assert.Nil(t, cs.New[0].Old)
	assert.Equal(t, int64(200), cs.New[0].New.FirstSeen)

	require.Len(t, cs.Updated, 1)
	assert.Equal(t, "b", cs.Updated[0].ID)
	assert.Equal(t, []string{"MissionInfo"}, cs.Updated[0].Fields)
	assert.Equal(t, int64(100), cs.Updated[0].New.FirstSeen)
	assert.Equal(t, int64(200), cs.Updated[0].New.LastSeen)

	require.Len(t, cs.Unchanged, 1)
	assert.Equal(t, "a", cs.Unchanged[0].ID)

	require.Len(t, cs.Completed, 1)
	assert.Equal(t, "c", cs.Completed[0].ID)
	assert.True(t, cs.Completed[0].New.Completed)
	assert.Equal(t, int64(200), cs.Completed[0].New.CompletedAt)
	assert.Equal(t, int64(100), cs.Completed[0].New.LastSeen)
}

func TestCompletedExactlyOnce(t *testing.T) {
	dir := t.TempDir()
	s, err := store.Open(dir, worldstate.RegionPC)
	require.NoError(t, err)

	first, err := Reconcile([]worldstate.Alert{alert("a", 10)}, s.Alerts.View(), alertRules(100))
	require.NoError(t, err)
	require.NoError(t, s.Alerts.Apply(first))

	second, err := Reconcile(nil, s.Alerts.View(), alertRules(200))
	require.NoError(t, err)
	require.Len(t, second.Completed, 1)
	require.NoError(t, s.Alerts.Apply(second))

	third, err := Reconcile(nil, s.Alerts.View(), alertRules(300))
	require.NoError(t, err)
	assert.Empty(t, third.Completed)
	assert.False(t, third.Summary().HasChanges())

	rec, ok := s.Alerts.Get("a")
	require.True(t, ok)
	assert.True(t, rec.Completed)
	assert.Equal(t, int64(200), rec.CompletedAt)
}

func TestReappearingCompletedIsNotNew(t *testing.T) {
	view := stored(alert("a", 10))
	rec := view["a"]
	rec.Completed = true
	rec.CompletedAt = 150
	view["a"] = rec

	cs, err := Reconcile([]worldstate.Alert{alert("a", 10)}, view, alertRules(200))
	require.NoError(t, err)
	assert.Empty(t, cs.New)
	require.Len(t, cs.Unchanged, 1)
	assert.True(t, cs.Unchanged[0].New.Completed)
	assert.Equal(t, int64(150), cs.Unchanged[0].New.CompletedAt)
}

func TestReconcileRejectsDuplicates(t *testing.T) {
	_, err := Reconcile([]worldstate.Alert{alert("a", 1), alert("a", 2)}, nil, alertRules(1))
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.Contains(t, err.Error(), "duplicate")
}

func TestReconcileRejectsMissingID(t *testing.T) {
	_, err := Reconcile([]worldstate.Alert{alert("", 1)}, nil, alertRules(1))
	require.Error(t, err)
}

func TestDifferIgnoresFields(t *testing.T) {
	a, b := alert("a", 1), alert("a", 1)
	b.Expiry.Sec = 99
	b.MissionInfo.Faction = "FC_GRINEER"

	assert.ElementsMatch(t, []string{"Expiry", "MissionInfo"}, NewDiffer().Fields(a, b))
	assert.Equal(t, []string{"MissionInfo"}, NewDiffer(WithIgnoredFields("Expiry")).Fields(a, b))
	assert.Empty(t, NewDiffer().Fields(a, a))
	assert.Equal(t, []string{"value"}, NewDiffer().Fields(1, 2))
}

func TestCheckBuild(t *testing.T) {
	assert.Nil(t, CheckBuild("b1", "b1", 10))
	assert.Nil(t, CheckBuild("", "b1", 10))

	v := CheckBuild("b2", "b1", 10)
	require.NotNil(t, v)
	assert.Equal(t, "b2", v.BuildLabel)
	assert.Equal(t, int64(10), v.DetectTime)

	assert.NotNil(t, CheckBuild("b1", "", 10))
}

func TestAllIsolatesCategories(t *testing.T) {
	snap := &worldstate.Snapshot{
		Region:     worldstate.RegionPC,
		Time:       500,
		BuildLabel: "new-build",
		Alerts:     []worldstate.Alert{alert("a", 1), alert("a", 2)},
		Goals:      []worldstate.Goal{{ID: "g1", Kind: worldstate.GoalStandard}},
	}
	res := All(Input{
		Snapshot:      snap,
		Resolver:      names.NewCatalog(),
		PreviousBuild: "old-build",
		Now:           time.Unix(600, 0),
	})

	require.Contains(t, res.Errors, worldstate.CategoryAlerts)
	assert.ErrorIs(t, res.Errors[worldstate.CategoryAlerts], errors.ErrCategory)
	assert.Nil(t, res.Alerts)

	require.NotNil(t, res.Goals)
	assert.Len(t, res.Goals.New, 1)
	assert.NotContains(t, res.Succeeded(), worldstate.CategoryAlerts)
	assert.Contains(t, res.Succeeded(), worldstate.CategoryGoals)

	require.NotNil(t, res.Version, "build transitions are reported even when a category fails")
	assert.Equal(t, "new-build", res.Version.BuildLabel)
	assert.Equal(t, int64(600), res.Version.DetectTime)
}

func TestAllRecoversPanics(t *testing.T) {
	snap := &worldstate.Snapshot{
		Region:       worldstate.RegionPC,
		Time:         500,
		BadlandNodes: []worldstate.BadlandNode{{ID: "n1", Node: "SolNode1"}},
	}
	view := &store.View{
		Badlands: stored(worldstate.BadlandNode{ID: "n1", Node: "SolNode1"}),
	}
	// A nil resolver makes the badlands event derivation panic.
	res := All(Input{Snapshot: snap, View: view})
	require.Contains(t, res.Errors, worldstate.CategoryBadlands)
	assert.Contains(t, res.Errors[worldstate.CategoryBadlands].Error(), "panic")
	assert.Nil(t, res.Badlands)
	assert.NotNil(t, res.Alerts)
}

func TestResultApply(t *testing.T) {
	s, err := store.Open(t.TempDir(), worldstate.RegionPC)
	require.NoError(t, err)

	snap := &worldstate.Snapshot{
		Region:    worldstate.RegionPC,
		Time:      500,
		Alerts:    []worldstate.Alert{alert("a", 1)},
		Invasions: []worldstate.Invasion{invasion("i1", 10, 100)},
	}
	res := All(Input{Snapshot: snap, View: s.View(), Resolver: names.NewCatalog()})
	assert.Empty(t, res.Apply(s))
	assert.Equal(t, 1, s.Alerts.Len())
	assert.Equal(t, 1, s.Invasions.Len())

	summaries := res.Summaries()
	assert.Equal(t, 1, summaries[worldstate.CategoryAlerts].New)
	assert.Contains(t, res.Progress(), "i1")
}
