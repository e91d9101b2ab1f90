package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/worldfeed/pkg/names"
	"github.com/agentstation/worldfeed/pkg/worldstate"
)

func ptr[T any](v T) *T { return &v }

func history(start int64, winner string) worldstate.BadlandHistory {
	return worldstate.BadlandHistory{WinID: winner, Start: worldstate.Timestamp{Sec: start}}
}

func TestMergeHistory(t *testing.T) {
	stored := []worldstate.BadlandHistory{history(100, "a"), history(300, "b")}
	current := []worldstate.BadlandHistory{history(300, "b2"), history(400, "c")}

	merged := MergeHistory(stored, current)
	require.Len(t, merged, 3)
	assert.Equal(t, int64(400), merged[0].Start.Sec)
	assert.Equal(t, int64(300), merged[1].Start.Sec)
	assert.Equal(t, "b2", merged[1].WinID, "the current entry wins on equal start")
	assert.Equal(t, int64(100), merged[2].Start.Sec)
}

func TestHasTaxChanged(t *testing.T) {
	withTax := func(sec int64) *worldstate.BadlandInfo {
		return &worldstate.BadlandInfo{TaxChangeAllowedTime: &worldstate.Timestamp{Sec: sec}}
	}
	assert.True(t, HasTaxChanged(nil, withTax(1)))
	assert.False(t, HasTaxChanged(nil, &worldstate.BadlandInfo{}))
	assert.True(t, HasTaxChanged(&worldstate.BadlandInfo{}, withTax(1)))
	assert.False(t, HasTaxChanged(withTax(1), withTax(1)))
	assert.True(t, HasTaxChanged(withTax(1), withTax(2)))
	assert.False(t, HasTaxChanged(withTax(1), &worldstate.BadlandInfo{}))
}

func TestHasMOTDChanged(t *testing.T) {
	motd := func(text string, author *string) *worldstate.BadlandInfo {
		return &worldstate.BadlandInfo{MOTD: ptr(text), MOTDAuthor: author}
	}
	assert.False(t, HasMOTDChanged(nil, motd("hi", nil)))
	assert.True(t, HasMOTDChanged(nil, motd("hi", ptr("me"))))
	assert.False(t, HasMOTDChanged(motd("hi", ptr("me")), motd("hi", ptr("me"))))
	assert.True(t, HasMOTDChanged(motd("hi", ptr("me")), motd("bye", ptr("me"))))
}

func TestHasBattlePayChanged(t *testing.T) {
	assert.True(t, HasBattlePayChanged(nil, &worldstate.BadlandInfo{MissionBattlePay: ptr(10.0)}))
	assert.False(t, HasBattlePayChanged(nil, &worldstate.BadlandInfo{}))

	old := &worldstate.BadlandInfo{MissionBattlePay: ptr(10.0), BattlePayReserve: ptr(100.0)}
	assert.False(t, HasBattlePayChanged(old, &worldstate.BadlandInfo{MissionBattlePay: ptr(10.0), BattlePayReserve: ptr(90.0)}))
	assert.True(t, HasBattlePayChanged(old, &worldstate.BadlandInfo{MissionBattlePay: ptr(20.0), BattlePayReserve: ptr(90.0)}))
	assert.False(t, HasBattlePayChanged(old, &worldstate.BadlandInfo{MissionBattlePay: ptr(20.0)}))
}

func TestHasClanNameChanged(t *testing.T) {
	assert.False(t, HasClanNameChanged(nil, &worldstate.BadlandInfo{Name: "x"}))
	assert.False(t, HasClanNameChanged(&worldstate.BadlandInfo{Name: "x"}, &worldstate.BadlandInfo{Name: "x"}))
	assert.True(t, HasClanNameChanged(&worldstate.BadlandInfo{Name: "x"}, &worldstate.BadlandInfo{Name: "y"}))
}

func TestClanEvents(t *testing.T) {
	old := worldstate.BadlandNode{
		ID:   "n1",
		Node: "ClanNode1",
		DefenderInfo: &worldstate.BadlandInfo{
			ID:                   "clan1",
			Name:                 "Old Name",
			MOTD:                 ptr("hello"),
			MOTDAuthor:           ptr("leader"),
			TaxChangeAllowedTime: &worldstate.Timestamp{Sec: 10},
		},
	}
	node := old
	node.DefenderInfo = &worldstate.BadlandInfo{
		ID:                   "clan1",
		Name:                 "New Name",
		MOTD:                 ptr("hello, world"),
		MOTDAuthor:           ptr("leader"),
		TaxChangeAllowedTime: &worldstate.Timestamp{Sec: 20},
		CreditsTaxRate:       ptr(0.05),
		ItemsTaxRate:         ptr(0.1),
		MemberCreditsTaxRate: ptr(0.0),
		MemberItemsTaxRate:   ptr(0.0),
		TaxLastChangedBy:     "leader",
		TaxLastChangedByClan: "New Name",
	}
	node.AttackerInfo = &worldstate.BadlandInfo{ID: "clan2", Name: "Raiders", IsAlliance: true, DeployerName: "boss"}

	events := ClanEvents(old, node, 500, "Node (Mars)")
	require.Len(t, events, 4)

	assert.Equal(t, worldstate.ClanTaxChanged, events[0].Kind)
	assert.Equal(t, []string{"0.05", "0.1", "0", "0", "leader", "New Name"}, events[0].Fields)
	assert.Equal(t, "Node (Mars)", events[0].Node)

	assert.Equal(t, worldstate.ClanMOTDChanged, events[1].Kind)
	assert.Equal(t, []string{"hello{*} world", "leader"}, events[1].Fields)

	assert.Equal(t, worldstate.ClanNameChanged, events[2].Kind)
	assert.Empty(t, events[2].Node)
	assert.Equal(t, []string{"New Name"}, events[2].Fields)

	assert.Equal(t, worldstate.ClanAttacking, events[3].Kind)
	assert.Equal(t, "clan2", events[3].ClanID)
	assert.True(t, events[3].IsAlliance)
	assert.Equal(t, []string{"boss"}, events[3].Fields)
}

func TestClanEventsSkipReplacedAttacker(t *testing.T) {
	old := worldstate.BadlandNode{ID: "n1", AttackerInfo: &worldstate.BadlandInfo{ID: "clan2", Name: "A"}}
	node := worldstate.BadlandNode{ID: "n1", AttackerInfo: &worldstate.BadlandInfo{ID: "clan3", Name: "B"}}
	assert.Empty(t, ClanEvents(old, node, 1, "x"))
}

func TestBadlands(t *testing.T) {
	old := worldstate.BadlandNode{
		ID:      "n1",
		Node:    "ClanNode1",
		History: []worldstate.BadlandHistory{history(100, "a")},
	}
	view := stored(old)

	node := old
	node.History = []worldstate.BadlandHistory{history(200, "b")}
	node.AttackerInfo = &worldstate.BadlandInfo{ID: "clan2", Name: "Raiders", DeployerName: "boss"}

	cs, err := Badlands([]worldstate.BadlandNode{node}, view, 500, names.NewCatalog())
	require.NoError(t, err)
	require.Len(t, cs.Updated, 1)

	merged := cs.Updated[0].New.Entity.History
	require.Len(t, merged, 2)
	assert.Equal(t, int64(200), merged[0].Start.Sec)

	require.Len(t, cs.ClanEvents, 1)
	assert.Equal(t, worldstate.ClanAttacking, cs.ClanEvents[0].Kind)
	assert.Equal(t, "ClanNode1 (-)", cs.ClanEvents[0].Node)
}
