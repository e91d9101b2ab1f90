package worldstate

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Entity is any keyed occurrence tracked across snapshots.
type Entity interface {
	// Key is the identifier, unique within category and region.
	Key() string
	// ActivatedAt is the activation time in epoch seconds, used to order retention.
	ActivatedAt() int64
}

// Timestamp is the canonical feed time shape.
type Timestamp struct {
	Sec  int64 `json:"sec"`
	Usec int64 `json:"usec"`
}

// CountedItem is a reward item with a quantity.
type CountedItem struct {
	ItemType  string `json:"ItemType"`
	ItemCount int    `json:"ItemCount"`
}

// MissionReward is the reward block of an alert or bounty.
type MissionReward struct {
	Credits      int           `json:"credits"`
	XP           int           `json:"xp,omitempty"`
	Items        []string      `json:"items,omitempty"`
	CountedItems []CountedItem `json:"countedItems,omitempty"`
}

// MissionInfo describes the mission attached to an alert.
type MissionInfo struct {
	DescText         string        `json:"descText"`
	Location         string        `json:"location"`
	MissionType      string        `json:"missionType"`
	Faction          string        `json:"faction"`
	Seed             int64         `json:"seed,omitempty"`
	Difficulty       float64       `json:"difficulty,omitempty"`
	MissionReward    MissionReward `json:"missionReward"`
	LevelOverride    string        `json:"levelOverride,omitempty"`
	EnemySpec        string        `json:"enemySpec,omitempty"`
	VipAgent         string        `json:"vipAgent,omitempty"`
	MinEnemyLevel    int           `json:"minEnemyLevel"`
	MaxEnemyLevel    int           `json:"maxEnemyLevel"`
	MaxWaveNum       int           `json:"maxWaveNum,omitempty"`
	Nightmare        bool          `json:"nightmare,omitempty"`
	ExclusiveWeapon  string        `json:"exclusiveWeapon,omitempty"`
	ArchwingRequired bool          `json:"archwingRequired,omitempty"`
	IsSharkwing      bool          `json:"isSharkwing,omitempty"`
}

// TacticalInfo marks an alert promoted from a bounty goal.
type TacticalInfo struct {
	GoalID      string `json:"GoalId"`
	Desc        string `json:"Desc"`
	MaxConclave int    `json:"MaxConclave"`
}

// Alert is a timed mission offer.
type Alert struct {
	ID          string        `json:"id"`
	Activation  Timestamp     `json:"Activation"`
	Expiry      Timestamp     `json:"Expiry"`
	MissionInfo MissionInfo   `json:"MissionInfo"`
	Tactical    *TacticalInfo `json:"Tactical,omitempty"`
}

func (a Alert) Key() string        { return a.ID }
func (a Alert) ActivatedAt() int64 { return a.Activation.Sec }

// GoalKind discriminates the goal variants found in the feed.
type GoalKind string

const (
	GoalStandard GoalKind = "standard"
	GoalBounty   GoalKind = "bounty"
)

// Goal is a community objective. Bounty goals carry a mission and reward and
// are also surfaced as alerts.
type Goal struct {
	ID          string         `json:"id"`
	Kind        GoalKind       `json:"Kind"`
	Tag         string         `json:"Tag,omitempty"`
	Activation  Timestamp      `json:"Activation"`
	Expiry      Timestamp      `json:"Expiry"`
	Node        string         `json:"Node,omitempty"`
	Desc        string         `json:"Desc,omitempty"`
	Count       int            `json:"Count,omitempty"`
	Goal        int            `json:"Goal,omitempty"`
	MaxConclave int            `json:"MaxConclave,omitempty"`
	MissionInfo *MissionInfo   `json:"MissionInfo,omitempty"`
	Reward      *MissionReward `json:"Reward,omitempty"`
}

func (g Goal) Key() string        { return g.ID }
func (g Goal) ActivatedAt() int64 { return g.Activation.Sec }

// SideMission is the mission one side of an invasion runs.
type SideMission struct {
	MissionType   string  `json:"missionType,omitempty"`
	Faction       string  `json:"faction"`
	Seed          int64   `json:"seed,omitempty"`
	Difficulty    float64 `json:"difficulty,omitempty"`
	LevelOverride string  `json:"levelOverride,omitempty"`
	EnemySpec     string  `json:"enemySpec,omitempty"`
	MinEnemyLevel int     `json:"minEnemyLevel"`
	MaxEnemyLevel int     `json:"maxEnemyLevel"`
}

// Reward is an invasion side reward. The feed encodes an absent reward as an
// empty array, which decodes to the zero value.
type Reward struct {
	Credits      *int          `json:"credits,omitempty"`
	CountedItems []CountedItem `json:"countedItems,omitempty"`
}

// UnmarshalJSON accepts both the object form and the empty array form.
func (r *Reward) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []json.RawMessage
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*r = Reward{}
		return nil
	}
	type plain Reward
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*r = Reward(p)
	return nil
}

// Invasion is a contested objective between two factions.
type Invasion struct {
	ID                  string      `json:"id"`
	Activation          Timestamp   `json:"Activation"`
	Node                string      `json:"Node"`
	Faction             string      `json:"Faction"`
	LocTag              string      `json:"LocTag,omitempty"`
	Count               int         `json:"Count"`
	Goal                int         `json:"Goal"`
	Completed           bool        `json:"Completed"`
	AttackerMissionInfo SideMission `json:"AttackerMissionInfo"`
	DefenderMissionInfo SideMission `json:"DefenderMissionInfo"`
	AttackerReward      Reward      `json:"AttackerReward"`
	DefenderReward      Reward      `json:"DefenderReward"`
}

func (i Invasion) Key() string        { return i.ID }
func (i Invasion) ActivatedAt() int64 { return i.Activation.Sec }

// BadlandInfo is one clan's side of a territory node.
type BadlandInfo struct {
	ID                       string          `json:"Id"`
	Name                     string          `json:"Name"`
	IsAlliance               bool            `json:"IsAlliance"`
	MOTD                     *string         `json:"MOTD,omitempty"`
	MOTDAuthor               *string         `json:"MOTDAuthor,omitempty"`
	BattlePayReserve         *float64        `json:"BattlePayReserve,omitempty"`
	MissionBattlePay         *float64        `json:"MissionBattlePay,omitempty"`
	BattlePaySetBy           string          `json:"BattlePaySetBy,omitempty"`
	BattlePaySetByClan       string          `json:"BattlePaySetByClan,omitempty"`
	CreditsTaxRate           *float64        `json:"CreditsTaxRate,omitempty"`
	ItemsTaxRate             *float64        `json:"ItemsTaxRate,omitempty"`
	MemberCreditsTaxRate     *float64        `json:"MemberCreditsTaxRate,omitempty"`
	MemberItemsTaxRate       *float64        `json:"MemberItemsTaxRate,omitempty"`
	TaxChangeAllowedTime     *Timestamp      `json:"TaxChangeAllowedTime,omitempty"`
	TaxLastChangedBy         string          `json:"TaxLastChangedBy,omitempty"`
	TaxLastChangedByClan     string          `json:"TaxLastChangedByClan,omitempty"`
	DeployerName             string          `json:"DeployerName,omitempty"`
	DeployerClan             string          `json:"DeployerClan,omitempty"`
	DeploymentActivationTime *Timestamp      `json:"DeploymentActivationTime,omitempty"`
	StrengthRemaining        *float64        `json:"StrengthRemaining,omitempty"`
	MaxStrength              *float64        `json:"MaxStrength,omitempty"`
	MissionInfo              json.RawMessage `json:"MissionInfo,omitempty"`
}

// BadlandHistory is one past conflict on a node.
type BadlandHistory struct {
	Def    string    `json:"Def"`
	DefID  string    `json:"DefId"`
	DefAli bool      `json:"DefAli"`
	Att    string    `json:"Att"`
	AttID  string    `json:"AttId"`
	AttAli bool      `json:"AttAli"`
	WinID  string    `json:"WinId"`
	Start  Timestamp `json:"Start"`
	End    Timestamp `json:"End"`
}

// BadlandNode is a territory node held by a clan or alliance.
type BadlandNode struct {
	ID                   string           `json:"id"`
	Node                 string           `json:"Node"`
	DefenderInfo         *BadlandInfo     `json:"DefenderInfo,omitempty"`
	AttackerInfo         *BadlandInfo     `json:"AttackerInfo,omitempty"`
	History              []BadlandHistory `json:"History,omitempty"`
	ConflictExpiration   *Timestamp       `json:"ConflictExpiration,omitempty"`
	PostConflictCooldown *Timestamp       `json:"PostConflictCooldown,omitempty"`
	NodeDisplayName      string           `json:"NodeDisplayName,omitempty"`
	NodeRegionName       string           `json:"NodeRegionName,omitempty"`
	NodeGameType         string           `json:"NodeGameType,omitempty"`
}

func (b BadlandNode) Key() string { return b.ID }

// ActivatedAt orders nodes by their defender deployment, which is the closest
// thing a node has to an activation.
func (b BadlandNode) ActivatedAt() int64 {
	if b.DefenderInfo != nil && b.DefenderInfo.DeploymentActivationTime != nil {
		return b.DefenderInfo.DeploymentActivationTime.Sec
	}
	return 0
}

// DailyDeal is a rotating discounted store item.
type DailyDeal struct {
	ID            string    `json:"id,omitempty"`
	StoreItem     string    `json:"StoreItem"`
	Activation    Timestamp `json:"Activation"`
	Expiry        Timestamp `json:"Expiry"`
	Discount      int       `json:"Discount"`
	OriginalPrice int       `json:"OriginalPrice"`
	SalePrice     int       `json:"SalePrice"`
	AmountTotal   int       `json:"AmountTotal"`
	AmountSold    int       `json:"AmountSold"`
}

// Key falls back to the activation time for deals the feed sends without an id.
func (d DailyDeal) Key() string {
	if d.ID != "" {
		return d.ID
	}
	return strconv.FormatInt(d.Activation.Sec, 10)
}

func (d DailyDeal) ActivatedAt() int64 { return d.Activation.Sec }

// FlashSale is a market promotion.
type FlashSale struct {
	ID              string    `json:"id,omitempty"`
	TypeName        string    `json:"TypeName"`
	StartDate       Timestamp `json:"StartDate"`
	EndDate         Timestamp `json:"EndDate"`
	Discount        int       `json:"Discount"`
	RegularOverride int       `json:"RegularOverride"`
	PremiumOverride int       `json:"PremiumOverride"`
}

// NewsMessage is one localized news headline.
type NewsMessage struct {
	LanguageCode string `json:"LanguageCode"`
	Message      string `json:"Message"`
}

// NewsEvent is a news item.
type NewsEvent struct {
	ID       string        `json:"id"`
	Msg      string        `json:"Msg,omitempty"`
	Messages []NewsMessage `json:"Messages,omitempty"`
	Prop     string        `json:"Prop"`
	Date     Timestamp     `json:"Date"`
}

// Headline returns the message, falling back to the first localized one.
func (n NewsEvent) Headline() string {
	if n.Msg != "" {
		return n.Msg
	}
	for _, m := range n.Messages {
		if m.LanguageCode == "en" {
			return m.Message
		}
	}
	if len(n.Messages) > 0 {
		return n.Messages[0].Message
	}
	return ""
}

// ManifestItem is an item sold by the void trader.
type ManifestItem struct {
	ItemType     string `json:"ItemType"`
	PrimePrice   int    `json:"PrimePrice"`
	RegularPrice int    `json:"RegularPrice"`
}

// VoidTraderConfig is the trader rotation configuration.
type VoidTraderConfig struct {
	Character       string           `json:"Character,omitempty"`
	HoursAvailable  int              `json:"HoursAvailable,omitempty"`
	FrequencyInDays int              `json:"FrequencyInDays,omitempty"`
	Nodes           []string         `json:"Nodes,omitempty"`
	Manifests       [][]ManifestItem `json:"Manifests,omitempty"`
}

// VoidTrader is the travelling trader.
type VoidTrader struct {
	ID         string            `json:"id,omitempty"`
	Activation Timestamp         `json:"Activation"`
	Expiry     Timestamp         `json:"Expiry"`
	Character  string            `json:"Character"`
	Node       string            `json:"Node"`
	Manifest   []ManifestItem    `json:"Manifest,omitempty"`
	Config     *VoidTraderConfig `json:"Config,omitempty"`
}

// SortieVariant is one stage of a sortie.
type SortieVariant struct {
	MissionType  string `json:"missionType"`
	ModifierType string `json:"modifierType,omitempty"`
	Node         string `json:"node"`
	Tileset      string `json:"tileset,omitempty"`
}

// Sortie is the daily mission chain.
type Sortie struct {
	ID         string          `json:"id,omitempty"`
	Activation Timestamp       `json:"Activation"`
	Expiry     Timestamp       `json:"Expiry"`
	Boss       string          `json:"Boss,omitempty"`
	Reward     string          `json:"Reward,omitempty"`
	Seed       int64           `json:"Seed,omitempty"`
	Variants   []SortieVariant `json:"Variants,omitempty"`
}

// Fissure is an active relic mission.
type Fissure struct {
	ID          string    `json:"id,omitempty"`
	Region      int       `json:"Region,omitempty"`
	Seed        int64     `json:"Seed,omitempty"`
	Activation  Timestamp `json:"Activation"`
	Expiry      Timestamp `json:"Expiry"`
	Node        string    `json:"Node"`
	MissionType string    `json:"MissionType,omitempty"`
	Modifier    string    `json:"Modifier,omitempty"`
}

// PersistentEnemy is a roaming named enemy.
type PersistentEnemy struct {
	ID                     string  `json:"id,omitempty"`
	AgentType              string  `json:"AgentType,omitempty"`
	LocTag                 string  `json:"LocTag,omitempty"`
	Rank                   int     `json:"Rank"`
	HealthPercent          float64 `json:"HealthPercent"`
	FleeDamage             float64 `json:"FleeDamage,omitempty"`
	Region                 int     `json:"Region,omitempty"`
	LastDiscoveredLocation string  `json:"LastDiscoveredLocation,omitempty"`
	Discovered             bool    `json:"Discovered"`
}

// LibraryTarget is the current community scan target.
type LibraryTarget struct {
	StartTime             Timestamp `json:"StartTime"`
	TargetType            string    `json:"TargetType"`
	EnemyType             string    `json:"EnemyType,omitempty"`
	PersonalScansRequired int       `json:"PersonalScansRequired"`
	ProgressPercent       float64   `json:"ProgressPercent"`
}

// LibraryInfo wraps the library target.
type LibraryInfo struct {
	CurrentTarget *LibraryTarget `json:"CurrentTarget,omitempty"`
}
