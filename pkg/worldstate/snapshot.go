package worldstate

// Snapshot is one normalized feed payload. It is never mutated after the
// normalizer returns it.
type Snapshot struct {
	Region            Region            `json:"-"`
	Time              int64             `json:"Time"`
	BuildLabel        string            `json:"BuildLabel"`
	Version           int               `json:"Version,omitempty"`
	Alerts            []Alert           `json:"Alerts"`
	Goals             []Goal            `json:"Goals"`
	Invasions         []Invasion        `json:"Invasions"`
	BadlandNodes      []BadlandNode     `json:"BadlandNodes"`
	DailyDeals        []DailyDeal       `json:"DailyDeals"`
	FlashSales        []FlashSale       `json:"FlashSales"`
	Events            []NewsEvent       `json:"Events"`
	VoidTraders       []VoidTrader      `json:"VoidTraders"`
	Sorties           []Sortie          `json:"Sorties"`
	ActiveMissions    []Fissure         `json:"ActiveMissions"`
	PersistentEnemies []PersistentEnemy `json:"PersistentEnemies"`
	LibraryInfo       *LibraryInfo      `json:"LibraryInfo,omitempty"`
}

// Record is the stored envelope of an entity.
type Record[T Entity] struct {
	Entity      T     `json:"entity"`
	FirstSeen   int64 `json:"first_seen"`
	LastSeen    int64 `json:"last_seen"`
	Completed   bool  `json:"completed,omitempty"`
	CompletedAt int64 `json:"completed_at,omitempty"`

	// Mark is the progress baseline of progress-bearing entities.
	Mark *ProgressMark `json:"mark,omitempty"`
}

// ProgressMark is the count and goal last used as the reference for progress
// and ETA. It moves forward on long ticks only.
type ProgressMark struct {
	Count int   `json:"count"`
	Goal  int   `json:"goal"`
	Time  int64 `json:"time"`
}

// VersionRecord is one detected build label transition.
type VersionRecord struct {
	DetectTime int64  `json:"DetectTime"`
	BuildLabel string `json:"BuildLabel"`
}
