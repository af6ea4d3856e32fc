package models

import (
	"math"
	"time"

	"position_engine/internal/helper"
)

type Direction string

const (
	DirectionNone  Direction = ""
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

func (d Direction) Valid() bool { return d == DirectionLong || d == DirectionShort }

func (d Direction) Opposite() Direction {
	switch d {
	case DirectionLong:
		return DirectionShort
	case DirectionShort:
		return DirectionLong
	}
	return DirectionNone
}

// Sign is +1 for long and -1 for short.
func (d Direction) Sign() float64 {
	if d == DirectionShort {
		return -1
	}
	return 1
}

// Better reports whether price a is strictly more favorable than b.
func (d Direction) Better(a, b float64) bool {
	if d == DirectionShort {
		return a < b
	}
	return a > b
}

// Reached reports whether price has reached target in the favorable direction.
func (d Direction) Reached(price, target float64) bool {
	if d == DirectionShort {
		return price <= target
	}
	return price >= target
}

// Breached reports whether price is at or through stop in the adverse direction.
func (d Direction) Breached(price, stop float64) bool {
	if d == DirectionShort {
		return price >= stop
	}
	return price <= stop
}

func (d Direction) OpenSide() OrderSide {
	if d == DirectionShort {
		return SideSell
	}
	return SideBuy
}

func (d Direction) CloseSide() OrderSide {
	if d == DirectionShort {
		return SideBuy
	}
	return SideSell
}

type ProfitLevel string

const (
	Level1R ProfitLevel = "1R"
	Level2R ProfitLevel = "2R"
	Level3R ProfitLevel = "3R"
	Level4R ProfitLevel = "4R"
)

// ProfitLevelOrder is the order levels are realized in.
var ProfitLevelOrder = []ProfitLevel{Level1R, Level2R, Level3R, Level4R}

func (l ProfitLevel) Multiple() float64 {
	switch l {
	case Level1R:
		return 1
	case Level2R:
		return 2
	case Level3R:
		return 3
	case Level4R:
		return 4
	}
	return 0
}

type ProfitLevels map[ProfitLevel]float64

type ProfitsTaken map[ProfitLevel]bool

// ComputeProfitLevels: target = entry ± n*|entry-stop| for n in 1..4.
func ComputeProfitLevels(entry, stop float64, dir Direction) ProfitLevels {
	risk := math.Abs(entry - stop)
	levels := make(ProfitLevels, len(ProfitLevelOrder))
	for _, l := range ProfitLevelOrder {
		levels[l] = helper.RoundPrice(entry + dir.Sign()*l.Multiple()*risk)
	}
	return levels
}

func NewProfitsTaken() ProfitsTaken {
	taken := make(ProfitsTaken, len(ProfitLevelOrder))
	for _, l := range ProfitLevelOrder {
		taken[l] = false
	}
	return taken
}

const (
	// PositionSchemaV1 records predate staged exits.
	PositionSchemaV1 = 1
	// PositionSchemaV2 carries profit levels, flags, high-water mark and trailing state.
	PositionSchemaV2 = 2

	PositionSchemaCurrent = PositionSchemaV2
)

type PositionRecord struct {
	SchemaVersion int `json:"schema_version"`

	Symbol       string    `json:"symbol"`
	Direction    Direction `json:"direction"`
	EntryPrice   float64   `json:"entry_price"`
	Size         float64   `json:"size"`
	OriginalSize float64   `json:"original_size"`

	// nil for positions recovered from the exchange without stored risk data
	StopLoss *float64 `json:"stop_loss"`

	// nil means a legacy record that predates staged exits
	ProfitLevels       ProfitLevels `json:"profit_levels"`
	ProfitsTaken       ProfitsTaken `json:"profits_taken"`
	HighWaterMark      float64      `json:"high_water_mark"`
	TrailingStopActive bool         `json:"trailing_stop_active"`
	ATR                float64      `json:"atr"`

	SignalClass        SignalClass `json:"signal_type"`
	OpenedAt           time.Time   `json:"opened_at"`
	PaperTrade         bool        `json:"paper_trade"`
	SyncedFromExchange bool        `json:"synced_from_exchange"`
	OrderID            string      `json:"order_id,omitempty"`
}

// HasStagedExits is the schema check used by migration: both maps present.
func (p *PositionRecord) HasStagedExits() bool {
	return p.ProfitLevels != nil && p.ProfitsTaken != nil
}

func (p *PositionRecord) HasStop() bool { return p.StopLoss != nil && *p.StopLoss > 0 }

func (p *PositionRecord) Stop() float64 {
	if p.StopLoss == nil {
		return 0
	}
	return *p.StopLoss
}

func (p *PositionRecord) SetStop(v float64) {
	p.StopLoss = &v
}

// InitialRisk is |entry-stop| at entry, recovered from the 1R level once the stop has moved.
func (p *PositionRecord) InitialRisk() float64 {
	if lvl, ok := p.ProfitLevels[Level1R]; ok {
		return math.Abs(lvl - p.EntryPrice)
	}
	if p.HasStop() {
		return math.Abs(p.EntryPrice - p.Stop())
	}
	return 0
}

// RMultiple is the unrealized excursion in units of initial risk.
func (p *PositionRecord) RMultiple(price float64) float64 {
	risk := p.InitialRisk()
	if risk <= 0 {
		return 0
	}
	return p.Direction.Sign() * (price - p.EntryPrice) / risk
}

func (p *PositionRecord) PnLPct(price float64) float64 {
	if p.EntryPrice <= 0 {
		return 0
	}
	return p.Direction.Sign() * (price - p.EntryPrice) / p.EntryPrice * 100
}

// NextLevel returns the lowest level not yet realized.
func (p *PositionRecord) NextLevel() (ProfitLevel, bool) {
	for _, l := range ProfitLevelOrder {
		if _, ok := p.ProfitLevels[l]; !ok {
			continue
		}
		if !p.ProfitsTaken[l] {
			return l, true
		}
	}
	return "", false
}

func (p *PositionRecord) Age(now time.Time) time.Duration {
	if p.OpenedAt.IsZero() {
		return 0
	}
	return now.Sub(p.OpenedAt)
}

// Clone deep-copies the maps and the stop pointer.
func (p PositionRecord) Clone() PositionRecord {
	out := p
	if p.StopLoss != nil {
		v := *p.StopLoss
		out.StopLoss = &v
	}
	if p.ProfitLevels != nil {
		out.ProfitLevels = make(ProfitLevels, len(p.ProfitLevels))
		for k, v := range p.ProfitLevels {
			out.ProfitLevels[k] = v
		}
	}
	if p.ProfitsTaken != nil {
		out.ProfitsTaken = make(ProfitsTaken, len(p.ProfitsTaken))
		for k, v := range p.ProfitsTaken {
			out.ProfitsTaken[k] = v
		}
	}
	return out
}
