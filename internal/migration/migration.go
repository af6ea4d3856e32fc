// Package migration upgrades stored position records to the current schema.
package migration

import (
	"math"

	"position_engine/internal/models"
)

// Upgrade fills staged-exit fields on a record that lacks them. A record that
// already carries both profit levels and realized flags is returned unchanged,
// so Upgrade(Upgrade(r)) == Upgrade(r). changed reports whether anything was filled.
//
// stopMultiplier is the ATR multiple used for stops at entry; it recovers a
// missing ATR from the stop distance.
func Upgrade(rec models.PositionRecord, stopMultiplier float64) (out models.PositionRecord, changed bool) {
	out = rec.Clone()

	if out.HasStagedExits() {
		if out.SchemaVersion < models.PositionSchemaV2 {
			out.SchemaVersion = models.PositionSchemaV2
			return out, true
		}
		return out, false
	}

	if out.OriginalSize <= 0 {
		out.OriginalSize = out.Size
	}

	if out.HasStop() && out.Direction.Valid() && out.EntryPrice > 0 {
		out.ProfitLevels = models.ComputeProfitLevels(out.EntryPrice, out.Stop(), out.Direction)
	} else {
		out.ProfitLevels = models.ProfitLevels{}
	}
	out.ProfitsTaken = models.NewProfitsTaken()

	if out.HighWaterMark <= 0 {
		out.HighWaterMark = out.EntryPrice
	}
	out.TrailingStopActive = false

	if out.ATR <= 0 && out.HasStop() && stopMultiplier > 0 {
		out.ATR = math.Abs(out.EntryPrice-out.Stop()) / stopMultiplier
	}

	out.SchemaVersion = models.PositionSchemaV2
	return out, true
}

// UpgradeAll upgrades every record and returns the symbols that changed.
func UpgradeAll(all map[string]models.PositionRecord, stopMultiplier float64) (map[string]models.PositionRecord, []string) {
	out := make(map[string]models.PositionRecord, len(all))
	var changed []string
	for sym, rec := range all {
		up, ok := Upgrade(rec, stopMultiplier)
		if up.Symbol == "" {
			up.Symbol = sym
			ok = true
		}
		out[sym] = up
		if ok {
			changed = append(changed, sym)
		}
	}
	return out, changed
}
