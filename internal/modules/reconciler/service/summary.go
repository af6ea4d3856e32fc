package service

import (
	"context"

	"position_engine/internal/apperr"
)

type PositionSummary struct {
	Symbol        string
	Direction     string
	Size          float64
	AvgPrice      float64
	UnrealizedPnL float64
	PnLRatioPct   float64
	Tracked       bool
	HasStop       bool
}

type Summary struct {
	Total         int
	UnrealizedPnL float64
	Positions     []PositionSummary
}

// Summary reports the exchange's open positions and whether the ledger tracks each.
func (r *Reconciler) Summary(ctx context.Context) (Summary, error) {
	positions, err := r.exchange.GetPositions(ctx)
	if err != nil {
		return Summary{}, apperr.New(apperr.KindReconcile, "reconciler.Summary", "", err)
	}

	var s Summary
	for _, p := range positions {
		if p.Size <= 0 {
			continue
		}
		rec, tracked := r.ledger.Get(p.Symbol)
		s.Total++
		s.UnrealizedPnL += p.UnrealizedPnL
		s.Positions = append(s.Positions, PositionSummary{
			Symbol:        p.Symbol,
			Direction:     string(p.Direction),
			Size:          p.Size,
			AvgPrice:      p.AvgPrice,
			UnrealizedPnL: p.UnrealizedPnL,
			PnLRatioPct:   p.UnrealizedPnLRatio * 100,
			Tracked:       tracked,
			HasStop:       tracked && rec.HasStop(),
		})
	}
	return s, nil
}
