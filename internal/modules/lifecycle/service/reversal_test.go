package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position_engine/internal/models"
	"position_engine/internal/modules/config"
)

func TestReversalBlock(t *testing.T) {
	cfg := config.ReversalConfig{MinR: 0.5, MinPnLPct: 2, MinHold: 2 * time.Hour}
	opened := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	rec := models.PositionRecord{
		Symbol:       sol,
		Direction:    models.DirectionLong,
		EntryPrice:   100,
		ProfitLevels: models.ComputeProfitLevels(100, 90, models.DirectionLong),
		SignalClass:  models.SignalTraditional,
		OpenedAt:     opened,
	}
	rec.SetStop(90)
	momentum := rec.Clone()
	momentum.SignalClass = models.SignalMomentum

	short := func(class models.SignalClass) models.Signal {
		return models.Signal{Symbol: sol, Direction: models.DirectionShort, Class: class}
	}

	tests := []struct {
		name    string
		rec     models.PositionRecord
		sig     models.Signal
		price   float64
		age     time.Duration
		blocked string
	}{
		{"half R in profit", rec, short(models.SignalTraditional), 106, 3 * time.Hour, "profit protection"},
		{"pnl above threshold", rec, short(models.SignalTraditional), 102.5, 3 * time.Hour, "profit protection"},
		{"too young", rec, short(models.SignalTraditional), 99, time.Hour, "too young"},
		{"lower class", momentum, short(models.SignalTraditional), 99, 3 * time.Hour, "does not override"},
		{"allowed", rec, short(models.SignalTraditional), 99, 3 * time.Hour, ""},
		{"momentum over traditional", rec, short(models.SignalMomentum), 95, 3 * time.Hour, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ReversalBlock(cfg, tt.rec, tt.sig, tt.price, opened.Add(tt.age))
			if tt.blocked == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.blocked)
		})
	}
}

func TestReverseClosesAllowedPosition(t *testing.T) {
	h := newHarness(t)
	h.open(t, 100)

	h.now = h.now.Add(3 * time.Hour)
	h.ex.setPrice(99)

	reversed, err := h.engine.Reverse(context.Background(), models.Signal{
		Symbol: sol, Direction: models.DirectionShort, Class: models.SignalTraditional,
	})
	require.NoError(t, err)
	assert.True(t, reversed)

	assert.False(t, h.ledger.Has(sol))
	_, stored := h.store.get(sol)
	assert.False(t, stored)

	require.Len(t, h.ex.orders, 1)
	assert.True(t, h.ex.orders[0].ReduceOnly)
	assert.Equal(t, models.SideSell, h.ex.orders[0].Side)

	require.Len(t, h.sink.trades, 1)
	assert.Equal(t, models.ExitReversal, h.sink.trades[0].ExitReason)
	assert.InDelta(t, -100, h.sink.trades[0].PnL, 1e-9)
	assert.Empty(t, h.gate.results)
}

func TestReverseIgnoresSameDirectionAndBlockedSignals(t *testing.T) {
	h := newHarness(t)
	h.open(t, 100)

	same, err := h.engine.Reverse(context.Background(), models.Signal{
		Symbol: sol, Direction: models.DirectionLong, Class: models.SignalMomentum,
	})
	require.NoError(t, err)
	assert.False(t, same)

	// 30 минут: слишком рано
	h.now = h.now.Add(30 * time.Minute)
	h.ex.setPrice(99)
	young, err := h.engine.Reverse(context.Background(), models.Signal{
		Symbol: sol, Direction: models.DirectionShort, Class: models.SignalTraditional,
	})
	require.NoError(t, err)
	assert.False(t, young)

	assert.Zero(t, h.ex.orderCount())
	pos := h.position(t)
	assert.Equal(t, 90.0, pos.Stop())
}

func TestReverseKeepsPositionWhenCloseFails(t *testing.T) {
	h := newHarness(t)
	h.open(t, 100)
	h.now = h.now.Add(3 * time.Hour)
	h.ex.setPrice(99)
	h.ex.failExit = assert.AnError

	reversed, err := h.engine.Reverse(context.Background(), models.Signal{
		Symbol: sol, Direction: models.DirectionShort, Class: models.SignalTraditional,
	})
	require.Error(t, err)
	assert.False(t, reversed)
	assert.Equal(t, 100.0, h.position(t).Size)
}
