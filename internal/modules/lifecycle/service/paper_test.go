package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position_engine/internal/models"
	okx "position_engine/internal/modules/okx_client/service"
)

type quotes map[string]float64

func (q quotes) GetTicker(_ context.Context, symbol string) (float64, error) {
	p, ok := q[symbol]
	if !ok {
		return 0, errors.New("no ticker")
	}
	return p, nil
}

func (q quotes) GetCandles(context.Context, string, string, int) ([]models.Candle, error) {
	return nil, nil
}

// restoredPaper is a paper position loaded from the store after a restart.
func restoredPaper(t *testing.T, h *harness) models.PositionRecord {
	t.Helper()
	rec := models.PositionRecord{
		SchemaVersion: models.PositionSchemaV2,
		Symbol:        sol,
		Direction:     models.DirectionLong,
		EntryPrice:    100,
		Size:          100,
		OriginalSize:  100,
		ProfitLevels:  models.ComputeProfitLevels(100, 90, models.DirectionLong),
		ProfitsTaken:  models.NewProfitsTaken(),
		HighWaterMark: 100,
		SignalClass:   models.SignalTraditional,
		OpenedAt:      h.now.Add(-3 * time.Hour),
		PaperTrade:    true,
	}
	rec.SetStop(90)
	h.ledger.Put(rec)
	require.NoError(t, h.store.Save(context.Background(), sol, rec))
	return rec
}

func TestRestoredPaperPositionClosesOnStop(t *testing.T) {
	h := newHarness(t)
	restoredPaper(t, h)

	px := quotes{sol: 85}
	h.engine.exchange = okx.NewPaperExchange(px, 10000, 0.8)

	sum := h.engine.EvaluateExits(context.Background())
	assert.Empty(t, sum.Errors)
	assert.Equal(t, 1, sum.Closed)
	assert.False(t, h.ledger.Has(sol))

	require.Len(t, h.sink.trades, 1)
	assert.Equal(t, models.ExitStopLoss, h.sink.trades[0].ExitReason)
	assert.True(t, h.sink.trades[0].Paper)
}

func TestRestoredPaperPositionTakesPartial(t *testing.T) {
	h := newHarness(t)
	restoredPaper(t, h)

	h.engine.exchange = okx.NewPaperExchange(quotes{sol: 110}, 10000, 0.8)

	sum := h.engine.EvaluateExits(context.Background())
	assert.Empty(t, sum.Errors)
	assert.Equal(t, 1, sum.Partials)

	pos := h.position(t)
	assert.Equal(t, 75.0, pos.Size)
	assert.True(t, pos.ProfitsTaken[models.Level1R])
}
