package main

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	portfolio "position_engine/internal/modules/portfolio/service"
	store "position_engine/internal/modules/store/service"
	"position_engine/pkg/logger"
)

func newCtl(t *testing.T) (*ctl, *bytes.Buffer, store.Store) {
	t.Helper()
	logger.UseNop()

	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Store.Backend = "file"
	cfg.Store.Path = filepath.Join(dir, "active_positions.json")
	cfg.Store.SafetyPath = filepath.Join(dir, "safety_state.json")
	cfg.Portfolio.JournalPath = filepath.Join(dir, "trades_history.json")

	out := &bytes.Buffer{}
	c := &ctl{cfg: &cfg, out: out, nowFn: func() time.Time {
		return time.Date(2024, 6, 2, 12, 0, 0, 0, time.UTC)
	}}
	st, closeFn, err := openStore(context.Background(), &cfg)
	require.NoError(t, err)
	t.Cleanup(closeFn)
	return c, out, st
}

func legacyRecord() models.PositionRecord {
	rec := models.PositionRecord{
		SchemaVersion: models.PositionSchemaV1,
		Symbol:        "ETH-USDT-SWAP",
		Direction:     models.DirectionShort,
		EntryPrice:    2000,
		Size:          3,
		OpenedAt:      time.Date(2024, 6, 2, 10, 0, 0, 0, time.UTC),
	}
	rec.SetStop(2100)
	return rec
}

func TestPositionsTable(t *testing.T) {
	c, out, st := newCtl(t)
	ctx := context.Background()

	require.NoError(t, c.positions(ctx, st))
	assert.Contains(t, out.String(), "no stored positions")

	out.Reset()
	require.NoError(t, st.Save(ctx, "ETH-USDT-SWAP", legacyRecord()))
	require.NoError(t, c.positions(ctx, st))
	assert.Contains(t, out.String(), "ETH-USDT-SWAP")
	assert.Contains(t, out.String(), "SHORT")
	assert.Contains(t, out.String(), "2100")
}

func TestMigrateUpgradesLegacyRecords(t *testing.T) {
	c, out, st := newCtl(t)
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, "ETH-USDT-SWAP", legacyRecord()))

	require.NoError(t, c.migrate(ctx, st))
	assert.Contains(t, out.String(), "1 upgraded")

	rec, ok, err := st.Load(ctx, "ETH-USDT-SWAP")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.PositionSchemaV2, rec.SchemaVersion)
	assert.InDelta(t, 1900, rec.ProfitLevels[models.Level1R], 1e-9)
	assert.InDelta(t, 3, rec.OriginalSize, 1e-9)

	out.Reset()
	require.NoError(t, c.migrate(ctx, st))
	assert.Contains(t, out.String(), "0 upgraded")
}

func TestResetEmergencyStop(t *testing.T) {
	c, out, st := newCtl(t)
	ctx := context.Background()

	require.NoError(t, c.resetEmergencyStop(ctx, st))
	assert.Contains(t, out.String(), "not set")

	require.NoError(t, st.SaveSafety(ctx, models.SafetyState{
		StartingEquity:  1000,
		EmergencyStop:   true,
		EmergencyReason: "equity kill switch",
		TriggeredAt:     time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}))
	out.Reset()
	require.NoError(t, c.resetEmergencyStop(ctx, st))
	assert.Contains(t, out.String(), "equity kill switch")

	state, ok, err := st.LoadSafety(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.False(t, state.EmergencyStop)
	assert.Equal(t, 1000.0, state.StartingEquity)
}

func TestClearRemovesEverything(t *testing.T) {
	c, out, st := newCtl(t)
	ctx := context.Background()
	require.NoError(t, st.Save(ctx, "ETH-USDT-SWAP", legacyRecord()))

	require.NoError(t, c.clear(ctx, st))
	assert.Contains(t, out.String(), "removed 1")

	all, err := st.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func seedJournal(t *testing.T, c *ctl) {
	t.Helper()
	p := portfolio.NewPortfolio(c.cfg.Portfolio.JournalPath, nil)
	closed := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	for _, tr := range []models.TradeRecord{
		{Symbol: "SOL-USDT-SWAP", Direction: models.DirectionLong, EntryPrice: 100, ExitPrice: 110, Size: 25, ContractMultiplier: 1, ExitReason: models.PartialExitReason(models.Level1R), ClosedAt: closed},
		{Symbol: "SOL-USDT-SWAP", Direction: models.DirectionLong, EntryPrice: 100, ExitPrice: 90, Size: 75, ContractMultiplier: 1, ExitReason: models.ExitStopLoss, ClosedAt: closed.Add(time.Hour)},
		{Symbol: "BTC-USDT-SWAP", Direction: models.DirectionShort, EntryPrice: 60000, ExitPrice: 59000, Size: 1, ContractMultiplier: 0.01, ExitReason: models.ExitReversal, ClosedAt: closed.Add(2 * time.Hour)},
	} {
		require.NoError(t, p.RecordTrade(context.Background(), tr))
	}
}

func TestReport(t *testing.T) {
	c, out, _ := newCtl(t)

	require.NoError(t, c.report(7))
	assert.Contains(t, out.String(), "empty")

	seedJournal(t, c)
	out.Reset()
	require.NoError(t, c.report(7))
	s := out.String()
	assert.Contains(t, s, "PERFORMANCE")
	assert.Contains(t, s, "2024-06-01")
	assert.Contains(t, s, "BTC-USDT-SWAP")
	assert.Contains(t, s, "-490.00")
}

func TestExportWorkbook(t *testing.T) {
	c, out, _ := newCtl(t)
	seedJournal(t, c)

	path := filepath.Join(t.TempDir(), "reports", "trades.xlsx")
	require.NoError(t, c.export(path))
	assert.Contains(t, out.String(), "exported 3 trades")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(tradesSheet)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Symbol", rows[0][1])
	assert.Equal(t, "SOL-USDT-SWAP", rows[1][1])
	assert.Equal(t, "PARTIAL_1R", rows[1][6])

	summary, err := f.GetRows(summarySheet)
	require.NoError(t, err)
	require.Len(t, summary, 4)
	assert.Equal(t, "TOTAL", summary[3][0])
}
