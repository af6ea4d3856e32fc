package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
)

func newRecord(symbol string, entry, stop float64) models.PositionRecord {
	rec := models.PositionRecord{
		SchemaVersion: models.PositionSchemaCurrent,
		Symbol:        symbol,
		Direction:     models.DirectionLong,
		EntryPrice:    entry,
		Size:          10,
		OriginalSize:  10,
		ProfitLevels:  models.ComputeProfitLevels(entry, stop, models.DirectionLong),
		ProfitsTaken:  models.NewProfitsTaken(),
		HighWaterMark: entry,
		ATR:           1.5,
		SignalClass:   models.SignalTraditional,
		OpenedAt:      time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
	rec.SetStop(stop)
	return rec
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "positions.json"), filepath.Join(dir, "safety.json"))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, ok, err := s.Load(ctx, "SOL-USDT-SWAP")
	require.NoError(t, err)
	assert.False(t, ok)

	sol := newRecord("SOL-USDT-SWAP", 100, 90)
	eth := newRecord("ETH-USDT-SWAP", 2000, 1900)
	require.NoError(t, s.Save(ctx, sol.Symbol, sol))
	require.NoError(t, s.Save(ctx, eth.Symbol, eth))

	got, ok, err := s.Load(ctx, "SOL-USDT-SWAP")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sol, got)
	assert.Equal(t, 110.0, got.ProfitLevels[models.Level1R])

	all, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, s.Remove(ctx, "SOL-USDT-SWAP"))
	require.NoError(t, s.Remove(ctx, "SOL-USDT-SWAP"))
	all, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
	assert.Contains(t, all, "ETH-USDT-SWAP")

	require.NoError(t, s.ClearAll(ctx))
	all, err = s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestFileStoreNilStopSurvives(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "p.json"), "")

	rec := models.PositionRecord{
		SchemaVersion:      models.PositionSchemaCurrent,
		Symbol:             "XRP-USDT-SWAP",
		Direction:          models.DirectionShort,
		EntryPrice:         0.5,
		Size:               100,
		OriginalSize:       100,
		SignalClass:        models.SignalManual,
		SyncedFromExchange: true,
	}
	require.NoError(t, s.Save(ctx, rec.Symbol, rec))

	got, ok, err := s.Load(ctx, rec.Symbol)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Nil(t, got.StopLoss)
	assert.False(t, got.HasStop())
	assert.True(t, got.SyncedFromExchange)
}

func TestFileStoreIgnoresLeftoverTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "positions.json")
	s := NewFileStore(path, filepath.Join(dir, "safety.json"))

	rec := newRecord("BTC-USDT-SWAP", 60000, 58000)
	require.NoError(t, s.Save(ctx, rec.Symbol, rec))

	// a crash mid-write leaves only a temp file behind
	require.NoError(t, os.WriteFile(filepath.Join(dir, "positions.json.123.tmp"), []byte(`{"BTC-USDT-SWAP":{"entry`), 0o644))

	all, err := s.LoadAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, all["BTC-USDT-SWAP"])
}

func TestFileStoreCorruptFileIsStorageError(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "positions.json")
	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))

	s := NewFileStore(path, "")
	_, err := s.LoadAll(ctx)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStorage))
}

func TestFileStoreSafetyState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(filepath.Join(dir, "p.json"), filepath.Join(dir, "safety.json"))

	_, ok, err := s.LoadSafety(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	st := models.SafetyState{
		StartingEquity:    10000,
		EmergencyStop:     true,
		EmergencyReason:   "equity kill switch",
		TriggeredAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		ConsecutiveLosses: 2,
	}
	require.NoError(t, s.SaveSafety(ctx, st))

	got, ok, err := s.LoadSafety(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, st, got)
}

// Файл старого формата: без symbol и profit_levels, opened_at в секундах.
const legacyPositionsFile = `{
  "ETH-USDT-SWAP": {
    "direction": "long",
    "entry_price": 2300.5,
    "size": 3,
    "stop_loss": 2250.5,
    "take_profit": 2400.5,
    "signal_type": "traditional",
    "opened_at": 1706774400.123,
    "paper_trade": true
  }
}`

func TestFileStoreReadsLegacyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "active_positions.json")
	require.NoError(t, os.WriteFile(path, []byte(legacyPositionsFile), 0o644))
	s := NewFileStore(path, filepath.Join(dir, "safety.json"))

	all, err := s.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 1)

	rec := all["ETH-USDT-SWAP"]
	assert.Equal(t, models.DirectionLong, rec.Direction)
	assert.Equal(t, 2250.5, rec.Stop())
	assert.True(t, rec.PaperTrade)
	assert.False(t, rec.HasStagedExits())
	assert.Equal(t, time.Date(2024, 2, 1, 8, 0, 0, 123000000, time.UTC), rec.OpenedAt)
}
