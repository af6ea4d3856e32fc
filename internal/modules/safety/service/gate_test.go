package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	"position_engine/internal/notify"
	"position_engine/pkg/logger"
)

type fakeAccount struct {
	mu        sync.Mutex
	equity    float64
	equityErr error
	available float64
	marginErr error
}

func (f *fakeAccount) GetAccountEquity(context.Context) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.equity, f.equityErr
}

func (f *fakeAccount) GetMarginInfo(context.Context) (models.MarginInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return models.MarginInfo{Available: f.available, TotalEquity: f.equity}, f.marginErr
}

func (f *fakeAccount) set(equity float64) {
	f.mu.Lock()
	f.equity = equity
	f.mu.Unlock()
}

type memState struct {
	st    models.SafetyState
	ok    bool
	saves int
}

func (m *memState) LoadSafety(context.Context) (models.SafetyState, bool, error) { return m.st, m.ok, nil }

func (m *memState) SaveSafety(_ context.Context, st models.SafetyState) error {
	m.st, m.ok = st, true
	m.saves++
	return nil
}

type specs map[string]models.SymbolSpec

func (s specs) Spec(symbol string) models.SymbolSpec { return s[symbol] }

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGate(t *testing.T, acc *fakeAccount, mutate func(*config.Config)) (*Gate, *memState, *clock, *notify.Recorder) {
	t.Helper()
	logger.UseNop()

	cfg := config.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}
	st := &memState{}
	rec := &notify.Recorder{}
	clk := &clock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}

	g := NewGate(&cfg, acc, st, specs{
		"BTC-USDT-SWAP": {ContractMultiplier: 0.01, SafetyLeverage: 20},
		"SOL-USDT-SWAP": {ContractMultiplier: 1, SafetyLeverage: 15},
	}, rec, nil)
	g.nowFn = clk.Now
	require.NoError(t, g.Load(context.Background()))
	return g, st, clk, rec
}

func TestKillSwitchIsSticky(t *testing.T) {
	ctx := context.Background()
	acc := &fakeAccount{equity: 10000}
	g, st, clk, rec := newTestGate(t, acc, nil)

	assert.True(t, g.ShouldAllowTrading(ctx, 0))

	acc.set(5000)
	clk.Advance(5 * time.Minute)
	assert.False(t, g.ShouldAllowTrading(ctx, 0))
	assert.True(t, g.State().EmergencyStop)
	assert.Equal(t, ReasonKillSwitch, g.State().EmergencyReason)
	assert.True(t, st.st.EmergencyStop, "flag is persisted")
	assert.Len(t, rec.Messages(), 1)

	// recovery does not clear it
	acc.set(12000)
	clk.Advance(time.Hour)
	assert.False(t, g.ShouldAllowTrading(ctx, 0))

	require.NoError(t, g.ResetEmergencyStop(ctx))
	assert.False(t, st.st.EmergencyStop)
	assert.True(t, g.ShouldAllowTrading(ctx, 0))
}

func TestEquityThresholds(t *testing.T) {
	tests := []struct {
		name   string
		equity float64
		allow  bool
		reason string
	}{
		{"healthy", 9900, true, ""},
		{"daily loss at limit", 9500, false, ReasonDailyLoss},
		{"kill switch above daily loss", 4000, false, ReasonKillSwitch},
		{"kill switch exact", 5000, false, ReasonKillSwitch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _, _ := newTestGate(t, &fakeAccount{equity: tt.equity}, nil)
			assert.Equal(t, tt.allow, g.ShouldAllowTrading(context.Background(), 0))
			assert.Equal(t, tt.reason, g.State().EmergencyReason)
		})
	}
}

func TestEquityCheckInterval(t *testing.T) {
	ctx := context.Background()
	acc := &fakeAccount{equity: 10000}
	g, _, clk, _ := newTestGate(t, acc, nil)

	require.True(t, g.ShouldAllowTrading(ctx, 0))

	// breach is only seen on the next scheduled check
	acc.set(4000)
	clk.Advance(time.Minute)
	assert.True(t, g.ShouldAllowTrading(ctx, 0))

	clk.Advance(4 * time.Minute)
	assert.False(t, g.ShouldAllowTrading(ctx, 0))
}

func TestEquityErrorFailsOpen(t *testing.T) {
	g, _, _, _ := newTestGate(t, &fakeAccount{equityErr: errors.New("timeout")}, nil)
	assert.True(t, g.ShouldAllowTrading(context.Background(), 0))
	assert.False(t, g.State().EmergencyStop)
}

func TestMaxOpenTrades(t *testing.T) {
	g, _, _, _ := newTestGate(t, &fakeAccount{equity: 10000}, nil)
	assert.True(t, g.ShouldAllowTrading(context.Background(), 4))
	assert.False(t, g.ShouldAllowTrading(context.Background(), 5))
}

func TestConsecutiveLossCooldown(t *testing.T) {
	ctx := context.Background()
	g, st, clk, rec := newTestGate(t, &fakeAccount{equity: 10000}, nil)

	g.RecordTradeResult(ctx, -10)
	g.RecordTradeResult(ctx, 5)
	assert.Equal(t, 0, g.State().ConsecutiveLosses)

	for i := 0; i < 3; i++ {
		g.RecordTradeResult(ctx, -10)
	}
	assert.Equal(t, 3, st.st.ConsecutiveLosses)
	assert.False(t, g.ShouldAllowTrading(ctx, 0))
	assert.Len(t, rec.Messages(), 1)

	clk.Advance(time.Hour)
	assert.True(t, g.ShouldAllowTrading(ctx, 0))
	assert.False(t, g.State().EmergencyStop)
}

func TestBreakevenStopCountsAsLoss(t *testing.T) {
	ctx := context.Background()
	g, _, _, _ := newTestGate(t, &fakeAccount{equity: 10000}, nil)

	g.RecordTradeResult(ctx, -10)
	g.RecordTradeResult(ctx, 0)
	assert.Equal(t, 2, g.State().ConsecutiveLosses)

	g.RecordTradeResult(ctx, 0.01)
	assert.Equal(t, 0, g.State().ConsecutiveLosses)
}

func TestValidateTradeSize(t *testing.T) {
	tests := []struct {
		name   string
		symbol string
		size   float64
		price  float64
		kind   apperr.Kind
	}{
		// 100*50/15 = 333 margin vs 2500 cap
		{"passes", "SOL-USDT-SWAP", 100, 50, ""},
		// 1000*50/15 = 3333 > 2500
		{"margin too high", "SOL-USDT-SWAP", 1000, 50, apperr.KindSafetyRejection},
		{"below min notional", "SOL-USDT-SWAP", 0.1, 50, apperr.KindSafetyRejection},
		// 10 contracts * 0.01 * 60000 = 6000 notional / 20 = 300
		{"multiplier applied", "BTC-USDT-SWAP", 10, 60000, ""},
		// unknown symbol: leverage 10, 600*50/10 = 3000
		{"default leverage", "DOGE-USDT-SWAP", 600, 50, apperr.KindSafetyRejection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, _, _, _ := newTestGate(t, &fakeAccount{equity: 10000, available: 10000}, nil)
			err := g.ValidateTradeSize(context.Background(), tt.symbol, tt.size, tt.price)
			if tt.kind == "" {
				assert.NoError(t, err)
				return
			}
			assert.True(t, apperr.Is(err, tt.kind), "got %v", err)
		})
	}
}

func TestValidateTradeSizeFailsClosed(t *testing.T) {
	g, _, _, _ := newTestGate(t, &fakeAccount{marginErr: errors.New("down")}, nil)
	err := g.ValidateTradeSize(context.Background(), "SOL-USDT-SWAP", 1, 50)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAccountData))
}

func TestLoadKeepsPersistedStop(t *testing.T) {
	logger.UseNop()
	cfg := config.Defaults()
	st := &memState{ok: true, st: models.SafetyState{EmergencyStop: true, EmergencyReason: ReasonDailyLoss}}

	g := NewGate(&cfg, &fakeAccount{equity: 10000}, st, specs{}, nil, nil)
	require.NoError(t, g.Load(context.Background()))
	assert.Equal(t, 10000.0, g.State().StartingEquity)
	assert.False(t, g.ShouldAllowTrading(context.Background(), 0))
}

func TestUpdateStartingEquity(t *testing.T) {
	ctx := context.Background()
	acc := &fakeAccount{equity: 9400}
	g, st, _, _ := newTestGate(t, acc, nil)

	require.NoError(t, g.UpdateStartingEquity(ctx, 9400))
	assert.Equal(t, 9400.0, st.st.StartingEquity)
	assert.True(t, g.ShouldAllowTrading(ctx, 0))

	assert.Error(t, g.UpdateStartingEquity(ctx, 0))
}

func TestSafePositionSize(t *testing.T) {
	ctx := context.Background()
	g, _, _, _ := newTestGate(t, &fakeAccount{equity: 10000, available: 10000}, nil)

	// risk 200, distance 5 -> 40, capped at 2000/100 = 20
	size, err := g.SafePositionSize(ctx, "SOL-USDT-SWAP", 100, 95)
	require.NoError(t, err)
	assert.InDelta(t, 20.0, size, 1e-9)

	// risk 200, distance 50 -> 4 contracts, notional 400
	size, err = g.SafePositionSize(ctx, "SOL-USDT-SWAP", 100, 50)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, size, 1e-9)

	_, err = g.SafePositionSize(ctx, "SOL-USDT-SWAP", 100, 100)
	assert.True(t, apperr.Is(err, apperr.KindSizing))
}
