package runner

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
	lifecycle "position_engine/internal/modules/lifecycle/service"
	recon "position_engine/internal/modules/reconciler/service"
	"position_engine/pkg/logger"
)

type market struct {
	mu      sync.Mutex
	missing map[string]bool
	calls   []string
}

func (m *market) GetCandles(_ context.Context, symbol, _ string, _ int) ([]models.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, symbol)
	if m.missing[symbol] {
		return nil, errors.New("timeout")
	}
	return []models.Candle{{Close: 100, Confirmed: true}}, nil
}

type signals map[string]models.Direction

func (s signals) Evaluate(symbol string, _ []models.Candle) models.Signal {
	d, ok := s[symbol]
	if !ok {
		return models.Signal{}
	}
	return models.Signal{Symbol: symbol, Direction: d, Class: models.SignalTraditional, Price: 100}
}

type engine struct {
	entered   []string
	reversed  []string
	enterErr  map[string]error
	noReverse bool
	exits     lifecycle.ExitSummary
}

func (e *engine) Enter(_ context.Context, sig models.Signal) (models.PositionRecord, error) {
	if err := e.enterErr[sig.Symbol]; err != nil {
		return models.PositionRecord{}, err
	}
	e.entered = append(e.entered, sig.Symbol)
	return models.PositionRecord{Symbol: sig.Symbol, Direction: sig.Direction}, nil
}

func (e *engine) Reverse(_ context.Context, sig models.Signal) (bool, error) {
	if e.noReverse {
		return false, nil
	}
	e.reversed = append(e.reversed, sig.Symbol)
	return true, nil
}

func (e *engine) EvaluateExits(context.Context) lifecycle.ExitSummary { return e.exits }

type syncer struct {
	due       bool
	err       error
	calls     int
	summaries int
}

func (s *syncer) Due() bool { return s.due }

func (s *syncer) Sync(context.Context) (recon.Result, error) {
	s.calls++
	return recon.Result{}, s.err
}

func (s *syncer) Summary(context.Context) (recon.Summary, error) {
	s.summaries++
	return recon.Summary{Total: 1, Positions: []recon.PositionSummary{{Symbol: "BTC-USDT-SWAP", Size: 1}}}, nil
}

type gate struct{}

func (gate) State() models.SafetyState { return models.SafetyState{LastEquity: 1000} }
func (gate) StatusLine() string        { return "safety: ok" }

type journal struct {
	archived []string
}

func (j *journal) StatusLine() string { return "journal: 0 trades" }

func (j *journal) ArchiveDay(_ context.Context, day time.Time) error {
	j.archived = append(j.archived, day.Format("2006-01-02"))
	return nil
}

type book map[string]bool

func (b book) Has(symbol string) bool { return b[symbol] }
func (b book) Len() int               { return len(b) }

type probe struct {
	cycles int
	errs   int
}

func (p *probe) TouchCycle(_ time.Time, errs int) {
	p.cycles++
	p.errs = errs
}

type harness struct {
	r       *Runner
	market  *market
	engine  *engine
	syncer  *syncer
	journal *journal
	probe   *probe
	now     time.Time
}

func newHarness(t *testing.T, sigs signals, open book) *harness {
	t.Helper()
	logger.UseNop()

	cfg := config.Defaults()
	cfg.Symbols = []string{"BTC-USDT-SWAP", "ETH-USDT-SWAP", "SOL-USDT-SWAP"}

	h := &harness{
		market:  &market{missing: map[string]bool{}},
		engine:  &engine{enterErr: map[string]error{}},
		syncer:  &syncer{},
		journal: &journal{},
		probe:   &probe{},
		now:     time.Date(2024, 6, 1, 23, 50, 0, 0, time.UTC),
	}
	if open == nil {
		open = book{}
	}
	h.r = New(Deps{
		Config:     &cfg,
		Market:     h.market,
		Signals:    sigs,
		Engine:     h.engine,
		Reconciler: h.syncer,
		Gate:       gate{},
		Journal:    h.journal,
		Ledger:     open,
		Health:     h.probe,
	})
	h.r.nowFn = func() time.Time { return h.now }
	return h
}

func TestCycleEntersOnSignals(t *testing.T) {
	h := newHarness(t, signals{
		"BTC-USDT-SWAP": models.DirectionLong,
		"SOL-USDT-SWAP": models.DirectionShort,
	}, nil)

	rep := h.r.Cycle(context.Background())

	assert.Equal(t, 2, rep.Signals)
	assert.Equal(t, 2, rep.Entries)
	assert.ElementsMatch(t, []string{"BTC-USDT-SWAP", "SOL-USDT-SWAP"}, h.engine.entered)
	assert.Len(t, h.market.calls, 3)
	assert.Zero(t, rep.Errors)
	assert.Equal(t, 1, h.probe.cycles)
}

func TestCycleSkipsSymbolsWithoutCandles(t *testing.T) {
	h := newHarness(t, signals{"BTC-USDT-SWAP": models.DirectionLong}, nil)
	h.market.missing["BTC-USDT-SWAP"] = true

	rep := h.r.Cycle(context.Background())

	assert.Zero(t, rep.Entries)
	assert.Equal(t, 1, rep.Errors)
	assert.Equal(t, 1, h.probe.errs)
}

func TestCycleReversesBeforeEntering(t *testing.T) {
	h := newHarness(t, signals{"ETH-USDT-SWAP": models.DirectionShort}, book{"ETH-USDT-SWAP": true})

	rep := h.r.Cycle(context.Background())

	assert.Equal(t, []string{"ETH-USDT-SWAP"}, h.engine.reversed)
	assert.Equal(t, []string{"ETH-USDT-SWAP"}, h.engine.entered)
	assert.Equal(t, 1, rep.Reversals)
	assert.Equal(t, 1, rep.Entries)
}

func TestCycleKeepsSameDirectionPosition(t *testing.T) {
	h := newHarness(t, signals{"ETH-USDT-SWAP": models.DirectionLong}, book{"ETH-USDT-SWAP": true})
	h.engine.noReverse = true

	rep := h.r.Cycle(context.Background())

	assert.Empty(t, h.engine.entered)
	assert.Zero(t, rep.Reversals)
	assert.Zero(t, rep.Errors)
}

func TestSafetyRejectionIsNotAnError(t *testing.T) {
	h := newHarness(t, signals{
		"BTC-USDT-SWAP": models.DirectionLong,
		"ETH-USDT-SWAP": models.DirectionLong,
	}, nil)
	h.engine.enterErr["BTC-USDT-SWAP"] = apperr.New(apperr.KindSafetyRejection, "enter", "BTC-USDT-SWAP", errors.New("emergency stop"))
	h.engine.enterErr["ETH-USDT-SWAP"] = apperr.New(apperr.KindOrderRejected, "enter", "ETH-USDT-SWAP", errors.New("51008"))

	rep := h.r.Cycle(context.Background())

	assert.Zero(t, rep.Entries)
	assert.Equal(t, 1, rep.Errors)
}

func TestCycleCountsExitErrors(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.engine.exits = lifecycle.ExitSummary{Evaluated: 2, Partials: 1, Errors: []error{errors.New("no price")}}

	rep := h.r.Cycle(context.Background())

	assert.Equal(t, 1, rep.Exits.Partials)
	assert.Equal(t, 1, rep.Errors)
}

func TestSyncRunsOnlyWhenDue(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.r.Cycle(context.Background())
	assert.Zero(t, h.syncer.calls)

	h.syncer.due = true
	rep := h.r.Cycle(context.Background())
	assert.Equal(t, 1, h.syncer.calls)
	assert.Equal(t, 1, h.syncer.summaries)
	assert.True(t, rep.Synced)

	h.syncer.err = errors.New("timeout")
	rep = h.r.Cycle(context.Background())
	assert.False(t, rep.Synced)
	assert.Equal(t, 1, rep.Errors)
}

func TestArchiveOnDayRollover(t *testing.T) {
	h := newHarness(t, nil, nil)

	h.r.Cycle(context.Background())
	assert.Empty(t, h.journal.archived)

	h.now = h.now.Add(5 * time.Minute)
	h.r.Cycle(context.Background())
	assert.Empty(t, h.journal.archived)

	h.now = h.now.Add(15 * time.Minute)
	h.r.Cycle(context.Background())
	require.Len(t, h.journal.archived, 1)
	assert.Equal(t, "2024-06-01", h.journal.archived[0])
}

func TestRunStopsWithContext(t *testing.T) {
	h := newHarness(t, nil, nil)
	h.r.cfg.Runner.CycleInterval = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.r.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return len(h.marketCalls()) > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
}

func (h *harness) marketCalls() []string {
	h.market.mu.Lock()
	defer h.market.mu.Unlock()
	return append([]string(nil), h.market.calls...)
}

func TestStatusLine(t *testing.T) {
	h := newHarness(t, nil, book{"BTC-USDT-SWAP": true})
	line := h.r.StatusLine()
	assert.Contains(t, line, "safety: ok")
	assert.Contains(t, line, "open positions: 1")
}
