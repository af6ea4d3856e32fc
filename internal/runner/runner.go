package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	lifecycle "position_engine/internal/modules/lifecycle/service"
	metrics "position_engine/internal/modules/metrics/service"
	recon "position_engine/internal/modules/reconciler/service"
	"position_engine/pkg/logger"
	"position_engine/pkg/tracing"
)

type MarketData interface {
	GetCandles(ctx context.Context, symbol, bar string, limit int) ([]models.Candle, error)
}

type SignalSource interface {
	Evaluate(symbol string, candles []models.Candle) models.Signal
}

type Lifecycle interface {
	Enter(ctx context.Context, sig models.Signal) (models.PositionRecord, error)
	Reverse(ctx context.Context, sig models.Signal) (bool, error)
	EvaluateExits(ctx context.Context) lifecycle.ExitSummary
}

type Reconciler interface {
	Due() bool
	Sync(ctx context.Context) (recon.Result, error)
	Summary(ctx context.Context) (recon.Summary, error)
}

type Gate interface {
	State() models.SafetyState
	StatusLine() string
}

type Journal interface {
	StatusLine() string
	ArchiveDay(ctx context.Context, day time.Time) error
}

type Ledger interface {
	Has(symbol string) bool
	Len() int
}

type Health interface {
	TouchCycle(t time.Time, errs int)
}

// Report is what one cycle did.
type Report struct {
	Signals   int
	Entries   int
	Reversals int
	Exits     lifecycle.ExitSummary
	Synced    bool
	Errors    int
	Duration  time.Duration
}

// Runner drives the cycle: entries, exits, periodic sync. Cycles never overlap.
type Runner struct {
	cfg        *config.Config
	market     MarketData
	signals    SignalSource
	engine     Lifecycle
	reconciler Reconciler
	gate       Gate
	journal    Journal
	ledger     Ledger
	health     Health
	metrics    *metrics.Metrics
	nowFn      func() time.Time

	mu      sync.Mutex
	lastDay time.Time
}

type Deps struct {
	Config     *config.Config
	Market     MarketData
	Signals    SignalSource
	Engine     Lifecycle
	Reconciler Reconciler
	Gate       Gate
	Journal    Journal
	Ledger     Ledger
	Health     Health
	Metrics    *metrics.Metrics
}

func New(d Deps) *Runner {
	return &Runner{
		cfg:        d.Config,
		market:     d.Market,
		signals:    d.Signals,
		engine:     d.Engine,
		reconciler: d.Reconciler,
		gate:       d.Gate,
		journal:    d.Journal,
		ledger:     d.Ledger,
		health:     d.Health,
		metrics:    d.Metrics,
		nowFn:      time.Now,
	}
}

// Run cycles until ctx is done. The first cycle starts immediately.
func (r *Runner) Run(ctx context.Context) {
	interval := r.cfg.Runner.CycleInterval
	logger.Info("[RUNNER] ▶️ cycle every %s over %d symbols", interval, len(r.cfg.Symbols))

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		r.Cycle(ctx)
		select {
		case <-ctx.Done():
			logger.Info("[RUNNER] stopped")
			return
		case <-t.C:
		}
	}
}

// Cycle runs one full pass.
func (r *Runner) Cycle(ctx context.Context) Report {
	start := r.nowFn()
	span, ctx := tracing.StartSpan(ctx, "cycle")

	var rep Report
	r.entryPass(ctx, &rep)
	if ctx.Err() == nil {
		r.exitPass(ctx, &rep)
	}
	if ctx.Err() == nil {
		r.syncPass(ctx, &rep)
	}
	r.archivePass(ctx, start)

	if st := r.gate.State(); st.LastEquity > 0 {
		r.metrics.Equity(st.LastEquity)
	}
	r.metrics.OpenPositions(r.ledger.Len())

	rep.Duration = r.nowFn().Sub(start)
	r.metrics.Cycle(rep.Duration)
	r.health.TouchCycle(r.nowFn(), rep.Errors)

	logger.Info("[CYCLE] signals=%d entries=%d reversals=%d partials=%d closed=%d synced=%v errors=%d open=%d took=%s",
		rep.Signals, rep.Entries, rep.Reversals, rep.Exits.Partials, rep.Exits.Closed, rep.Synced, rep.Errors,
		r.ledger.Len(), rep.Duration.Round(time.Millisecond))
	logger.Debug("[CYCLE] %s", r.StatusLine())

	var spanErr error
	if rep.Errors > 0 {
		spanErr = fmt.Errorf("%d errors", rep.Errors)
	}
	tracing.Finish(span, spanErr)
	return rep
}

func (r *Runner) entryPass(ctx context.Context, rep *Report) {
	span, ctx := tracing.StartSpan(ctx, "entries")
	defer tracing.Finish(span, nil)

	candles, failed := r.prefetch(ctx, r.cfg.Symbols)
	rep.Errors += failed

	for _, symbol := range r.cfg.Symbols {
		if ctx.Err() != nil {
			return
		}
		bars, ok := candles[symbol]
		if !ok {
			continue
		}
		sig := r.signals.Evaluate(symbol, bars)
		if sig.Empty() {
			continue
		}
		rep.Signals++
		log := logger.Symbol(symbol)
		log.Info("signal", zap.String("direction", string(sig.Direction)), zap.String("class", string(sig.Class)), zap.String("reason", sig.Reason))

		if r.ledger.Has(symbol) {
			reversed, err := r.engine.Reverse(ctx, sig)
			if err != nil {
				rep.Errors++
				log.Warn("reversal failed", zap.Error(err))
				continue
			}
			if !reversed {
				continue
			}
			rep.Reversals++
		}

		if _, err := r.engine.Enter(ctx, sig); err != nil {
			if apperr.Is(err, apperr.KindSafetyRejection) {
				log.Info("entry blocked", zap.Error(err))
				continue
			}
			rep.Errors++
			log.Warn("entry failed", zap.String("kind", string(apperr.KindOf(err))), zap.Error(err))
			continue
		}
		rep.Entries++
	}
}

// prefetch loads signal candles for all symbols concurrently. A symbol without
// candles is skipped this cycle.
func (r *Runner) prefetch(ctx context.Context, symbols []string) (map[string][]models.Candle, int) {
	var (
		mu     sync.Mutex
		out    = make(map[string][]models.Candle, len(symbols))
		failed int
	)

	limit := r.cfg.Runner.Concurrency
	if limit < 1 {
		limit = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for _, symbol := range symbols {
		g.Go(func() error {
			bars, err := r.market.GetCandles(gctx, symbol, r.cfg.Runner.SignalBar, r.cfg.Runner.SignalCandles)
			mu.Lock()
			defer mu.Unlock()
			if err != nil || len(bars) == 0 {
				failed++
				r.metrics.Error(apperr.New(apperr.KindDataUnavailable, "runner.prefetch", symbol, err))
				logger.Symbol(symbol).Warn("no signal candles, skipping", zap.Error(err))
				return nil
			}
			out[symbol] = bars
			return nil
		})
	}
	_ = g.Wait()
	return out, failed
}

func (r *Runner) exitPass(ctx context.Context, rep *Report) {
	span, ctx := tracing.StartSpan(ctx, "exits")
	rep.Exits = r.engine.EvaluateExits(ctx)
	rep.Errors += len(rep.Exits.Errors)
	for _, err := range rep.Exits.Errors {
		logger.Warn("[EXITS] %v", err)
	}
	tracing.Finish(span, nil)
}

func (r *Runner) syncPass(ctx context.Context, rep *Report) {
	if !r.reconciler.Due() {
		return
	}
	span, ctx := tracing.StartSpan(ctx, "sync")
	res, err := r.reconciler.Sync(ctx)
	if err != nil {
		rep.Errors++
		logger.Warn("[SYNC] %v", err)
		tracing.Finish(span, err)
		return
	}
	rep.Synced = true
	if !res.Skipped {
		r.logExposure(ctx)
	}
	tracing.Finish(span, nil)
}

// logExposure пишет сводку позиций биржи; позиции без стопа отдельно.
func (r *Runner) logExposure(ctx context.Context) {
	sum, err := r.reconciler.Summary(ctx)
	if err != nil {
		logger.Warn("[SYNC] summary: %v", err)
		return
	}
	logger.Info("[SYNC] exchange positions=%d unrealized=%.2f", sum.Total, sum.UnrealizedPnL)
	for _, p := range sum.Positions {
		if !p.HasStop {
			logger.Symbol(p.Symbol).Warn("position without stop-loss",
				zap.String("direction", p.Direction), zap.Float64("size", p.Size), zap.Bool("tracked", p.Tracked))
		}
	}
}

// archivePass uploads the previous UTC day's journal once the day rolls over.
func (r *Runner) archivePass(ctx context.Context, now time.Time) {
	today := now.UTC().Truncate(24 * time.Hour)

	r.mu.Lock()
	prev := r.lastDay
	r.lastDay = today
	r.mu.Unlock()

	if prev.IsZero() || !today.After(prev) {
		return
	}
	if err := r.journal.ArchiveDay(ctx, prev); err != nil {
		r.metrics.Error(err)
		logger.Warn("[JOURNAL] archive %s: %v", prev.Format("2006-01-02"), err)
	}
}

// StatusLine feeds the /status command.
func (r *Runner) StatusLine() string {
	return fmt.Sprintf("%s\n%s\nopen positions: %d", r.gate.StatusLine(), r.journal.StatusLine(), r.ledger.Len())
}
