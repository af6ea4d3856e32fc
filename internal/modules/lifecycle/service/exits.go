package service

import (
	"context"

	"go.uber.org/zap"

	"position_engine/internal/apperr"
	"position_engine/internal/helper"
	"position_engine/internal/models"
	"position_engine/pkg/logger"
)

// ExitSummary is what one EvaluateExits pass did.
type ExitSummary struct {
	Evaluated int
	Partials  int
	Closed    int
	Errors    []error
}

// EvaluateExits runs one pass over every open position. A failure on one
// symbol is recorded and the pass moves on.
func (e *Engine) EvaluateExits(ctx context.Context) ExitSummary {
	var sum ExitSummary
	for _, symbol := range e.ledger.Symbols() {
		if ctx.Err() != nil {
			sum.Errors = append(sum.Errors, ctx.Err())
			break
		}
		out, err := e.evaluateSymbol(ctx, symbol)
		sum.Evaluated++
		if out.partial {
			sum.Partials++
		}
		if out.closed {
			sum.Closed++
		}
		if err != nil {
			sum.Errors = append(sum.Errors, err)
		}
	}
	return sum
}

type exitOutcome struct {
	partial bool
	closed  bool
}

// evaluateSymbol applies one exit pass to symbol: high-water mark, at most one
// profit level, trailing stop, stop breach.
func (e *Engine) evaluateSymbol(ctx context.Context, symbol string) (exitOutcome, error) {
	const op = "lifecycle.EvaluateExits"
	var out exitOutcome
	log := logger.Symbol(symbol)

	unlock, err := e.ledger.Lock(ctx, symbol)
	if err != nil {
		return out, apperr.New(apperr.KindDataUnavailable, op, symbol, err)
	}
	defer unlock()

	rec, ok := e.ledger.Get(symbol)
	if !ok {
		return out, nil
	}

	price, err := e.exchange.GetTicker(ctx, symbol)
	if err != nil || price <= 0 {
		log.Warn("no price, skipping exit check", zap.Error(err))
		return out, e.fail(apperr.Newf(apperr.KindDataUnavailable, op, symbol, "no price: %v", err))
	}

	changed := false
	if rec.HighWaterMark <= 0 || rec.Direction.Better(price, rec.HighWaterMark) {
		rec.HighWaterMark = price
		changed = true
	}

	if !rec.HasStop() {
		log.Debug("no stop-loss, exit logic skipped", zap.Bool("synced", rec.SyncedFromExchange))
		if changed {
			e.ledger.Put(rec)
			e.persist(ctx, rec)
		}
		return out, nil
	}

	var partialErr error
	if level, ok := rec.NextLevel(); ok && rec.Direction.Reached(price, rec.ProfitLevels[level]) {
		closed, err := e.takePartial(ctx, &rec, level, price)
		switch {
		case err != nil:
			// level stays open, retried next cycle
			partialErr = err
		case closed:
			out.partial, out.closed = true, true
			return out, nil
		default:
			out.partial = true
			changed = true
		}
	}

	if e.trail(&rec, price) {
		changed = true
	}

	if changed {
		e.ledger.Put(rec)
		e.persist(ctx, rec)
	}

	if rec.Direction.Breached(price, rec.Stop()) {
		log.Info("stop-loss hit",
			zap.Float64("price", price), zap.Float64("stop", rec.Stop()), zap.Float64("pnl_pct", rec.PnLPct(price)))
		if err := e.closeLocked(ctx, rec, models.ExitStopLoss, price); err != nil {
			return out, err
		}
		out.closed = true
	}
	return out, partialErr
}

// takePartial realizes level on rec. On success rec is updated in place; closed
// reports that the remainder was under one lot and the whole position went.
func (e *Engine) takePartial(ctx context.Context, rec *models.PositionRecord, level models.ProfitLevel, price float64) (bool, error) {
	log := logger.Symbol(rec.Symbol)
	spec := e.specs.Spec(rec.Symbol)

	frac := e.cfg.ExitFraction(string(level))
	exitSize := helper.RoundToLot(rec.Size*frac, spec.LotSize)
	remaining := helper.RoundTo(rec.Size-exitSize, 10)
	if remaining <= 0 || (spec.LotSize > 0 && remaining < spec.LotSize) {
		exitSize, remaining = rec.Size, 0
	}

	log.Info("profit level hit",
		zap.String("level", string(level)),
		zap.Float64("price", price),
		zap.Float64("target", rec.ProfitLevels[level]),
		zap.Float64("exit_size", exitSize),
		zap.Float64("remaining", remaining),
	)

	_, err := e.submit(ctx, models.OrderRequest{
		Symbol:     rec.Symbol,
		Side:       rec.Direction.CloseSide(),
		Size:       exitSize,
		ReduceOnly: true,
	}, rec.PaperTrade)
	if err != nil {
		log.Error("partial exit failed", zap.String("level", string(level)), zap.Error(err))
		return false, e.fail(err)
	}

	tr := e.emit(ctx, *rec, models.PartialExitReason(level), price, exitSize)
	e.notify.Sendf("🎯 %s %s %s hit @ %.6g, closed %.6g, P&L %+.2f",
		modeTag(rec.PaperTrade), rec.Symbol, level, price, exitSize, tr.PnL)

	if remaining == 0 {
		e.ledger.Delete(rec.Symbol)
		if err := e.store.Remove(ctx, rec.Symbol); err != nil {
			e.metrics.Error(err)
			log.Error("remove from store", zap.Error(err))
		}
		e.metrics.OpenPositions(e.ledger.Len())
		log.Info("remainder under one lot, position closed", zap.String("level", string(level)))
		return true, nil
	}

	rec.Size = remaining
	rec.ProfitsTaken[level] = true
	e.ratchet(rec, level)
	return false, nil
}

// ratchet moves the stop after a realized level: 1R to breakeven, 2R to the
// 1R target, 3R to the 2R target, 4R switches to trailing.
func (e *Engine) ratchet(rec *models.PositionRecord, level models.ProfitLevel) {
	log := logger.Symbol(rec.Symbol)

	var next float64
	switch level {
	case models.Level1R:
		next = rec.EntryPrice
	case models.Level2R:
		next = rec.ProfitLevels[models.Level1R]
	case models.Level3R:
		next = rec.ProfitLevels[models.Level2R]
	case models.Level4R:
		rec.TrailingStopActive = true
		log.Info("trailing stop activated", zap.Float64("size", rec.Size))
		return
	}

	if !rec.HasStop() || rec.Direction.Better(next, rec.Stop()) {
		rec.SetStop(next)
		log.Info("stop moved", zap.String("level", string(level)), zap.Float64("stop", next))
	}
}

// trail proposes hwm -/+ ATR*mult and takes it only when it is sane and better.
func (e *Engine) trail(rec *models.PositionRecord, price float64) bool {
	if !rec.TrailingStopActive || rec.ATR <= 0 {
		return false
	}
	log := logger.Symbol(rec.Symbol)

	dist := rec.ATR * e.cfg.Lifecycle.TrailATRMultiplier
	candidate := helper.RoundPrice(rec.HighWaterMark - rec.Direction.Sign()*dist)

	if !e.saneTrailingStop(rec, candidate) {
		log.Warn("trailing stop rejected",
			zap.Float64("candidate", candidate), zap.Float64("entry", rec.EntryPrice), zap.Float64("price", price))
		return false
	}
	if !rec.Direction.Better(candidate, rec.Stop()) {
		return false
	}

	rec.SetStop(candidate)
	log.Debug("trailing stop updated", zap.Float64("stop", candidate))
	return true
}

// saneTrailingStop: positive and within [entry*(1-band), entry/(1-band)].
func (e *Engine) saneTrailingStop(rec *models.PositionRecord, candidate float64) bool {
	if candidate <= 0 {
		return false
	}
	band := e.cfg.Lifecycle.TrailBandPct
	if band <= 0 || band >= 1 {
		band = 0.5
	}
	lo := rec.EntryPrice * (1 - band)
	hi := rec.EntryPrice / (1 - band)
	return candidate >= lo && candidate <= hi
}
