package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	"position_engine/pkg/logger"
)

// ReversalBlock returns why an opposite signal must not replace rec, or "" if it may.
func ReversalBlock(cfg config.ReversalConfig, rec models.PositionRecord, sig models.Signal, price float64, now time.Time) string {
	if r := rec.RMultiple(price); r >= cfg.MinR {
		return fmt.Sprintf("profit protection: %.2fR >= %.2fR", r, cfg.MinR)
	}
	if pnl := rec.PnLPct(price); pnl >= cfg.MinPnLPct {
		return fmt.Sprintf("profit protection: %+.2f%% >= %.2f%%", pnl, cfg.MinPnLPct)
	}
	if age := rec.Age(now); age < cfg.MinHold {
		return fmt.Sprintf("position too young: %s < %s", age.Round(time.Minute), cfg.MinHold)
	}
	if rec.SignalClass.Rank() > sig.Class.Rank() {
		return fmt.Sprintf("%s signal does not override %s position", sig.Class, rec.SignalClass)
	}
	return ""
}

// Reverse handles a signal against an open position. It reports whether the
// position was closed for reversal; the new entry is the caller's next step.
// Same-direction signals and blocked reversals return false with no error.
func (e *Engine) Reverse(ctx context.Context, sig models.Signal) (bool, error) {
	const op = "lifecycle.Reverse"
	symbol := sig.Symbol
	log := logger.Symbol(symbol)

	unlock, err := e.ledger.Lock(ctx, symbol)
	if err != nil {
		return false, apperr.New(apperr.KindSafetyRejection, op, symbol, err)
	}
	defer unlock()

	rec, ok := e.ledger.Get(symbol)
	if !ok || !sig.Direction.Valid() || sig.Direction != rec.Direction.Opposite() {
		return false, nil
	}

	price, err := e.exchange.GetTicker(ctx, symbol)
	if err != nil || price <= 0 {
		return false, e.fail(apperr.Newf(apperr.KindDataUnavailable, op, symbol, "no price for reversal: %v", err))
	}

	if reason := ReversalBlock(e.cfg.Lifecycle.Reversal, rec, sig, price, e.nowFn()); reason != "" {
		log.Info("reversal blocked",
			zap.String("reason", reason),
			zap.String("position", string(rec.Direction)),
			zap.String("signal", string(sig.Direction)),
		)
		return false, nil
	}

	log.Info("reversal approved",
		zap.String("position", string(rec.Direction)),
		zap.Float64("r", rec.RMultiple(price)),
		zap.Float64("pnl_pct", rec.PnLPct(price)),
		zap.String("signal", string(sig.Class)),
	)
	if err := e.closeLocked(ctx, rec, models.ExitReversal, price); err != nil {
		return false, err
	}
	return true, nil
}
