package service

import (
	"fmt"

	"position_engine/internal/models"
	"position_engine/internal/modules/config"
)

type SpecSource interface {
	Spec(symbol string) models.SymbolSpec
}

// Evaluator turns closed candles into at most one signal per call.
// Order of checks: memecoin breakout (high-volatility symbols only),
// momentum breakout, EMA cross.
type Evaluator struct {
	cfg   config.StrategyConfig
	specs SpecSource
}

func NewEvaluator(cfg *config.Config, specs SpecSource) *Evaluator {
	return &Evaluator{cfg: cfg.Strategy, specs: specs}
}

func (e *Evaluator) Name() string { return "ema_rsi+donchian" }

// MinCandles is how many bars Evaluate needs to say anything.
func (e *Evaluator) MinCandles() int {
	n := e.cfg.EMALong
	for _, v := range []int{e.cfg.TrendEMAPeriod, e.cfg.DonchianPeriod, e.cfg.RSIPeriod} {
		if v > n {
			n = v
		}
	}
	return n + 1
}

// Evaluate expects candles oldest first. An empty Signal means no trade.
func (e *Evaluator) Evaluate(symbol string, candles []models.Candle) models.Signal {
	none := models.Signal{Symbol: symbol}
	if len(candles) < e.MinCandles() {
		return none
	}
	last := candles[len(candles)-1]
	if last.Close <= 0 {
		return none
	}

	hi, lo, ok := donchian(candles, e.cfg.DonchianPeriod)
	if !ok || hi <= lo {
		return none
	}
	breakout := models.DirectionNone
	switch {
	case last.Close > hi:
		breakout = models.DirectionLong
	case last.Close < lo:
		breakout = models.DirectionShort
	}

	// memecoin: пробой канала на объёме
	if e.specs != nil && e.specs.Spec(symbol).Class == models.ClassHighVolatility && breakout != models.DirectionNone {
		if vr := volumeRatio(candles, e.cfg.DonchianPeriod); vr >= e.cfg.VolumeRatio {
			return models.Signal{
				Symbol:    symbol,
				Direction: breakout,
				Class:     models.SignalMemecoin,
				Price:     last.Close,
				Reason:    fmt.Sprintf("channel breakout on volume x%.2f, dh=%.6g dl=%.6g", vr, hi, lo),
			}
		}
	}

	cl := closes(candles)

	// momentum: пробой + тренд + минимальная ширина канала
	if breakout != models.DirectionNone {
		trend, _, ok := emaSeries(cl, e.cfg.TrendEMAPeriod)
		width := (hi - lo) / last.Close
		if ok && width >= e.cfg.MinChannelPct && breakout.Better(last.Close, trend) {
			return models.Signal{
				Symbol:    symbol,
				Direction: breakout,
				Class:     models.SignalMomentum,
				Price:     last.Close,
				Reason:    fmt.Sprintf("Don[%d] breakout, ema%d=%.6g, width=%.4f", e.cfg.DonchianPeriod, e.cfg.TrendEMAPeriod, trend, width),
			}
		}
	}

	// traditional: пересечение EMA на последней свече с фильтром RSI
	fast, fastPrev, okFast := emaSeries(cl, e.cfg.EMAShort)
	slow, slowPrev, okSlow := emaSeries(cl, e.cfg.EMALong)
	r, okRSI := rsi(cl, e.cfg.RSIPeriod)
	if !okFast || !okSlow || !okRSI {
		return none
	}

	dir := models.DirectionNone
	switch {
	case fastPrev <= slowPrev && fast > slow && r < e.cfg.RSIOverbought:
		dir = models.DirectionLong
	case fastPrev >= slowPrev && fast < slow && r > e.cfg.RSIOversold:
		dir = models.DirectionShort
	}
	if dir == models.DirectionNone {
		return none
	}
	return models.Signal{
		Symbol:    symbol,
		Direction: dir,
		Class:     models.SignalTraditional,
		Price:     last.Close,
		Reason:    fmt.Sprintf("EMA%d/%d cross, RSI=%.1f", e.cfg.EMAShort, e.cfg.EMALong, r),
	}
}
