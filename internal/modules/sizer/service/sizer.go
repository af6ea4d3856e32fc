package service

import (
	"context"
	"math"

	"go.uber.org/zap"

	"position_engine/internal/apperr"
	"position_engine/internal/helper"
	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	"position_engine/pkg/logger"
)

type Account interface {
	GetMarginInfo(ctx context.Context) (models.MarginInfo, error)
	IsPaper() bool
}

type CandleSource interface {
	GetCandles(ctx context.Context, symbol, bar string, limit int) ([]models.Candle, error)
}

type SpecSource interface {
	Spec(symbol string) models.SymbolSpec
}

// Sizing is the outcome of SizePosition. Size is in contracts, already lot-rounded.
type Sizing struct {
	Size       float64
	ATR        float64
	StopLoss   float64
	RiskAmount float64

	Notional   float64
	Margin     float64
	Available  float64
	Leverage   float64
	Allocation float64
}

type Sizer struct {
	cfg     *config.Config
	account Account
	candles CandleSource
	specs   SpecSource
}

func NewSizer(cfg *config.Config, account Account, candles CandleSource, specs SpecSource) *Sizer {
	return &Sizer{cfg: cfg, account: account, candles: candles, specs: specs}
}

// EntryCandles loads the sizing series: the configured bar first, the fallback bar if that is empty.
func (s *Sizer) EntryCandles(ctx context.Context, symbol string) ([]models.Candle, error) {
	r := s.cfg.Risk
	candles, err := s.candles.GetCandles(ctx, symbol, r.CandleBar, r.CandleLimit)
	if err == nil && len(candles) > r.ATRPeriod {
		return candles, nil
	}
	if r.FallbackCandleBar == "" {
		if err != nil {
			return nil, err
		}
		return candles, nil
	}

	logger.Symbol(symbol).Warn("entry candles short, using fallback bar",
		zap.String("bar", r.CandleBar), zap.String("fallback", r.FallbackCandleBar), zap.Int("got", len(candles)))
	fb, fbErr := s.candles.GetCandles(ctx, symbol, r.FallbackCandleBar, r.CandleLimit)
	if fbErr != nil {
		if len(candles) > 0 {
			return candles, nil
		}
		return nil, fbErr
	}
	if len(fb) < len(candles) {
		return candles, nil
	}
	return fb, nil
}

// Volatility returns the clamped ATR for entry.
func (s *Sizer) Volatility(symbol string, entry float64, candles []models.Candle) float64 {
	r := s.cfg.Risk
	log := logger.Symbol(symbol)

	atr := ATR(candles, r.ATRPeriod)
	if atr <= 0 {
		atr = RangeATR(candles, r.ATRFallbackBars)
		log.Warn("ATR unavailable, using range fallback", zap.Float64("atr", atr), zap.Int("candles", len(candles)))
	}

	lo, hi := entry*r.ATRMinPct, entry*r.ATRMaxPct
	if atr < lo || atr > hi {
		log.Warn("ATR clamped", zap.Float64("raw", atr), zap.Float64("min", lo), zap.Float64("max", hi))
	}
	return helper.Clamp(atr, lo, hi)
}

// SizePosition computes stop and contract count for a new position.
// Margin-data errors fail closed.
func (s *Sizer) SizePosition(
	ctx context.Context,
	symbol string,
	entry float64,
	dir models.Direction,
	candles []models.Candle,
) (Sizing, error) {
	const op = "sizer.SizePosition"
	r := s.cfg.Risk
	log := logger.Symbol(symbol)

	if entry <= 0 || math.IsNaN(entry) {
		return Sizing{}, apperr.Newf(apperr.KindSizing, op, symbol, "bad entry price %v", entry)
	}
	if !dir.Valid() {
		return Sizing{}, apperr.Newf(apperr.KindSizing, op, symbol, "bad direction %q", dir)
	}
	if len(candles) == 0 {
		return Sizing{}, apperr.Newf(apperr.KindSizing, op, symbol, "no candles")
	}

	atr := s.Volatility(symbol, entry, candles)
	if atr <= 0 {
		return Sizing{}, apperr.Newf(apperr.KindSizing, op, symbol, "atr <= 0")
	}

	available, err := s.availableMargin(ctx, symbol)
	if err != nil {
		return Sizing{}, err
	}
	if available <= 0 {
		return Sizing{}, apperr.Newf(apperr.KindSizing, op, symbol, "no available margin")
	}

	spec := s.specs.Spec(symbol)
	mult := spec.ContractMultiplier
	if mult <= 0 {
		mult = 1
	}
	lev := spec.Leverage
	if lev <= 0 {
		lev = s.cfg.OKX.FallbackLeverage
	}
	if lev <= 0 {
		lev = 1
	}

	alloc := s.allocation(spec)
	targetMargin := available * alloc
	notional := targetMargin * lev
	size := notional / (entry * mult)

	if spec.MaxContracts > 0 && size > spec.MaxContracts {
		log.Warn("size above contract limit", zap.Float64("size", size), zap.Float64("limit", spec.MaxContracts))
		size = spec.MaxContracts
	}

	// stop from ATR, distance kept inside the band
	dist := helper.Clamp(atr*r.StopATRMultiplier, entry*r.StopMinPct, entry*r.StopMaxPct)
	stop := helper.RoundPrice(entry - dir.Sign()*dist)

	size = helper.RoundToLot(size, spec.LotSize)
	if spec.MaxContracts > 0 && size > spec.MaxContracts {
		size = helper.FloorToLot(spec.MaxContracts, spec.LotSize)
	}

	if !spec.Flagship() {
		maxMargin := available * r.MarginCapPct
		if margin := size * entry * mult / lev; margin > maxMargin {
			capped := helper.FloorToLot(maxMargin*lev/(entry*mult), spec.LotSize)
			if capped <= 0 {
				// one lot is the smallest order; the safety gate decides if it is too big
				capped = helper.RoundToLot(maxMargin*lev/(entry*mult), spec.LotSize)
			}
			log.Warn("margin above cap, shrinking",
				zap.Float64("margin", margin), zap.Float64("cap", maxMargin), zap.Float64("size", capped))
			size = capped
		}
	}

	if spec.MinSize > 0 && size > 0 && size < spec.MinSize {
		size = spec.MinSize
	}
	if size <= 0 {
		return Sizing{}, apperr.Newf(apperr.KindSizing, op, symbol, "size rounds to zero")
	}

	out := Sizing{
		Size:       size,
		ATR:        atr,
		StopLoss:   stop,
		RiskAmount: helper.RoundTo(size*mult*math.Abs(entry-stop), 2),
		Notional:   size * entry * mult,
		Available:  available,
		Leverage:   lev,
		Allocation: alloc,
	}
	out.Margin = out.Notional / lev

	log.Info("sized",
		zap.String("direction", string(dir)),
		zap.Float64("entry", entry),
		zap.Float64("atr", atr),
		zap.Float64("stop", stop),
		zap.Float64("size", size),
		zap.Float64("notional", out.Notional),
		zap.Float64("margin", out.Margin),
		zap.Float64("risk", out.RiskAmount),
	)
	return out, nil
}

func (s *Sizer) allocation(spec models.SymbolSpec) float64 {
	switch spec.Class {
	case models.ClassFlagship:
		return s.cfg.Risk.FlagshipAllocationPct
	case models.ClassHighVolatility:
		return s.cfg.Risk.HighVolAllocationPct
	}
	return s.cfg.Risk.AllocationPct
}

// availableMargin starts from the local baseline and switches to the adapter's
// reported value when the two disagree by more than the tolerance.
func (s *Sizer) availableMargin(ctx context.Context, symbol string) (float64, error) {
	info, err := s.account.GetMarginInfo(ctx)
	if err != nil {
		return 0, apperr.New(apperr.KindAccountData, "sizer.availableMargin", symbol, err)
	}

	baseline := info.TotalEquity - info.UsedMargin
	if s.account.IsPaper() {
		baseline = s.cfg.Safety.StartingEquity * s.cfg.Risk.PaperAvailableFraction
	}

	reported := info.Available
	if reported > 0 && math.Abs(baseline-reported) > s.cfg.Risk.MarginTolerance {
		logger.Symbol(symbol).Debug("margin mismatch, using exchange value",
			zap.Float64("baseline", baseline), zap.Float64("reported", reported))
		return reported, nil
	}
	if baseline <= 0 {
		return reported, nil
	}
	return baseline, nil
}
