package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	ledger "position_engine/internal/modules/ledger/service"
	metrics "position_engine/internal/modules/metrics/service"
	sizer "position_engine/internal/modules/sizer/service"
	"position_engine/internal/notify"
	"position_engine/pkg/logger"
)

type Exchange interface {
	GetTicker(ctx context.Context, symbol string) (float64, error)
	SubmitOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error)
	IsPaper() bool
}

type Sizer interface {
	EntryCandles(ctx context.Context, symbol string) ([]models.Candle, error)
	SizePosition(ctx context.Context, symbol string, entry float64, dir models.Direction, candles []models.Candle) (sizer.Sizing, error)
}

type Gate interface {
	ShouldAllowTrading(ctx context.Context, openCount int) bool
	ValidateTradeSize(ctx context.Context, symbol string, size, price float64) error
	RecordTradeResult(ctx context.Context, pnl float64)
}

type Store interface {
	Save(ctx context.Context, symbol string, rec models.PositionRecord) error
	Remove(ctx context.Context, symbol string) error
}

// TradeSink receives every realized exit, partial or full.
type TradeSink interface {
	RecordTrade(ctx context.Context, tr models.TradeRecord) error
}

type SpecSource interface {
	Spec(symbol string) models.SymbolSpec
}

// Engine drives a position through NONE -> OPEN -> partial exits -> CLOSED.
// Every operation on a symbol runs under the ledger's per-symbol lock.
type Engine struct {
	cfg      *config.Config
	ledger   *ledger.Ledger
	exchange Exchange
	sizer    Sizer
	gate     Gate
	store    Store
	sink     TradeSink
	specs    SpecSource
	notify   notify.Notifier
	metrics  *metrics.Metrics
	nowFn    func() time.Time
}

type Deps struct {
	Config   *config.Config
	Ledger   *ledger.Ledger
	Exchange Exchange
	Sizer    Sizer
	Gate     Gate
	Store    Store
	Sink     TradeSink
	Specs    SpecSource
	Notify   notify.Notifier
	Metrics  *metrics.Metrics
}

func NewEngine(d Deps) *Engine {
	n := d.Notify
	if n == nil {
		n = notify.NewLog()
	}
	return &Engine{
		cfg:      d.Config,
		ledger:   d.Ledger,
		exchange: d.Exchange,
		sizer:    d.Sizer,
		gate:     d.Gate,
		store:    d.Store,
		sink:     d.Sink,
		specs:    d.Specs,
		notify:   n,
		metrics:  d.Metrics,
		nowFn:    time.Now,
	}
}

// Enter opens a position for sig. Any failure before the order fill leaves
// the ledger untouched.
func (e *Engine) Enter(ctx context.Context, sig models.Signal) (models.PositionRecord, error) {
	const op = "lifecycle.Enter"
	symbol := sig.Symbol
	log := logger.Symbol(symbol)

	if !sig.Direction.Valid() {
		return models.PositionRecord{}, apperr.Newf(apperr.KindSizing, op, symbol, "no direction")
	}

	unlock, err := e.ledger.Lock(ctx, symbol)
	if err != nil {
		return models.PositionRecord{}, apperr.New(apperr.KindSafetyRejection, op, symbol, err)
	}
	defer unlock()

	log.Info("attempting entry", zap.String("direction", string(sig.Direction)), zap.String("signal", string(sig.Class)))

	if e.ledger.Has(symbol) {
		return models.PositionRecord{}, apperr.Newf(apperr.KindSafetyRejection, op, symbol, "position already open")
	}
	if !e.gate.ShouldAllowTrading(ctx, e.ledger.Len()) {
		return models.PositionRecord{}, apperr.Newf(apperr.KindSafetyRejection, op, symbol, "safety gate blocked entry")
	}

	price, err := e.exchange.GetTicker(ctx, symbol)
	if err != nil || price <= 0 {
		return models.PositionRecord{}, e.fail(apperr.Newf(apperr.KindDataUnavailable, op, symbol, "no price: %v", err))
	}

	candles, err := e.sizer.EntryCandles(ctx, symbol)
	if err != nil || len(candles) == 0 {
		return models.PositionRecord{}, e.fail(apperr.Newf(apperr.KindDataUnavailable, op, symbol, "no candles: %v", err))
	}

	sizing, err := e.sizer.SizePosition(ctx, symbol, price, sig.Direction, candles)
	if err != nil {
		return models.PositionRecord{}, e.fail(err)
	}
	if err := e.gate.ValidateTradeSize(ctx, symbol, sizing.Size, price); err != nil {
		return models.PositionRecord{}, e.fail(err)
	}

	spec := e.specs.Spec(symbol)
	res, err := e.submit(ctx, models.OrderRequest{
		Symbol:             symbol,
		Side:               sig.Direction.OpenSide(),
		Size:               sizing.Size,
		RefPrice:           price,
		ContractMultiplier: spec.ContractMultiplier,
		Leverage:           sizing.Leverage,
	}, e.exchange.IsPaper())
	if err != nil {
		return models.PositionRecord{}, e.fail(err)
	}

	rec := models.PositionRecord{
		SchemaVersion: models.PositionSchemaCurrent,
		Symbol:        symbol,
		Direction:     sig.Direction,
		EntryPrice:    price,
		Size:          sizing.Size,
		OriginalSize:  sizing.Size,
		ProfitLevels:  models.ComputeProfitLevels(price, sizing.StopLoss, sig.Direction),
		ProfitsTaken:  models.NewProfitsTaken(),
		HighWaterMark: price,
		ATR:           sizing.ATR,
		SignalClass:   sig.Class,
		OpenedAt:      e.nowFn().UTC(),
		PaperTrade:    res.Paper,
		OrderID:       res.OrderID,
	}
	rec.SetStop(sizing.StopLoss)

	e.ledger.Put(rec)
	e.persist(ctx, rec)
	e.metrics.OpenPositions(e.ledger.Len())

	log.Info("position opened",
		zap.String("direction", string(rec.Direction)),
		zap.Float64("entry", rec.EntryPrice),
		zap.Float64("size", rec.Size),
		zap.Float64("stop", rec.Stop()),
		zap.Float64("risk", sizing.RiskAmount),
		zap.Any("levels", rec.ProfitLevels),
		zap.String("order_id", rec.OrderID),
		zap.Bool("paper", rec.PaperTrade),
	)
	e.notify.Sendf("🚀 %s %s %s: %.6g @ %.6g, stop %.6g, 1R %.6g",
		modeTag(rec.PaperTrade), upper(rec.Direction), symbol, rec.Size, price, rec.Stop(), rec.ProfitLevels[models.Level1R])
	return rec, nil
}

// Close exits the full remaining size. exitPrice <= 0 means use the ticker.
// On order failure the record stays for the next cycle.
func (e *Engine) Close(ctx context.Context, symbol string, reason models.ExitReason, exitPrice float64) error {
	const op = "lifecycle.Close"

	unlock, err := e.ledger.Lock(ctx, symbol)
	if err != nil {
		return apperr.New(apperr.KindOrderRejected, op, symbol, err)
	}
	defer unlock()

	rec, ok := e.ledger.Get(symbol)
	if !ok {
		return apperr.Newf(apperr.KindOrderRejected, op, symbol, "no open position")
	}
	if exitPrice <= 0 {
		exitPrice, err = e.exchange.GetTicker(ctx, symbol)
		if err != nil {
			return e.fail(apperr.New(apperr.KindDataUnavailable, op, symbol, err))
		}
	}
	return e.closeLocked(ctx, rec, reason, exitPrice)
}

func (e *Engine) closeLocked(ctx context.Context, rec models.PositionRecord, reason models.ExitReason, price float64) error {
	log := logger.Symbol(rec.Symbol)

	_, err := e.submit(ctx, models.OrderRequest{
		Symbol:     rec.Symbol,
		Side:       rec.Direction.CloseSide(),
		Size:       rec.Size,
		ReduceOnly: true,
	}, rec.PaperTrade)
	if err != nil {
		log.Error("close failed, keeping position", zap.String("reason", string(reason)), zap.Error(err))
		return e.fail(err)
	}

	e.ledger.Delete(rec.Symbol)
	if err := e.store.Remove(ctx, rec.Symbol); err != nil {
		e.metrics.Error(err)
		log.Error("remove from store", zap.Error(err))
	}
	e.metrics.OpenPositions(e.ledger.Len())

	tr := e.emit(ctx, rec, reason, price, rec.Size)
	if reason == models.ExitStopLoss {
		e.gate.RecordTradeResult(ctx, tr.PnL)
	}

	log.Info("position closed",
		zap.String("reason", string(reason)),
		zap.Float64("exit", price),
		zap.Float64("pnl", tr.PnL),
		zap.Float64("pnl_pct", tr.PnLPct),
		zap.Duration("held", tr.Duration),
	)
	e.notify.Sendf("🔄 %s %s closed (%s) @ %.6g, P&L %+.2f (%+.2f%%)",
		modeTag(rec.PaperTrade), rec.Symbol, reason, price, tr.PnL, tr.PnLPct)
	return nil
}

// submit sends req; a paper record is never sent to a live exchange.
func (e *Engine) submit(ctx context.Context, req models.OrderRequest, paper bool) (models.OrderResult, error) {
	if paper && !e.exchange.IsPaper() {
		e.metrics.Order(true, req.Side, req.ReduceOnly)
		return models.OrderResult{OrderID: "paper_" + req.Symbol + "_" + uuid.NewString(), Paper: true}, nil
	}

	res, err := e.exchange.SubmitOrder(ctx, req)
	if err != nil {
		return models.OrderResult{}, err
	}
	e.metrics.Order(res.Paper, req.Side, req.ReduceOnly)
	return res, nil
}

// emit builds the realized trade record and hands it to the sink.
func (e *Engine) emit(ctx context.Context, rec models.PositionRecord, reason models.ExitReason, price, size float64) models.TradeRecord {
	now := e.nowFn().UTC()
	tr := models.TradeRecord{
		Symbol:             rec.Symbol,
		Direction:          rec.Direction,
		EntryPrice:         rec.EntryPrice,
		ExitPrice:          price,
		Size:               size,
		ContractMultiplier: e.specs.Spec(rec.Symbol).ContractMultiplier,
		ExitReason:         reason,
		SignalClass:        rec.SignalClass,
		Duration:           rec.Age(now),
		ClosedAt:           now,
		Paper:              rec.PaperTrade,
	}
	tr.Settle()
	e.metrics.Exit(reason, rec.Direction)

	if e.sink != nil {
		if err := e.sink.RecordTrade(ctx, tr); err != nil {
			e.metrics.Error(err)
			logger.Symbol(rec.Symbol).Error("record trade", zap.Error(err))
		}
	}
	return tr
}

func (e *Engine) persist(ctx context.Context, rec models.PositionRecord) {
	if err := e.store.Save(ctx, rec.Symbol, rec); err != nil {
		e.metrics.Error(err)
		logger.Symbol(rec.Symbol).Error("persist position", zap.Error(err))
	}
}

// fail counts err and passes it through.
func (e *Engine) fail(err error) error {
	e.metrics.Error(err)
	return err
}

func modeTag(paper bool) string {
	if paper {
		return "[PAPER]"
	}
	return "[LIVE]"
}

func upper(d models.Direction) string {
	if d == models.DirectionShort {
		return "SHORT"
	}
	return "LONG"
}
