package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"position_engine/internal/apperr"
	"position_engine/internal/migration"
	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	ledger "position_engine/internal/modules/ledger/service"
	metrics "position_engine/internal/modules/metrics/service"
	"position_engine/internal/notify"
	"position_engine/pkg/logger"
)

type Exchange interface {
	GetPositions(ctx context.Context) ([]models.ExchangePosition, error)
	IsPaper() bool
}

type Store interface {
	Save(ctx context.Context, symbol string, rec models.PositionRecord) error
	Load(ctx context.Context, symbol string) (models.PositionRecord, bool, error)
	LoadAll(ctx context.Context) (map[string]models.PositionRecord, error)
	Remove(ctx context.Context, symbol string) error
}

// Result is what one Sync changed. All empty means nothing diverged.
type Result struct {
	Exchange int
	Restored []string
	Adopted  []string
	Removed  []string
	Skipped  bool
}

func (r Result) Changed() bool {
	return len(r.Restored)+len(r.Adopted)+len(r.Removed) > 0
}

// Reconciler aligns the ledger and the store with the positions the exchange
// reports. The exchange is authoritative.
type Reconciler struct {
	cfg      *config.Config
	ledger   *ledger.Ledger
	exchange Exchange
	store    Store
	notify   notify.Notifier
	metrics  *metrics.Metrics
	nowFn    func() time.Time

	mu       sync.Mutex
	lastSync time.Time
}

func NewReconciler(cfg *config.Config, l *ledger.Ledger, ex Exchange, st Store, n notify.Notifier, m *metrics.Metrics) *Reconciler {
	if n == nil {
		n = notify.NewLog()
	}
	return &Reconciler{
		cfg:      cfg,
		ledger:   l,
		exchange: ex,
		store:    st,
		notify:   n,
		metrics:  m,
		nowFn:    time.Now,
	}
}

// Restore loads every stored record into the ledger, upgrading legacy ones
// and writing the upgrade back.
func (r *Reconciler) Restore(ctx context.Context) (int, error) {
	const op = "reconciler.Restore"

	all, err := r.store.LoadAll(ctx)
	if err != nil {
		return 0, apperr.New(apperr.KindStorage, op, "", err)
	}
	upgraded, changed := migration.UpgradeAll(all, r.cfg.Risk.StopATRMultiplier)

	for _, symbol := range changed {
		if err := r.store.Save(ctx, symbol, upgraded[symbol]); err != nil {
			r.metrics.Error(err)
			logger.Symbol(symbol).Error("save migrated record", zap.Error(err))
		}
	}
	for symbol, rec := range upgraded {
		r.ledger.Put(rec)
		logger.Symbol(symbol).Info("position loaded from store",
			zap.String("direction", string(rec.Direction)),
			zap.Float64("size", rec.Size),
			zap.Float64("stop", rec.Stop()),
			zap.Bool("paper", rec.PaperTrade),
		)
	}
	r.metrics.OpenPositions(r.ledger.Len())
	logger.Info("restored %d positions, migrated %d", len(upgraded), len(changed))
	return len(upgraded), nil
}

// Due reports whether the sync interval has elapsed since the last Sync.
func (r *Reconciler) Due() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastSync.IsZero() || r.nowFn().Sub(r.lastSync) >= r.cfg.Reconcile.Interval
}

// Sync runs one reconciliation pass. A fetch failure changes nothing.
// Paper mode has no exchange positions to trust and skips the pass.
func (r *Reconciler) Sync(ctx context.Context) (Result, error) {
	const op = "reconciler.Sync"
	var res Result

	if r.exchange.IsPaper() {
		r.markSynced()
		res.Skipped = true
		return res, nil
	}

	positions, err := r.exchange.GetPositions(ctx)
	if err != nil {
		r.metrics.Error(err)
		return res, apperr.New(apperr.KindReconcile, op, "", err)
	}

	remote := make(map[string]models.ExchangePosition, len(positions))
	for _, p := range positions {
		if p.Size <= 0 {
			continue
		}
		if _, dup := remote[p.Symbol]; dup {
			logger.Symbol(p.Symbol).Warn("two exchange positions for one symbol, keeping the first")
			continue
		}
		remote[p.Symbol] = p
	}
	res.Exchange = len(remote)

	symbols := make([]string, 0, len(remote))
	for s := range remote {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var errs []error
	for _, symbol := range symbols {
		restored, adopted, err := r.track(ctx, remote[symbol])
		switch {
		case err != nil:
			errs = append(errs, err)
		case restored:
			res.Restored = append(res.Restored, symbol)
		case adopted:
			res.Adopted = append(res.Adopted, symbol)
		}
	}

	for _, symbol := range r.ledger.Symbols() {
		if _, ok := remote[symbol]; ok {
			continue
		}
		removed, err := r.dropStale(ctx, symbol)
		if err != nil {
			errs = append(errs, err)
		}
		if removed {
			res.Removed = append(res.Removed, symbol)
		}
	}

	r.markSynced()
	r.metrics.OpenPositions(r.ledger.Len())
	logger.Info("position sync complete: exchange=%d local=%d restored=%d adopted=%d removed=%d",
		res.Exchange, r.ledger.Len(), len(res.Restored), len(res.Adopted), len(res.Removed))

	if len(res.Adopted) > 0 {
		r.notify.Sendf("⚠️ untracked exchange positions adopted without stop-loss: %v", res.Adopted)
	}
	if len(res.Removed) > 0 {
		r.notify.Sendf("🧹 stale positions removed (not on exchange): %v", res.Removed)
	}

	if len(errs) > 0 {
		return res, apperr.Newf(apperr.KindReconcile, op, "", "%d symbols failed, first: %v", len(errs), errs[0])
	}
	return res, nil
}

// track brings an exchange position the ledger does not know into it: from
// the store when a matching record exists, bare otherwise.
func (r *Reconciler) track(ctx context.Context, p models.ExchangePosition) (restored, adopted bool, err error) {
	const op = "reconciler.Sync"
	log := logger.Symbol(p.Symbol)

	unlock, err := r.ledger.Lock(ctx, p.Symbol)
	if err != nil {
		return false, false, apperr.New(apperr.KindReconcile, op, p.Symbol, err)
	}
	defer unlock()

	if local, ok := r.ledger.Get(p.Symbol); ok {
		if local.Direction != p.Direction || local.Size != p.Size {
			log.Warn("local position differs from exchange",
				zap.String("local_dir", string(local.Direction)), zap.Float64("local_size", local.Size),
				zap.String("exchange_dir", string(p.Direction)), zap.Float64("exchange_size", p.Size))
		}
		return false, false, nil
	}

	log.Warn("untracked position on exchange",
		zap.String("direction", string(p.Direction)), zap.Float64("size", p.Size), zap.Float64("avg_price", p.AvgPrice))

	stored, ok, err := r.store.Load(ctx, p.Symbol)
	if err != nil {
		// fall through to a bare record; the store copy is still there for next time
		r.metrics.Error(err)
		log.Error("load stored record", zap.Error(err))
		ok = false
	}

	if ok && stored.Direction == p.Direction {
		rec, _ := migration.Upgrade(stored, r.cfg.Risk.StopATRMultiplier)
		if rec.Symbol == "" {
			rec.Symbol = p.Symbol
		}
		if rec.Size != p.Size {
			log.Warn("stored size differs, taking exchange size",
				zap.Float64("stored", rec.Size), zap.Float64("exchange", p.Size))
			rec.Size = p.Size
		}
		r.ledger.Put(rec)
		if err := r.store.Save(ctx, p.Symbol, rec); err != nil {
			r.metrics.Error(err)
			log.Error("persist restored record", zap.Error(err))
		}
		log.Info("restored position with stored risk data", zap.Float64("stop", rec.Stop()), zap.Bool("has_stop", rec.HasStop()))
		return true, false, nil
	}
	if ok {
		log.Warn("stored record has the opposite direction, ignoring it", zap.String("stored", string(stored.Direction)))
	}

	rec := BareRecord(p, r.nowFn())
	r.ledger.Put(rec)
	if err := r.store.Save(ctx, p.Symbol, rec); err != nil {
		r.metrics.Error(err)
		log.Error("persist adopted record", zap.Error(err))
	}
	log.Warn("no stored risk data, tracking without stop-loss")
	return false, true, nil
}

func (r *Reconciler) dropStale(ctx context.Context, symbol string) (bool, error) {
	const op = "reconciler.Sync"
	log := logger.Symbol(symbol)

	unlock, err := r.ledger.Lock(ctx, symbol)
	if err != nil {
		return false, apperr.New(apperr.KindReconcile, op, symbol, err)
	}
	defer unlock()

	rec, ok := r.ledger.Get(symbol)
	if !ok || rec.PaperTrade {
		return false, nil
	}

	log.Warn("local position not on exchange, removing", zap.String("direction", string(rec.Direction)), zap.Float64("size", rec.Size))
	r.ledger.Delete(symbol)
	if err := r.store.Remove(ctx, symbol); err != nil {
		r.metrics.Error(err)
		return true, apperr.New(apperr.KindStorage, op, symbol, err)
	}
	return true, nil
}

func (r *Reconciler) markSynced() {
	r.mu.Lock()
	r.lastSync = r.nowFn()
	r.mu.Unlock()
}

// BareRecord is an exchange position adopted without stored risk data.
// It has no stop and no profit levels, so exit logic leaves it alone.
func BareRecord(p models.ExchangePosition, now time.Time) models.PositionRecord {
	return models.PositionRecord{
		SchemaVersion:      models.PositionSchemaCurrent,
		Symbol:             p.Symbol,
		Direction:          p.Direction,
		EntryPrice:         p.AvgPrice,
		Size:               p.Size,
		OriginalSize:       p.Size,
		ProfitLevels:       models.ProfitLevels{},
		ProfitsTaken:       models.NewProfitsTaken(),
		HighWaterMark:      p.AvgPrice,
		SignalClass:        models.SignalManual,
		OpenedAt:           now.UTC(),
		SyncedFromExchange: true,
	}
}
