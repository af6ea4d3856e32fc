package service

import (
	"context"
	"sync"

	"position_engine/internal/models"
	"position_engine/internal/modules/config"
	"position_engine/pkg/logger"
)

type MetaSource interface {
	GetInstrumentMeta(ctx context.Context, instID string) (models.Instrument, error)
}

// Registry is the per-symbol trading constraints. Exchange metadata wins over
// the configured table; the table stays as fallback for anything not loaded.
type Registry struct {
	cfg  *config.Config
	meta MetaSource

	mu    sync.RWMutex
	specs map[string]models.SymbolSpec
}

func NewRegistry(cfg *config.Config, meta MetaSource) *Registry {
	return &Registry{
		cfg:   cfg,
		meta:  meta,
		specs: make(map[string]models.SymbolSpec),
	}
}

// Load fetches metadata for every configured symbol. Failures fall back to the table.
func (r *Registry) Load(ctx context.Context) int {
	if r.meta == nil || !r.cfg.OKX.LoadInstruments {
		return 0
	}

	loaded := 0
	for _, sym := range r.cfg.Symbols {
		inst, err := r.meta.GetInstrumentMeta(ctx, sym)
		if err != nil {
			logger.Warn("[INSTRUMENTS] %s: %v, using configured table", sym, err)
			continue
		}
		r.mu.Lock()
		r.specs[sym] = r.merge(sym, inst)
		r.mu.Unlock()
		loaded++
	}
	logger.Info("[INSTRUMENTS] loaded %d/%d from exchange", loaded, len(r.cfg.Symbols))
	return loaded
}

func (r *Registry) Spec(symbol string) models.SymbolSpec {
	r.mu.RLock()
	spec, ok := r.specs[symbol]
	r.mu.RUnlock()
	if ok {
		return spec
	}
	return r.fromTable(symbol)
}

func (r *Registry) fromTable(symbol string) models.SymbolSpec {
	sc := r.cfg.Symbol(symbol)
	return models.SymbolSpec{
		Symbol:             symbol,
		Class:              models.SymbolClass(sc.Class),
		LotSize:            sc.LotSize,
		MinSize:            sc.MinSize,
		ContractMultiplier: sc.ContractMultiplier,
		MaxContracts:       sc.MaxContracts,
		Leverage:           sc.Leverage,
		SafetyLeverage:     sc.SafetyLeverage,
	}
}

func (r *Registry) merge(symbol string, inst models.Instrument) models.SymbolSpec {
	spec := r.fromTable(symbol)
	if inst.LotSz > 0 {
		spec.LotSize = inst.LotSz
	}
	if inst.MinSz > 0 {
		spec.MinSize = inst.MinSz
	}
	if inst.TickSz > 0 {
		spec.TickSize = inst.TickSz
	}
	if inst.CtVal > 0 {
		spec.ContractMultiplier = inst.CtVal
	}
	if inst.MaxMktSz > 0 && (spec.MaxContracts <= 0 || inst.MaxMktSz < spec.MaxContracts) {
		spec.MaxContracts = inst.MaxMktSz
	}
	return spec
}
