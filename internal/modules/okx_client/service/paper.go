package service

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
)

// MarketData is the read-only half of the exchange.
type MarketData interface {
	GetTicker(ctx context.Context, symbol string) (float64, error)
	GetCandles(ctx context.Context, symbol, bar string, limit int) ([]models.Candle, error)
}

// Exchange is the full adapter capability set used by the engine.
type Exchange interface {
	MarketData
	GetMarginInfo(ctx context.Context) (models.MarginInfo, error)
	GetAvailableMargin(ctx context.Context) (float64, error)
	GetAccountEquity(ctx context.Context) (float64, error)
	GetPositions(ctx context.Context) ([]models.ExchangePosition, error)
	SubmitOrder(ctx context.Context, req models.OrderRequest) (models.OrderResult, error)
	IsPaper() bool
}

func (c *Client) IsPaper() bool { return false }

// PaperExchange serves real market data and simulates orders and the account.
type PaperExchange struct {
	md        MarketData
	equity    float64
	available float64

	mu        sync.Mutex
	positions map[string]models.ExchangePosition
}

func NewPaperExchange(md MarketData, startingEquity, availableFraction float64) *PaperExchange {
	return &PaperExchange{
		md:        md,
		equity:    startingEquity,
		available: startingEquity * availableFraction,
		positions: make(map[string]models.ExchangePosition),
	}
}

func (p *PaperExchange) IsPaper() bool { return true }

func (p *PaperExchange) GetTicker(ctx context.Context, symbol string) (float64, error) {
	return p.md.GetTicker(ctx, symbol)
}

func (p *PaperExchange) GetCandles(ctx context.Context, symbol, bar string, limit int) ([]models.Candle, error) {
	return p.md.GetCandles(ctx, symbol, bar, limit)
}

func (p *PaperExchange) GetMarginInfo(context.Context) (models.MarginInfo, error) {
	return models.MarginInfo{
		Available:   p.available,
		TotalEquity: p.equity,
		UsedMargin:  p.equity - p.available,
	}, nil
}

func (p *PaperExchange) GetAvailableMargin(context.Context) (float64, error) {
	return p.available, nil
}

func (p *PaperExchange) GetAccountEquity(context.Context) (float64, error) {
	return p.equity, nil
}

func (p *PaperExchange) GetPositions(context.Context) ([]models.ExchangePosition, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]models.ExchangePosition, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

// SubmitOrder fills immediately. Ids look like paper_<symbol>_<uuid>.
func (p *PaperExchange) SubmitOrder(_ context.Context, req models.OrderRequest) (models.OrderResult, error) {
	if req.Size <= 0 {
		return models.OrderResult{}, apperr.Newf(apperr.KindOrderRejected, "paper.SubmitOrder", req.Symbol, "size <= 0")
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	dir := req.PosSide()
	pos := p.positions[req.Symbol]
	if req.ReduceOnly {
		if pos.Size > 0 && pos.Direction != dir {
			return models.OrderResult{}, apperr.Newf(apperr.KindOrderRejected, "paper.SubmitOrder", req.Symbol,
				"no %s position to reduce", dir)
		}
		// пустая книга: позиция открыта до рестарта, закрытие всё равно исполняется
		pos.Size -= req.Size
		if pos.Size <= 1e-12 {
			delete(p.positions, req.Symbol)
		} else {
			p.positions[req.Symbol] = pos
		}
	} else {
		if pos.Size > 0 && pos.Direction != dir {
			return models.OrderResult{}, apperr.Newf(apperr.KindOrderRejected, "paper.SubmitOrder", req.Symbol,
				"opposite %s position is open", pos.Direction)
		}
		total := pos.Size + req.Size
		if total > 0 && req.RefPrice > 0 {
			pos.AvgPrice = (pos.AvgPrice*pos.Size + req.RefPrice*req.Size) / total
		}
		pos.Symbol = req.Symbol
		pos.Direction = dir
		pos.Size = total
		p.positions[req.Symbol] = pos
	}

	return models.OrderResult{
		OrderID: "paper_" + req.Symbol + "_" + uuid.NewString(),
		Paper:   true,
	}, nil
}
