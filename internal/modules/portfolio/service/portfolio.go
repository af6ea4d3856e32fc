package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"position_engine/internal/apperr"
	"position_engine/internal/helper"
	"position_engine/internal/models"
	"position_engine/pkg/logger"
)

const dayLayout = "2006-01-02"

// Archiver uploads one day of the journal somewhere durable.
type Archiver interface {
	Archive(ctx context.Context, day string, data []byte) error
}

// Portfolio is the realized-trade journal. Every recorded trade rewrites the
// journal file atomically.
type Portfolio struct {
	mu       sync.RWMutex
	path     string
	trades   []models.TradeRecord
	archiver Archiver
}

func NewPortfolio(path string, archiver Archiver) *Portfolio {
	if path == "" {
		path = "trades_history.json"
	}
	return &Portfolio{path: path, archiver: archiver}
}

// Load reads the journal; a missing file is an empty journal.
func (p *Portfolio) Load() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	data, err := os.ReadFile(p.path)
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		p.trades = nil
		return nil
	}
	if err != nil {
		return apperr.New(apperr.KindStorage, "portfolio.Load", "", err)
	}

	var trades []models.TradeRecord
	if err := sonic.Unmarshal(data, &trades); err != nil {
		return apperr.New(apperr.KindStorage, "portfolio.Load", "", fmt.Errorf("decode %s: %w", p.path, err))
	}
	p.trades = trades
	return nil
}

// RecordTrade appends tr (settling P&L when the caller did not) and persists.
// The trade stays in memory even when the write fails.
func (p *Portfolio) RecordTrade(_ context.Context, tr models.TradeRecord) error {
	if tr.PnL == 0 && tr.PnLPct == 0 {
		tr.Settle()
	}
	if tr.ClosedAt.IsZero() {
		tr.ClosedAt = time.Now().UTC()
	}

	p.mu.Lock()
	p.trades = append(p.trades, tr)
	err := p.flushLocked()
	p.mu.Unlock()

	logger.Symbol(tr.Symbol).Info("trade recorded",
		zap.String("direction", string(tr.Direction)),
		zap.String("reason", string(tr.ExitReason)),
		zap.Float64("pnl", tr.PnL),
		zap.Float64("pnl_pct", tr.PnLPct),
	)
	if err != nil {
		return apperr.New(apperr.KindStorage, "portfolio.RecordTrade", tr.Symbol, err)
	}
	return nil
}

func (p *Portfolio) flushLocked() error {
	trades := p.trades
	if trades == nil {
		trades = []models.TradeRecord{}
	}
	data, err := sonic.ConfigStd.MarshalIndent(trades, "", "  ")
	if err != nil {
		return err
	}
	return helper.WriteFileAtomic(p.path, data)
}

// Trades returns a copy of the journal, oldest first.
func (p *Portfolio) Trades() []models.TradeRecord {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return append([]models.TradeRecord(nil), p.trades...)
}

// Day returns trades closed on the UTC calendar day of t.
func (p *Portfolio) Day(t time.Time) []models.TradeRecord {
	day := t.UTC().Format(dayLayout)
	var out []models.TradeRecord
	for _, tr := range p.Trades() {
		if tr.ClosedAt.UTC().Format(dayLayout) == day {
			out = append(out, tr)
		}
	}
	return out
}

func (p *Portfolio) Summary() Stats { return Compute(p.Trades()) }

func (p *Portfolio) DailyStats(t time.Time) Stats { return Compute(p.Day(t)) }

// DailyPerformance gives stats for the last n days ending at now, newest first.
func (p *Portfolio) DailyPerformance(now time.Time, n int) []DayStats {
	out := make([]DayStats, 0, n)
	for i := 0; i < n; i++ {
		d := now.UTC().AddDate(0, 0, -i)
		out = append(out, DayStats{Day: d.Format(dayLayout), Stats: p.DailyStats(d)})
	}
	return out
}

// SymbolPerformance groups the journal per symbol, sorted by symbol.
func (p *Portfolio) SymbolPerformance() []SymbolStats {
	by := map[string][]models.TradeRecord{}
	for _, tr := range p.Trades() {
		by[tr.Symbol] = append(by[tr.Symbol], tr)
	}
	out := make([]SymbolStats, 0, len(by))
	for sym, trades := range by {
		out = append(out, SymbolStats{Symbol: sym, Stats: Compute(trades)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// ArchiveDay uploads the trades of day t. Nothing to upload is not an error.
func (p *Portfolio) ArchiveDay(ctx context.Context, t time.Time) error {
	if p.archiver == nil {
		return nil
	}
	trades := p.Day(t)
	if len(trades) == 0 {
		return nil
	}
	data, err := sonic.ConfigStd.MarshalIndent(trades, "", "  ")
	if err != nil {
		return apperr.New(apperr.KindStorage, "portfolio.ArchiveDay", "", err)
	}
	day := t.UTC().Format(dayLayout)
	if err := p.archiver.Archive(ctx, day, data); err != nil {
		return apperr.New(apperr.KindStorage, "portfolio.ArchiveDay", "", err)
	}
	logger.Info("journal archived: day=%s trades=%d", day, len(trades))
	return nil
}

// StatusLine is a one-line summary for alerts and the status command.
func (p *Portfolio) StatusLine() string {
	s := p.Summary()
	return fmt.Sprintf("trades %d, win rate %.1f%%, P&L %+.2f, PF %s", s.Trades, s.WinRate, s.TotalPnL, s.ProfitFactorString())
}
