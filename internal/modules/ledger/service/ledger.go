package service

import (
	"context"
	"sort"
	"sync"

	"position_engine/internal/models"
)

// Ledger is the in-memory symbol -> open position map for the process lifetime.
// Readers get copies; writers replace whole records.
type Ledger struct {
	mu        sync.RWMutex
	positions map[string]models.PositionRecord

	locks Locker
}

func NewLedger(locks Locker) *Ledger {
	if locks == nil {
		locks = NewLocalLocker()
	}
	return &Ledger{
		positions: make(map[string]models.PositionRecord),
		locks:     locks,
	}
}

// Lock serializes enter, exit evaluation, close and reconciliation for one symbol.
func (l *Ledger) Lock(ctx context.Context, symbol string) (func(), error) {
	return l.locks.Lock(ctx, symbol)
}

func (l *Ledger) Get(symbol string) (models.PositionRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.positions[symbol]
	if !ok {
		return models.PositionRecord{}, false
	}
	return rec.Clone(), true
}

func (l *Ledger) Has(symbol string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.positions[symbol]
	return ok
}

// Put inserts or replaces the record for rec.Symbol.
func (l *Ledger) Put(rec models.PositionRecord) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.positions[rec.Symbol] = rec.Clone()
}

func (l *Ledger) Delete(symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.positions, symbol)
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.positions)
}

func (l *Ledger) Symbols() []string {
	l.mu.RLock()
	out := make([]string, 0, len(l.positions))
	for s := range l.positions {
		out = append(out, s)
	}
	l.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Snapshot returns copies of all records ordered by symbol.
func (l *Ledger) Snapshot() []models.PositionRecord {
	l.mu.RLock()
	out := make([]models.PositionRecord, 0, len(l.positions))
	for _, rec := range l.positions {
		out = append(out, rec.Clone())
	}
	l.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}
