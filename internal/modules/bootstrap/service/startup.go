package service

import (
	"context"
	"fmt"

	recon "position_engine/internal/modules/reconciler/service"
	"position_engine/internal/notify"
	"position_engine/pkg/logger"
)

type Instruments interface {
	Load(ctx context.Context) int
}

type Reconciler interface {
	Restore(ctx context.Context) (int, error)
	Sync(ctx context.Context) (recon.Result, error)
}

type Readiness interface {
	SetReady(v bool)
}

// Startup brings local state in line before the first cycle: instrument
// metadata, stored positions (migrated), then a sync against the exchange.
type Startup struct {
	instruments Instruments
	reconciler  Reconciler
	ready       Readiness
	n           notify.Notifier
	paper       bool
}

func NewStartup(instruments Instruments, reconciler Reconciler, ready Readiness, n notify.Notifier, paper bool) *Startup {
	if n == nil {
		n = notify.NewLog()
	}
	return &Startup{
		instruments: instruments,
		reconciler:  reconciler,
		ready:       ready,
		n:           n,
		paper:       paper,
	}
}

// Run returns an error only when stored positions could not be read; trading
// without them would adopt every open position without its stop.
func (s *Startup) Run(ctx context.Context) error {
	mode := "LIVE"
	if s.paper {
		mode = "PAPER"
	}
	logger.Info("[BOOT] starting in %s mode", mode)

	loaded := s.instruments.Load(ctx)

	restored, err := s.reconciler.Restore(ctx)
	if err != nil {
		s.n.Sendf("❌ startup aborted: cannot read stored positions: %v", err)
		return fmt.Errorf("restore positions: %w", err)
	}

	res, err := s.reconciler.Sync(ctx)
	if err != nil {
		// retried by the periodic sync
		logger.Warn("[BOOT] initial sync failed: %v", err)
	}

	s.ready.SetReady(true)
	logger.Info("[BOOT] ready: instruments=%d restored=%d exchange=%d adopted=%d removed=%d",
		loaded, restored, res.Exchange, len(res.Adopted), len(res.Removed))
	s.n.Sendf("✅ engine started [%s]: %d positions restored, %d on exchange", mode, restored, res.Exchange)
	return nil
}
