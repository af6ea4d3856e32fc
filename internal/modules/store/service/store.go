package service

import (
	"context"

	"position_engine/internal/models"
)

// PositionStore is the durable symbol -> record mapping.
// Load returns ok=false when the symbol has no record.
type PositionStore interface {
	Save(ctx context.Context, symbol string, rec models.PositionRecord) error
	Load(ctx context.Context, symbol string) (models.PositionRecord, bool, error)
	LoadAll(ctx context.Context) (map[string]models.PositionRecord, error)
	Remove(ctx context.Context, symbol string) error
	ClearAll(ctx context.Context) error
}

type SafetyStore interface {
	LoadSafety(ctx context.Context) (models.SafetyState, bool, error)
	SaveSafety(ctx context.Context, st models.SafetyState) error
}

type Store interface {
	PositionStore
	SafetyStore
}
