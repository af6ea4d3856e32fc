package db

import (
	"context"
	"fmt"
)

// Migrate creates the tables the engine persists to.
func Migrate(ctx context.Context, conn Transaction) error {
	stmts := []string{
		`create table if not exists positions (
			symbol text primary key,
			schema_version int not null default 2,
			direction text not null,
			record jsonb not null,
			updated_at timestamptz not null default now()
		);`,
		`create table if not exists safety_state (
			id int primary key default 1,
			state jsonb not null,
			updated_at timestamptz not null default now(),
			constraint safety_state_singleton check (id = 1)
		);`,
	}

	for _, s := range stmts {
		if _, err := conn.Exec(ctx, s); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
