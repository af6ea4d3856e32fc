package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
	"position_engine/pkg/db"
)

// PgStore keeps one row per symbol with the record as jsonb.
type PgStore struct {
	tm *db.PgTxManager
}

func NewPgStore(tm *db.PgTxManager) *PgStore {
	return &PgStore{tm: tm}
}

func (s *PgStore) Save(ctx context.Context, symbol string, rec models.PositionRecord) (err error) {
	defer func() {
		if err != nil {
			err = apperr.New(apperr.KindStorage, "pg.Save", symbol, err)
		}
	}()

	payload, err := sonic.Marshal(rec)
	if err != nil {
		return err
	}

	const q = `
		insert into positions (symbol, schema_version, direction, record, updated_at)
		values ($1, $2, $3, $4::jsonb, now())
		on conflict (symbol) do update set
			schema_version = excluded.schema_version,
			direction = excluded.direction,
			record = excluded.record,
			updated_at = now()`

	return s.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, q, symbol, rec.SchemaVersion, string(rec.Direction), string(payload))
		return err
	})
}

func (s *PgStore) Load(ctx context.Context, symbol string) (rec models.PositionRecord, ok bool, err error) {
	defer func() {
		if err != nil {
			err = apperr.New(apperr.KindStorage, "pg.Load", symbol, err)
		}
	}()

	var raw []byte
	err = s.tm.Conn().QueryRow(ctx, `select record from positions where symbol = $1`, symbol).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.PositionRecord{}, false, nil
	}
	if err != nil {
		return models.PositionRecord{}, false, err
	}
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return models.PositionRecord{}, false, fmt.Errorf("decode: %w", err)
	}
	return rec, true, nil
}

func (s *PgStore) LoadAll(ctx context.Context) (all map[string]models.PositionRecord, err error) {
	defer func() {
		if err != nil {
			err = apperr.New(apperr.KindStorage, "pg.LoadAll", "", err)
		}
	}()

	rows, err := s.tm.Conn().Query(ctx, `select symbol, record from positions order by symbol`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	all = make(map[string]models.PositionRecord)
	for rows.Next() {
		var (
			symbol string
			raw    []byte
			rec    models.PositionRecord
		)
		if err := rows.Scan(&symbol, &raw); err != nil {
			return nil, err
		}
		if err := sonic.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", symbol, err)
		}
		all[symbol] = rec
	}
	return all, rows.Err()
}

func (s *PgStore) Remove(ctx context.Context, symbol string) error {
	return s.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctxTx, `delete from positions where symbol = $1`, symbol); err != nil {
			return apperr.New(apperr.KindStorage, "pg.Remove", symbol, err)
		}
		return nil
	})
}

func (s *PgStore) ClearAll(ctx context.Context) error {
	return s.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctxTx, `delete from positions`); err != nil {
			return apperr.New(apperr.KindStorage, "pg.ClearAll", "", err)
		}
		return nil
	})
}

func (s *PgStore) LoadSafety(ctx context.Context) (st models.SafetyState, ok bool, err error) {
	defer func() {
		if err != nil {
			err = apperr.New(apperr.KindStorage, "pg.LoadSafety", "", err)
		}
	}()

	var raw []byte
	err = s.tm.Conn().QueryRow(ctx, `select state from safety_state where id = 1`).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SafetyState{}, false, nil
	}
	if err != nil {
		return models.SafetyState{}, false, err
	}
	if err := sonic.Unmarshal(raw, &st); err != nil {
		return models.SafetyState{}, false, err
	}
	return st, true, nil
}

func (s *PgStore) SaveSafety(ctx context.Context, st models.SafetyState) (err error) {
	defer func() {
		if err != nil {
			err = apperr.New(apperr.KindStorage, "pg.SaveSafety", "", err)
		}
	}()

	payload, err := sonic.Marshal(st)
	if err != nil {
		return err
	}
	return s.tm.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, `
			insert into safety_state (id, state, updated_at) values (1, $1::jsonb, now())
			on conflict (id) do update set state = excluded.state, updated_at = now()`,
			string(payload))
		return err
	})
}

var _ Store = (*PgStore)(nil)
