package service

import (
	"context"
	"errors"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"

	"position_engine/internal/apperr"
	"position_engine/internal/models"
)

// RedisStore keeps positions in one hash (field = symbol) and safety state in a plain key.
type RedisStore struct {
	rdb       *redis.Client
	positions string
	safety    string
}

func NewRedisStore(rdb *redis.Client, namespace string) *RedisStore {
	if namespace == "" {
		namespace = "position_engine"
	}
	return &RedisStore{
		rdb:       rdb,
		positions: namespace + ":positions",
		safety:    namespace + ":safety",
	}
}

func (s *RedisStore) Save(ctx context.Context, symbol string, rec models.PositionRecord) error {
	payload, err := sonic.Marshal(rec)
	if err != nil {
		return apperr.New(apperr.KindStorage, "redis.Save", symbol, err)
	}
	if err := s.rdb.HSet(ctx, s.positions, symbol, payload).Err(); err != nil {
		return apperr.New(apperr.KindStorage, "redis.Save", symbol, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, symbol string) (models.PositionRecord, bool, error) {
	raw, err := s.rdb.HGet(ctx, s.positions, symbol).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.PositionRecord{}, false, nil
	}
	if err != nil {
		return models.PositionRecord{}, false, apperr.New(apperr.KindStorage, "redis.Load", symbol, err)
	}

	var rec models.PositionRecord
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return models.PositionRecord{}, false, apperr.New(apperr.KindStorage, "redis.Load", symbol, err)
	}
	return rec, true, nil
}

func (s *RedisStore) LoadAll(ctx context.Context) (map[string]models.PositionRecord, error) {
	fields, err := s.rdb.HGetAll(ctx, s.positions).Result()
	if err != nil {
		return nil, apperr.New(apperr.KindStorage, "redis.LoadAll", "", err)
	}

	all := make(map[string]models.PositionRecord, len(fields))
	for symbol, raw := range fields {
		var rec models.PositionRecord
		if err := sonic.UnmarshalString(raw, &rec); err != nil {
			return nil, apperr.New(apperr.KindStorage, "redis.LoadAll", symbol, err)
		}
		all[symbol] = rec
	}
	return all, nil
}

func (s *RedisStore) Remove(ctx context.Context, symbol string) error {
	if err := s.rdb.HDel(ctx, s.positions, symbol).Err(); err != nil {
		return apperr.New(apperr.KindStorage, "redis.Remove", symbol, err)
	}
	return nil
}

func (s *RedisStore) ClearAll(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.positions).Err(); err != nil {
		return apperr.New(apperr.KindStorage, "redis.ClearAll", "", err)
	}
	return nil
}

func (s *RedisStore) LoadSafety(ctx context.Context) (models.SafetyState, bool, error) {
	raw, err := s.rdb.Get(ctx, s.safety).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.SafetyState{}, false, nil
	}
	if err != nil {
		return models.SafetyState{}, false, apperr.New(apperr.KindStorage, "redis.LoadSafety", "", err)
	}

	var st models.SafetyState
	if err := sonic.Unmarshal(raw, &st); err != nil {
		return models.SafetyState{}, false, apperr.New(apperr.KindStorage, "redis.LoadSafety", "", err)
	}
	return st, true, nil
}

func (s *RedisStore) SaveSafety(ctx context.Context, st models.SafetyState) error {
	payload, err := sonic.Marshal(st)
	if err != nil {
		return apperr.New(apperr.KindStorage, "redis.SaveSafety", "", err)
	}
	if err := s.rdb.Set(ctx, s.safety, payload, 0).Err(); err != nil {
		return apperr.New(apperr.KindStorage, "redis.SaveSafety", "", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
