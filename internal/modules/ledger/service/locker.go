package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	redis "position_engine/internal/modules/redis/service"
)

type Locker interface {
	Lock(ctx context.Context, symbol string) (func(), error)
}

// LocalLocker is one mutex per symbol.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *LocalLocker) Lock(_ context.Context, symbol string) (func(), error) {
	l.mu.Lock()
	m, ok := l.locks[symbol]
	if !ok {
		m = &sync.Mutex{}
		l.locks[symbol] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock, nil
}

// DistributedLocker takes the local mutex and then the redis lock, so two
// engines sharing one account never act on the same symbol at once.
type DistributedLocker struct {
	local *LocalLocker
	rl    *redis.LockManager
	ttl   time.Duration
}

func NewDistributedLocker(rl *redis.LockManager, ttl time.Duration) *DistributedLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &DistributedLocker{local: NewLocalLocker(), rl: rl, ttl: ttl}
}

func (d *DistributedLocker) Lock(ctx context.Context, symbol string) (func(), error) {
	unlockLocal, _ := d.local.Lock(ctx, symbol)

	unlockRemote, err := d.rl.Acquire(ctx, "symbol:"+symbol, d.ttl)
	if err != nil {
		unlockLocal()
		return nil, fmt.Errorf("lock %s: %w", symbol, err)
	}
	return func() {
		unlockRemote()
		unlockLocal()
	}, nil
}
