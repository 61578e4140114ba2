package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotObtained is returned when another holder owns the lock
var ErrLockNotObtained = errors.New("lock not obtained")

// Lock is a held lease
type Lock interface {
	Release(ctx context.Context) error
}

// Locker hands out named, expiring locks
type Locker interface {
	// Obtain tries once to take key for ttl. Returns ErrLockNotObtained when it is held.
	Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error)
}

// RedisLocker is a Locker shared by every replica connected to the same Redis
type RedisLocker struct {
	client *redislock.Client
}

// NewRedisLocker creates a RedisLocker
func NewRedisLocker(client *redis.Client) *RedisLocker {
	return &RedisLocker{client: redislock.New(client)}
}

// Obtain takes key for ttl without retrying
func (l *RedisLocker) Obtain(ctx context.Context, key string, ttl time.Duration) (Lock, error) {
	lock, err := l.client.Obtain(ctx, key, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, ErrLockNotObtained
	}
	if err != nil {
		return nil, fmt.Errorf("failed to obtain lock %s: %w", key, err)
	}
	return &redisLock{lock: lock}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l *redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}

// LocalLocker is a process-local Locker. Leases expire after ttl like their Redis counterparts.
type LocalLocker struct {
	mu     sync.Mutex
	leases map[string]localLease
	tokens uint64
	now    func() time.Time
}

type localLease struct {
	token     uint64
	expiresAt time.Time
}

// NewLocalLocker creates a LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{
		leases: make(map[string]localLease),
		now:    time.Now,
	}
}

// Obtain takes key for ttl when it is free or its lease expired
func (l *LocalLocker) Obtain(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if lease, held := l.leases[key]; held && now.Before(lease.expiresAt) {
		return nil, ErrLockNotObtained
	}
	l.tokens++
	lease := localLease{token: l.tokens, expiresAt: now.Add(ttl)}
	l.leases[key] = lease
	return &localLock{locker: l, key: key, token: lease.token}, nil
}

type localLock struct {
	locker *LocalLocker
	key    string
	token  uint64
}

// Release frees the lease unless it already expired and was taken by someone else
func (l *localLock) Release(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if lease, held := l.locker.leases[l.key]; held && lease.token == l.token {
		delete(l.locker.leases, l.key)
	}
	return nil
}

var (
	_ Locker = (*RedisLocker)(nil)
	_ Locker = (*LocalLocker)(nil)
)
