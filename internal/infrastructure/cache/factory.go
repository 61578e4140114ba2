package cache

import (
	"github.com/redis/go-redis/v9"
	"github.com/tourism/backoffice/internal/domain/shared"
	"go.uber.org/zap"
)

// NewIdempotencyStore returns a Redis-backed store when a client is given and
// an in-memory store otherwise
func NewIdempotencyStore(client *redis.Client, logger *zap.Logger) shared.IdempotencyStore {
	if client != nil {
		logger.Info("Using Redis idempotency store")
		return NewRedisIdempotencyStore(client, DefaultIdempotencyPrefix)
	}
	logger.Warn("Redis disabled, using in-memory idempotency store. " +
		"Replayed requests reaching another replica will not be detected.")
	return NewInMemoryIdempotencyStore()
}

// NewLocker returns a Redis lock when a client is given and a process-local lock otherwise
func NewLocker(client *redis.Client, logger *zap.Logger) Locker {
	if client != nil {
		return NewRedisLocker(client)
	}
	logger.Warn("Redis disabled, cashback expiry lock is process-local")
	return NewLocalLocker()
}
