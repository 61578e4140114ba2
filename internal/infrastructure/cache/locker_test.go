package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newClockedLocker() (*LocalLocker, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)}
	l := NewLocalLocker()
	l.now = clock.Now
	return l, clock
}

func TestLocalLocker_ExclusiveUntilReleased(t *testing.T) {
	ctx := context.Background()
	l, _ := newClockedLocker()

	lock, err := l.Obtain(ctx, "cashback:expiry", time.Minute)
	require.NoError(t, err)

	_, err = l.Obtain(ctx, "cashback:expiry", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotObtained)

	other, err := l.Obtain(ctx, "another", time.Minute)
	require.NoError(t, err)
	require.NoError(t, other.Release(ctx))

	require.NoError(t, lock.Release(ctx))
	_, err = l.Obtain(ctx, "cashback:expiry", time.Minute)
	assert.NoError(t, err)
}

func TestLocalLocker_LeaseExpires(t *testing.T) {
	ctx := context.Background()
	l, clock := newClockedLocker()

	stale, err := l.Obtain(ctx, "k", time.Minute)
	require.NoError(t, err)

	clock.Advance(time.Minute)
	fresh, err := l.Obtain(ctx, "k", time.Minute)
	require.NoError(t, err)

	// releasing the expired lease must not free the new holder's lease
	require.NoError(t, stale.Release(ctx))
	_, err = l.Obtain(ctx, "k", time.Minute)
	assert.ErrorIs(t, err, ErrLockNotObtained)

	require.NoError(t, fresh.Release(ctx))
}

func TestFactory_FallsBackWithoutRedis(t *testing.T) {
	store := NewIdempotencyStore(nil, zap.NewNop())
	defer store.Close()
	assert.IsType(t, &InMemoryIdempotencyStore{}, store)

	assert.IsType(t, &LocalLocker{}, NewLocker(nil, zap.NewNop()))
}
