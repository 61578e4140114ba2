package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tourism/backoffice/internal/domain/shared"
)

const defaultSweepInterval = 5 * time.Minute

// MemoryStoreOption configures an InMemoryIdempotencyStore.
type MemoryStoreOption func(*InMemoryIdempotencyStore)

// WithSweepInterval sets how often expired claims are evicted.
func WithSweepInterval(d time.Duration) MemoryStoreOption {
	return func(s *InMemoryIdempotencyStore) {
		if d > 0 {
			s.sweepEvery = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) MemoryStoreOption {
	return func(s *InMemoryIdempotencyStore) { s.now = now }
}

// InMemoryIdempotencyStore keeps idempotency claims in process memory. Two
// replicas do not see each other's claims, so it only backs single-instance
// deployments and tests.
type InMemoryIdempotencyStore struct {
	mu     sync.Mutex
	claims map[string]time.Time // key -> expiry

	now        func() time.Time
	sweepEvery time.Duration
	stop       context.CancelFunc
	done       chan struct{}
}

// NewInMemoryIdempotencyStore starts the store along with its eviction loop;
// Close stops the loop.
func NewInMemoryIdempotencyStore(opts ...MemoryStoreOption) *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		claims:     make(map[string]time.Time),
		now:        time.Now,
		sweepEvery: defaultSweepInterval,
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.stop = cancel
	go s.sweepLoop(ctx)
	return s
}

// MarkProcessed claims key for ttl. Returns false while an unexpired claim exists.
func (s *InMemoryIdempotencyStore) MarkProcessed(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.heldLocked(key, now) {
		return false, nil
	}
	s.claims[key] = now.Add(ttl)
	return true, nil
}

// IsProcessed reports whether key is claimed and the claim has not expired.
func (s *InMemoryIdempotencyStore) IsProcessed(_ context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.heldLocked(key, s.now()), nil
}

// Release drops the claim on key so a failed request can be retried.
func (s *InMemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.claims, key)
	s.mu.Unlock()
	return nil
}

// Close stops the eviction loop. Calling it again is harmless.
func (s *InMemoryIdempotencyStore) Close() error {
	s.stop()
	<-s.done
	return nil
}

// Size counts stored claims, expired ones included until the next sweep.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.claims)
}

func (s *InMemoryIdempotencyStore) heldLocked(key string, now time.Time) bool {
	expiry, ok := s.claims[key]
	return ok && now.Before(expiry)
}

func (s *InMemoryIdempotencyStore) sweepLoop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.sweepEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep evicts expired claims and returns how many it removed.
func (s *InMemoryIdempotencyStore) sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	evicted := 0
	for key, expiry := range s.claims {
		if !now.Before(expiry) {
			delete(s.claims, key)
			evicted++
		}
	}
	return evicted
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
