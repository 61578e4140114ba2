package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tourism/backoffice/internal/infrastructure/cache"
	"go.uber.org/zap"
)

// ExpiryLockKey is the lock that keeps the sweep to one replica at a time
const ExpiryLockKey = "cashback:expiry-sweep"

var (
	// ErrNotRunning is returned when a background sweep is requested from a stopped scheduler
	ErrNotRunning = errors.New("cashback expiry scheduler is not running")
	// ErrInvalidConfig wraps every configuration problem
	ErrInvalidConfig = errors.New("invalid cashback expiry configuration")
)

// GrantExpirer moves overdue ACTIVE grants to EXPIRED
type GrantExpirer interface {
	ExpireDueGrants(ctx context.Context, now time.Time) (int64, error)
}

// CashbackExpirySchedulerConfig holds configuration for the expiry sweep
type CashbackExpirySchedulerConfig struct {
	// Enabled determines if the daily loop runs. Manual runs work either way.
	Enabled bool

	// ExpiryHour is the local hour (0-23) the sweep runs at
	ExpiryHour int

	// ExpiryTimeout bounds a single sweep
	ExpiryTimeout time.Duration

	// LockTTL is the lease on the distributed lock, longer than ExpiryTimeout
	LockTTL time.Duration

	// Location defines the local day
	Location *time.Location
}

// DefaultCashbackExpirySchedulerConfig returns default configuration
func DefaultCashbackExpirySchedulerConfig() CashbackExpirySchedulerConfig {
	return CashbackExpirySchedulerConfig{
		Enabled:       true,
		ExpiryHour:    0,
		ExpiryTimeout: 5 * time.Minute,
		LockTTL:       10 * time.Minute,
		Location:      time.UTC,
	}
}

// Validate checks the configuration
func (c CashbackExpirySchedulerConfig) Validate() error {
	if c.ExpiryHour < 0 || c.ExpiryHour > 23 {
		return fmt.Errorf("%w: expiry hour must be between 0 and 23, got %d", ErrInvalidConfig, c.ExpiryHour)
	}
	if c.ExpiryTimeout <= 0 {
		return fmt.Errorf("%w: expiry timeout must be positive", ErrInvalidConfig)
	}
	if c.LockTTL < c.ExpiryTimeout {
		return fmt.Errorf("%w: lock TTL must not be shorter than the expiry timeout", ErrInvalidConfig)
	}
	return nil
}

// ExpiryRunResult describes one sweep
type ExpiryRunResult struct {
	Expired  int64         `json:"expired"`
	RanAt    time.Time     `json:"ran_at"`
	Duration time.Duration `json:"duration_ns"`
	// Skipped is set when another replica held the lock
	Skipped bool `json:"skipped"`
}

// CashbackExpiryScheduler runs the daily cashback expiry sweep
type CashbackExpiryScheduler struct {
	expirer GrantExpirer
	locker  cache.Locker
	logger  *zap.Logger
	config  CashbackExpirySchedulerConfig

	now   func() time.Time
	after func(time.Duration) <-chan time.Time

	loopCtx   context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	lastRun   *ExpiryRunResult
}

// NewCashbackExpiryScheduler creates a new expiry scheduler
func NewCashbackExpiryScheduler(
	expirer GrantExpirer,
	locker cache.Locker,
	logger *zap.Logger,
	config CashbackExpirySchedulerConfig,
) (*CashbackExpiryScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if config.Location == nil {
		config.Location = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CashbackExpiryScheduler{
		expirer: expirer,
		locker:  locker,
		logger:  logger,
		config:  config,
		now:     time.Now,
		after:   time.After,
	}, nil
}

// SetClock replaces the time source and timer, for tests
func (s *CashbackExpiryScheduler) SetClock(now func() time.Time, after func(time.Duration) <-chan time.Time) {
	s.now = now
	s.after = after
}

// Start starts the daily loop
func (s *CashbackExpiryScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Cashback expiry scheduler is disabled")
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.loopCtx = ctx
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	go s.runDaily(ctx)

	s.logger.Info("Cashback expiry scheduler started",
		zap.Int("expiry_hour", s.config.ExpiryHour),
		zap.String("location", s.config.Location.String()),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight sweep
func (s *CashbackExpiryScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Cashback expiry scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Cashback expiry scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the daily loop is running
func (s *CashbackExpiryScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// LastRun returns the result of the most recent sweep, or nil
func (s *CashbackExpiryScheduler) LastRun() *ExpiryRunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastRun == nil {
		return nil
	}
	r := *s.lastRun
	return &r
}

// NextRun returns the first sweep time strictly after now
func (s *CashbackExpiryScheduler) NextRun(now time.Time) time.Time {
	local := now.In(s.config.Location)
	next := time.Date(local.Year(), local.Month(), local.Day(), s.config.ExpiryHour, 0, 0, 0, s.config.Location)
	if !next.After(local) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

func (s *CashbackExpiryScheduler) runDaily(ctx context.Context) {
	defer s.wg.Done()

	for {
		now := s.now()
		next := s.NextRun(now)
		delay := next.Sub(now)

		s.logger.Info("Cashback expiry sweep scheduled",
			zap.Time("next_run", next),
			zap.Duration("delay", delay),
		)

		select {
		case <-ctx.Done():
			s.logger.Debug("Cashback expiry loop stopping")
			return
		case <-s.after(delay):
			// failures are logged inside; the next attempt is tomorrow
			_, _ = s.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep under the distributed lock.
// When another replica holds the lock the run is skipped without error.
func (s *CashbackExpiryScheduler) RunOnce(ctx context.Context) (ExpiryRunResult, error) {
	ranAt := s.now().UTC()
	result := ExpiryRunResult{RanAt: ranAt}

	lock, err := s.locker.Obtain(ctx, ExpiryLockKey, s.config.LockTTL)
	if errors.Is(err, cache.ErrLockNotObtained) {
		s.logger.Info("Cashback expiry sweep skipped, lock held by another instance")
		result.Skipped = true
		return result, nil
	}
	if err != nil {
		s.logger.Error("Cashback expiry sweep could not take the lock", zap.Error(err))
		return result, err
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logger.Warn("Failed to release cashback expiry lock", zap.Error(err))
		}
	}()

	s.logger.Info("Cashback expiry sweep started", zap.Time("cutoff", ranAt))

	runCtx, cancel := context.WithTimeout(ctx, s.config.ExpiryTimeout)
	defer cancel()

	started := time.Now()
	count, err := s.expirer.ExpireDueGrants(runCtx, ranAt)
	result.Duration = time.Since(started)
	if err != nil {
		s.logger.Error("Cashback expiry sweep failed",
			zap.Duration("duration", result.Duration),
			zap.Error(err),
		)
		return result, err
	}
	result.Expired = count

	s.mu.Lock()
	last := result
	s.lastRun = &last
	s.mu.Unlock()

	s.logger.Info("Cashback expiry sweep completed",
		zap.Int64("expired", count),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// SweepInBackground starts a sweep without waiting for the daily slot.
// The sweep outlives ctx but is cancelled by Stop.
func (s *CashbackExpiryScheduler) SweepInBackground(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	loopCtx := s.loopCtx
	s.wg.Add(1)
	s.mu.Unlock()

	s.logger.Info("Starting background cashback expiry sweep")

	sweepCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(loopCtx, cancel)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer stop()
		_, _ = s.RunOnce(sweepCtx)
	}()
	return nil
}
