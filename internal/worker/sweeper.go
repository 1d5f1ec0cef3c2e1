// Package worker runs the periodic maintenance jobs of the service.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ExpirySweeper releases lapsed holds.
type ExpirySweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// PaymentCleaner removes payments that never reached the gateway.
type PaymentCleaner interface {
	CleanupAbandoned(ctx context.Context, olderThan time.Duration) (int, error)
}

// Locker elects one process to run a job per interval.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// RedisLocker takes a lease with SET NX PX.  The lease is never released
// early; it lapses on its own so one sweep runs per interval across all
// processes.
type RedisLocker struct {
	rdb   *redis.Client
	owner string
}

// NewRedisLocker returns a locker backed by rdb.
func NewRedisLocker(rdb *redis.Client) *RedisLocker {
	return &RedisLocker{rdb: rdb, owner: uuid.NewString()}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return l.rdb.SetNX(ctx, key, l.owner, ttl).Result()
}

// SweeperConfig contains configuration for the sweeper
type SweeperConfig struct {
	// Interval between sweeps
	Interval time.Duration
	// AbandonedAfter is the age at which a payment without a gateway id is deleted
	AbandonedAfter time.Duration
	// LockKey is the Redis key used for leader election
	LockKey string
}

// DefaultSweeperConfig returns default configuration
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:       time.Minute,
		AbandonedAfter: time.Hour,
		LockKey:        "sweeper:lock",
	}
}

// Sweeper periodically releases expired holds and deletes abandoned
// payments.
type Sweeper struct {
	holds    ExpirySweeper
	payments PaymentCleaner
	locker   Locker
	config   SweeperConfig
	log      *zap.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewSweeper creates a sweeper.  A nil locker makes every tick run.
func NewSweeper(holds ExpirySweeper, payments PaymentCleaner, locker Locker, config SweeperConfig, log *zap.Logger) *Sweeper {
	def := DefaultSweeperConfig()
	if config.Interval <= 0 {
		config.Interval = def.Interval
	}
	if config.AbandonedAfter <= 0 {
		config.AbandonedAfter = def.AbandonedAfter
	}
	if config.LockKey == "" {
		config.LockKey = def.LockKey
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Sweeper{holds: holds, payments: payments, locker: locker, config: config, log: log}
}

// Start runs the sweep loop in the background until Stop or ctx ends.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sweeper already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go s.loop(ctx)
	s.log.Info("sweeper started", zap.Duration("interval", s.config.Interval))
	return nil
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info("sweeper stopped")
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// TickResult reports what one tick did.
type TickResult struct {
	Ran             bool
	HoldsReleased   int
	PaymentsRemoved int
}

// Tick runs one sweep if this process wins the lease.
func (s *Sweeper) Tick(ctx context.Context) TickResult {
	var res TickResult
	if s.locker != nil {
		// Slightly shorter than the interval so the next tick can win it.
		ttl := s.config.Interval - s.config.Interval/10
		ok, err := s.locker.TryLock(ctx, s.config.LockKey, ttl)
		if err != nil {
			s.log.Warn("sweeper lock unavailable, skipping tick", zap.Error(err))
			return res
		}
		if !ok {
			s.log.Debug("another process holds the sweeper lock")
			return res
		}
	}
	res.Ran = true

	n, err := s.holds.SweepExpired(ctx)
	if err != nil {
		s.log.Error("expiry sweep failed", zap.Error(err))
	}
	res.HoldsReleased = n

	if s.payments != nil {
		n, err = s.payments.CleanupAbandoned(ctx, s.config.AbandonedAfter)
		if err != nil {
			s.log.Error("abandoned payment cleanup failed", zap.Error(err))
		}
		res.PaymentsRemoved = n
	}
	return res
}
