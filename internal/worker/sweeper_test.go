package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingJobs struct {
	sweeps    atomic.Int32
	cleanups  atomic.Int32
	olderThan time.Duration
	mu        sync.Mutex
}

func (j *countingJobs) SweepExpired(context.Context) (int, error) {
	j.sweeps.Add(1)
	return 2, nil
}

func (j *countingJobs) CleanupAbandoned(_ context.Context, olderThan time.Duration) (int, error) {
	j.mu.Lock()
	j.olderThan = olderThan
	j.mu.Unlock()
	j.cleanups.Add(1)
	return 1, nil
}

// leaseLocker grants a key once until reset.
type leaseLocker struct {
	mu   sync.Mutex
	held map[string]bool
	err  error
}

func (l *leaseLocker) TryLock(_ context.Context, key string, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return false, l.err
	}
	if l.held[key] {
		return false, nil
	}
	l.held[key] = true
	return true, nil
}

func TestTickRunsBothJobs(t *testing.T) {
	jobs := &countingJobs{}
	s := NewSweeper(jobs, jobs, nil, SweeperConfig{AbandonedAfter: 2 * time.Hour}, nil)

	res := s.Tick(context.Background())
	assert.Equal(t, TickResult{Ran: true, HoldsReleased: 2, PaymentsRemoved: 1}, res)
	assert.Equal(t, 2*time.Hour, jobs.olderThan)
}

func TestTickOnlyLeaderSweeps(t *testing.T) {
	jobs := &countingJobs{}
	lock := &leaseLocker{held: map[string]bool{}}
	a := NewSweeper(jobs, jobs, lock, SweeperConfig{}, nil)
	b := NewSweeper(jobs, jobs, lock, SweeperConfig{}, nil)

	assert.True(t, a.Tick(context.Background()).Ran)
	assert.False(t, b.Tick(context.Background()).Ran)
	assert.Equal(t, int32(1), jobs.sweeps.Load())

	lock.err = errors.New("redis down")
	assert.False(t, a.Tick(context.Background()).Ran)
	assert.Equal(t, int32(1), jobs.sweeps.Load())
}

func TestStartStop(t *testing.T) {
	jobs := &countingJobs{}
	s := NewSweeper(jobs, jobs, nil, SweeperConfig{Interval: 10 * time.Millisecond}, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.Error(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return jobs.sweeps.Load() >= 2 }, time.Second, 5*time.Millisecond)
	s.Stop()
	s.Stop()

	after := jobs.sweeps.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, after, jobs.sweeps.Load())
}
