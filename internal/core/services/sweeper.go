package services

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

// sweeperLockName is the distributed lock guarding a sweep cycle.
const sweeperLockName = "link-state-sweeper"

// StateSweeper periodically removes expired link states.
// Expiry is enforced at callback time regardless, so sweeping only bounds
// storage growth from links that were never completed.
//
// For multi-instance deployments, configure a DistributedLock so only one
// instance sweeps per cycle.
type StateSweeper struct {
	store  driven.LinkStateStore
	lock   driven.DistributedLock
	logger *slog.Logger
	report func(removed int64)

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	interval time.Duration
	lockTTL  time.Duration
}

// StateSweeperConfig holds configuration for the sweeper.
type StateSweeperConfig struct {
	Store    driven.LinkStateStore
	Lock     driven.DistributedLock // Optional
	Logger   *slog.Logger
	Interval time.Duration // default: 5m
	LockTTL  time.Duration // default: 1m

	// OnSweep is called with the count after each completed cycle.
	OnSweep func(removed int64)
}

// NewStateSweeper creates a new sweeper.
func NewStateSweeper(cfg StateSweeperConfig) *StateSweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = time.Minute
	}

	return &StateSweeper{
		store:    cfg.Store,
		lock:     cfg.Lock,
		logger:   logger,
		report:   cfg.OnSweep,
		interval: interval,
		lockTTL:  lockTTL,
	}
}

// Start begins the sweep loop. It runs until Stop is called or ctx is done.
func (s *StateSweeper) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("state sweeper starting", "interval", s.interval)

	go s.run(ctx)
}

// Stop halts the loop and waits for an in-flight sweep to finish.
func (s *StateSweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("state sweeper stopped")
}

func (s *StateSweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one cleanup cycle and returns the number of removed states.
// It skips the cycle when another instance holds the sweeper lock.
func (s *StateSweeper) Sweep(ctx context.Context) int64 {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, sweeperLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire sweeper lock", "error", err)
			return 0
		}
		if !acquired {
			s.logger.Debug("sweeper lock held by another instance, skipping cycle")
			return 0
		}
		defer func() {
			if err := s.lock.Release(ctx, sweeperLockName); err != nil {
				s.logger.Warn("failed to release sweeper lock", "error", err)
			}
		}()
	}

	removed, err := s.store.Cleanup(ctx)
	if err != nil {
		s.logger.Error("failed to clean up link states", "error", err)
		return 0
	}
	if removed > 0 {
		s.logger.Info("removed expired link states", "count", removed)
	}
	if s.report != nil {
		s.report(removed)
	}
	return removed
}
