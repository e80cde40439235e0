package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven/mocks"
)

func seedStates(t *testing.T, store *mocks.MockLinkStateStore, now time.Time) {
	t.Helper()
	store.Put(&domain.PendingLinkState{Token: "expired-1", SubjectID: "1", ExpiresAt: now.Add(-time.Minute)})
	store.Put(&domain.PendingLinkState{Token: "expired-2", SubjectID: "2", ExpiresAt: now.Add(-time.Hour), Used: true})
	store.Put(&domain.PendingLinkState{Token: "live", SubjectID: "3", ExpiresAt: now.Add(time.Minute)})
}

func TestNewStateSweeper_Defaults(t *testing.T) {
	s := NewStateSweeper(StateSweeperConfig{Store: mocks.NewMockLinkStateStore()})

	assert.Equal(t, 5*time.Minute, s.interval)
	assert.Equal(t, time.Minute, s.lockTTL)
	assert.NotNil(t, s.logger)
}

func TestStateSweeper_Sweep(t *testing.T) {
	store := mocks.NewMockLinkStateStore()
	seedStates(t, store, time.Now())

	s := NewStateSweeper(StateSweeperConfig{Store: store})

	removed := s.Sweep(context.Background())

	assert.Equal(t, int64(2), removed)
	assert.True(t, store.Has("live"))
	assert.False(t, store.Has("expired-1"))
	assert.False(t, store.Has("expired-2"))
}

func TestStateSweeper_Sweep_WithLock(t *testing.T) {
	store := mocks.NewMockLinkStateStore()
	seedStates(t, store, time.Now())
	lock := mocks.NewMockDistributedLock()

	s := NewStateSweeper(StateSweeperConfig{Store: store, Lock: lock})

	assert.Equal(t, int64(2), s.Sweep(context.Background()))
	assert.Equal(t, 1, lock.Acquired)
	assert.Equal(t, 1, lock.Released)
	assert.False(t, lock.IsHeld(sweeperLockName))
}

func TestStateSweeper_Sweep_LockHeldElsewhere(t *testing.T) {
	store := mocks.NewMockLinkStateStore()
	seedStates(t, store, time.Now())
	lock := mocks.NewMockDistributedLock()
	lock.HoldElsewhere(sweeperLockName, time.Minute)

	s := NewStateSweeper(StateSweeperConfig{Store: store, Lock: lock})

	assert.Equal(t, int64(0), s.Sweep(context.Background()))
	assert.Equal(t, 3, store.Len())
	assert.True(t, lock.IsHeld(sweeperLockName), "must not release another instance's lock")
}

func TestStateSweeper_Sweep_LockError(t *testing.T) {
	store := mocks.NewMockLinkStateStore()
	seedStates(t, store, time.Now())
	lock := mocks.NewMockDistributedLock()
	lock.AcquireFn = func(string, time.Duration) (bool, error) {
		return false, errors.New("redis down")
	}

	s := NewStateSweeper(StateSweeperConfig{Store: store, Lock: lock})

	assert.Equal(t, int64(0), s.Sweep(context.Background()))
	assert.Equal(t, 3, store.Len())
}

func TestStateSweeper_StartStop(t *testing.T) {
	store := mocks.NewMockLinkStateStore()
	seedStates(t, store, time.Now())

	s := NewStateSweeper(StateSweeperConfig{Store: store, Interval: 10 * time.Millisecond})
	s.Start(context.Background())
	s.Start(context.Background()) // second start is a no-op

	require.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	s.Stop() // second stop is a no-op
	assert.False(t, s.running)
}

func TestStateSweeper_StopsOnContextCancel(t *testing.T) {
	s := NewStateSweeper(StateSweeperConfig{Store: mocks.NewMockLinkStateStore(), Interval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()

	select {
	case <-s.doneCh:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not exit after context cancellation")
	}
}

func TestStateSweeper_Sweep_ReportsCount(t *testing.T) {
	store := mocks.NewMockLinkStateStore()
	seedStates(t, store, time.Now())

	var reported []int64
	s := NewStateSweeper(StateSweeperConfig{
		Store:   store,
		OnSweep: func(removed int64) { reported = append(reported, removed) },
	})

	s.Sweep(context.Background())
	s.Sweep(context.Background())

	require.Len(t, reported, 2)
	assert.Equal(t, []int64{2, 0}, reported)
}
