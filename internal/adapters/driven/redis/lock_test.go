package redis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return client, mr
}

func TestLock_OwnerIDUnique(t *testing.T) {
	client, _ := setupTestRedis(t)

	a, b := NewLock(client), NewLock(client)
	if a.OwnerID() == "" {
		t.Fatal("expected non-empty owner ID")
	}
	if a.OwnerID() == b.OwnerID() {
		t.Errorf("expected unique owner IDs, got %s twice", a.OwnerID())
	}
}

func TestLock_AcquireExclusive(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	first, second := NewLock(client), NewLock(client)

	ok, err := first.Acquire(ctx, "link-state-sweeper", 10*time.Second)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}

	ok, err = second.Acquire(ctx, "link-state-sweeper", 10*time.Second)
	if err != nil {
		t.Fatalf("second acquire: %v", err)
	}
	if ok {
		t.Error("second instance acquired a held lock")
	}

	ok, _ = first.Acquire(ctx, "link-state-sweeper", 10*time.Second)
	if ok {
		t.Error("lock is not reentrant")
	}

	got, _ := mr.Get(lockPrefix + "link-state-sweeper")
	if got != first.OwnerID() {
		t.Errorf("lock value: got %q, want %q", got, first.OwnerID())
	}
}

func TestLock_Release(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	owner, other := NewLock(client), NewLock(client)
	owner.Acquire(ctx, "sweep", 10*time.Second)

	if err := other.Release(ctx, "sweep"); err != nil {
		t.Fatalf("foreign release: %v", err)
	}
	if !mr.Exists(lockPrefix + "sweep") {
		t.Fatal("foreign release dropped the lock")
	}

	if err := owner.Release(ctx, "sweep"); err != nil {
		t.Fatalf("release: %v", err)
	}
	if mr.Exists(lockPrefix + "sweep") {
		t.Fatal("lock still present after release")
	}

	if err := owner.Release(ctx, "sweep"); err != nil {
		t.Errorf("releasing a free lock should not fail: %v", err)
	}

	ok, _ := other.Acquire(ctx, "sweep", 10*time.Second)
	if !ok {
		t.Error("expected lock to be free after release")
	}
}

func TestLock_ExpiresWithTTL(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	a, b := NewLock(client), NewLock(client)
	a.Acquire(ctx, "sweep", time.Second)

	mr.FastForward(2 * time.Second)

	ok, err := b.Acquire(ctx, "sweep", time.Second)
	if err != nil || !ok {
		t.Fatalf("acquire after expiry: ok=%v err=%v", ok, err)
	}
}

func TestLock_Extend(t *testing.T) {
	client, mr := setupTestRedis(t)
	ctx := context.Background()

	owner, other := NewLock(client), NewLock(client)
	owner.Acquire(ctx, "sweep", time.Second)

	if err := owner.Extend(ctx, "sweep", time.Minute); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if ttl := mr.TTL(lockPrefix + "sweep"); ttl < 30*time.Second {
		t.Errorf("ttl after extend: %v", ttl)
	}

	err := other.Extend(ctx, "sweep", time.Minute)
	if !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("foreign extend: expected ErrLockNotHeld, got %v", err)
	}

	err = owner.Extend(ctx, "missing", time.Minute)
	if !errors.Is(err, ErrLockNotHeld) {
		t.Errorf("extend missing: expected ErrLockNotHeld, got %v", err)
	}
}

func TestLock_Ping(t *testing.T) {
	client, _ := setupTestRedis(t)

	if err := NewLock(client).Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestConnect(t *testing.T) {
	_, mr := setupTestRedis(t)

	client, err := Connect(context.Background(), "redis://"+mr.Addr()+"/0")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	client.Close()

	if _, err := Connect(context.Background(), "not a url"); err == nil || !strings.Contains(err.Error(), "parse redis url") {
		t.Errorf("expected parse error, got %v", err)
	}
}
