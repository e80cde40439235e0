package postgres

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/custodia-labs/accountlink/internal/core/domain"
)

// startPostgres runs a throwaway database with the schema applied.
// Skips in short mode or when Docker is unavailable.
func startPostgres(t *testing.T) *DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	var container *tcpostgres.PostgresContainer
	var err error
	func() {
		defer func() {
			if r := recover(); r != nil {
				t.Skipf("Skipping integration test, docker unavailable: %v", r)
			}
		}()
		container, err = tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("accountlink"),
			tcpostgres.WithUsername("accountlink"),
			tcpostgres.WithPassword("accountlink"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
	}()
	if err != nil {
		t.Skipf("Skipping integration test, postgres container did not start: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	db, err := Connect(ctx, DefaultConfig(url))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema: %v", err)
	}
	// Applying twice must be harmless.
	if err := db.InitSchema(ctx); err != nil {
		t.Fatalf("InitSchema again: %v", err)
	}
	return db
}

func TestPostgres_Integration(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	t.Run("LinkStateLifecycle", func(t *testing.T) {
		store := NewLinkStateStore(db, time.Minute)

		state, err := store.Create(ctx, "42")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		got, err := store.Get(ctx, state.Token)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if got.SubjectID != "42" || got.Used {
			t.Errorf("unexpected state: %+v", got)
		}

		ok, err := store.MarkUsed(ctx, state.Token)
		if err != nil || !ok {
			t.Fatalf("first MarkUsed: ok=%v err=%v", ok, err)
		}
		ok, err = store.MarkUsed(ctx, state.Token)
		if err != nil || ok {
			t.Fatalf("second MarkUsed: ok=%v err=%v", ok, err)
		}

		if err := store.Delete(ctx, state.Token); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if _, err := store.Get(ctx, state.Token); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if ok, err := store.MarkUsed(ctx, state.Token); err != nil || ok {
			t.Errorf("MarkUsed on missing token: ok=%v err=%v", ok, err)
		}
	})

	t.Run("MarkUsedConcurrent", func(t *testing.T) {
		store := NewLinkStateStore(db, time.Minute)
		state, err := store.Create(ctx, "43")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}

		const callers = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := store.MarkUsed(ctx, state.Token)
				if err != nil {
					t.Errorf("MarkUsed: %v", err)
					return
				}
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		if wins != 1 {
			t.Errorf("expected exactly one winner, got %d", wins)
		}
	})

	t.Run("LinkStateCleanup", func(t *testing.T) {
		store := NewLinkStateStore(db, time.Minute)
		live, err := store.Create(ctx, "44")
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
		past := time.Now().UTC().Add(-time.Hour)
		_, err = db.ExecContext(ctx,
			`INSERT INTO pending_link_states (token, subject_id, created_at, expires_at, used) VALUES ($1, $2, $3, $4, FALSE)`,
			"expired-token", "45", past, past.Add(time.Minute),
		)
		if err != nil {
			t.Fatalf("insert expired state: %v", err)
		}

		removed, err := store.Cleanup(ctx)
		if err != nil {
			t.Fatalf("Cleanup: %v", err)
		}
		if removed < 1 {
			t.Errorf("expected at least one removed state, got %d", removed)
		}
		if _, err := store.Get(ctx, "expired-token"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("expired state survived cleanup: %v", err)
		}
		if _, err := store.Get(ctx, live.Token); err != nil {
			t.Errorf("live state removed by cleanup: %v", err)
		}
	})

	t.Run("IdentityMappingUpsertAndCredentials", func(t *testing.T) {
		encryptor, err := NewSecretEncryptor(testKey)
		if err != nil {
			t.Fatalf("NewSecretEncryptor: %v", err)
		}
		store := NewIdentityMappingStore(db, encryptor)
		now := time.Now()

		created, err := store.Upsert(ctx, "100", "a@example.com", now)
		if err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if !created.Active || created.ExternalAccountID != "a@example.com" {
			t.Errorf("unexpected mapping: %+v", created)
		}

		if err := store.SaveCredentials(ctx, "100", &domain.ProviderCredentials{RefreshToken: "r1"}); err != nil {
			t.Fatalf("SaveCredentials: %v", err)
		}

		// Same account keeps the stored credentials.
		again, err := store.Upsert(ctx, "100", "a@example.com", now.Add(time.Minute))
		if err != nil {
			t.Fatalf("Upsert same account: %v", err)
		}
		if again.Credentials == nil || again.Credentials.RefreshToken != "r1" {
			t.Errorf("credentials lost on same-account upsert: %+v", again.Credentials)
		}
		if !again.CreatedAt.Equal(created.CreatedAt) {
			t.Errorf("created_at changed: %v -> %v", created.CreatedAt, again.CreatedAt)
		}

		// Another account drops them.
		relinked, err := store.Upsert(ctx, "100", "b@example.com", now.Add(2*time.Minute))
		if err != nil {
			t.Fatalf("Upsert relink: %v", err)
		}
		if relinked.Credentials != nil {
			t.Errorf("credentials kept across relink: %+v", relinked.Credentials)
		}

		byAccount, err := store.GetByExternalAccount(ctx, "b@example.com")
		if err != nil || byAccount.SubjectID != "100" {
			t.Errorf("GetByExternalAccount: %+v, %v", byAccount, err)
		}
		if _, err := store.GetByExternalAccount(ctx, "a@example.com"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("old account still mapped: %v", err)
		}
	})

	t.Run("IdentityMappingAccountTaken", func(t *testing.T) {
		store := NewIdentityMappingStore(db, nil)
		if _, err := store.Upsert(ctx, "200", "taken@example.com", time.Now()); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		_, err := store.Upsert(ctx, "201", "taken@example.com", time.Now())
		if !errors.Is(err, domain.ErrExternalAccountTaken) {
			t.Errorf("expected ErrExternalAccountTaken, got %v", err)
		}
	})

	t.Run("IdentityMappingMissingRows", func(t *testing.T) {
		store := NewIdentityMappingStore(db, nil)
		if _, err := store.GetBySubject(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("GetBySubject: expected ErrNotFound, got %v", err)
		}
		if err := store.Deactivate(ctx, "missing"); !errors.Is(err, domain.ErrNotFound) {
			t.Errorf("Deactivate: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("IdentityMappingDeactivate", func(t *testing.T) {
		store := NewIdentityMappingStore(db, nil)
		if _, err := store.Upsert(ctx, "300", "c@example.com", time.Now()); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
		if err := store.Deactivate(ctx, "300"); err != nil {
			t.Fatalf("Deactivate: %v", err)
		}
		got, err := store.GetBySubject(ctx, "300")
		if err != nil {
			t.Fatalf("GetBySubject: %v", err)
		}
		if got.Active {
			t.Error("mapping still active")
		}

		reactivated, err := store.Upsert(ctx, "300", "c@example.com", time.Now())
		if err != nil {
			t.Fatalf("Upsert after deactivate: %v", err)
		}
		if !reactivated.Active {
			t.Error("relink did not reactivate mapping")
		}
	})

	t.Run("AdvisoryLock", func(t *testing.T) {
		first := NewAdvisoryLock(db)
		second := NewAdvisoryLock(db)

		ok, err := first.Acquire(ctx, "sweeper", time.Minute)
		if err != nil || !ok {
			t.Fatalf("first Acquire: ok=%v err=%v", ok, err)
		}
		ok, err = second.Acquire(ctx, "sweeper", time.Minute)
		if err != nil || ok {
			t.Fatalf("second Acquire while held: ok=%v err=%v", ok, err)
		}

		if err := first.Release(ctx, "sweeper"); err != nil {
			t.Fatalf("Release: %v", err)
		}
		ok, err = second.Acquire(ctx, "sweeper", time.Minute)
		if err != nil || !ok {
			t.Fatalf("Acquire after release: ok=%v err=%v", ok, err)
		}
		if err := second.Release(ctx, "sweeper"); err != nil {
			t.Fatalf("Release: %v", err)
		}
	})
}
