package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
)

// Ensure LinkStateStore implements the interface.
var _ driven.LinkStateStore = (*LinkStateStore)(nil)

// LinkStateStore implements driven.LinkStateStore using PostgreSQL.
// MarkUsed relies on a conditional UPDATE, so concurrent callers racing on
// one token are serialised by the row lock.
type LinkStateStore struct {
	db  *DB
	ttl time.Duration
}

// NewLinkStateStore creates a PostgreSQL-backed link state store.
func NewLinkStateStore(db *DB, ttl time.Duration) *LinkStateStore {
	if ttl <= 0 {
		ttl = domain.DefaultLinkStateTTL
	}
	return &LinkStateStore{db: db, ttl: ttl}
}

// Create issues a token and inserts it.
func (s *LinkStateStore) Create(ctx context.Context, subjectID string) (*domain.PendingLinkState, error) {
	state, err := domain.NewPendingLinkState(subjectID, s.ttl, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	query := `
		INSERT INTO pending_link_states (token, subject_id, created_at, expires_at, used)
		VALUES ($1, $2, $3, $4, FALSE)
	`
	_, err = s.db.ExecContext(ctx, query, state.Token, state.SubjectID, state.CreatedAt, state.ExpiresAt)
	if err != nil {
		return nil, fmt.Errorf("save link state: %w", err)
	}

	return state, nil
}

// Get fetches a state by token, expired or not.
func (s *LinkStateStore) Get(ctx context.Context, token string) (*domain.PendingLinkState, error) {
	query := `
		SELECT token, subject_id, created_at, expires_at, used
		FROM pending_link_states
		WHERE token = $1
	`

	var state domain.PendingLinkState
	err := s.db.QueryRowContext(ctx, query, token).Scan(
		&state.Token,
		&state.SubjectID,
		&state.CreatedAt,
		&state.ExpiresAt,
		&state.Used,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get link state: %w", err)
	}

	return &state, nil
}

// MarkUsed flips used only if it is still false.
func (s *LinkStateStore) MarkUsed(ctx context.Context, token string) (bool, error) {
	query := `UPDATE pending_link_states SET used = TRUE WHERE token = $1 AND used = FALSE`

	result, err := s.db.ExecContext(ctx, query, token)
	if err != nil {
		return false, fmt.Errorf("mark link state used: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark link state used: %w", err)
	}
	return rows == 1, nil
}

// Delete removes a token.
func (s *LinkStateStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pending_link_states WHERE token = $1`, token)
	if err != nil {
		return fmt.Errorf("delete link state: %w", err)
	}
	return nil
}

// Cleanup removes expired states.
func (s *LinkStateStore) Cleanup(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM pending_link_states WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup link states: %w", err)
	}
	return result.RowsAffected()
}

// Ping checks if the database is reachable.
func (s *LinkStateStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
