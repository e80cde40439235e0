package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/custodia-labs/accountlink/internal/core/domain"
	"github.com/custodia-labs/accountlink/internal/core/ports/driven"
	"github.com/redis/go-redis/v9"
)

// Verify interface compliance
var _ driven.LinkStateStore = (*LinkStateStore)(nil)

const (
	statePrefix = "accountlink:state:"

	// stateGrace keeps expired states readable for a while so a late
	// callback is reported as expired rather than unknown.
	stateGrace = time.Hour

	fieldSubject   = "subject_id"
	fieldCreatedAt = "created_at"
	fieldExpiresAt = "expires_at"
	fieldUsed      = "used"

	cleanupScanCount = 100
)

// LinkStateStore implements driven.LinkStateStore with one Redis hash per token.
// Keys carry a TTL of the state lifetime plus stateGrace, so Redis reclaims
// them even when no sweeper runs.
type LinkStateStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewLinkStateStore creates a Redis-backed link state store.
func NewLinkStateStore(client *redis.Client, ttl time.Duration) *LinkStateStore {
	if ttl <= 0 {
		ttl = domain.DefaultLinkStateTTL
	}
	return &LinkStateStore{client: client, ttl: ttl, now: time.Now}
}

func stateKey(token string) string {
	return statePrefix + token
}

// Create issues a token and writes its hash and TTL in one transaction.
func (s *LinkStateStore) Create(ctx context.Context, subjectID string) (*domain.PendingLinkState, error) {
	state, err := domain.NewPendingLinkState(subjectID, s.ttl, s.now().UTC())
	if err != nil {
		return nil, err
	}

	key := stateKey(state.Token)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			fieldSubject, state.SubjectID,
			fieldCreatedAt, state.CreatedAt.UnixNano(),
			fieldExpiresAt, state.ExpiresAt.UnixNano(),
			fieldUsed, "0",
		)
		pipe.Expire(ctx, key, s.ttl+stateGrace)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("save link state: %w", err)
	}

	return state, nil
}

// Get loads a state by token.
func (s *LinkStateStore) Get(ctx context.Context, token string) (*domain.PendingLinkState, error) {
	fields, err := s.client.HGetAll(ctx, stateKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("get link state: %w", err)
	}
	if len(fields) == 0 {
		return nil, domain.ErrNotFound
	}

	state, err := decodeState(token, fields)
	if err != nil {
		return nil, fmt.Errorf("decode link state: %w", err)
	}
	return state, nil
}

// markUsedScript flips used from 0 to 1 and reports whether it did.
var markUsedScript = redis.NewScript(`
	if redis.call("hget", KEYS[1], "used") == "0" then
		redis.call("hset", KEYS[1], "used", "1")
		return 1
	end
	return 0
`)

// MarkUsed is an atomic compare-and-set on the used field.
func (s *LinkStateStore) MarkUsed(ctx context.Context, token string) (bool, error) {
	n, err := markUsedScript.Run(ctx, s.client, []string{stateKey(token)}).Int()
	if err != nil {
		return false, fmt.Errorf("mark link state used: %w", err)
	}
	return n == 1, nil
}

// Delete removes a token.
func (s *LinkStateStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, stateKey(token)).Err(); err != nil {
		return fmt.Errorf("delete link state: %w", err)
	}
	return nil
}

// Cleanup scans state keys and deletes those past their expiry.
func (s *LinkStateStore) Cleanup(ctx context.Context) (int64, error) {
	now := s.now().UnixNano()
	var removed int64

	iter := s.client.Scan(ctx, 0, statePrefix+"*", cleanupScanCount).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()

		raw, err := s.client.HGet(ctx, key, fieldExpiresAt).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return removed, fmt.Errorf("cleanup link states: %w", err)
		}

		expiresAt, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || expiresAt < now {
			n, err := s.client.Del(ctx, key).Result()
			if err != nil {
				return removed, fmt.Errorf("cleanup link states: %w", err)
			}
			removed += n
		}
	}
	if err := iter.Err(); err != nil {
		return removed, fmt.Errorf("cleanup link states: %w", err)
	}

	return removed, nil
}

// Ping checks if Redis is reachable.
func (s *LinkStateStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeState(token string, fields map[string]string) (*domain.PendingLinkState, error) {
	createdAt, err := strconv.ParseInt(fields[fieldCreatedAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fieldCreatedAt, err)
	}
	expiresAt, err := strconv.ParseInt(fields[fieldExpiresAt], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fieldExpiresAt, err)
	}

	return &domain.PendingLinkState{
		Token:     token,
		SubjectID: fields[fieldSubject],
		CreatedAt: time.Unix(0, createdAt).UTC(),
		ExpiresAt: time.Unix(0, expiresAt).UTC(),
		Used:      fields[fieldUsed] == "1",
	}, nil
}
