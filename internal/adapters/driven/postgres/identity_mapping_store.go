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

// Verify interface compliance
var _ driven.IdentityMappingStore = (*IdentityMappingStore)(nil)

// IdentityMappingStore implements driven.IdentityMappingStore using PostgreSQL.
// Provider credentials are sealed with the encryptor before they reach the
// credentials column. Without an encryptor they are not stored at all.
type IdentityMappingStore struct {
	db        *DB
	encryptor *SecretEncryptor
}

// NewIdentityMappingStore creates a new IdentityMappingStore.
// encryptor may be nil.
func NewIdentityMappingStore(db *DB, encryptor *SecretEncryptor) *IdentityMappingStore {
	return &IdentityMappingStore{db: db, encryptor: encryptor}
}

const mappingColumns = `subject_id, external_account_id, created_at, last_used_at, active, credentials`

// Upsert creates or rebinds the mapping for subjectID.
// Switching to another account drops the credentials of the old one.
func (s *IdentityMappingStore) Upsert(ctx context.Context, subjectID, externalAccountID string, now time.Time) (*domain.IdentityMapping, error) {
	query := `
		INSERT INTO identity_mappings (subject_id, external_account_id, created_at, last_used_at, active)
		VALUES ($1, $2, $3, $3, TRUE)
		ON CONFLICT (subject_id) DO UPDATE SET
			external_account_id = EXCLUDED.external_account_id,
			last_used_at = EXCLUDED.last_used_at,
			active = TRUE,
			credentials = CASE
				WHEN identity_mappings.external_account_id = EXCLUDED.external_account_id
				THEN identity_mappings.credentials
				ELSE NULL
			END
		RETURNING ` + mappingColumns

	mapping, err := s.scan(s.db.QueryRowContext(ctx, query, subjectID, externalAccountID, now.UTC()))
	if isUniqueViolation(err) {
		return nil, domain.ErrExternalAccountTaken
	}
	if err != nil {
		return nil, fmt.Errorf("upsert identity mapping: %w", err)
	}
	return mapping, nil
}

// GetBySubject retrieves the mapping for a bot subject.
func (s *IdentityMappingStore) GetBySubject(ctx context.Context, subjectID string) (*domain.IdentityMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM identity_mappings WHERE subject_id = $1`
	return s.get(ctx, query, subjectID)
}

// GetByExternalAccount retrieves the mapping that owns an external account.
func (s *IdentityMappingStore) GetByExternalAccount(ctx context.Context, externalAccountID string) (*domain.IdentityMapping, error) {
	query := `SELECT ` + mappingColumns + ` FROM identity_mappings WHERE external_account_id = $1`
	return s.get(ctx, query, externalAccountID)
}

// SaveCredentials seals and stores provider credentials on a mapping.
func (s *IdentityMappingStore) SaveCredentials(ctx context.Context, subjectID string, creds *domain.ProviderCredentials) error {
	if s.encryptor == nil || creds.IsEmpty() {
		return nil
	}

	blob, err := s.encryptor.Encrypt(creds)
	if err != nil {
		return fmt.Errorf("encrypt credentials: %w", err)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE identity_mappings SET credentials = $2 WHERE subject_id = $1`,
		subjectID, blob,
	)
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}
	return requireRow(result)
}

// Deactivate soft-disables a mapping.
func (s *IdentityMappingStore) Deactivate(ctx context.Context, subjectID string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE identity_mappings SET active = FALSE WHERE subject_id = $1`,
		subjectID,
	)
	if err != nil {
		return fmt.Errorf("deactivate identity mapping: %w", err)
	}
	return requireRow(result)
}

// Ping checks if the database is reachable.
func (s *IdentityMappingStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *IdentityMappingStore) get(ctx context.Context, query string, arg string) (*domain.IdentityMapping, error) {
	mapping, err := s.scan(s.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get identity mapping: %w", err)
	}
	return mapping, nil
}

func (s *IdentityMappingStore) scan(row *sql.Row) (*domain.IdentityMapping, error) {
	var mapping domain.IdentityMapping
	var blob []byte

	err := row.Scan(
		&mapping.SubjectID,
		&mapping.ExternalAccountID,
		&mapping.CreatedAt,
		&mapping.LastUsedAt,
		&mapping.Active,
		&blob,
	)
	if err != nil {
		return nil, err
	}

	if len(blob) > 0 && s.encryptor != nil {
		var creds domain.ProviderCredentials
		if err := s.encryptor.Decrypt(blob, &creds); err != nil {
			return nil, fmt.Errorf("decrypt credentials: %w", err)
		}
		mapping.Credentials = &creds
	}

	return &mapping, nil
}

func requireRow(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return domain.ErrNotFound
	}
	return nil
}
