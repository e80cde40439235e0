package postgres

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/lib/pq"
)

func TestIsUniqueViolation(t *testing.T) {
	unique := &pq.Error{Code: "23505", Constraint: "idx_identity_mappings_external_account"}

	if !isUniqueViolation(unique) {
		t.Error("expected unique violation")
	}
	if !isUniqueViolation(fmt.Errorf("upsert: %w", unique)) {
		t.Error("expected wrapped unique violation")
	}
	if isUniqueViolation(&pq.Error{Code: "23503"}) {
		t.Error("foreign key violation reported as unique")
	}
	if isUniqueViolation(errors.New("boom")) || isUniqueViolation(nil) {
		t.Error("plain errors are not unique violations")
	}
}

func TestSchemaDeclaresTables(t *testing.T) {
	for _, want := range []string{
		"CREATE TABLE IF NOT EXISTS pending_link_states",
		"CREATE TABLE IF NOT EXISTS identity_mappings",
		"idx_identity_mappings_external_account",
	} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q", want)
		}
	}
}

func TestHashLockName(t *testing.T) {
	if hashLockName("link-state-sweeper") != hashLockName("link-state-sweeper") {
		t.Error("hash is not stable")
	}
	if hashLockName("a") == hashLockName("b") {
		t.Error("distinct names hashed to the same id")
	}
}
