package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The unique-violation branches match the PgError type pgx v5 actually
// returns, even through wrapping.
func TestUniqueViolationMatchesPgxError(t *testing.T) {
	driverErr := &pgconn.PgError{Code: "23505", ConstraintName: "licenses_key_hash_key"}
	wrapped := fmt.Errorf("database error on create license: %w", driverErr)

	var pgErr *pgconn.PgError
	require.True(t, errors.As(wrapped, &pgErr))
	assert.Equal(t, "23505", pgErr.Code)
	assert.Equal(t, "licenses_key_hash_key", pgErr.ConstraintName)
}
