package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestIsUniqueViolation(t *testing.T) {
	inviteErr := &pgconn.PgError{Code: "23505", ConstraintName: "study_sessions_invite_code_key"}
	wrapped := fmt.Errorf("insert session: %w", inviteErr)

	assert.True(t, IsUniqueViolation(wrapped, ""))
	assert.True(t, IsUniqueViolation(wrapped, "study_sessions_invite_code_key"))
	assert.False(t, IsUniqueViolation(wrapped, "timer_sessions_one_open"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
}

func TestNotFound(t *testing.T) {
	assert.ErrorIs(t, notFound(pgx.ErrNoRows), ErrNotFound)
	other := errors.New("conn reset")
	assert.Equal(t, other, notFound(other))
	assert.NoError(t, notFound(nil))
}

func TestRequireAffected(t *testing.T) {
	assert.ErrorIs(t, requireAffected(pgconn.NewCommandTag("UPDATE 0"), nil), ErrNotFound)
	assert.NoError(t, requireAffected(pgconn.NewCommandTag("UPDATE 1"), nil))
	boom := errors.New("boom")
	assert.Equal(t, boom, requireAffected(pgconn.CommandTag{}, boom))
}
