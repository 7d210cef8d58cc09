package db

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/violin-academy/academy-back/internal/repo"
)

func TestLikePattern(t *testing.T) {
	assert.Equal(t, "%anna%", likePattern("anna"))
	assert.Equal(t, `%50\%\_off\\%`, likePattern(`50%_off\`))
}

func TestProfileEmailsUniqueIgnoringCase(t *testing.T) {
	sql, err := migrations.ReadFile("migrations/00003_profile_email_lower.sql")
	require.NoError(t, err)
	assert.Contains(t, string(sql), "CREATE UNIQUE INDEX IF NOT EXISTS profiles_email_lower_key ON profiles (lower(email))")
	assert.Contains(t, string(sql), "DROP CONSTRAINT IF EXISTS profiles_email_key")
}

func TestClassify(t *testing.T) {
	assert.NoError(t, classify(nil, "op"))
	assert.ErrorIs(t, classify(gorm.ErrRecordNotFound, "get"), repo.ErrNotFound)
	assert.ErrorIs(t, classify(gorm.ErrDuplicatedKey, "create"), repo.ErrConflict)
	assert.ErrorIs(t, classify(gorm.ErrForeignKeyViolated, "create fee"), repo.ErrNotFound)

	err := classify(errors.New("boom"), "list")
	assert.EqualError(t, err, "list: boom")
}

func TestWithReadRetry(t *testing.T) {
	s := &Store{readRetries: 2, retryDelay: time.Millisecond}

	calls := 0
	err := s.withReadRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	calls = 0
	err = s.withReadRetry(context.Background(), func(context.Context) error {
		calls++
		return errors.New("connection refused")
	})
	assert.EqualError(t, err, "connection refused")
	assert.Equal(t, 3, calls)
}

func TestWithReadRetrySkipsNotFound(t *testing.T) {
	s := &Store{readRetries: 5, retryDelay: time.Millisecond}

	calls := 0
	err := s.withReadRetry(context.Background(), func(context.Context) error {
		calls++
		return errors.Wrap(repo.ErrNotFound, "get profile")
	})
	assert.ErrorIs(t, err, repo.ErrNotFound)
	assert.Equal(t, 1, calls)
}
