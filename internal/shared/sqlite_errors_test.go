package shared

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond}

func TestIsSQLiteConflictError(t *testing.T) {
	assert.False(t, IsSQLiteConflictError(nil))
	assert.True(t, IsSQLiteConflictError(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.True(t, IsSQLiteConflictError(errors.New("exec: database is locked")))
	assert.False(t, IsSQLiteConflictError(errors.New("no such table: draws")))
}

func TestWithRetryRecoversFromBusy(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetry, "insert", func() error {
		calls++
		if calls < 3 {
			return errors.New("SQLITE_BUSY")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithRetryGivesUp(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastRetry, "insert", func() error {
		calls++
		return errors.New("database is locked")
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "insert after 3 attempts")
}

func TestWithRetryStopsOnOtherErrors(t *testing.T) {
	sentinel := errors.New("constraint failed")
	calls := 0
	err := WithRetry(context.Background(), fastRetry, "insert", func() error {
		calls++
		return sentinel
	})
	assert.ErrorIs(t, err, sentinel)
	assert.Equal(t, 1, calls)
}
