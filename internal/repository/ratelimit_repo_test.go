package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/whisperlink/whisperlink-backend/internal/repository"
)

func TestEnforceWithinLimit(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewRateLimitRepository(gdb)

	// delete_account allows 3 per day
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Enforce(ctx, "u1", repository.ActionDeleteAccount))
	}
}

func TestEnforceLimitExceeded(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewRateLimitRepository(gdb)

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Enforce(ctx, "u1", repository.ActionDeleteAccount))
	}

	err := repo.Enforce(ctx, "u1", repository.ActionDeleteAccount)
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))

	// a different user is unaffected
	assert.NoError(t, repo.Enforce(ctx, "u2", repository.ActionDeleteAccount))

	// and so is a different action for the same user
	assert.NoError(t, repo.Enforce(ctx, "u1", repository.ActionGetDashboard))
}

func TestEnforceWindowReset(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)

	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	repo := repository.NewRateLimitRepositoryWithClock(gdb, func() time.Time { return current })

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Enforce(ctx, "u1", repository.ActionDeleteAccount))
	}
	err := repo.Enforce(ctx, "u1", repository.ActionDeleteAccount)
	require.Equal(t, codes.ResourceExhausted, status.Code(err))

	// once the fixed window lapses the budget is fresh
	current = current.Add(24*time.Hour + time.Minute)
	assert.NoError(t, repo.Enforce(ctx, "u1", repository.ActionDeleteAccount))
}

func TestEnforceUnknownAction(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewRateLimitRepository(gdb)

	err := repo.Enforce(ctx, "u1", "no_such_action")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}
