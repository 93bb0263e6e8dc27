package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/whisperlink/whisperlink-backend/internal/db"
	"github.com/whisperlink/whisperlink-backend/internal/repository"
)

func TestUpsertIdentityCreatesUserAndIndexes(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewIdentityRepository(gdb)

	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice", "x123", "twitter.com"))

	u, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "alice", u.Handle)
	assert.Equal(t, "x123", u.ExternalID)
	assert.Equal(t, "twitter.com", u.AuthProvider)

	idx, err := repo.GetHandleIndex(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, "u1", idx.UID)

	ext, err := repo.GetExternalIDIndex(ctx, "x123")
	require.NoError(t, err)
	require.NotNil(t, ext)
	assert.Equal(t, "u1", ext.UID)
	assert.Equal(t, "alice", ext.Handle)

	// stats zero-initialized
	s := getStats(t, gdb, "u1")
	assert.Zero(t, s.OutgoingCount)
	assert.Zero(t, s.IncomingCount)
	assert.Zero(t, s.MatchCount)
}

func TestUpsertIdentityIdempotent(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewIdentityRepository(gdb)

	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice", "x123", "twitter.com"))

	first, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice", "x123", "twitter.com"))

	second, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, first.Handle, second.Handle)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)

	var count int64
	require.NoError(t, gdb.Model(&db.HandleIndex{}).Where("handle = ?", "alice").Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestUpsertIdentityDoesNotResetStats(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewIdentityRepository(gdb)

	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice", "", "twitter.com"))
	require.NoError(t, gdb.Model(&db.Stats{}).Where("uid = ?", "u1").
		Updates(map[string]interface{}{"outgoing_count": 3, "match_count": 2}).Error)

	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice", "", "twitter.com"))

	s := getStats(t, gdb, "u1")
	assert.Equal(t, int64(3), s.OutgoingCount)
	assert.Equal(t, int64(2), s.MatchCount)
}

func TestUpsertIdentityHandleTaken(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewIdentityRepository(gdb)

	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice", "", "twitter.com"))

	err := repo.UpsertIdentity(ctx, "u2", "alice", "", "twitter.com")
	assert.Equal(t, codes.AlreadyExists, status.Code(err))

	// u2 gained nothing
	u2, err := repo.GetUser(ctx, "u2")
	require.NoError(t, err)
	assert.Nil(t, u2)
}

func TestUpsertIdentityExternalIDLinkedElsewhere(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewIdentityRepository(gdb)

	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice", "x123", "twitter.com"))

	err := repo.UpsertIdentity(ctx, "u2", "bob", "x123", "twitter.com")
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
}

func TestUpsertIdentityHandleChangeCleansStaleIndex(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewIdentityRepository(gdb)

	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice", "x123", "twitter.com"))
	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice_new", "x123", "twitter.com"))

	old, err := repo.GetHandleIndex(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, old, "stale index entry should be deleted")

	cur, err := repo.GetHandleIndex(ctx, "alice_new")
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "u1", cur.UID)
}

func TestUpsertIdentityKeepsReassignedOldHandle(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewIdentityRepository(gdb)

	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice", "", "twitter.com"))

	// simulate the old handle having been reassigned between syncs
	require.NoError(t, gdb.Model(&db.HandleIndex{}).Where("handle = ?", "alice").
		Update("uid", "u9").Error)

	require.NoError(t, repo.UpsertIdentity(ctx, "u1", "alice_new", "", "twitter.com"))

	// the reassigned entry must survive
	idx, err := repo.GetHandleIndex(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, idx)
	assert.Equal(t, "u9", idx.UID)
}

func TestAcceptPolicies(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	repo := repository.NewIdentityRepository(gdb)

	// works even before the profile is synced
	acceptedAt, err := repo.AcceptPolicies(ctx, "u1", "2025-06-01", "2025-06-01")
	require.NoError(t, err)
	assert.False(t, acceptedAt.IsZero())

	u, err := repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "2025-06-01", u.ConsentPrivacyVersion)
	assert.Equal(t, "2025-06-01", u.ConsentTermsVersion)
	assert.True(t, u.ConsentAgeConfirmed)
	require.NotNil(t, u.ConsentAcceptedAt)
}
