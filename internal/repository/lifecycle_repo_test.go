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

// recordingAuthDeleter remembers which identities it was asked to drop.
type recordingAuthDeleter struct {
	calls []string
	err   error
}

func (d *recordingAuthDeleter) DeleteIdentity(_ context.Context, uid string) error {
	d.calls = append(d.calls, uid)
	return d.err
}

func TestDeleteAccountRequiresConfirmation(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	deleter := &recordingAuthDeleter{}
	repo := repository.NewLifecycleRepository(gdb, deleter)

	seedSyncedUser(t, gdb, "u1", "alice")

	_, err := repo.DeleteAccount(ctx, "u1", "delete")
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.Empty(t, deleter.calls)

	// nothing was touched
	var count int64
	require.NoError(t, gdb.Model(&db.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDeleteAccountCascade(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	deleter := &recordingAuthDeleter{}
	lifecycle := repository.NewLifecycleRepository(gdb, deleter)
	graph := repository.NewGraphRepository(gdb)
	safety := repository.NewSafetyRepository(gdb)
	rates := repository.NewRateLimitRepository(gdb)

	seedSyncedUser(t, gdb, "u1", "alice")
	seedSyncedUser(t, gdb, "u2", "bob")
	seedSyncedUser(t, gdb, "u3", "carol")
	seedSyncedUser(t, gdb, "u4", "dave")

	// alice and bob match; alice also admires carol one-way
	_, err := graph.AddAdmiration(ctx, "u1", "bob", testPolicy())
	require.NoError(t, err)
	res, err := graph.AddAdmiration(ctx, "u2", "alice", testPolicy())
	require.NoError(t, err)
	require.True(t, res.Matched)
	_, err = graph.AddAdmiration(ctx, "u1", "carol", testPolicy())
	require.NoError(t, err)

	// alice blocks dave, alice reports carol, dave reports alice
	_, err = safety.Block(ctx, "u1", "dave")
	require.NoError(t, err)
	_, err = safety.Report(ctx, "u1", "carol", "spam", "")
	require.NoError(t, err)
	againstID, err := safety.Report(ctx, "u4", "alice", "harassment", "")
	require.NoError(t, err)

	// alice has a live rate-limit window
	require.NoError(t, rates.Enforce(ctx, "u1", repository.ActionAddAdmiration))

	impacted, err := lifecycle.DeleteAccount(ctx, "u1", repository.DeleteConfirmation)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"u2", "u3"}, impacted)
	assert.Equal(t, []string{"u1"}, deleter.calls)

	// no rows referencing alice survive
	var count int64
	require.NoError(t, gdb.Model(&db.User{}).Where("uid = ?", "u1").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, gdb.Model(&db.Stats{}).Where("uid = ?", "u1").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, gdb.Model(&db.HandleIndex{}).Where("uid = ?", "u1").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, gdb.Model(&db.ExternalIDIndex{}).Where("uid = ?", "u1").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, gdb.Model(&db.AdmirationEdge{}).
		Where("from_uid = ? OR to_uid = ?", "u1", "u1").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, gdb.Model(&db.Match{}).
		Where("owner_uid = ? OR other_uid = ?", "u1", "u1").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, gdb.Model(&db.Block{}).
		Where("blocker_uid = ? OR blocked_uid = ?", "u1", "u1").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, gdb.Model(&db.RateLimitWindow{}).Where("uid = ?", "u1").Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, gdb.Model(&db.Report{}).Where("reporter_uid = ?", "u1").Count(&count).Error)
	assert.Zero(t, count)

	// dave's report against alice survives, anonymized
	var rep db.Report
	require.NoError(t, gdb.Where("id = ?", againstID).First(&rep).Error)
	assert.Nil(t, rep.ReportedUID)
	assert.Equal(t, db.AnonymizedHandle, rep.ReportedHandle)
	require.NotNil(t, rep.AnonymizedAt)

	// bob's counters recomputed from ground truth
	bob := getStats(t, gdb, "u2")
	assert.Zero(t, bob.MatchCount)
	assert.Zero(t, bob.IncomingCount)
	assert.Zero(t, bob.OutgoingCount, "bob's only edge pointed at alice")

	carol := getStats(t, gdb, "u3")
	assert.Zero(t, carol.IncomingCount)
}

func TestDeleteAccountToleratesMissingAuthIdentity(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	deleter := &recordingAuthDeleter{err: repository.ErrIdentityNotFound}
	repo := repository.NewLifecycleRepository(gdb, deleter)

	seedSyncedUser(t, gdb, "u1", "alice")

	_, err := repo.DeleteAccount(ctx, "u1", repository.DeleteConfirmation)
	assert.NoError(t, err)
}

func TestDeleteAccountIsRetryable(t *testing.T) {
	ctx := context.Background()
	gdb := setupTestDB(t)
	deleter := &recordingAuthDeleter{}
	repo := repository.NewLifecycleRepository(gdb, deleter)

	seedSyncedUser(t, gdb, "u1", "alice")

	_, err := repo.DeleteAccount(ctx, "u1", repository.DeleteConfirmation)
	require.NoError(t, err)

	// a retry after partial progress finds nothing left and still succeeds
	_, err = repo.DeleteAccount(ctx, "u1", repository.DeleteConfirmation)
	assert.NoError(t, err)
}
