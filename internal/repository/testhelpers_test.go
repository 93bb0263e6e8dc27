package repository_test

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/whisperlink/whisperlink-backend/internal/db"
	"github.com/whisperlink/whisperlink-backend/internal/repository"
)

const (
	testPrivacyVersion = "2025-06-01"
	testTermsVersion   = "2025-06-01"
)

func testPolicy() repository.ConsentPolicy {
	return repository.ConsentPolicy{
		Gate:           true,
		PrivacyVersion: testPrivacyVersion,
		TermsVersion:   testTermsVersion,
	}
}

// setupTestDB opens a per-test shared in-memory SQLite DB and applies
// the schema.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc:        func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gdb))
	return gdb
}

// seedSyncedUser creates a user with a claimed handle, consent satisfied
// and zeroed stats, the state a normal sign-in flow leaves behind.
func seedSyncedUser(t *testing.T, gdb *gorm.DB, uid, handle string) {
	t.Helper()

	now := time.Now().UTC()
	require.NoError(t, gdb.Create(&db.User{
		UID:                   uid,
		Handle:                handle,
		ExternalID:            "ext-" + uid,
		AuthProvider:          "twitter.com",
		ConsentPrivacyVersion: testPrivacyVersion,
		ConsentTermsVersion:   testTermsVersion,
		ConsentAgeConfirmed:   true,
		ConsentAcceptedAt:     &now,
	}).Error)
	require.NoError(t, gdb.Create(&db.HandleIndex{Handle: handle, UID: uid}).Error)
	require.NoError(t, gdb.Create(&db.ExternalIDIndex{ExternalID: "ext-" + uid, UID: uid, Handle: handle}).Error)
	require.NoError(t, gdb.Create(&db.Stats{UID: uid}).Error)
}

func getStats(t *testing.T, gdb *gorm.DB, uid string) db.Stats {
	t.Helper()
	var s db.Stats
	require.NoError(t, gdb.Where("uid = ?", uid).First(&s).Error)
	return s
}
