package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/whisperlink/whisperlink-backend/internal/db"
	svcErr "github.com/whisperlink/whisperlink-backend/internal/errors"
)

// IdentityRepository owns the user profile record and the two uniqueness
// indexes (handle→uid, external-id→uid). Every identity change rewrites
// the indexes in the same transaction as the profile row.
type IdentityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository creates a new repository bound to the given DB connection.
func NewIdentityRepository(database *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: database}
}

// GetUser returns the user row, or nil if the uid is unknown.
func (r *IdentityRepository) GetUser(ctx context.Context, uid string) (*db.User, error) {
	var u db.User
	err := r.db.WithContext(ctx).Where("uid = ?", uid).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetHandleIndex returns the handle index entry, or nil if unclaimed.
func (r *IdentityRepository) GetHandleIndex(ctx context.Context, handle string) (*db.HandleIndex, error) {
	var idx db.HandleIndex
	err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&idx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// GetExternalIDIndex returns the external-id index entry, or nil if unlinked.
func (r *IdentityRepository) GetExternalIDIndex(ctx context.Context, externalID string) (*db.ExternalIDIndex, error) {
	var idx db.ExternalIDIndex
	err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&idx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// UpsertIdentity establishes uid as the owner of handle and, when given,
// externalID. Idempotent: repeating the same (uid, handle) only bumps
// timestamps. A handle owned by another uid fails AlreadyExists; an
// external id linked to another uid fails PermissionDenied.
func (r *IdentityRepository) UpsertIdentity(ctx context.Context, uid, handle, externalID, provider string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := getUserTx(tx, uid)
		if err != nil {
			return err
		}

		handleIdx, err := getHandleIndexTx(tx, handle)
		if err != nil {
			return err
		}
		if handleIdx != nil && handleIdx.UID != uid {
			return svcErr.AlreadyExists("username already taken")
		}

		if externalID != "" {
			var extIdx db.ExternalIDIndex
			err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("external_id = ?", externalID).First(&extIdx).Error
			if err == nil && extIdx.UID != uid {
				return svcErr.PermissionDenied("this account is already linked to another user")
			}
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		prevHandle := ""
		if user == nil {
			user = &db.User{UID: uid}
		} else {
			prevHandle = user.Handle
		}
		user.Handle = handle
		user.AuthProvider = provider
		if externalID != "" {
			user.ExternalID = externalID
		}
		if err := tx.Save(user).Error; err != nil {
			return err
		}

		// Zero-init stats only when absent. Repeat syncs must never reset
		// live counters.
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&db.Stats{UID: uid}).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "handle"}},
			DoUpdates: clause.AssignmentColumns([]string{"uid", "updated_at"}),
		}).Create(&db.HandleIndex{Handle: handle, UID: uid}).Error; err != nil {
			return err
		}

		if externalID != "" {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"uid", "handle", "updated_at"}),
			}).Create(&db.ExternalIDIndex{ExternalID: externalID, UID: uid, Handle: handle}).Error; err != nil {
				return err
			}
		}

		// Stale-index cleanup for a changed handle. Skipped if the old
		// entry was reassigned meanwhile: deleting would drop another
		// user's live entry.
		if prevHandle != "" && prevHandle != handle {
			prevIdx, err := getHandleIndexTx(tx, prevHandle)
			if err != nil {
				return err
			}
			if prevIdx != nil && prevIdx.UID == uid {
				if err := tx.Delete(&db.HandleIndex{Handle: prevHandle}).Error; err != nil {
					return err
				}
			}
		}

		return nil
	})
	return svcErr.Map(err)
}

// AcceptPolicies stamps the current policy versions and the age
// confirmation on the user row, creating it if the user has not synced
// a profile yet.
func (r *IdentityRepository) AcceptPolicies(ctx context.Context, uid, privacyVersion, termsVersion string) (time.Time, error) {
	acceptedAt := time.Now().UTC()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := getUserTx(tx, uid)
		if err != nil {
			return err
		}
		if user == nil {
			user = &db.User{UID: uid}
		}
		user.ConsentPrivacyVersion = privacyVersion
		user.ConsentTermsVersion = termsVersion
		user.ConsentAgeConfirmed = true
		user.ConsentAcceptedAt = &acceptedAt
		return tx.Save(user).Error
	})
	if err != nil {
		return time.Time{}, svcErr.Map(err)
	}
	return acceptedAt, nil
}
