package repository

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/whisperlink/whisperlink-backend/internal/db"
	svcErr "github.com/whisperlink/whisperlink-backend/internal/errors"
	"github.com/whisperlink/whisperlink-backend/internal/identity"
)

const (
	// reportDetailsMax bounds the free-text field of a report.
	reportDetailsMax = 500
	// reportRetention is how long a report is kept before it becomes
	// eligible for purging.
	reportRetention = 180 * 24 * time.Hour
)

var validReasons = map[string]bool{
	db.ReportReasonHarassment:    true,
	db.ReportReasonImpersonation: true,
	db.ReportReasonSpam:          true,
	db.ReportReasonOther:         true,
}

// BlockResult identifies the user a block landed on.
type BlockResult struct {
	BlockedUID    string
	BlockedHandle string
}

// SafetyRepository owns blocks and abuse reports. Blocks gate the
// admiration graph; reports are stored for later review and outlive the
// reported account in anonymized form.
type SafetyRepository struct {
	db *gorm.DB
}

// NewSafetyRepository creates a new repository bound to the given DB connection.
func NewSafetyRepository(database *gorm.DB) *SafetyRepository {
	return &SafetyRepository{db: database}
}

// Report files an abuse report against targetHandle and returns the new
// report id. Reports always succeed with status open; review happens
// outside this system.
func (r *SafetyRepository) Report(ctx context.Context, reporterUID, targetHandle, reason, details string) (string, error) {
	targetHandle = identity.Normalize(targetHandle)
	if err := identity.Validate(targetHandle); err != nil {
		return "", err
	}
	reason = strings.ToLower(strings.TrimSpace(reason))
	if !validReasons[reason] {
		return "", svcErr.InvalidArgument("reason must be one of: harassment, impersonation, spam, other")
	}
	details = strings.TrimSpace(details)
	if len(details) > reportDetailsMax {
		// cut on a rune boundary, never mid-codepoint
		cut := reportDetailsMax
		for cut > 0 && !utf8.RuneStart(details[cut]) {
			cut--
		}
		details = details[:cut]
	}

	reportID := uuid.NewString()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		reporter, err := getUserTx(tx, reporterUID)
		if err != nil {
			return err
		}
		reporterHandle := ""
		if reporter != nil {
			reporterHandle = reporter.Handle
		}
		if reporterHandle != "" && reporterHandle == targetHandle {
			return svcErr.InvalidArgument("you cannot report yourself")
		}

		idx, err := getHandleIndexTx(tx, targetHandle)
		if err != nil {
			return err
		}
		if idx == nil {
			return svcErr.FailedPrecondition("that username has not joined yet")
		}
		if idx.UID == reporterUID {
			return svcErr.InvalidArgument("you cannot report yourself")
		}

		reportedUID := idx.UID
		report := db.Report{
			ID:             reportID,
			ReporterUID:    reporterUID,
			ReporterHandle: reporterHandle,
			ReportedUID:    &reportedUID,
			ReportedHandle: targetHandle,
			Reason:         reason,
			Details:        details,
			Status:         db.ReportStatusOpen,
			PurgeAt:        time.Now().UTC().Add(reportRetention),
		}
		return tx.Create(&report).Error
	})
	if err != nil {
		return "", svcErr.Map(err)
	}
	return reportID, nil
}

// Block upserts a directed block from blockerUID onto targetHandle.
// Idempotent: repeating the block keeps the original createdAt.
func (r *SafetyRepository) Block(ctx context.Context, blockerUID, targetHandle string) (*BlockResult, error) {
	targetHandle = identity.Normalize(targetHandle)
	if err := identity.Validate(targetHandle); err != nil {
		return nil, err
	}

	var res BlockResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		blocker, err := getUserTx(tx, blockerUID)
		if err != nil {
			return err
		}
		blockerHandle := ""
		if blocker != nil {
			blockerHandle = blocker.Handle
		}

		idx, err := getHandleIndexTx(tx, targetHandle)
		if err != nil {
			return err
		}
		if idx == nil {
			return svcErr.FailedPrecondition("that username has not joined yet")
		}
		if idx.UID == blockerUID {
			return svcErr.InvalidArgument("you cannot block yourself")
		}

		var existing db.Block
		err = tx.Where("blocker_uid = ? AND blocked_uid = ?", blockerUID, idx.UID).First(&existing).Error
		switch {
		case err == nil:
			err = tx.Model(&db.Block{}).
				Where("blocker_uid = ? AND blocked_uid = ?", blockerUID, idx.UID).
				Updates(map[string]interface{}{
					"blocker_handle": blockerHandle,
					"blocked_handle": targetHandle,
				}).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			err = tx.Create(&db.Block{
				BlockerUID:    blockerUID,
				BlockedUID:    idx.UID,
				BlockerHandle: blockerHandle,
				BlockedHandle: targetHandle,
			}).Error
		}
		if err != nil {
			return err
		}

		res = BlockResult{BlockedUID: idx.UID, BlockedHandle: targetHandle}
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &res, nil
}

// Unblock removes the caller's block on targetHandle. Primary path keys
// the delete by the resolved uid; when the handle no longer resolves
// (the target deleted their account) it falls back to scanning the
// caller's blocks for the stored handle, so orphaned blocks stay
// removable. Deleting a block that does not exist is a no-op.
func (r *SafetyRepository) Unblock(ctx context.Context, blockerUID, targetHandle string) error {
	targetHandle = identity.Normalize(targetHandle)
	if err := identity.Validate(targetHandle); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		idx, err := getHandleIndexTx(tx, targetHandle)
		if err != nil {
			return err
		}
		if idx != nil {
			return tx.Where("blocker_uid = ? AND blocked_uid = ?", blockerUID, idx.UID).
				Delete(&db.Block{}).Error
		}

		// fallback: target account is gone, match on the stored handle
		return tx.Where("blocker_uid = ? AND blocked_handle = ?", blockerUID, targetHandle).
			Delete(&db.Block{}).Error
	})
	return svcErr.Map(err)
}

// BlockedUIDSet returns every uid involved in a block with the user, in
// either direction. Dashboard aggregation filters against this set.
func (r *SafetyRepository) BlockedUIDSet(ctx context.Context, uid string) (map[string]bool, error) {
	var blocks []db.Block
	err := r.db.WithContext(ctx).
		Where("blocker_uid = ? OR blocked_uid = ?", uid, uid).
		Find(&blocks).Error
	if err != nil {
		return nil, err
	}

	set := make(map[string]bool, len(blocks))
	for _, b := range blocks {
		if b.BlockerUID != uid {
			set[b.BlockerUID] = true
		}
		if b.BlockedUID != uid {
			set[b.BlockedUID] = true
		}
	}
	return set, nil
}

// ListBlocked returns the user's own outgoing blocks, newest first.
func (r *SafetyRepository) ListBlocked(ctx context.Context, uid string) ([]db.Block, error) {
	var blocks []db.Block
	err := r.db.WithContext(ctx).
		Where("blocker_uid = ?", uid).
		Order("created_at DESC").
		Find(&blocks).Error
	return blocks, err
}
