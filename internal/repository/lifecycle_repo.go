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

// DeleteConfirmation is the literal phrase a caller must supply before
// account deletion proceeds.
const DeleteConfirmation = "DELETE"

// deleteBatchSize bounds how many keys one delete statement touches.
const deleteBatchSize = 100

// ErrIdentityNotFound marks the auth identity as already gone. Deleters
// return it so retried deletions treat the missing identity as success.
var ErrIdentityNotFound = errors.New("auth identity not found")

// AuthDeleter removes the underlying identity-provider account record.
type AuthDeleter interface {
	DeleteIdentity(ctx context.Context, uid string) error
}

// NoopAuthDeleter is used when the identity bridge owns provider-side
// deletion out of band.
type NoopAuthDeleter struct{}

func (NoopAuthDeleter) DeleteIdentity(context.Context, string) error { return nil }

// LifecycleRepository performs full account deletion: cascading removal
// across every store, anonymization of reports against the account, and
// recomputation of counterparts' counters from ground truth. Partial
// progress is safe; every step is idempotent, so a failed run can be
// retried to completion.
type LifecycleRepository struct {
	db   *gorm.DB
	auth AuthDeleter
}

// NewLifecycleRepository creates a new repository bound to the given DB
// connection and auth deleter.
func NewLifecycleRepository(database *gorm.DB, auth AuthDeleter) *LifecycleRepository {
	return &LifecycleRepository{db: database, auth: auth}
}

// DeleteAccount removes every record belonging to uid and returns the
// counterpart uids whose counters were recomputed. The confirmation
// phrase must equal DeleteConfirmation exactly.
func (r *LifecycleRepository) DeleteAccount(ctx context.Context, uid, confirmation string) ([]string, error) {
	if confirmation != DeleteConfirmation {
		return nil, svcErr.InvalidArgument("confirmation phrase does not match")
	}

	d := r.db.WithContext(ctx)

	// Gather phase: reads only, nothing mutated before this succeeds.
	var matches []db.Match
	if err := d.Where("owner_uid = ?", uid).Find(&matches).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	var edgesOut []db.AdmirationEdge
	if err := d.Where("from_uid = ?", uid).Find(&edgesOut).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	var edgesIn []db.AdmirationEdge
	if err := d.Where("to_uid = ?", uid).Find(&edgesIn).Error; err != nil {
		return nil, svcErr.Map(err)
	}

	impacted := make(map[string]bool)
	for _, m := range matches {
		impacted[m.OtherUID] = true
	}
	for _, e := range edgesOut {
		impacted[e.ToUID] = true
	}
	for _, e := range edgesIn {
		impacted[e.FromUID] = true
	}
	delete(impacted, uid)
	impactedList := make([]string, 0, len(impacted))
	for u := range impacted {
		impactedList = append(impactedList, u)
	}

	// Delete phase: unconditional, idempotent deletes.
	if err := d.Where("owner_uid = ?", uid).Delete(&db.Match{}).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	for _, chunk := range chunkStrings(impactedList, deleteBatchSize) {
		if err := d.Where("owner_uid IN ? AND other_uid = ?", chunk, uid).
			Delete(&db.Match{}).Error; err != nil {
			return nil, svcErr.Map(err)
		}
	}
	if err := d.Where("from_uid = ? OR to_uid = ?", uid, uid).
		Delete(&db.AdmirationEdge{}).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	if err := d.Where("blocker_uid = ? OR blocked_uid = ?", uid, uid).
		Delete(&db.Block{}).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	if err := d.Where("uid = ?", uid).Delete(&db.RateLimitWindow{}).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	if err := d.Where("reporter_uid = ?", uid).Delete(&db.Report{}).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	if err := d.Where("uid = ?", uid).Delete(&db.HandleIndex{}).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	if err := d.Where("uid = ?", uid).Delete(&db.ExternalIDIndex{}).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	if err := d.Where("uid = ?", uid).Delete(&db.Stats{}).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	if err := d.Where("uid = ?", uid).Delete(&db.User{}).Error; err != nil {
		return nil, svcErr.Map(err)
	}

	// Reports filed against this account survive for audit, stripped of
	// the identity linkage.
	now := time.Now().UTC()
	if err := d.Model(&db.Report{}).
		Where("reported_uid = ?", uid).
		Updates(map[string]interface{}{
			"reported_uid":    nil,
			"reported_handle": db.AnonymizedHandle,
			"anonymized_at":   now,
		}).Error; err != nil {
		return nil, svcErr.Map(err)
	}

	// Counterparts' counters are recomputed from the surviving edges and
	// matches rather than decremented, which also repairs prior drift.
	for _, other := range impactedList {
		if err := r.recomputeStats(ctx, other); err != nil {
			return nil, err
		}
	}

	if err := r.auth.DeleteIdentity(ctx, uid); err != nil && !errors.Is(err, ErrIdentityNotFound) {
		return nil, svcErr.Map(err)
	}
	return impactedList, nil
}

// recomputeStats rebuilds one user's counters from the live rows.
func (r *LifecycleRepository) recomputeStats(ctx context.Context, uid string) error {
	d := r.db.WithContext(ctx)

	var outgoing, incoming, matchCount int64
	if err := d.Model(&db.AdmirationEdge{}).Where("from_uid = ?", uid).Count(&outgoing).Error; err != nil {
		return svcErr.Map(err)
	}
	if err := d.Model(&db.AdmirationEdge{}).Where("to_uid = ?", uid).Count(&incoming).Error; err != nil {
		return svcErr.Map(err)
	}
	if err := d.Model(&db.Match{}).Where("owner_uid = ?", uid).Count(&matchCount).Error; err != nil {
		return svcErr.Map(err)
	}

	err := d.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "uid"}},
		DoUpdates: clause.AssignmentColumns([]string{"incoming_count", "outgoing_count", "match_count", "updated_at"}),
	}).Create(&db.Stats{
		UID:           uid,
		IncomingCount: incoming,
		OutgoingCount: outgoing,
		MatchCount:    matchCount,
	}).Error
	return svcErr.Map(err)
}

func chunkStrings(in []string, size int) [][]string {
	if len(in) == 0 {
		return nil
	}
	var out [][]string
	for size < len(in) {
		in, out = in[size:], append(out, in[:size])
	}
	return append(out, in)
}
