package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/whisperlink/whisperlink-backend/internal/db"
	svcErr "github.com/whisperlink/whisperlink-backend/internal/errors"
	"github.com/whisperlink/whisperlink-backend/internal/identity"
)

// MaxOutgoing is the fixed quota of outgoing admirations per user.
const MaxOutgoing = 5

// ConsentPolicy carries the currently required policy versions. When
// Gate is false the consent precondition is skipped.
type ConsentPolicy struct {
	Gate           bool
	PrivacyVersion string
	TermsVersion   string
}

// Satisfied reports whether the user has accepted the current versions.
func (p ConsentPolicy) Satisfied(u *db.User) bool {
	if !p.Gate {
		return true
	}
	if u == nil {
		return false
	}
	return u.ConsentAgeConfirmed &&
		u.ConsentPrivacyVersion == p.PrivacyVersion &&
		u.ConsentTermsVersion == p.TermsVersion
}

// AddResult is the outcome of one AddAdmiration call.
type AddResult struct {
	Matched  bool
	ToUID    string
	ToHandle string
}

// GraphRepository owns the directed admiration graph: edge creation,
// mutual-match detection and the derived counters. Every mutation runs
// in a single transaction so that the reveal decision is always derived
// from edge rows read inside the committing transaction.
type GraphRepository struct {
	db *gorm.DB
}

// NewGraphRepository creates a new repository bound to the given DB connection.
func NewGraphRepository(database *gorm.DB) *GraphRepository {
	return &GraphRepository{db: database}
}

// AddAdmiration records that fromUID secretly admires toHandle.
//
// All preconditions and effects run inside one transaction:
//
//   - sender must be synced and, when gated, consented;
//   - target handle must be valid, not the sender, and registered;
//   - no block may exist in either direction;
//   - the ordered pair must not already have an edge;
//   - the sender must be under the outgoing quota.
//
// If the reverse edge exists at commit time, both edges are revealed and
// mirrored match rows are written for both participants' dashboards, in the
// same transaction, so two users adding each other concurrently produce
// exactly one match pair no matter how the calls interleave.
func (r *GraphRepository) AddAdmiration(ctx context.Context, fromUID, toHandle string, policy ConsentPolicy) (*AddResult, error) {
	toHandle = identity.Normalize(toHandle)

	var res AddResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fromUser, err := getUserTx(tx, fromUID)
		if err != nil {
			return err
		}
		if fromUser == nil || fromUser.Handle == "" {
			return svcErr.FailedPrecondition("your profile is not synced, please sign out and sign in again")
		}

		if !policy.Satisfied(fromUser) {
			return svcErr.FailedPrecondition("please accept the current privacy policy and terms first")
		}

		if err := identity.Validate(toHandle); err != nil {
			return err
		}

		if fromUser.Handle == toHandle {
			return svcErr.InvalidArgument("you cannot add yourself")
		}

		idx, err := getHandleIndexTx(tx, toHandle)
		if err != nil {
			return err
		}
		if idx == nil {
			// deliberately the same failure kind as other state errors, so
			// responses do not reveal which usernames are registered
			return svcErr.FailedPrecondition("that username has not joined yet")
		}
		toUID := idx.UID
		if toUID == fromUID {
			return svcErr.InvalidArgument("you cannot add yourself")
		}

		blocked, err := blockExistsTx(tx, fromUID, toUID)
		if err != nil {
			return err
		}
		if blocked {
			return svcErr.PermissionDenied("you cannot admire this user")
		}

		var existing db.AdmirationEdge
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("from_uid = ? AND to_uid = ?", fromUID, toUID).First(&existing).Error
		if err == nil {
			return svcErr.AlreadyExists("you already added this person")
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		fromStats, err := getStatsTx(tx, fromUID)
		if err != nil {
			return err
		}
		if fromStats.OutgoingCount >= MaxOutgoing {
			return svcErr.ResourceExhausted(fmt.Sprintf("you can add max %d secret admirers", MaxOutgoing))
		}

		toStats, err := getStatsTx(tx, toUID)
		if err != nil {
			return err
		}

		edge := db.AdmirationEdge{
			FromUID:    fromUID,
			ToUID:      toUID,
			FromHandle: fromUser.Handle,
			ToHandle:   toHandle,
			Revealed:   false,
		}
		if err := tx.Create(&edge).Error; err != nil {
			return err
		}

		fromStats.OutgoingCount++
		toStats.IncomingCount++

		// Reciprocity is re-derived from the reverse edge row inside this
		// transaction, as a locking read. Under InnoDB an absent reverse
		// row leaves a gap lock behind, so two opposite-direction adds
		// serialize instead of both missing each other's insert.
		var reverse db.AdmirationEdge
		err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("from_uid = ? AND to_uid = ?", toUID, fromUID).First(&reverse).Error
		switch {
		case err == nil:
			now := time.Now().UTC()
			if err := tx.Model(&db.AdmirationEdge{}).
				Where("(from_uid = ? AND to_uid = ?) OR (from_uid = ? AND to_uid = ?)",
					fromUID, toUID, toUID, fromUID).
				Updates(map[string]interface{}{"revealed": true, "matched_at": now}).Error; err != nil {
				return err
			}

			pair := []db.Match{
				{OwnerUID: fromUID, OtherUID: toUID, OtherHandle: toHandle},
				{OwnerUID: toUID, OtherUID: fromUID, OtherHandle: fromUser.Handle},
			}
			if err := tx.Create(&pair).Error; err != nil {
				return err
			}

			fromStats.MatchCount++
			toStats.MatchCount++
			res.Matched = true
		case errors.Is(err, gorm.ErrRecordNotFound):
			// one-way for now
		default:
			return err
		}

		if err := saveStatsTx(tx, fromStats); err != nil {
			return err
		}
		if err := saveStatsTx(tx, toStats); err != nil {
			return err
		}

		res.ToUID = toUID
		res.ToHandle = toHandle
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &res, nil
}

// ListOutgoing returns the sender's edges newest first.
func (r *GraphRepository) ListOutgoing(ctx context.Context, uid string) ([]db.AdmirationEdge, error) {
	var edges []db.AdmirationEdge
	err := r.db.WithContext(ctx).
		Where("from_uid = ?", uid).
		Order("created_at DESC, to_uid DESC").
		Find(&edges).Error
	return edges, err
}

// --- shared tx helpers ---
//
// All of these run inside a transaction and feed a write, so they read
// with SELECT ... FOR UPDATE. Plain snapshot reads under REPEATABLE READ
// would let two transactions base their writes on the same stale row.
// The SQLite test dialector drops the locking clause; SQLite serializes
// writers on its own.

func getUserTx(tx *gorm.DB, uid string) (*db.User, error) {
	var u db.User
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uid = ?", uid).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func getHandleIndexTx(tx *gorm.DB, handle string) (*db.HandleIndex, error) {
	var idx db.HandleIndex
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("handle = ?", handle).First(&idx).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &idx, nil
}

// getStatsTx returns the stats row for uid, or a zeroed in-memory row if
// none exists yet. The row tracks whether it needs insert vs update.
func getStatsTx(tx *gorm.DB, uid string) (*statsRow, error) {
	var s db.Stats
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("uid = ?", uid).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &statsRow{Stats: db.Stats{UID: uid}, isNew: true}, nil
	}
	if err != nil {
		return nil, err
	}
	return &statsRow{Stats: s}, nil
}

type statsRow struct {
	db.Stats
	isNew bool
}

func saveStatsTx(tx *gorm.DB, s *statsRow) error {
	if s.isNew {
		return tx.Create(&s.Stats).Error
	}
	return tx.Model(&db.Stats{}).Where("uid = ?", s.UID).
		Updates(map[string]interface{}{
			"incoming_count": s.IncomingCount,
			"outgoing_count": s.OutgoingCount,
			"match_count":    s.MatchCount,
		}).Error
}

func blockExistsTx(tx *gorm.DB, a, b string) (bool, error) {
	var count int64
	err := tx.Model(&db.Block{}).
		Where("(blocker_uid = ? AND blocked_uid = ?) OR (blocker_uid = ? AND blocked_uid = ?)", a, b, b, a).
		Count(&count).Error
	return count > 0, err
}
