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

// Action names, one per remote operation.
const (
	ActionSyncProfile    = "sync_profile"
	ActionClaimHandle    = "claim_handle"
	ActionAcceptPolicies = "accept_policies"
	ActionAddAdmiration  = "add_admiration"
	ActionReportUser     = "report_user"
	ActionBlockUser      = "block_user"
	ActionUnblockUser    = "unblock_user"
	ActionDeleteAccount  = "delete_account"
	ActionGetDashboard   = "get_dashboard"
)

type windowConfig struct {
	Limit  int64
	Window time.Duration
}

// Per-action budgets. Fixed at build time, not user-configurable.
var actionLimits = map[string]windowConfig{
	ActionSyncProfile:    {Limit: 10, Window: 10 * time.Minute},
	ActionClaimHandle:    {Limit: 10, Window: 10 * time.Minute},
	ActionAcceptPolicies: {Limit: 10, Window: 10 * time.Minute},
	ActionAddAdmiration:  {Limit: 30, Window: time.Hour},
	ActionReportUser:     {Limit: 10, Window: 24 * time.Hour},
	ActionBlockUser:      {Limit: 30, Window: time.Hour},
	ActionUnblockUser:    {Limit: 30, Window: time.Hour},
	ActionDeleteAccount:  {Limit: 3, Window: 24 * time.Hour},
	ActionGetDashboard:   {Limit: 120, Window: 10 * time.Minute},
}

// RateLimitRepository enforces per-user per-action request budgets over
// durable fixed windows. Fixed-window semantics: the counter resets when
// the stored window start falls out of range, so a burst straddling a
// boundary can spend up to twice the limit. Accepted tradeoff.
type RateLimitRepository struct {
	db  *gorm.DB
	now func() time.Time
}

// NewRateLimitRepository creates a new repository bound to the given DB connection.
func NewRateLimitRepository(database *gorm.DB) *RateLimitRepository {
	return &RateLimitRepository{db: database, now: time.Now}
}

// NewRateLimitRepositoryWithClock injects the clock for window-expiry tests.
func NewRateLimitRepositoryWithClock(database *gorm.DB, now func() time.Time) *RateLimitRepository {
	return &RateLimitRepository{db: database, now: now}
}

// Enforce spends one request from the (action, uid) budget, failing with
// ResourceExhausted when the window is already full. Runs before any
// state-mutating work in the operation it guards.
func (r *RateLimitRepository) Enforce(ctx context.Context, uid, action string) error {
	cfg, ok := actionLimits[action]
	if !ok {
		return svcErr.InvalidArgument("unknown action")
	}
	return r.enforce(ctx, uid, action, cfg.Limit, cfg.Window)
}

func (r *RateLimitRepository) enforce(ctx context.Context, uid, action string, limit int64, window time.Duration) error {
	nowMs := r.now().UnixMilli()

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// locking read: two concurrent calls must not both observe the
		// same count and spend the same slot
		var w db.RateLimitWindow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("action = ? AND uid = ?", action, uid).First(&w).Error
		fresh := false
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			w = db.RateLimitWindow{Action: action, UID: uid, WindowStartMs: nowMs}
			fresh = true
		case err != nil:
			return err
		case nowMs-w.WindowStartMs >= window.Milliseconds():
			// fixed-window reset
			w.WindowStartMs = nowMs
			w.Count = 0
		}

		if w.Count >= limit {
			return svcErr.ResourceExhausted("too many requests, please slow down")
		}
		w.Count++

		if fresh {
			return tx.Create(&w).Error
		}
		return tx.Model(&db.RateLimitWindow{}).
			Where("action = ? AND uid = ?", action, uid).
			Updates(map[string]interface{}{
				"window_start_ms": w.WindowStartMs,
				"count":           w.Count,
			}).Error
	})
	return svcErr.Map(err)
}
