package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/whisperlink/whisperlink-backend/internal/db"
	svcErr "github.com/whisperlink/whisperlink-backend/internal/errors"
)

// MaxDashboardMatches caps how many recent matches the dashboard shows.
const MaxDashboardMatches = 20

// DashboardData is everything the dashboard view aggregates, unfiltered.
// The service layer applies block filtering and caps.
type DashboardData struct {
	User     *db.User
	Stats    db.Stats
	Matches  []db.Match
	Outgoing []db.AdmirationEdge
	// Blocked holds every counterpart uid with a block in either
	// direction.
	Blocked map[string]bool
	// OwnBlocks is the caller's outgoing block list for display.
	OwnBlocks []db.Block
}

// DashboardRepository serves the read path behind getDashboard.
type DashboardRepository struct {
	db *gorm.DB
}

// NewDashboardRepository creates a new repository bound to the given DB connection.
func NewDashboardRepository(database *gorm.DB) *DashboardRepository {
	return &DashboardRepository{db: database}
}

// Fetch reads the user's profile, counters, recent matches, outgoing
// edges and block relations.
func (r *DashboardRepository) Fetch(ctx context.Context, uid string) (*DashboardData, error) {
	d := r.db.WithContext(ctx)
	data := &DashboardData{Blocked: make(map[string]bool)}

	var u db.User
	err := d.Where("uid = ?", uid).First(&u).Error
	switch {
	case err == nil:
		data.User = &u
	case errors.Is(err, gorm.ErrRecordNotFound):
		// not synced yet; the dashboard still renders
	default:
		return nil, svcErr.Map(err)
	}

	var stats db.Stats
	err = d.Where("uid = ?", uid).First(&stats).Error
	switch {
	case err == nil:
		data.Stats = stats
	case errors.Is(err, gorm.ErrRecordNotFound):
		data.Stats = db.Stats{UID: uid}
	default:
		return nil, svcErr.Map(err)
	}

	if err := d.Where("owner_uid = ?", uid).
		Order("created_at DESC, other_uid DESC").
		Limit(MaxDashboardMatches).
		Find(&data.Matches).Error; err != nil {
		return nil, svcErr.Map(err)
	}

	if err := d.Where("from_uid = ?", uid).
		Order("created_at DESC, to_uid DESC").
		Find(&data.Outgoing).Error; err != nil {
		return nil, svcErr.Map(err)
	}

	var blocks []db.Block
	if err := d.Where("blocker_uid = ? OR blocked_uid = ?", uid, uid).
		Find(&blocks).Error; err != nil {
		return nil, svcErr.Map(err)
	}
	for _, b := range blocks {
		if b.BlockerUID == uid {
			data.OwnBlocks = append(data.OwnBlocks, b)
			data.Blocked[b.BlockedUID] = true
		} else {
			data.Blocked[b.BlockerUID] = true
		}
	}

	return data, nil
}
