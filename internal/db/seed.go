package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"
)

// SeedDemoData resets the database and populates it with demo accounts
// and a small admiration graph for local development.
//
// Dataset:
//   - 8 users with claimed handles and zeroed-then-recounted stats.
//   - A handful of one-way admirations, one mutual pair (demo1/demo2),
//     and one block (demo3 blocked demo7).
func SeedDemoData(gdb *gorm.DB) error {
	tables := []string{
		"rate_limit_windows", "reports", "blocks", "matches",
		"admiration_edges", "stats", "external_id_indices",
		"handle_indices", "users",
	}
	for _, t := range tables {
		if err := gdb.Exec("DELETE FROM " + t).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", t, err)
		}
	}
	log.Println("Cleared existing data")

	now := time.Now().UTC()
	for i := 1; i <= 8; i++ {
		uid := fmt.Sprintf("demo-uid-%02d", i)
		handle := fmt.Sprintf("demo%d", i)
		externalID := fmt.Sprintf("900000%02d", i)

		user := User{
			UID:                   uid,
			Handle:                handle,
			ExternalID:            externalID,
			AuthProvider:          "twitter.com",
			ConsentPrivacyVersion: "2025-06-01",
			ConsentTermsVersion:   "2025-06-01",
			ConsentAgeConfirmed:   true,
			ConsentAcceptedAt:     &now,
		}
		if err := gdb.Create(&user).Error; err != nil {
			return fmt.Errorf("failed to seed user: %w", err)
		}
		if err := gdb.Create(&HandleIndex{Handle: handle, UID: uid}).Error; err != nil {
			return fmt.Errorf("failed to seed handle index: %w", err)
		}
		if err := gdb.Create(&ExternalIDIndex{ExternalID: externalID, UID: uid, Handle: handle}).Error; err != nil {
			return fmt.Errorf("failed to seed external id index: %w", err)
		}
		if err := gdb.Create(&Stats{UID: uid}).Error; err != nil {
			return fmt.Errorf("failed to seed stats: %w", err)
		}
	}
	log.Println("Seeded 8 users.")

	uid := func(i int) string { return fmt.Sprintf("demo-uid-%02d", i) }
	handle := func(i int) string { return fmt.Sprintf("demo%d", i) }

	type pair struct{ from, to int }
	oneWay := []pair{{1, 3}, {3, 4}, {4, 2}, {5, 1}, {6, 1}}
	for _, p := range oneWay {
		edge := AdmirationEdge{
			FromUID:    uid(p.from),
			ToUID:      uid(p.to),
			FromHandle: handle(p.from),
			ToHandle:   handle(p.to),
		}
		if err := gdb.Create(&edge).Error; err != nil {
			return fmt.Errorf("failed to seed edge: %w", err)
		}
	}

	// mutual pair demo1 <-> demo2
	matchedAt := now
	mutual := []AdmirationEdge{
		{FromUID: uid(1), ToUID: uid(2), FromHandle: handle(1), ToHandle: handle(2), Revealed: true, MatchedAt: &matchedAt},
		{FromUID: uid(2), ToUID: uid(1), FromHandle: handle(2), ToHandle: handle(1), Revealed: true, MatchedAt: &matchedAt},
	}
	for i := range mutual {
		if err := gdb.Create(&mutual[i]).Error; err != nil {
			return fmt.Errorf("failed to seed mutual edge: %w", err)
		}
	}
	matchRows := []Match{
		{OwnerUID: uid(1), OtherUID: uid(2), OtherHandle: handle(2)},
		{OwnerUID: uid(2), OtherUID: uid(1), OtherHandle: handle(1)},
	}
	for i := range matchRows {
		if err := gdb.Create(&matchRows[i]).Error; err != nil {
			return fmt.Errorf("failed to seed match: %w", err)
		}
	}

	if err := gdb.Create(&Block{
		BlockerUID:    uid(3),
		BlockedUID:    uid(7),
		BlockerHandle: handle(3),
		BlockedHandle: handle(7),
	}).Error; err != nil {
		return fmt.Errorf("failed to seed block: %w", err)
	}

	// recount stats from the seeded graph so counters match the edges
	for i := 1; i <= 8; i++ {
		var outgoing, incoming, matchCount int64
		if err := gdb.Model(&AdmirationEdge{}).Where("from_uid = ?", uid(i)).Count(&outgoing).Error; err != nil {
			return err
		}
		if err := gdb.Model(&AdmirationEdge{}).Where("to_uid = ?", uid(i)).Count(&incoming).Error; err != nil {
			return err
		}
		if err := gdb.Model(&Match{}).Where("owner_uid = ?", uid(i)).Count(&matchCount).Error; err != nil {
			return err
		}
		if err := gdb.Model(&Stats{}).Where("uid = ?", uid(i)).Updates(map[string]interface{}{
			"outgoing_count": outgoing,
			"incoming_count": incoming,
			"match_count":    matchCount,
		}).Error; err != nil {
			return err
		}
	}

	log.Println("Seeded admiration graph.")
	return nil
}
