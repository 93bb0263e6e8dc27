package db

import (
	"time"
)

// User is the profile record, keyed by the opaque auth uid.
// Handle uniqueness lives in HandleIndex, not here; the two are written
// together in the identity upsert transaction.
type User struct {
	UID          string `gorm:"primaryKey;size:64"`
	Handle       string `gorm:"size:32;index"`
	ExternalID   string `gorm:"size:64;index"`
	AuthProvider string `gorm:"size:32"`

	ConsentPrivacyVersion string `gorm:"size:32"`
	ConsentTermsVersion   string `gorm:"size:32"`
	ConsentAgeConfirmed   bool
	ConsentAcceptedAt     *time.Time

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// HandleIndex materializes the handle→uid uniqueness constraint as its
// own keyed row. At most one live entry points at a given uid; the stale
// entry for a previous handle is deleted in the same transaction that
// rewrites the handle.
type HandleIndex struct {
	Handle    string    `gorm:"primaryKey;size:32"`
	UID       string    `gorm:"size:64;index;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// ExternalIDIndex maps the provider's stable account id to a uid, so a
// returning provider account is recognized even when the handle claim
// could not be read from the session.
type ExternalIDIndex struct {
	ExternalID string    `gorm:"primaryKey;size:64"`
	UID        string    `gorm:"size:64;index;not null"`
	Handle     string    `gorm:"size:32"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// Stats holds the derived per-user counters. Incrementally maintained in
// the same transaction as the edges they count, and recomputed from the
// edges during lifecycle cleanup.
type Stats struct {
	UID           string `gorm:"primaryKey;size:64"`
	IncomingCount int64  `gorm:"not null;default:0"`
	OutgoingCount int64  `gorm:"not null;default:0"`
	MatchCount    int64  `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// AdmirationEdge is a directed admiration from one user to another.
//
// Composite PK: (FromUID, ToUID) — a single row per ordered pair.
// Revealed flips false→true exactly once, when the reverse edge is seen
// inside the creating transaction; it is never reset.
type AdmirationEdge struct {
	FromUID    string `gorm:"primaryKey;size:64;index:idx_edge_from_created,priority:1"`
	ToUID      string `gorm:"primaryKey;size:64;index:idx_edge_to,priority:1"`
	FromHandle string `gorm:"size:32;not null"`
	ToHandle   string `gorm:"size:32;not null"`
	Revealed   bool   `gorm:"not null;default:false"`
	MatchedAt  *time.Time
	CreatedAt  time.Time `gorm:"autoCreateTime;index:idx_edge_from_created,priority:2,sort:desc"`
}

// Match is one participant's side of a mutual pair. Two mirrored rows are
// written atomically with the reveal transition.
type Match struct {
	OwnerUID    string    `gorm:"primaryKey;size:64"`
	OtherUID    string    `gorm:"primaryKey;size:64;index"`
	OtherHandle string    `gorm:"size:32;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

// Block is a directed block. A block in either direction between two
// users forbids new edges between them and hides existing edges and
// matches from dashboards.
type Block struct {
	BlockerUID    string    `gorm:"primaryKey;size:64"`
	BlockedUID    string    `gorm:"primaryKey;size:64;index"`
	BlockerHandle string    `gorm:"size:32"`
	BlockedHandle string    `gorm:"size:32;index"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}

// Report reason values.
const (
	ReportReasonHarassment    = "harassment"
	ReportReasonImpersonation = "impersonation"
	ReportReasonSpam          = "spam"
	ReportReasonOther         = "other"
)

// Report statuses.
const (
	ReportStatusOpen = "open"
)

// AnonymizedHandle replaces the reported handle once the reported
// account is deleted.
const AnonymizedHandle = "[deleted]"

// Report is an abuse report. Reporter-filed reports die with the
// reporter's account; reports against a deleted account survive with the
// uid reference nulled and the handle anonymized.
type Report struct {
	ID             string  `gorm:"primaryKey;size:36"`
	ReporterUID    string  `gorm:"size:64;index;not null"`
	ReporterHandle string  `gorm:"size:32"`
	ReportedUID    *string `gorm:"size:64;index"`
	ReportedHandle string  `gorm:"size:32"`
	Reason         string  `gorm:"size:16;not null"`
	Details        string  `gorm:"size:500"`
	Status         string  `gorm:"size:16;not null"`
	PurgeAt        time.Time
	AnonymizedAt   *time.Time
	CreatedAt      time.Time `gorm:"autoCreateTime"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime"`
}

// RateLimitWindow is the durable fixed-window counter for one
// (action, uid) pair.
type RateLimitWindow struct {
	Action        string    `gorm:"primaryKey;size:32"`
	UID           string    `gorm:"primaryKey;size:64;index"`
	WindowStartMs int64     `gorm:"not null"`
	Count         int64     `gorm:"not null;default:0"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}
