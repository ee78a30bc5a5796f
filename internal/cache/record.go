package cache

import (
	"time"
)

// BookRecord is the persistent per-user, per-book sync record. The logical
// key is (user_id, identifier, identifier_type, title); at most one record
// exists per key. Session columns are the delayed-update overlay and were
// added as nullable columns in an additive migration; the schema only ever
// evolves by adding nullable columns.
type BookRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`

	UserID         string `gorm:"uniqueIndex:idx_user_book;not null" json:"user_id"`
	Identifier     string `gorm:"uniqueIndex:idx_user_book;not null" json:"identifier"`
	IdentifierType string `gorm:"uniqueIndex:idx_user_book;not null" json:"identifier_type"`
	Title          string `gorm:"uniqueIndex:idx_user_book" json:"title"`

	EditionID       int64     `json:"edition_id"`
	Author          string    `json:"author,omitempty"`
	ProgressPercent float64   `json:"progress_percent"`
	StatusID        int       `json:"status_id"`
	LastSync        time.Time `json:"last_sync"`

	StartedAt      *time.Time `json:"started_at,omitempty"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	LastListenedAt *time.Time `json:"last_listened_at,omitempty"`

	// Delayed-update session overlay. A record has at most one active
	// session; SessionPendingProgress is the buffered, not-yet-committed
	// observation.
	SessionPendingProgress *float64   `json:"session_pending_progress,omitempty"`
	SessionLastChange      *time.Time `json:"session_last_change,omitempty"`
	SessionIsActive        bool       `gorm:"default:false" json:"session_is_active"`
	LastHardcoverSync      *time.Time `json:"last_hardcover_sync,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncChanges is the trigger breakdown returned by NeedsSyncCheck. The
// triggers are evaluated independently and OR-ed into the final decision.
type SyncChanges struct {
	ProgressChanged bool   `json:"progress_changed"`
	StatusChanged   bool   `json:"status_changed"`
	EditionChanged  bool   `json:"edition_changed"`
	NoCache         bool   `json:"no_cache"`
	Reason          string `json:"reason,omitempty"`
}

// Stats summarizes the cache contents for diagnostics.
type Stats struct {
	TotalRecords   int64            `json:"total_records"`
	ActiveSessions int64            `json:"active_sessions"`
	ByType         map[string]int64 `json:"by_identifier_type"`
	LastSync       *time.Time       `json:"last_sync,omitempty"`
}
