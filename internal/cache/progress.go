package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/rohit-purandare/shelfbridge/internal/logger"
	"github.com/rohit-purandare/shelfbridge/internal/models"
)

// ProgressCache is the persistent change-detection store backing the sync
// engine. It is the only cross-task shared mutable resource; SQLite
// serializes individual row writes, and the orchestrator's per-item mutual
// exclusion prevents lost updates across the check/write race.
type ProgressCache struct {
	db  *gorm.DB
	log *logger.Logger
}

// NewProgressCache opens (or creates) the cache database at the given path
// and runs migrations.
func NewProgressCache(dbPath string, log *logger.Logger) (*ProgressCache, error) {
	if log == nil {
		log = logger.Get()
	}

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// SQLite only supports one writer at a time
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	c := &ProgressCache{db: db, log: log}
	if err := c.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run cache migrations: %w", err)
	}

	log.Debug("Progress cache opened", map[string]interface{}{
		"path": dbPath,
	})

	return c, nil
}

// migrate applies the additive schema migrations. AutoMigrate only ever adds
// columns, which matches the additive-only migration policy for this table.
func (c *ProgressCache) migrate() error {
	if err := c.db.AutoMigrate(&BookRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (c *ProgressCache) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// normalizeTitle keeps the title component of the record key stable across
// cosmetic changes in the source metadata.
func normalizeTitle(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// GetCachedBookInfo returns the cached record for the given key, or nil when
// no record exists. A missing record is not an error.
func (c *ProgressCache) GetCachedBookInfo(userID string, ident models.Identifier, title string) (*BookRecord, error) {
	var rec BookRecord
	err := c.db.Where(
		"user_id = ? AND identifier = ? AND identifier_type = ? AND title = ?",
		userID, ident.Value, string(ident.Type), normalizeTitle(title),
	).First(&rec).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cache record: %w", err)
	}
	return &rec, nil
}

// HasProgressChanged reports whether the observed progress differs from the
// cached value by more than the tolerance (in percentage points).
func (c *ProgressCache) HasProgressChanged(rec *BookRecord, progressPercent, tolerance float64) bool {
	if rec == nil {
		return true
	}
	return math.Abs(rec.ProgressPercent-progressPercent) > tolerance
}

// NeedsSyncCheck is the cheap early check run before any matching work. It
// returns needsSync plus the independent trigger breakdown:
//   - progress changed beyond the tolerance,
//   - cached status is "want to read" (forced bypass: even unchanged progress
//     must push the status to "currently reading"),
//   - the edition differs from the cached one (user re-mapped the match).
//
// A cache miss always needs a sync.
func (c *ProgressCache) NeedsSyncCheck(userID string, ident models.Identifier, title string, progressPercent float64, editionID int64, tolerance float64) (bool, SyncChanges, error) {
	rec, err := c.GetCachedBookInfo(userID, ident, title)
	if err != nil {
		return false, SyncChanges{}, err
	}
	if rec == nil {
		return true, SyncChanges{NoCache: true, Reason: "no cached data"}, nil
	}

	changes := SyncChanges{
		ProgressChanged: c.HasProgressChanged(rec, progressPercent, tolerance),
		StatusChanged:   rec.StatusID == models.StatusWantToRead,
		EditionChanged:  editionID != 0 && rec.EditionID != 0 && rec.EditionID != editionID,
	}

	var reasons []string
	if changes.ProgressChanged {
		reasons = append(reasons, "progress changed")
	}
	if changes.StatusChanged {
		reasons = append(reasons, "status is want-to-read")
	}
	if changes.EditionChanged {
		reasons = append(reasons, "edition changed")
	}
	changes.Reason = strings.Join(reasons, ", ")

	needs := changes.ProgressChanged || changes.StatusChanged || changes.EditionChanged
	return needs, changes, nil
}

// StoreParams carries the fields committed after a successful sync.
type StoreParams struct {
	UserID     string
	Identifier models.Identifier
	Title      string
	Author     string

	EditionID       int64
	ProgressPercent float64
	StatusID        int

	StartedAt      *time.Time
	FinishedAt     *time.Time
	LastListenedAt *time.Time

	// SyncedExternally marks that the catalog was written in this commit, so
	// last_hardcover_sync advances and any pending session is cleared.
	SyncedExternally bool
}

// StoreBookSyncData upserts the cache record after a committed sync. The
// record is created on the first successful sync and never deleted except by
// an explicit cache clear.
func (c *ProgressCache) StoreBookSyncData(p StoreParams) error {
	now := time.Now()

	rec, err := c.GetCachedBookInfo(p.UserID, p.Identifier, p.Title)
	if err != nil {
		return err
	}

	if rec == nil {
		rec = &BookRecord{
			UserID:         p.UserID,
			Identifier:     p.Identifier.Value,
			IdentifierType: string(p.Identifier.Type),
			Title:          normalizeTitle(p.Title),
		}
	}

	rec.Author = p.Author
	rec.EditionID = p.EditionID
	rec.ProgressPercent = p.ProgressPercent
	rec.StatusID = p.StatusID
	rec.LastSync = now
	if p.StartedAt != nil {
		rec.StartedAt = p.StartedAt
	}
	if p.FinishedAt != nil {
		rec.FinishedAt = p.FinishedAt
	}
	if p.LastListenedAt != nil {
		rec.LastListenedAt = p.LastListenedAt
	}
	if p.SyncedExternally {
		rec.LastHardcoverSync = &now
		rec.SessionPendingProgress = nil
		rec.SessionLastChange = nil
		rec.SessionIsActive = false
	}

	if err := c.db.Save(rec).Error; err != nil {
		return fmt.Errorf("failed to store cache record: %w", err)
	}
	return nil
}

// StoreProgress updates just the committed progress value of an existing
// record.
func (c *ProgressCache) StoreProgress(userID string, ident models.Identifier, title string, progressPercent float64) error {
	rec, err := c.GetCachedBookInfo(userID, ident, title)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("no cache record for %s:%s", ident.Type, ident.Value)
	}
	rec.ProgressPercent = progressPercent
	rec.LastSync = time.Now()
	if err := c.db.Save(rec).Error; err != nil {
		return fmt.Errorf("failed to store progress: %w", err)
	}
	return nil
}

// UpdateSession buffers a progress observation on the record's session,
// creating the session when none is active and extending its last-change
// timestamp otherwise.
func (c *ProgressCache) UpdateSession(rec *BookRecord, pendingProgress float64, at time.Time) error {
	if rec == nil {
		return fmt.Errorf("cannot buffer session on missing record")
	}
	rec.SessionPendingProgress = &pendingProgress
	rec.SessionLastChange = &at
	rec.SessionIsActive = true
	if err := c.db.Save(rec).Error; err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// ClearSession destroys the record's session overlay without touching the
// committed fields.
func (c *ProgressCache) ClearSession(rec *BookRecord) error {
	if rec == nil {
		return nil
	}
	rec.SessionPendingProgress = nil
	rec.SessionLastChange = nil
	rec.SessionIsActive = false
	if err := c.db.Save(rec).Error; err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// ActiveSessions returns all records with an active delayed-update session
// for the user.
func (c *ProgressCache) ActiveSessions(userID string) ([]BookRecord, error) {
	var recs []BookRecord
	if err := c.db.Where("user_id = ? AND session_is_active = ?", userID, true).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list active sessions: %w", err)
	}
	return recs, nil
}

// GetStats returns cache statistics for diagnostics.
func (c *ProgressCache) GetStats() (*Stats, error) {
	stats := &Stats{ByType: make(map[string]int64)}

	if err := c.db.Model(&BookRecord{}).Count(&stats.TotalRecords).Error; err != nil {
		return nil, fmt.Errorf("failed to count cache records: %w", err)
	}
	if err := c.db.Model(&BookRecord{}).Where("session_is_active = ?", true).Count(&stats.ActiveSessions).Error; err != nil {
		return nil, fmt.Errorf("failed to count active sessions: %w", err)
	}

	type typeCount struct {
		IdentifierType string
		N              int64
	}
	var counts []typeCount
	if err := c.db.Model(&BookRecord{}).
		Select("identifier_type, count(*) as n").
		Group("identifier_type").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("failed to count identifier types: %w", err)
	}
	for _, tc := range counts {
		stats.ByType[tc.IdentifierType] = tc.N
	}

	var last BookRecord
	err := c.db.Order("last_sync desc").First(&last).Error
	if err == nil {
		stats.LastSync = &last.LastSync
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to read last sync: %w", err)
	}

	return stats, nil
}

// Clear removes every record from the cache.
func (c *ProgressCache) Clear() error {
	if err := c.db.Where("1 = 1").Delete(&BookRecord{}).Error; err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}
	c.log.Info("Progress cache cleared", nil)
	return nil
}

// ExportJSON writes the full cache contents to a JSON file for diagnostics.
func (c *ProgressCache) ExportJSON(path string) error {
	var recs []BookRecord
	if err := c.db.Order("user_id, title").Find(&recs).Error; err != nil {
		return fmt.Errorf("failed to read cache records: %w", err)
	}

	data, err := json.MarshalIndent(recs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache records: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}

	c.log.Info("Exported progress cache", map[string]interface{}{
		"path":    path,
		"records": len(recs),
	})
	return nil
}
