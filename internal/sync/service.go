package sync

import (
	"context"
	"errors"
	"fmt"
	"strings"
	gosync "sync"
	"time"

	"github.com/rohit-purandare/shelfbridge/internal/api/audiobookshelf"
	"github.com/rohit-purandare/shelfbridge/internal/api/hardcover"
	"github.com/rohit-purandare/shelfbridge/internal/cache"
	"github.com/rohit-purandare/shelfbridge/internal/config"
	"github.com/rohit-purandare/shelfbridge/internal/logger"
	"github.com/rohit-purandare/shelfbridge/internal/models"
)

// Service orchestrates a full sync run: fetch reading progress from the
// media library, resolve each item against the catalog, decide what (if
// anything) to write, write it, and commit the result to the progress cache.
// Books are isolated from one another; one failure never aborts the run.
type Service struct {
	library  audiobookshelf.LibraryClientInterface
	catalog  hardcover.CatalogClientInterface
	cache    *cache.ProgressCache
	matcher  *Matcher
	sessions *SessionManager
	cfg      *config.Config
	log      *logger.Logger

	// inFlight guards against concurrent syncs of the same item, within a
	// parallel run and across overlapping runs alike.
	inFlightMu gosync.Mutex
	inFlight   map[string]struct{}
}

// NewService wires a sync service from its dependencies.
func NewService(library audiobookshelf.LibraryClientInterface, catalog hardcover.CatalogClientInterface, progressCache *cache.ProgressCache, cfg *config.Config, log *logger.Logger) *Service {
	if log == nil {
		log = logger.Get()
	}
	return &Service{
		library:  library,
		catalog:  catalog,
		cache:    progressCache,
		matcher:  NewMatcher(catalog, log),
		sessions: NewSessionManager(cfg.Sync.DelayedUpdates, log),
		cfg:      cfg,
		log:      log,
		inFlight: make(map[string]struct{}),
	}
}

// TestConnections verifies both APIs are reachable before doing any work.
func (s *Service) TestConnections(ctx context.Context) error {
	if err := s.library.TestConnection(ctx); err != nil {
		return fmt.Errorf("media library connection failed: %w", err)
	}
	if err := s.catalog.TestConnection(ctx); err != nil {
		return fmt.Errorf("catalog connection failed: %w", err)
	}
	return nil
}

// SyncProgress runs one full sync pass and returns the aggregated result.
func (s *Service) SyncProgress(ctx context.Context) (*models.RunResult, error) {
	start := time.Now()
	result := &models.RunResult{}

	if err := s.TestConnections(ctx); err != nil {
		return nil, err
	}

	items, err := s.library.GetReadingProgress(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reading progress: %w", err)
	}

	userBooks, err := s.catalog.GetUserBooks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog library: %w", err)
	}
	index := BuildLibraryIndex(userBooks)

	s.log.Info("Starting sync", map[string]interface{}{
		"items":      len(items),
		"user_books": len(userBooks),
		"dry_run":    s.cfg.Sync.DryRun,
		"parallel":   s.cfg.Sync.Parallel,
	})

	s.flushExpiredSessions(ctx, index, result)

	items, duplicates := dedupeItems(items)
	result.Duplicates = duplicates
	if duplicates > 0 {
		s.log.Info("Removed duplicate library items", map[string]interface{}{
			"duplicates": duplicates,
		})
	}

	if s.cfg.Sync.Parallel && s.cfg.Sync.Workers > 1 {
		s.processParallel(ctx, items, index, result)
	} else {
		for i := range items {
			result.Add(s.syncBook(ctx, &items[i], index))
		}
	}

	result.Duration = time.Since(start)
	s.log.Info("Sync complete", map[string]interface{}{
		"processed":  result.Processed,
		"synced":     result.Synced,
		"completed":  result.Completed,
		"auto_added": result.AutoAdded,
		"skipped":    result.Skipped,
		"delayed":    result.Delayed,
		"errors":     result.Errors,
		"duplicates": result.Duplicates,
		"duration":   result.Duration.String(),
	})

	return result, nil
}

// processParallel fans items out to a bounded worker pool. Results funnel
// through a mutex so the aggregate stays consistent.
func (s *Service) processParallel(ctx context.Context, items []models.LibraryItem, index *LibraryIndex, result *models.RunResult) {
	sem := make(chan struct{}, s.cfg.Sync.Workers)
	var wg gosync.WaitGroup
	var mu gosync.Mutex

	for i := range items {
		item := &items[i]
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			res := s.syncBook(ctx, item, index)
			mu.Lock()
			result.Add(res)
			mu.Unlock()
		}()
	}
	wg.Wait()
}

// dedupeItems drops repeated library items in three stages: same item ID,
// same best identifier, same title/author key. First occurrence wins.
func dedupeItems(items []models.LibraryItem) ([]models.LibraryItem, int) {
	seenID := make(map[string]struct{}, len(items))
	seenIdent := make(map[string]struct{}, len(items))
	seenKey := make(map[string]struct{}, len(items))

	out := items[:0]
	duplicates := 0
	for i := range items {
		item := items[i]

		if item.ID != "" {
			if _, dup := seenID[item.ID]; dup {
				duplicates++
				continue
			}
			seenID[item.ID] = struct{}{}
		}

		ident := models.BestIdentifier(&item)
		if ident.Type != models.IdentifierTitleAuthor {
			identKey := string(ident.Type) + ":" + ident.Value
			if _, dup := seenIdent[identKey]; dup {
				duplicates++
				continue
			}
			seenIdent[identKey] = struct{}{}
		}

		key := models.TitleAuthorKey(item.Title, item.Author)
		if key != "unknown:unknown" {
			if _, dup := seenKey[key]; dup {
				duplicates++
				continue
			}
			seenKey[key] = struct{}{}
		}

		out = append(out, item)
	}
	return out, duplicates
}

// tryAcquire reserves the item for this goroutine. Returns false when another
// sync for the same item is already in flight.
func (s *Service) tryAcquire(itemID string) bool {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	if _, busy := s.inFlight[itemID]; busy {
		return false
	}
	s.inFlight[itemID] = struct{}{}
	return true
}

func (s *Service) release(itemID string) {
	s.inFlightMu.Lock()
	defer s.inFlightMu.Unlock()
	delete(s.inFlight, itemID)
}

// syncBook runs the full per-book pipeline. It never panics the run: every
// failure is folded into the returned BookResult.
func (s *Service) syncBook(ctx context.Context, item *models.LibraryItem, index *LibraryIndex) models.BookResult {
	res := models.BookResult{ItemID: item.ID, Title: item.Title}

	if !s.tryAcquire(item.ID) {
		res.Outcome = models.OutcomeSkipped
		res.Reason = ReasonAlreadyProcessing
		res.Err = ErrAlreadyProcessing
		return res
	}
	defer s.release(item.ID)

	progress, ok := item.ProgressPercent()
	if !ok {
		res.Outcome = models.OutcomeSkipped
		res.Reason = "no progress value reported"
		res.Err = ErrInvalidInput
		return res
	}
	res.Progress = progress

	if !item.IsFinished && progress < s.cfg.Sync.MinProgressThreshold {
		res.Outcome = models.OutcomeSkipped
		res.Reason = fmt.Sprintf("progress %.1f%% below minimum threshold %.1f%%", progress, s.cfg.Sync.MinProgressThreshold)
		return res
	}

	ident := models.BestIdentifier(item)

	rec, err := s.cache.GetCachedBookInfo(s.cfg.User.ID, ident, item.Title)
	if err != nil {
		res.Outcome = models.OutcomeError
		res.Reason = "cache read failed"
		res.Err = err
		return res
	}

	// A direct identifier hit against the library index is free and doubles
	// as the edition hint for the early change check.
	directHit := s.matcher.matchDirect(item, index)
	editionHint := int64(0)
	if directHit != nil && directHit.Edition != nil {
		editionHint = directHit.Edition.ID
	}

	var changes cache.SyncChanges
	if !s.cfg.Sync.ForceSync {
		needs, ch, err := s.cache.NeedsSyncCheck(s.cfg.User.ID, ident, item.Title, progress, editionHint, s.cfg.Sync.ProgressTolerance)
		if err != nil {
			res.Outcome = models.OutcomeError
			res.Reason = "cache check failed"
			res.Err = err
			return res
		}
		changes = ch
		if !needs {
			res.Outcome = models.OutcomeSkipped
			res.Reason = "no change detected"
			return res
		}
	} else {
		changes = cache.SyncChanges{ProgressChanged: true, Reason: "force sync"}
	}

	if verdict := s.checkRegression(item, rec, progress); verdict != "" {
		res.Outcome = models.OutcomeSkipped
		res.Reason = verdict
		return res
	}

	// The session decision comes before any matching so a buffered
	// observation costs no catalog traffic. A pending status transition is
	// never buffered: the shelf move must not wait out a session.
	decision := s.sessions.Decide(rec, progress, item.IsFinished)
	if decision.Buffer && changes.StatusChanged {
		decision = SessionDecision{Buffer: false, Reason: "status change is immediate"}
	}
	if decision.Buffer {
		if err := s.cache.UpdateSession(rec, progress, time.Now()); err != nil {
			res.Outcome = models.OutcomeError
			res.Reason = "failed to buffer session"
			res.Err = err
			return res
		}
		res.Outcome = models.OutcomeDelayed
		res.Reason = decision.Reason
		return res
	}

	match, err := s.resolveMatch(ctx, item, rec, directHit, index)
	if err != nil {
		if errors.Is(err, ErrAmbiguousMatch) {
			res.Outcome = models.OutcomeSkipped
			res.Reason = err.Error()
			res.Err = err
			return res
		}
		res.Outcome = models.OutcomeError
		res.Reason = "match resolution failed"
		res.Err = &BookError{ItemID: item.ID, Title: item.Title, Err: err}
		return res
	}
	if match == nil || match.Edition == nil {
		res.Outcome = models.OutcomeSkipped
		res.Reason = "no catalog match found"
		res.Err = ErrNoMatch
		return res
	}

	if !s.cfg.Sync.CrossFormatSync && match.Edition.Kind() != item.Kind {
		res.Outcome = models.OutcomeSkipped
		res.Reason = fmt.Sprintf("matched %s edition for %s item and cross-format sync is disabled", match.Edition.Kind(), item.Kind)
		return res
	}

	return s.dispatch(ctx, item, ident, rec, match, changes, progress, res)
}

// resolveMatch resolves the item to a catalog edition. A direct identifier
// hit is authoritative; after that the cached edition binding is reused when
// it still resolves against the current library snapshot, sparing the search
// tiers. A cached edition that no longer resolves falls through to
// re-matching, and only if that also fails is the stale reference surfaced.
func (s *Service) resolveMatch(ctx context.Context, item *models.LibraryItem, rec *cache.BookRecord, directHit *models.MatchResult, index *LibraryIndex) (*models.MatchResult, error) {
	if directHit != nil {
		return directHit, nil
	}

	if rec != nil && rec.EditionID != 0 {
		if ub := index.UserBookByEdition(rec.EditionID); ub != nil {
			edition := ub.FindEdition(rec.EditionID)
			if edition != nil {
				s.log.Debug("Reusing cached edition match", map[string]interface{}{
					"title":      item.Title,
					"edition_id": rec.EditionID,
				})
				return &models.MatchResult{
					UserBook: ub,
					BookID:   ub.BookID,
					Edition:  edition,
					Type:     cachedMatchType(rec.IdentifierType),
					Tier:     models.TierIdentifier,
				}, nil
			}
		}

		s.log.Warn("Cached edition no longer resolvable, re-matching", map[string]interface{}{
			"title":      item.Title,
			"edition_id": rec.EditionID,
		})
		match, err := s.matcher.FindMatch(ctx, item, index)
		if err != nil {
			return nil, err
		}
		if match == nil {
			return nil, fmt.Errorf("%w: edition %d", ErrStaleCache, rec.EditionID)
		}
		return match, nil
	}

	return s.matcher.FindMatch(ctx, item, index)
}

// cachedMatchType maps the stored identifier type back to a match type for
// reused cached bindings.
func cachedMatchType(identifierType string) models.MatchType {
	switch models.IdentifierType(identifierType) {
	case models.IdentifierASIN:
		return models.MatchTypeASIN
	case models.IdentifierISBN:
		return models.MatchTypeISBN
	default:
		return models.MatchTypeTitleAuthor
	}
}

// checkRegression applies the progress-regression policy. Returns a non-empty
// skip reason when the write must be blocked.
func (s *Service) checkRegression(item *models.LibraryItem, rec *cache.BookRecord, progress float64) string {
	if !s.cfg.Sync.PreventProgressRegression || rec == nil {
		return ""
	}
	if progress >= rec.ProgressPercent || item.IsFinished {
		return ""
	}

	rr := s.cfg.Sync.Reread
	if rec.ProgressPercent >= rr.HighProgressThreshold && progress <= rr.RereadThreshold {
		s.log.Info("Re-read detected, allowing progress reset", map[string]interface{}{
			"title":  item.Title,
			"cached": rec.ProgressPercent,
			"new":    progress,
		})
		return ""
	}

	if rec.ProgressPercent >= rr.RegressionBlockThreshold {
		s.log.Warn("Blocking progress regression", map[string]interface{}{
			"title":  item.Title,
			"cached": rec.ProgressPercent,
			"new":    progress,
		})
		return fmt.Sprintf("progress regression blocked (cached %.1f%%, new %.1f%%)", rec.ProgressPercent, progress)
	}

	if rec.ProgressPercent-progress >= rr.RegressionWarnThreshold {
		s.log.Warn("Large progress regression, applying anyway", map[string]interface{}{
			"title":  item.Title,
			"cached": rec.ProgressPercent,
			"new":    progress,
		})
	}
	return ""
}

// dispatch performs the external writes for a resolved book, then commits the
// cache. External writes are recorded on a rollback list and undone in
// reverse order if the cache commit fails.
func (s *Service) dispatch(ctx context.Context, item *models.LibraryItem, ident models.Identifier, rec *cache.BookRecord, match *models.MatchResult, changes cache.SyncChanges, progress float64, res models.BookResult) models.BookResult {
	finished := item.IsFinished || progress >= 99
	dryRun := s.cfg.Sync.DryRun

	userBook := match.UserBook
	autoAdded := false
	rollback := NewRollbackList(s.log)

	if match.IsSearchResult {
		if !s.cfg.Sync.AutoAddBooks {
			res.Outcome = models.OutcomeSkipped
			res.Reason = "book not in catalog library and auto-add is disabled"
			return res
		}
		statusID := models.StatusCurrentlyReading
		if finished {
			statusID = models.StatusRead
		}
		if dryRun {
			s.log.Info("[DRY RUN] Would add book to catalog library", map[string]interface{}{
				"title":   item.Title,
				"book_id": match.BookID,
			})
			userBook = &models.UserBook{BookID: match.BookID, StatusID: statusID, Edition: match.Edition}
		} else {
			userBookID, err := s.catalog.AddBookToLibrary(ctx, match.BookID, statusID, match.Edition.ID)
			if err != nil {
				res.Outcome = models.OutcomeError
				res.Reason = "failed to auto-add book"
				res.Err = fmt.Errorf("%w: %v", ErrExternalWrite, err)
				return res
			}
			userBook = &models.UserBook{ID: userBookID, BookID: match.BookID, StatusID: statusID, Edition: match.Edition}
			autoAdded = true
			// The catalog has no remove-from-library operation, so the add
			// cannot be undone automatically.
			rollback.Add(fmt.Sprintf("library add of %q (book %d)", item.Title, match.BookID), nil)
		}
	}
	if userBook == nil {
		res.Outcome = models.OutcomeSkipped
		res.Reason = "no catalog user book to write to"
		return res
	}

	var outcome models.BookOutcome
	var reasons []string
	if autoAdded {
		outcome = models.OutcomeAutoAdded
		reasons = append(reasons, "added to catalog library")
	}

	switch {
	case finished:
		if dryRun {
			s.log.Info("[DRY RUN] Would mark book completed", map[string]interface{}{
				"title":        item.Title,
				"user_book_id": userBook.ID,
			})
		} else {
			total, useSeconds := editionExtent(match.Edition)
			ok, err := s.catalog.MarkBookCompleted(ctx, hardcover.MarkCompletedInput{
				UserBookID: userBook.ID,
				EditionID:  match.Edition.ID,
				Total:      total,
				UseSeconds: useSeconds,
				FinishedAt: item.FinishedAt,
				StartedAt:  item.StartedAt,
			})
			if err != nil || !ok {
				if err == nil {
					err = fmt.Errorf("catalog declined completion")
				}
				res.Outcome = models.OutcomeError
				res.Reason = "failed to mark book completed"
				res.Err = fmt.Errorf("%w: %v", ErrExternalWrite, err)
				return res
			}
			rollback.Add(fmt.Sprintf("completion of %q (user book %d)", item.Title, userBook.ID), nil)
		}
		if outcome == "" {
			outcome = models.OutcomeCompleted
		}
		progress = 100

	default:
		// The cached want-to-read status forces a shelf move even when the
		// progress value itself did not change.
		if userBook.StatusID == models.StatusWantToRead || changes.StatusChanged {
			if dryRun {
				s.log.Info("[DRY RUN] Would move book to currently-reading", map[string]interface{}{
					"title":        item.Title,
					"user_book_id": userBook.ID,
				})
			} else {
				prevStatus := userBook.StatusID
				if err := s.catalog.UpdateBookStatus(ctx, userBook.ID, models.StatusCurrentlyReading); err != nil {
					res.Outcome = models.OutcomeError
					res.Reason = "failed to update book status"
					res.Err = fmt.Errorf("%w: %v", ErrExternalWrite, err)
					return res
				}
				userBookID := userBook.ID
				rollback.Add(fmt.Sprintf("status change of %q to currently-reading", item.Title), func(ctx context.Context) error {
					return s.catalog.UpdateBookStatus(ctx, userBookID, prevStatus)
				})
			}
			reasons = append(reasons, "moved to currently-reading")
		}

		if changes.ProgressChanged || changes.EditionChanged || changes.NoCache || s.cfg.Sync.ForceSync {
			if dryRun {
				s.log.Info("[DRY RUN] Would update reading progress", map[string]interface{}{
					"title":    item.Title,
					"progress": progress,
				})
			} else {
				total, useSeconds := editionExtent(match.Edition)
				current := int(float64(total) * progress / 100)
				if _, err := s.catalog.UpdateReadingProgress(ctx, hardcover.UpdateProgressInput{
					UserBookID:      userBook.ID,
					CurrentValue:    current,
					ProgressPercent: progress,
					EditionID:       match.Edition.ID,
					UseSeconds:      useSeconds,
					StartedAt:       item.StartedAt,
				}); err != nil {
					res.Outcome = models.OutcomeError
					res.Reason = "failed to update reading progress"
					res.Err = fmt.Errorf("%w: %v", ErrExternalWrite, err)
					return res
				}
				rollback.Add(fmt.Sprintf("progress write for %q", item.Title), s.undoProgressWrite(userBook.ID, match.Edition, rec))
			}
		}
		if outcome == "" {
			outcome = models.OutcomeSynced
		}
	}

	if dryRun {
		res.Outcome = outcome
		res.Reason = strings.Join(append(reasons, "dry run, nothing written"), "; ")
		res.Progress = progress
		return res
	}

	statusID := userBook.StatusID
	if finished {
		statusID = models.StatusRead
	} else if statusID == models.StatusWantToRead {
		statusID = models.StatusCurrentlyReading
	}

	if err := s.cache.StoreBookSyncData(cache.StoreParams{
		UserID:           s.cfg.User.ID,
		Identifier:       ident,
		Title:            item.Title,
		Author:           item.Author,
		EditionID:        match.Edition.ID,
		ProgressPercent:  progress,
		StatusID:         statusID,
		StartedAt:        item.StartedAt,
		FinishedAt:       item.FinishedAt,
		LastListenedAt:   item.LastActivityAt,
		SyncedExternally: true,
	}); err != nil {
		if rbErr := rollback.Execute(ctx); rbErr != nil {
			s.log.Error("Rollback after cache commit failure was incomplete", map[string]interface{}{
				"title": item.Title,
				"error": rbErr.Error(),
			})
		}
		res.Outcome = models.OutcomeError
		res.Reason = "cache commit failed, external writes rolled back"
		res.Err = fmt.Errorf("%w: %v", ErrCacheCommit, err)
		return res
	}

	res.Outcome = outcome
	res.Reason = strings.Join(reasons, "; ")
	res.Progress = progress
	return res
}

// undoProgressWrite builds the inverse of a progress write: restore the
// previously cached value. Without a prior record there is nothing reliable
// to restore, so the undo is reported for manual cleanup.
func (s *Service) undoProgressWrite(userBookID int64, edition *models.Edition, rec *cache.BookRecord) func(ctx context.Context) error {
	if rec == nil {
		return nil
	}
	prev := rec.ProgressPercent
	total, useSeconds := editionExtent(edition)
	editionID := edition.ID
	return func(ctx context.Context) error {
		_, err := s.catalog.UpdateReadingProgress(ctx, hardcover.UpdateProgressInput{
			UserBookID:      userBookID,
			CurrentValue:    int(float64(total) * prev / 100),
			ProgressPercent: prev,
			EditionID:       editionID,
			UseSeconds:      useSeconds,
		})
		return err
	}
}

// flushExpiredSessions writes out buffered session progress for sessions that
// went quiet. Each flush is a normal external write plus a cache commit.
func (s *Service) flushExpiredSessions(ctx context.Context, index *LibraryIndex, result *models.RunResult) {
	if !s.sessions.Enabled() {
		return
	}

	active, err := s.cache.ActiveSessions(s.cfg.User.ID)
	if err != nil {
		s.log.Error("Failed to list active sessions", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for _, rec := range active {
		rec := rec
		if !s.sessions.Expired(&rec) || rec.SessionPendingProgress == nil {
			continue
		}

		ub := index.UserBookByEdition(rec.EditionID)
		if ub == nil {
			s.log.Warn("Cannot flush session, cached edition not in library", map[string]interface{}{
				"title":      rec.Title,
				"edition_id": rec.EditionID,
			})
			continue
		}
		edition := ub.FindEdition(rec.EditionID)
		if edition == nil {
			continue
		}

		pending := *rec.SessionPendingProgress
		total, useSeconds := editionExtent(edition)

		if s.cfg.Sync.DryRun {
			s.log.Info("[DRY RUN] Would flush expired session", map[string]interface{}{
				"title":    rec.Title,
				"progress": pending,
			})
			continue
		}

		if _, err := s.catalog.UpdateReadingProgress(ctx, hardcover.UpdateProgressInput{
			UserBookID:      ub.ID,
			CurrentValue:    int(float64(total) * pending / 100),
			ProgressPercent: pending,
			EditionID:       edition.ID,
			UseSeconds:      useSeconds,
		}); err != nil {
			s.log.Error("Failed to flush session", map[string]interface{}{
				"title": rec.Title,
				"error": err.Error(),
			})
			result.Add(models.BookResult{
				Title:   rec.Title,
				Outcome: models.OutcomeError,
				Reason:  "session flush failed",
				Err:     fmt.Errorf("%w: %v", ErrExternalWrite, err),
			})
			continue
		}

		if err := s.cache.StoreBookSyncData(cache.StoreParams{
			UserID:           rec.UserID,
			Identifier:       models.Identifier{Type: models.IdentifierType(rec.IdentifierType), Value: rec.Identifier},
			Title:            rec.Title,
			Author:           rec.Author,
			EditionID:        rec.EditionID,
			ProgressPercent:  pending,
			StatusID:         rec.StatusID,
			SyncedExternally: true,
		}); err != nil {
			s.log.Error("Failed to commit flushed session", map[string]interface{}{
				"title": rec.Title,
				"error": err.Error(),
			})
			continue
		}

		s.log.Info("Flushed expired session", map[string]interface{}{
			"title":    rec.Title,
			"progress": pending,
		})
		result.Add(models.BookResult{
			Title:    rec.Title,
			Outcome:  models.OutcomeSynced,
			Reason:   "expired session flushed",
			Progress: pending,
		})
	}
}

// editionExtent returns the edition's total extent and whether it is measured
// in seconds (audio) or pages (text).
func editionExtent(edition *models.Edition) (int, bool) {
	if edition.IsAudio() {
		return edition.AudioSeconds, true
	}
	return edition.Pages, false
}

// GetCacheStats exposes cache statistics for the CLI.
func (s *Service) GetCacheStats() (*cache.Stats, error) {
	return s.cache.GetStats()
}

// ClearCache wipes the progress cache.
func (s *Service) ClearCache() error {
	return s.cache.Clear()
}

// ExportToJSON dumps the cache to a JSON file for diagnostics.
func (s *Service) ExportToJSON(path string) error {
	return s.cache.ExportJSON(path)
}
