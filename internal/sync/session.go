package sync

import (
	"math"
	"time"

	"github.com/rohit-purandare/shelfbridge/internal/cache"
	"github.com/rohit-purandare/shelfbridge/internal/config"
	"github.com/rohit-purandare/shelfbridge/internal/logger"
)

// SessionDecision says what to do with one observed progress value: write it
// through to the catalog now, or buffer it locally as part of an active
// listening session.
type SessionDecision struct {
	Buffer bool
	Reason string
}

// SessionManager implements delayed updates: rapid progress changes during an
// active listening session are buffered in the cache and flushed as a single
// catalog write once the session goes quiet, capping API traffic without
// losing the final position.
//
// When delayed updates are disabled every observation is written immediately,
// which is the default and the safe behavior.
type SessionManager struct {
	cfg config.DelayedUpdatesConfig
	log *logger.Logger
	now func() time.Time
}

// NewSessionManager creates a SessionManager with the given policy.
func NewSessionManager(cfg config.DelayedUpdatesConfig, log *logger.Logger) *SessionManager {
	if log == nil {
		log = logger.Get()
	}
	return &SessionManager{cfg: cfg, log: log, now: time.Now}
}

// Enabled reports whether delayed updates are active at all.
func (s *SessionManager) Enabled() bool {
	return s.cfg.Enabled
}

// Decide classifies one observation. rec may be nil (first sight of the
// book), which always writes immediately since there is no session to extend.
func (s *SessionManager) Decide(rec *cache.BookRecord, newProgress float64, finished bool) SessionDecision {
	if !s.cfg.Enabled {
		return SessionDecision{Buffer: false, Reason: "delayed updates disabled"}
	}
	if rec == nil {
		return SessionDecision{Buffer: false, Reason: "no prior record"}
	}
	if finished && s.cfg.ImmediateCompletion {
		return SessionDecision{Buffer: false, Reason: "completion is always immediate"}
	}

	// Buffering is for the steady trickle of small deltas during a listening
	// session; a large jump is written through immediately.
	if s.cfg.DeltaThreshold > 0 && math.Abs(newProgress-rec.ProgressPercent) >= s.cfg.DeltaThreshold {
		s.log.Debug("Large progress change, writing immediately", map[string]interface{}{
			"cached": rec.ProgressPercent,
			"new":    newProgress,
		})
		return SessionDecision{Buffer: false, Reason: "large progress change"}
	}

	// A session may only hold a catalog write back for so long, even while
	// progress keeps changing.
	if rec.LastHardcoverSync != nil {
		if s.now().Sub(*rec.LastHardcoverSync) >= s.cfg.MaxDelay {
			return SessionDecision{Buffer: false, Reason: "max delay reached"}
		}
	}

	s.log.Debug("Buffering progress observation", map[string]interface{}{
		"cached": rec.ProgressPercent,
		"new":    newProgress,
	})
	return SessionDecision{Buffer: true, Reason: "active session"}
}

// Expired reports whether the record's session has been quiet long enough to
// flush: its buffered progress should now be written to the catalog.
func (s *SessionManager) Expired(rec *cache.BookRecord) bool {
	if rec == nil || !rec.SessionIsActive || rec.SessionLastChange == nil {
		return false
	}
	return s.now().Sub(*rec.SessionLastChange) >= s.cfg.SessionTimeout
}

// ExpiredSessions filters the active sessions down to the ones due a flush.
func (s *SessionManager) ExpiredSessions(records []cache.BookRecord) []cache.BookRecord {
	var expired []cache.BookRecord
	for _, rec := range records {
		rec := rec
		if s.Expired(&rec) {
			expired = append(expired, rec)
		}
	}
	return expired
}
