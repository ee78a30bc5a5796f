package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rohit-purandare/shelfbridge/internal/cache"
	"github.com/rohit-purandare/shelfbridge/internal/config"
	"github.com/rohit-purandare/shelfbridge/internal/logger"
)

func sessionConfig(enabled bool) config.DelayedUpdatesConfig {
	return config.DelayedUpdatesConfig{
		Enabled:             enabled,
		SessionTimeout:      15 * time.Minute,
		MaxDelay:            time.Hour,
		DeltaThreshold:      10,
		ImmediateCompletion: true,
	}
}

func TestDecideDisabledAlwaysImmediate(t *testing.T) {
	sm := NewSessionManager(sessionConfig(false), logger.Get())

	rec := &cache.BookRecord{ProgressPercent: 10}
	decision := sm.Decide(rec, 10.5, false)
	assert.False(t, decision.Buffer)
}

func TestDecideNoPriorRecordImmediate(t *testing.T) {
	sm := NewSessionManager(sessionConfig(true), logger.Get())

	decision := sm.Decide(nil, 5, false)
	assert.False(t, decision.Buffer)
}

func TestDecideCompletionImmediate(t *testing.T) {
	sm := NewSessionManager(sessionConfig(true), logger.Get())

	rec := &cache.BookRecord{ProgressPercent: 80}
	decision := sm.Decide(rec, 100, true)
	assert.False(t, decision.Buffer)
	assert.Equal(t, "completion is always immediate", decision.Reason)
}

func TestDecideBuffersActiveSession(t *testing.T) {
	sm := NewSessionManager(sessionConfig(true), logger.Get())
	now := time.Now()
	sm.now = func() time.Time { return now }

	lastSync := now.Add(-10 * time.Minute)
	rec := &cache.BookRecord{ProgressPercent: 40, LastHardcoverSync: &lastSync}

	decision := sm.Decide(rec, 42, false)
	assert.True(t, decision.Buffer)
}

func TestDecideLargeDeltaFlushesImmediately(t *testing.T) {
	sm := NewSessionManager(sessionConfig(true), logger.Get())
	now := time.Now()
	sm.now = func() time.Time { return now }

	lastSync := now.Add(-5 * time.Minute)
	rec := &cache.BookRecord{ProgressPercent: 10, LastHardcoverSync: &lastSync}

	// A jump from 10% to 95% must not sit in a session buffer.
	decision := sm.Decide(rec, 95, false)
	assert.False(t, decision.Buffer)
	assert.Equal(t, "large progress change", decision.Reason)

	// Just below the threshold still buffers.
	decision = sm.Decide(rec, 19, false)
	assert.True(t, decision.Buffer)
}

func TestDecideZeroDeltaThresholdDisablesCheck(t *testing.T) {
	cfg := sessionConfig(true)
	cfg.DeltaThreshold = 0
	sm := NewSessionManager(cfg, logger.Get())
	now := time.Now()
	sm.now = func() time.Time { return now }

	lastSync := now.Add(-5 * time.Minute)
	rec := &cache.BookRecord{ProgressPercent: 10, LastHardcoverSync: &lastSync}

	decision := sm.Decide(rec, 95, false)
	assert.True(t, decision.Buffer)
}

func TestDecideMaxDelayForcesWrite(t *testing.T) {
	sm := NewSessionManager(sessionConfig(true), logger.Get())
	now := time.Now()
	sm.now = func() time.Time { return now }

	lastSync := now.Add(-2 * time.Hour)
	rec := &cache.BookRecord{ProgressPercent: 40, LastHardcoverSync: &lastSync}

	decision := sm.Decide(rec, 42, false)
	assert.False(t, decision.Buffer)
	assert.Equal(t, "max delay reached", decision.Reason)
}

func TestExpired(t *testing.T) {
	sm := NewSessionManager(sessionConfig(true), logger.Get())
	now := time.Now()
	sm.now = func() time.Time { return now }

	recent := now.Add(-5 * time.Minute)
	stale := now.Add(-30 * time.Minute)
	pending := 42.0

	tests := []struct {
		name     string
		rec      *cache.BookRecord
		expected bool
	}{
		{"nil record", nil, false},
		{"no active session", &cache.BookRecord{}, false},
		{"recent change", &cache.BookRecord{SessionIsActive: true, SessionLastChange: &recent, SessionPendingProgress: &pending}, false},
		{"quiet past timeout", &cache.BookRecord{SessionIsActive: true, SessionLastChange: &stale, SessionPendingProgress: &pending}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sm.Expired(tt.rec))
		})
	}
}

func TestExpiredSessionsFilter(t *testing.T) {
	sm := NewSessionManager(sessionConfig(true), logger.Get())
	now := time.Now()
	sm.now = func() time.Time { return now }

	recent := now.Add(-time.Minute)
	stale := now.Add(-time.Hour)

	records := []cache.BookRecord{
		{Title: "fresh", SessionIsActive: true, SessionLastChange: &recent},
		{Title: "due", SessionIsActive: true, SessionLastChange: &stale},
		{Title: "idle", SessionIsActive: false},
	}

	expired := sm.ExpiredSessions(records)
	assert.Len(t, expired, 1)
	assert.Equal(t, "due", expired[0].Title)
}
