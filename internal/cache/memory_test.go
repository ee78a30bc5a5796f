package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rohit-purandare/shelfbridge/internal/logger"
)

func TestMemoryCacheBasicOperations(t *testing.T) {
	c := NewMemoryCache[string, int](logger.Get())

	_, found := c.Get("missing")
	assert.False(t, found)

	c.Set("a", 1, 0)
	v, found := c.Get("a")
	assert.True(t, found)
	assert.Equal(t, 1, v)

	c.Delete("a")
	_, found = c.Get("a")
	assert.False(t, found)

	c.Set("b", 2, 0)
	c.Set("c", 3, 0)
	c.Clear()
	_, found = c.Get("b")
	assert.False(t, found)
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache[string, string](logger.Get())

	c.Set("short", "value", time.Millisecond)
	time.Sleep(5 * time.Millisecond)
	_, found := c.Get("short")
	assert.False(t, found)

	// Zero TTL never expires.
	c.Set("forever", "value", 0)
	_, found = c.Get("forever")
	assert.True(t, found)
}

func TestWithTTLAppliesDefault(t *testing.T) {
	inner := NewMemoryCache[string, int](logger.Get())
	c := WithTTL(inner, time.Millisecond)

	// The wrapper overrides the per-call TTL.
	c.Set("k", 1, time.Hour)
	time.Sleep(5 * time.Millisecond)
	_, found := c.Get("k")
	assert.False(t, found)
}
