package recommend

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type testClock struct{ t time.Time }

func (c *testClock) now() time.Time          { return c.t }
func (c *testClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestCacheKey(t *testing.T) {
	assert.Equal(t, "recommendations_student_1_{}", cacheKey("student_1", Options{}))
	assert.Equal(t,
		`recommendations_student_1_{"limit":5,"algorithm":"hybrid","category":"cursos"}`,
		cacheKey("student_1", Options{Limit: 5, Algorithm: AlgorithmHybrid, Category: CategoryCourses}),
	)
}

func TestResultCache_ttl(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newResultCache(10, 15*time.Minute, clock.now)

	c.Set("k", Result{UserID: "student_1"})
	stored := clock.t

	clock.advance(15 * time.Minute)
	entry, ok := c.Get("k")
	if assert.True(t, ok, "entry at exactly the TTL is still fresh") {
		assert.Equal(t, "student_1", entry.Data.UserID)
		assert.Equal(t, stored, entry.Timestamp)
	}

	clock.advance(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len(), "stale entry is deleted on read")

	st := c.Stats()
	assert.Equal(t, int64(1), st.Hits)
	assert.Equal(t, int64(1), st.Misses)
	assert.Equal(t, 0.5, st.HitRate)
}

func TestResultCache_overwrite(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newResultCache(10, 15*time.Minute, clock.now)

	c.Set("k", Result{UserID: "old"})
	clock.advance(10 * time.Minute)
	c.Set("k", Result{UserID: "new"})
	clock.advance(10 * time.Minute)

	entry, ok := c.Get("k")
	if assert.True(t, ok) {
		assert.Equal(t, "new", entry.Data.UserID)
	}
	assert.Equal(t, 1, c.Len())
}

func TestResultCache_lru(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newResultCache(2, time.Hour, clock.now)

	c.Set("a", Result{})
	c.Set("b", Result{})
	_, _ = c.Get("a") // b is now the least recently used
	c.Set("c", Result{})

	_, ok := c.Get("b")
	assert.False(t, ok)
	_, ok = c.Get("a")
	assert.True(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestResultCache_PurgeExpired(t *testing.T) {
	clock := &testClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	c := newResultCache(10, 15*time.Minute, clock.now)

	c.Set("a", Result{})
	c.Set("b", Result{})
	clock.advance(10 * time.Minute)
	c.Set("c", Result{})
	clock.advance(6 * time.Minute)

	assert.Equal(t, 2, c.PurgeExpired())
	assert.Equal(t, 1, c.Len())
	_, ok := c.Get("c")
	assert.True(t, ok)

	c.Clear()
	assert.Equal(t, 0, c.Len())
}
