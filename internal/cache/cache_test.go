package cache

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetAndGet(t *testing.T) {
	c := New(zerolog.Nop())

	type payload struct {
		Name  string `json:"name"`
		Count int    `json:"count"`
	}

	err := c.Set("alerts", payload{Name: "tomtom", Count: 3}, time.Minute, "tomtom")
	require.NoError(t, err)

	var got payload
	found, err := c.Get("alerts", &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "tomtom", got.Name)
	assert.Equal(t, 3, got.Count)

	found, err = c.Get("missing", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCache_Staleness(t *testing.T) {
	c := New(zerolog.Nop())

	require.NoError(t, c.Set("short", "data", 10*time.Millisecond, "test"))
	assert.False(t, c.IsStale("short"))
	assert.False(t, c.IsVeryStale("short"))

	time.Sleep(15 * time.Millisecond)
	assert.True(t, c.IsStale("short"), "entry past TTL is stale")
	assert.False(t, c.IsVeryStale("short"), "entry under 2x TTL is not very stale")

	time.Sleep(10 * time.Millisecond)
	assert.True(t, c.IsVeryStale("short"), "entry past 2x TTL is very stale")

	// Stale entries are not returned by Get
	var got string
	found, err := c.Get("short", &got)
	require.NoError(t, err)
	assert.False(t, found)

	// But GetWithMetadata still returns them
	entry, exists, err := c.GetWithMetadata("short", &got)
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "data", got)
	assert.Equal(t, "test", entry.Source)
}

func TestCache_MissingKeyIsStale(t *testing.T) {
	c := New(zerolog.Nop())
	assert.True(t, c.IsStale("nope"))
	assert.True(t, c.IsVeryStale("nope"))
}

func TestCache_CleanupStale(t *testing.T) {
	c := New(zerolog.Nop())

	require.NoError(t, c.Set("old", 1, time.Nanosecond, "test"))
	require.NoError(t, c.Set("fresh", 2, time.Hour, "test"))
	time.Sleep(time.Millisecond)

	removed := c.CleanupStale()
	assert.Equal(t, 1, removed)
	assert.Equal(t, []string{"fresh"}, c.Keys())
}

func TestCache_Stats(t *testing.T) {
	c := New(zerolog.Nop())

	require.NoError(t, c.Set("a", 1, time.Hour, "test"))
	require.NoError(t, c.Set("b", 2, time.Nanosecond, "test"))
	time.Sleep(time.Millisecond)

	stats := c.Stats()
	assert.Equal(t, 2, stats.TotalEntries)
	assert.Equal(t, 1, stats.FreshEntries)
	assert.Equal(t, 1, stats.StaleEntries)
	assert.False(t, stats.OldestEntry.IsZero())
}

func TestCache_SummaryRoundTrip(t *testing.T) {
	c := New(zerolog.Nop())

	_, found := c.GetSummary("abc123")
	assert.False(t, found)

	c.SetSummary("abc123", "A1 northbound blocked at J65", time.Hour)

	summary, found := c.GetSummary("abc123")
	assert.True(t, found)
	assert.Equal(t, "A1 northbound blocked at J65", summary)
}
