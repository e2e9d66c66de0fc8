package alerts

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_MaxAge(t *testing.T) {
	assert.Equal(t, 2*time.Hour, SeverityLow.MaxAge())
	assert.Equal(t, 4*time.Hour, SeverityMedium.MaxAge())
	assert.Equal(t, 8*time.Hour, SeverityHigh.MaxAge())

	// Unknown severities fall back to the default window
	assert.Equal(t, 4*time.Hour, Severity("Catastrophic").MaxAge())
}

func TestAlert_Timestamp(t *testing.T) {
	created := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	updated := time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)

	a := Alert{CreatedAt: created, UpdatedAt: updated}
	assert.Equal(t, updated, a.Timestamp(), "UpdatedAt preferred")

	a = Alert{CreatedAt: created}
	assert.Equal(t, created, a.Timestamp(), "falls back to CreatedAt")

	a = Alert{}
	assert.True(t, a.Timestamp().IsZero())
}

func TestAlert_Expired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		alert   Alert
		expired bool
	}{
		{
			name:    "low severity past 2h window",
			alert:   Alert{Severity: SeverityLow, UpdatedAt: now.Add(-3 * time.Hour)},
			expired: true,
		},
		{
			name:    "low severity within window",
			alert:   Alert{Severity: SeverityLow, UpdatedAt: now.Add(-1 * time.Hour)},
			expired: false,
		},
		{
			name:    "high severity survives 6h",
			alert:   Alert{Severity: SeverityHigh, UpdatedAt: now.Add(-6 * time.Hour)},
			expired: false,
		},
		{
			name:    "unknown severity uses default 4h",
			alert:   Alert{Severity: "", UpdatedAt: now.Add(-5 * time.Hour)},
			expired: true,
		},
		{
			name:    "no timestamps never age out",
			alert:   Alert{Severity: SeverityLow},
			expired: false,
		},
		{
			name: "past declared end time",
			alert: Alert{
				Severity:  SeverityHigh,
				UpdatedAt: now.Add(-10 * time.Minute),
				EndTime:   timePtr(now.Add(-1 * time.Minute)),
			},
			expired: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expired, tt.alert.Expired(now))
		})
	}
}

func TestContentHasher_StableAcrossVariations(t *testing.T) {
	hasher := NewContentHasher()

	a := Alert{
		Title:       "A1 Northbound Closed",
		Description: "Collision at 14:32, lane 1 blocked N/B near Birtley",
		Location:    "A1 J65 Birtley",
		Type:        TypeIncident,
	}
	b := Alert{
		Title:       "a1 northbound closed",
		Description: "Collision at 14:35,  lane 1 blocked n/b near Birtley",
		Location:    "A1 J65 Birtley",
		Type:        TypeIncident,
	}

	assert.Equal(t, hasher.HashAlert(a), hasher.HashAlert(b),
		"time and case variations should not change the hash")

	c := b
	c.Location = "A19 Silverlink"
	assert.NotEqual(t, hasher.HashAlert(b), hasher.HashAlert(c),
		"different location should change the hash")
}

type fakeEnhancer struct {
	calls   int
	summary string
	err     error
}

func (f *fakeEnhancer) Enhance(_ context.Context, _ Alert) (string, error) {
	f.calls++
	return f.summary, f.err
}

func (f *fakeEnhancer) HealthCheck(_ context.Context) error { return f.err }

type fakeSummaryCache struct {
	entries map[string]string
}

func (f *fakeSummaryCache) GetSummary(hash string) (string, bool) {
	s, ok := f.entries[hash]
	return s, ok
}

func (f *fakeSummaryCache) SetSummary(hash, summary string, _ time.Duration) {
	f.entries[hash] = summary
}

func TestCachedEnhancer_SingleCallPerContent(t *testing.T) {
	inner := &fakeEnhancer{summary: "A1 northbound blocked at J65, expect delays"}
	cache := &fakeSummaryCache{entries: map[string]string{}}
	enhancer := NewCachedEnhancer(inner, cache, zerolog.Nop())

	alert := Alert{
		Title:       "A1 Closure",
		Description: "Northbound closed at J65",
		Location:    "A1 J65 Birtley",
		Type:        TypeIncident,
	}

	summary, err := enhancer.Enhance(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, inner.summary, summary)
	assert.Equal(t, 1, inner.calls)

	// Second call for identical content is served from cache
	summary, err = enhancer.Enhance(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, inner.summary, summary)
	assert.Equal(t, 1, inner.calls, "second enhancement should hit the cache")

	assert.True(t, enhancer.IsCached(alert))
}

func TestCachedEnhancer_ErrorNotCached(t *testing.T) {
	inner := &fakeEnhancer{err: errors.New("rate limited")}
	cache := &fakeSummaryCache{entries: map[string]string{}}
	enhancer := NewCachedEnhancer(inner, cache, zerolog.Nop())

	_, err := enhancer.Enhance(context.Background(), Alert{Title: "x"})
	require.Error(t, err)
	assert.False(t, enhancer.IsCached(Alert{Title: "x"}))
}

func TestTruncateSummary_RuneBoundary(t *testing.T) {
	assert.Equal(t, "short", truncateSummary("short", 150))

	long := strings.Repeat("a", 160)
	cut := truncateSummary(long, 150)
	assert.Len(t, cut, 150)
	assert.True(t, strings.HasSuffix(cut, "..."))

	// A multi-byte rune straddling the cut must be dropped whole
	accented := strings.Repeat("a", 145) + "né" + strings.Repeat("x", 4)
	cut = truncateSummary(accented, 150)
	assert.True(t, utf8.ValidString(cut))
	assert.Equal(t, strings.Repeat("a", 145)+"n...", cut)
}

func timePtr(t time.Time) *time.Time { return &t }
