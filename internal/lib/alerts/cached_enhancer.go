package alerts

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// summaryTTL keeps repeat incidents from re-calling the API
const summaryTTL = 24 * time.Hour

// SummaryCache stores condensed summaries keyed by content hash
type SummaryCache interface {
	GetSummary(contentHash string) (string, bool)
	SetSummary(contentHash, summary string, ttl time.Duration)
}

// CachedEnhancer wraps an Enhancer with content-based caching so the
// same incident text never triggers a second API call
type CachedEnhancer struct {
	enhancer Enhancer
	cache    SummaryCache
	hasher   *ContentHasher
	logger   zerolog.Logger
}

// NewCachedEnhancer creates an enhancer with content-based caching
func NewCachedEnhancer(enhancer Enhancer, cache SummaryCache, logger zerolog.Logger) *CachedEnhancer {
	return &CachedEnhancer{
		enhancer: enhancer,
		cache:    cache,
		hasher:   NewContentHasher(),
		logger:   logger,
	}
}

// Enhance returns a cached summary when the alert content was seen
// before, otherwise calls the underlying enhancer and caches the result
func (c *CachedEnhancer) Enhance(ctx context.Context, alert Alert) (string, error) {
	contentHash := c.hasher.HashAlert(alert)

	if summary, found := c.cache.GetSummary(contentHash); found {
		c.logger.Debug().Str("hash", contentHash[:8]).Msg("summary cache hit")
		return summary, nil
	}

	summary, err := c.enhancer.Enhance(ctx, alert)
	if err != nil {
		c.logger.Warn().Err(err).Str("hash", contentHash[:8]).Msg("summary enhancement failed")
		return "", err
	}

	c.cache.SetSummary(contentHash, summary, summaryTTL)
	return summary, nil
}

// HealthCheck delegates to the underlying enhancer
func (c *CachedEnhancer) HealthCheck(ctx context.Context) error {
	return c.enhancer.HealthCheck(ctx)
}

// IsCached reports whether the alert would be served from cache
func (c *CachedEnhancer) IsCached(alert Alert) bool {
	_, found := c.cache.GetSummary(c.hasher.HashAlert(alert))
	return found
}
