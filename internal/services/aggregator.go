package services

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/HairyGair/go-barry/internal/cache"
	"github.com/HairyGair/go-barry/internal/lib/alerts"
	"github.com/HairyGair/go-barry/internal/lib/dedupe"
	"github.com/HairyGair/go-barry/internal/lib/routing"
	"github.com/HairyGair/go-barry/internal/sources"
)

const (
	snapshotCacheKey    = "alerts:current"
	defaultSnapshotTTL  = 30 * time.Second
	defaultFetchTimeout = 15 * time.Second
)

// SourceStatus records the outcome of a single source fetch within a
// refresh cycle.
type SourceStatus struct {
	Name        string `json:"name"`
	Success     bool   `json:"success"`
	Count       int    `json:"count"`
	Error       string `json:"error,omitempty"`
	DurationMS  int64  `json:"durationMs"`
	Reliability int    `json:"reliability"`
}

// Snapshot is the reconciled view of all sources at a point in time.
type Snapshot struct {
	Alerts      []alerts.Alert `json:"alerts"`
	Sources     []SourceStatus `json:"sources"`
	LastUpdated time.Time      `json:"lastUpdated"`
	Degraded    bool           `json:"degraded"`
}

// Aggregator fans out to every registered source, reconciles the merged
// batch, attaches affected routes, and serves the result from a short-TTL
// cache. Concurrent callers during a refresh share one fetch.
type Aggregator struct {
	registry     *sources.Registry
	engine       *dedupe.Engine
	matcher      *routing.Matcher
	enhancer     alerts.Enhancer
	store        *cache.Cache
	ttl          time.Duration
	fetchTimeout time.Duration
	logger       zerolog.Logger
	group        singleflight.Group
}

// NewAggregator creates an aggregator over the registered sources
func NewAggregator(registry *sources.Registry, engine *dedupe.Engine, matcher *routing.Matcher, store *cache.Cache, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		registry:     registry,
		engine:       engine,
		matcher:      matcher,
		store:        store,
		ttl:          defaultSnapshotTTL,
		fetchTimeout: defaultFetchTimeout,
		logger:       logger.With().Str("component", "aggregator").Logger(),
	}
}

// SetTTL overrides how long a reconciled snapshot is served before the next
// refresh.
func (a *Aggregator) SetTTL(ttl time.Duration) {
	a.ttl = ttl
}

// SetFetchTimeout overrides the per-source fetch deadline.
func (a *Aggregator) SetFetchTimeout(timeout time.Duration) {
	a.fetchTimeout = timeout
}

// SetEnhancer enables condensed display summaries on reconciled alerts.
func (a *Aggregator) SetEnhancer(enhancer alerts.Enhancer) {
	a.enhancer = enhancer
}

// FetchAll returns the current snapshot, refreshing from the sources when
// the cached one has expired. A refresh where every source fails still
// yields a valid snapshot, falling back to recent stale data when there is
// any to serve.
func (a *Aggregator) FetchAll(ctx context.Context) (Snapshot, error) {
	var cached Snapshot
	found, err := a.store.Get(snapshotCacheKey, &cached)
	if err != nil {
		a.logger.Warn().Err(err).Msg("snapshot cache read failed")
	}
	if found {
		return cached, nil
	}

	v, err, _ := a.group.Do(snapshotCacheKey, func() (interface{}, error) {
		return a.refresh(ctx), nil
	})
	if err != nil {
		return Snapshot{Alerts: []alerts.Alert{}, Degraded: true}, err
	}
	return v.(Snapshot), nil
}

func (a *Aggregator) refresh(ctx context.Context) Snapshot {
	srcs := a.registry.All()
	results := make([]sources.Result, len(srcs))

	var wg sync.WaitGroup
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			results[i] = a.fetchOne(ctx, src)
		}(i, src)
	}
	wg.Wait()

	var merged []alerts.Alert
	statuses := make([]SourceStatus, 0, len(results))
	failures := 0
	for _, res := range results {
		status := SourceStatus{
			Name:        res.Source,
			Success:     res.Success,
			Count:       len(res.Alerts),
			DurationMS:  res.Duration.Milliseconds(),
			Reliability: res.Reliability,
		}
		if res.Err != nil {
			status.Error = res.Err.Error()
			failures++
		}
		statuses = append(statuses, status)
		merged = append(merged, res.Alerts...)
		observeFetch(res)
	}

	if failures == len(results) && len(results) > 0 {
		return a.degradedSnapshot(statuses)
	}

	reconciled := a.engine.Reconcile(merged)
	for i := range reconciled {
		a.decorate(ctx, &reconciled[i])
	}
	alertsCurrent.Set(float64(len(reconciled)))

	snapshot := Snapshot{
		Alerts:      reconciled,
		Sources:     statuses,
		LastUpdated: time.Now().UTC(),
		Degraded:    failures > 0,
	}

	if err := a.store.Set(snapshotCacheKey, snapshot, a.ttl, "aggregator"); err != nil {
		a.logger.Warn().Err(err).Msg("failed to cache snapshot")
	}

	a.logger.Info().
		Int("alerts", len(reconciled)).
		Int("sources", len(results)).
		Int("failures", failures).
		Msg("snapshot refreshed")

	return snapshot
}

// degradedSnapshot handles the every-source-failed cycle: recent stale data
// keeps being served, otherwise the result is empty but still valid.
func (a *Aggregator) degradedSnapshot(statuses []SourceStatus) Snapshot {
	var stale Snapshot
	_, exists, err := a.store.GetWithMetadata(snapshotCacheKey, &stale)
	if err == nil && exists && !a.store.IsVeryStale(snapshotCacheKey) {
		a.logger.Error().Int("sources", len(statuses)).Msg("all sources failed, serving stale snapshot")
		stale.Degraded = true
		stale.Sources = statuses
		return stale
	}

	a.logger.Error().Int("sources", len(statuses)).Msg("all sources failed, no usable cached snapshot")
	return Snapshot{
		Alerts:      []alerts.Alert{},
		Sources:     statuses,
		LastUpdated: time.Now().UTC(),
		Degraded:    true,
	}
}

// fetchOne bounds a single source with the fetch timeout and keeps panics
// from crossing the source boundary.
func (a *Aggregator) fetchOne(ctx context.Context, src sources.Source) (res sources.Result) {
	res = sources.Result{Source: src.Name(), Reliability: src.Reliability()}

	fetchCtx, cancel := context.WithTimeout(ctx, a.fetchTimeout)
	defer cancel()

	start := time.Now()
	defer func() {
		res.Duration = time.Since(start)
		if r := recover(); r != nil {
			res.Success = false
			res.Alerts = nil
			res.Err = fmt.Errorf("source panicked: %v", r)
			a.logger.Error().Str("source", res.Source).Interface("panic", r).Msg("source fetch panicked")
		}
	}()

	fetched, err := src.Fetch(fetchCtx)
	if err != nil {
		res.Err = err
		a.logger.Warn().Err(err).Str("source", res.Source).Msg("source fetch failed")
		return res
	}

	res.Success = true
	res.Alerts = fetched
	return res
}

func (a *Aggregator) decorate(ctx context.Context, alert *alerts.Alert) {
	if a.matcher != nil {
		text := strings.Join([]string{alert.Title, alert.Description, alert.Location}, " ")
		alert.AffectedRoutes = a.matcher.Match(alert.Coordinates, text)
	}

	if a.enhancer != nil && alert.CondensedSummary == "" {
		summary, err := a.enhancer.Enhance(ctx, *alert)
		if err != nil {
			a.logger.Debug().Err(err).Str("alert", alert.ID).Msg("summary enhancement failed")
			return
		}
		alert.CondensedSummary = summary
	}
}
