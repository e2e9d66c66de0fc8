package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const defaultEscalateAfter = 3

// RefreshService keeps the alert snapshot warm by calling the aggregator on
// a fixed interval, so client requests rarely pay the fan-out cost. It also
// watches for cycles where every source failed and escalates after a run of
// them.
type RefreshService struct {
	aggregator    *Aggregator
	interval      time.Duration
	escalateAfter int
	logger        zerolog.Logger

	mu           sync.Mutex
	running      bool
	stopChan     chan struct{}
	failedCycles int
}

// NewRefreshService creates a periodic refresh service
func NewRefreshService(aggregator *Aggregator, interval time.Duration, logger zerolog.Logger) *RefreshService {
	return &RefreshService{
		aggregator:    aggregator,
		interval:      interval,
		escalateAfter: defaultEscalateAfter,
		logger:        logger.With().Str("component", "refresh").Logger(),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the background refresh loop. Calling Start on a running
// service is a no-op.
func (r *RefreshService) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return nil
	}
	r.running = true

	r.logger.Info().Dur("interval", r.interval).Msg("starting periodic refresh")
	go r.refreshLoop(ctx)
	return nil
}

// Stop gracefully stops the refresh loop
func (r *RefreshService) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.running = false
	close(r.stopChan)
	r.logger.Info().Msg("stopped periodic refresh")
}

// IsRunning reports whether the refresh loop is active
func (r *RefreshService) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

func (r *RefreshService) refreshLoop(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.refreshOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("refresh loop stopping, context cancelled")
			return
		case <-r.stopChan:
			return
		case <-ticker.C:
			r.refreshOnce(ctx)
		}
	}
}

func (r *RefreshService) refreshOnce(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	snapshot, err := r.aggregator.FetchAll(refreshCtx)
	if err != nil {
		r.logger.Error().Err(err).Msg("periodic refresh failed")
		return
	}

	if allSourcesFailed(snapshot) {
		r.failedCycles++
		if r.failedCycles >= r.escalateAfter {
			refreshEscalations.Inc()
			r.logger.Error().
				Int("consecutiveCycles", r.failedCycles).
				Msg("every source failing for consecutive refresh cycles")
		}
		return
	}
	r.failedCycles = 0
}

func allSourcesFailed(snapshot Snapshot) bool {
	if len(snapshot.Sources) == 0 {
		return false
	}
	for _, status := range snapshot.Sources {
		if status.Success {
			return false
		}
	}
	return true
}
