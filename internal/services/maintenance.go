package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/HairyGair/go-barry/internal/cache"
)

const defaultDismissalRetention = 48 * time.Hour

// DismissalPruner removes persisted supervisor actions older than a cutoff.
type DismissalPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// MaintenanceService runs scheduled housekeeping: stale cache eviction and
// dismissal retention pruning.
type MaintenanceService struct {
	cron       *cron.Cron
	store      *cache.Cache
	dismissals DismissalPruner
	retention  time.Duration
	logger     zerolog.Logger
}

// NewMaintenanceService creates the hourly maintenance job runner
func NewMaintenanceService(store *cache.Cache, dismissals DismissalPruner, logger zerolog.Logger) *MaintenanceService {
	return &MaintenanceService{
		cron:       cron.New(),
		store:      store,
		dismissals: dismissals,
		retention:  defaultDismissalRetention,
		logger:     logger.With().Str("component", "maintenance").Logger(),
	}
}

// SetRetention overrides the action retention window
func (m *MaintenanceService) SetRetention(d time.Duration) {
	if d > 0 {
		m.retention = d
	}
}

// Start schedules the maintenance jobs and begins the cron scheduler
func (m *MaintenanceService) Start(ctx context.Context) error {
	if _, err := m.cron.AddFunc("@hourly", func() { m.runOnce(ctx) }); err != nil {
		return err
	}
	m.cron.Start()
	m.logger.Info().Dur("retention", m.retention).Msg("maintenance jobs scheduled")
	return nil
}

// Stop halts the scheduler and waits for any running job to finish
func (m *MaintenanceService) Stop() {
	stopCtx := m.cron.Stop()
	<-stopCtx.Done()
}

func (m *MaintenanceService) runOnce(ctx context.Context) {
	evicted := m.store.CleanupStale()
	if evicted > 0 {
		m.logger.Info().Int("entries", evicted).Msg("evicted stale cache entries")
	}

	if m.dismissals == nil {
		return
	}

	cutoff := time.Now().Add(-m.retention)
	pruned, err := m.dismissals.PruneBefore(ctx, cutoff)
	if err != nil {
		m.logger.Error().Err(err).Msg("dismissal pruning failed")
		return
	}
	if pruned > 0 {
		m.logger.Info().Int("dismissals", pruned).Time("cutoff", cutoff).Msg("pruned expired dismissals")
	}
}
