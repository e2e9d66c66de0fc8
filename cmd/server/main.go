package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/HairyGair/go-barry/internal/api"
	"github.com/HairyGair/go-barry/internal/auth"
	"github.com/HairyGair/go-barry/internal/cache"
	"github.com/HairyGair/go-barry/internal/clients/here"
	"github.com/HairyGair/go-barry/internal/clients/mapquest"
	"github.com/HairyGair/go-barry/internal/clients/natlhighways"
	"github.com/HairyGair/go-barry/internal/clients/tomtom"
	"github.com/HairyGair/go-barry/internal/config"
	"github.com/HairyGair/go-barry/internal/gtfs"
	"github.com/HairyGair/go-barry/internal/lib/alerts"
	"github.com/HairyGair/go-barry/internal/lib/dedupe"
	"github.com/HairyGair/go-barry/internal/lib/routing"
	"github.com/HairyGair/go-barry/internal/services"
	"github.com/HairyGair/go-barry/internal/sources"
	"github.com/HairyGair/go-barry/internal/store"
	synchub "github.com/HairyGair/go-barry/internal/sync"
)

func main() {
	configPath := flag.String("config", "config.yml", "path to configuration file")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// transit reference data, loaded once
	index, err := gtfs.Load(cfg.GTFS.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.GTFS.Path).Msg("failed to load GTFS dataset")
	}
	logger.Info().Int("stops", index.StopCount()).Int("routes", index.RouteCount()).Msg("GTFS reference index built")

	corridors := make([]routing.Corridor, 0, len(cfg.Matching.Corridors))
	for _, c := range cfg.Matching.Corridors {
		corridors = append(corridors, routing.Corridor{
			Name:         c.Name,
			EncodedShape: c.EncodedShape,
			RadiusMeters: c.RadiusMeters,
			Routes:       c.Routes,
		})
	}
	matcher := routing.NewMatcher(index, routing.Config{
		StopRadiusMeters:  cfg.Matching.StopRadiusMeters,
		ShapeRadiusFactor: cfg.Matching.ShapeRadiusFactor,
		Corridors:         corridors,
	}, routing.DefaultDictionaries(), routing.DefaultZones())

	registry := sources.NewRegistry()
	registerSources(registry, cfg, logger)

	engine := dedupe.NewEngine(dedupe.Config{
		AggressiveLocationCollapse: cfg.Dedupe.AggressiveLocationCollapse,
		TestPatterns:               cfg.Dedupe.TestPatterns,
	}, registry.Rank)

	actionStore, err := store.Open(cfg.Store.Path)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open dismissal store")
	}
	defer actionStore.Close()

	cacheStore := cache.New(logger)
	cacheStore.StartPeriodicCleanup(ctx, 5*time.Minute)

	aggregator := services.NewAggregator(registry, engine, matcher, cacheStore, logger)
	aggregator.SetTTL(cfg.Refresh.SnapshotTTL)
	aggregator.SetFetchTimeout(cfg.Sources.Timeout)

	if cfg.Enhancer.APIKey != "" {
		enhancer := alerts.NewEnhancer(cfg.Enhancer.APIKey, cfg.Enhancer.Model)
		aggregator.SetEnhancer(alerts.NewCachedEnhancer(enhancer, cacheStore, logger))
		logger.Info().Str("model", cfg.Enhancer.Model).Msg("condensed summaries enabled")
	}

	sessions := make(map[string]auth.Identity, len(cfg.Sessions))
	for _, session := range cfg.Sessions {
		sessions[session.SessionID] = auth.Identity{
			SupervisorID: session.SupervisorID,
			Name:         session.Name,
			Role:         session.Role,
		}
	}
	validator := auth.NewStaticValidator(sessions)

	hub := synchub.NewHub(validator, actionStore, logger)
	hub.SetRetention(cfg.Store.Retention)
	go hub.Run(ctx)

	refresh := services.NewRefreshService(aggregator, cfg.Refresh.Interval, logger)
	if err := refresh.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to start periodic refresh")
	}
	defer refresh.Stop()

	maintenance := services.NewMaintenanceService(cacheStore, actionStore, logger)
	maintenance.SetRetention(cfg.Store.Retention)
	if err := maintenance.Start(ctx); err != nil {
		logger.Error().Err(err).Msg("failed to start maintenance jobs")
	}
	defer maintenance.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(aggregator, hub, logger).Router(cfg.Server.CorsOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	logger.Info().Int("port", cfg.Server.Port).Int("sources", len(registry.Names())).Msg("server starting")
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal().Err(err).Msg("server failed")
	}
	logger.Info().Msg("server stopped")
}

// registerSources wires every adapter that has credentials configured.
func registerSources(registry *sources.Registry, cfg *config.Config, logger zerolog.Logger) {
	timeout := cfg.Sources.Timeout

	if cfg.Sources.TomTom.APIKey != "" {
		registry.Register(tomtom.NewClient(cfg.Sources.TomTom.APIKey, cfg.Sources.TomTom.BoundingBox, timeout))
	}
	if cfg.Sources.HERE.APIKey != "" {
		registry.Register(here.NewClient(cfg.Sources.HERE.APIKey, cfg.Sources.HERE.Area, timeout))
	}
	if cfg.Sources.NationalHighways.APIKey != "" {
		registry.Register(natlhighways.NewClient(cfg.Sources.NationalHighways.APIKey, timeout))
	}
	if cfg.Sources.MapQuest.APIKey != "" {
		registry.Register(mapquest.NewClient(cfg.Sources.MapQuest.APIKey, cfg.Sources.MapQuest.BoundingBox, timeout))
	}

	if len(registry.Names()) == 0 {
		logger.Warn().Msg("no sources configured, alert set will be empty")
		return
	}
	logger.Info().Strs("sources", registry.Names()).Msg("sources registered")
}
