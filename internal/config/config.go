package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "BARRY_"

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server" validate:"required"`
	Sources  SourcesConfig  `koanf:"sources"`
	GTFS     GTFSConfig     `koanf:"gtfs" validate:"required"`
	Matching MatchingConfig `koanf:"matching"`
	Dedupe   DedupeConfig   `koanf:"dedupe"`
	Refresh  RefreshConfig  `koanf:"refresh"`
	Enhancer EnhancerConfig `koanf:"enhancer"`
	Store    StoreConfig    `koanf:"store"`
	Sessions []Session      `koanf:"sessions" validate:"dive"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port        int      `koanf:"port" validate:"gt=0,lte=65535"`
	CorsOrigins []string `koanf:"cors_origins"`
}

// SourcesConfig enables and keys the provider adapters. A source with an
// empty API key stays unregistered.
type SourcesConfig struct {
	TomTom           TomTomConfig           `koanf:"tomtom"`
	HERE             HEREConfig             `koanf:"here"`
	NationalHighways NationalHighwaysConfig `koanf:"national_highways"`
	MapQuest         MapQuestConfig         `koanf:"mapquest"`
	Timeout          time.Duration          `koanf:"timeout"`
}

type TomTomConfig struct {
	APIKey string `koanf:"api_key"`
	// BoundingBox is "minLon,minLat,maxLon,maxLat"
	BoundingBox string `koanf:"bounding_box"`
}

type HEREConfig struct {
	APIKey string `koanf:"api_key"`
	// Area is a HERE location filter, e.g. "circle:54.97,-1.61;r=25000"
	Area string `koanf:"area"`
}

type NationalHighwaysConfig struct {
	APIKey string `koanf:"api_key"`
}

type MapQuestConfig struct {
	APIKey string `koanf:"api_key"`
	// BoundingBox is "lat1,lng1,lat2,lng2"
	BoundingBox string `koanf:"bounding_box"`
}

// GTFSConfig points at the static schedule dataset.
type GTFSConfig struct {
	Path string `koanf:"path" validate:"required"`
}

// MatchingConfig tunes the route matcher.
type MatchingConfig struct {
	StopRadiusMeters  float64          `koanf:"stop_radius_meters" validate:"gte=0"`
	ShapeRadiusFactor float64          `koanf:"shape_radius_factor" validate:"gte=0"`
	Corridors         []CorridorConfig `koanf:"corridors" validate:"dive"`
}

// CorridorConfig is a named road geometry in Google encoded-polyline
// form, matched by proximity for roads the stop network runs alongside.
type CorridorConfig struct {
	Name         string   `koanf:"name" validate:"required"`
	EncodedShape string   `koanf:"encoded_shape" validate:"required"`
	RadiusMeters float64  `koanf:"radius_meters" validate:"gte=0"`
	Routes       []string `koanf:"routes" validate:"min=1"`
}

// DedupeConfig tunes the deduplication engine.
type DedupeConfig struct {
	AggressiveLocationCollapse bool     `koanf:"aggressive_location_collapse"`
	TestPatterns               []string `koanf:"test_patterns"`
}

// RefreshConfig tunes aggregation cadence and caching.
type RefreshConfig struct {
	Interval    time.Duration `koanf:"interval" validate:"gt=0"`
	SnapshotTTL time.Duration `koanf:"snapshot_ttl" validate:"gt=0"`
}

// EnhancerConfig enables OpenAI condensed summaries.
type EnhancerConfig struct {
	APIKey string `koanf:"api_key"`
	Model  string `koanf:"model"`
}

// StoreConfig locates the dismissal store and sets how long recorded
// supervisor actions stay visible.
type StoreConfig struct {
	Path      string        `koanf:"path"`
	Retention time.Duration `koanf:"retention" validate:"gt=0"`
}

// Session is a pre-issued supervisor session.
type Session struct {
	SessionID    string `koanf:"session_id" validate:"required"`
	SupervisorID string `koanf:"supervisor_id" validate:"required"`
	Name         string `koanf:"name" validate:"required"`
	Role         string `koanf:"role"`
}

func defaults() map[string]interface{} {
	return map[string]interface{}{
		"server.port":                  3001,
		"sources.timeout":              "15s",
		"matching.stop_radius_meters":  250.0,
		"matching.shape_radius_factor": 1.5,
		"refresh.interval":             "30s",
		"refresh.snapshot_ttl":         "30s",
		"enhancer.model":               "gpt-4o-mini",
		"store.path":                   "barry.db",
		"store.retention":              "48h",
	}
}

// Load reads configuration from defaults, an optional YAML file, and
// BARRY_-prefixed environment variables, in that order of precedence.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// BARRY_SERVER__PORT=8080 overrides server.port
	envProvider := env.Provider(envPrefix, ".", func(key string) string {
		key = strings.TrimPrefix(key, envPrefix)
		return strings.ReplaceAll(strings.ToLower(key), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}
