package alerts

import (
	"context"
	"time"

	"github.com/HairyGair/go-barry/internal/lib/geo"
)

// Severity indicates how disruptive an alert is to service
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// MaxAge returns how long an alert of this severity stays relevant
// before it is auto-cancelled
func (s Severity) MaxAge() time.Duration {
	switch s {
	case SeverityLow:
		return 2 * time.Hour
	case SeverityHigh:
		return 8 * time.Hour
	default:
		return 4 * time.Hour
	}
}

// Valid reports whether the severity is one of the known levels
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Status follows traffic-light semantics for alert lifecycle
type Status string

const (
	StatusRed   Status = "red"   // active
	StatusAmber Status = "amber" // monitoring / easing
	StatusGreen Status = "green" // cleared
)

// Type classifies what kind of disruption an alert describes
type Type string

const (
	TypeIncident   Type = "incident"
	TypeCongestion Type = "congestion"
	TypeRoadwork   Type = "roadwork"
	TypeManual     Type = "manual"
)

// Alert is the canonical disruption record produced by source adapters
// and consumed by the dedup engine, route matcher and sync hub
type Alert struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	Coordinates      *geo.Point `json:"coordinates,omitempty"`
	Severity         Severity   `json:"severity"`
	Status           Status     `json:"status"`
	Type             Type       `json:"type"`
	Source           string     `json:"source"`
	AffectedRoutes   []string   `json:"affectedRoutes"`
	CreatedAt        time.Time  `json:"createdAt,omitempty"`
	UpdatedAt        time.Time  `json:"updatedAt,omitempty"`
	EndTime          *time.Time `json:"endTime,omitempty"`
	CondensedSummary string     `json:"condensedSummary,omitempty"`
}

// Timestamp returns the freshest timestamp on the alert, preferring
// UpdatedAt and falling back to CreatedAt. Zero means no timestamp.
func (a Alert) Timestamp() time.Time {
	if !a.UpdatedAt.IsZero() {
		return a.UpdatedAt
	}
	return a.CreatedAt
}

// EffectiveSeverity normalizes unknown severities to Medium
func (a Alert) EffectiveSeverity() Severity {
	if a.Severity.Valid() {
		return a.Severity
	}
	return SeverityMedium
}

// Expired reports whether the alert has aged past its severity window
// or run past its declared end time. Alerts with no timestamps never
// expire by age.
func (a Alert) Expired(now time.Time) bool {
	if a.EndTime != nil && now.After(*a.EndTime) {
		return true
	}
	ts := a.Timestamp()
	if ts.IsZero() {
		return false
	}
	return now.Sub(ts) > a.EffectiveSeverity().MaxAge()
}

// Enhancer produces short display-board summaries for alerts
type Enhancer interface {
	// Enhance returns a condensed one-line summary for the alert
	Enhance(ctx context.Context, alert Alert) (string, error)

	// Health check for the enhancement backend
	HealthCheck(ctx context.Context) error
}
