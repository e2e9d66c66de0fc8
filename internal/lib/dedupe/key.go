package dedupe

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"

	"github.com/HairyGair/go-barry/internal/lib/alerts"
	"github.com/HairyGair/go-barry/internal/lib/geo"
)

// Location strings longer than this are descriptive enough to identify
// an incident on their own under aggressive collapsing
const aggressiveLocationMinLen = 20

var (
	spaceRe         = regexp.MustCompile(`\s+`)
	trailingPunctRe = regexp.MustCompile(`[.!?:;,]+$`)
)

// Key fingerprints an alert for duplicate detection. Reports of the
// same incident from different feeds describe its position far more
// consistently than its text, so a rounded coordinate alone is the
// key whenever one is present; location text is the fallback. The
// source never participates, reports must collide across feeds for
// the reliability ladder to pick a winner.
func (e *Engine) Key(alert alerts.Alert) string {
	location := normalizeLocation(alert.Location)
	coordKey := locationKey(alert.Coordinates)

	content := coordKey
	if e.cfg.AggressiveLocationCollapse && len(location) >= aggressiveLocationMinLen {
		// Long location strings identify the incident on their own
		content = location
	}
	if content == "" {
		content = location
	}

	hash := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%x", hash)
}

// normalizeLocation cleans a location string for consistent keying
func normalizeLocation(text string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	normalized = spaceRe.ReplaceAllString(normalized, " ")
	normalized = trailingPunctRe.ReplaceAllString(normalized, "")
	return normalized
}

// locationKey rounds coordinates to 3 decimal places, about 100m,
// so nearby reports of the same incident collide
func locationKey(pt *geo.Point) string {
	if pt == nil {
		return ""
	}
	return fmt.Sprintf("%.3f_%.3f", pt.Latitude, pt.Longitude)
}
