package alerts

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"strings"
)

// ContentHasher fingerprints alert content so the enhancer can reuse
// summaries for incidents that reappear with minor text variations
type ContentHasher struct{}

// NewContentHasher creates a new content hasher
func NewContentHasher() *ContentHasher {
	return &ContentHasher{}
}

var (
	whitespaceRe  = regexp.MustCompile(`\s+`)
	punctuationRe = regexp.MustCompile(`[.,;:!?()-]`)
	clockTimeRe   = regexp.MustCompile(`at \d{1,2}:\d{2}`)
	dateRe        = regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{4}`)
)

// HashAlert creates a content hash of the alert's descriptive fields
func (h *ContentHasher) HashAlert(alert Alert) string {
	contentSignature := fmt.Sprintf("%s|%s|%s|%s",
		h.normalizeText(alert.Title),
		h.normalizeText(alert.Description),
		h.normalizeText(alert.Location),
		alert.Type,
	)

	hash := sha256.Sum256([]byte(contentSignature))
	return fmt.Sprintf("%x", hash)
}

// normalizeText cleans text for consistent hashing, stripping the
// elements that vary between reports of the same incident
func (h *ContentHasher) normalizeText(text string) string {
	normalized := strings.ToLower(text)

	normalized = whitespaceRe.ReplaceAllString(normalized, " ")
	normalized = punctuationRe.ReplaceAllString(normalized, "")

	// Drop time-of-day and date fragments, "at 14:32" vs "at 14:35"
	// is still the same incident
	normalized = clockTimeRe.ReplaceAllString(normalized, "")
	normalized = dateRe.ReplaceAllString(normalized, "")

	// Normalize common UK road-report abbreviations
	replacements := map[string]string{
		"n/b":  "northbound",
		"s/b":  "southbound",
		"e/b":  "eastbound",
		"w/b":  "westbound",
		"jct":  "junction",
		"rdbt": "roundabout",
	}

	for abbrev, full := range replacements {
		normalized = strings.ReplaceAll(normalized, abbrev, full)
	}

	return strings.TrimSpace(normalized)
}
