package dedupe

import (
	"sort"
	"strings"
	"time"

	"github.com/HairyGair/go-barry/internal/lib/alerts"
)

// Config controls deduplication behavior
type Config struct {
	// AggressiveLocationCollapse keys long location strings by
	// location+source alone, ignoring coordinates. Risks merging
	// genuinely distinct co-located incidents, off unless enabled.
	AggressiveLocationCollapse bool

	// TestPatterns are case-insensitive substrings that mark an alert
	// id or title as a test/sentinel record to be discarded
	TestPatterns []string
}

// DefaultTestPatterns cover the sentinel records sources inject for
// their own monitoring
var DefaultTestPatterns = []string{"test_", "_test", "sentinel"}

// Ranker returns the reliability rank for a source name, higher wins
type Ranker func(source string) int

// Engine collapses duplicate reports and retires stale alerts
type Engine struct {
	cfg  Config
	rank Ranker
	now  func() time.Time
}

// NewEngine creates a deduplication engine. A nil ranker treats all
// sources as equally reliable.
func NewEngine(cfg Config, rank Ranker) *Engine {
	if rank == nil {
		rank = func(string) int { return 0 }
	}
	if cfg.TestPatterns == nil {
		cfg.TestPatterns = DefaultTestPatterns
	}
	return &Engine{cfg: cfg, rank: rank, now: time.Now}
}

// Reconcile collapses a raw batch into the authoritative active alert
// set. Pure and deterministic: identical batches produce identical
// output regardless of input ordering, and the operation is idempotent.
func (e *Engine) Reconcile(raw []alerts.Alert) []alerts.Alert {
	now := e.now()

	// Sort a copy so collision resolution sees a stable order
	batch := make([]alerts.Alert, len(raw))
	copy(batch, raw)
	sort.Slice(batch, func(i, j int) bool {
		if batch[i].ID != batch[j].ID {
			return batch[i].ID < batch[j].ID
		}
		return batch[i].Source < batch[j].Source
	})

	best := make(map[string]alerts.Alert, len(batch))
	for _, alert := range batch {
		if e.isTestAlert(alert) {
			continue
		}
		if alert.Status == alerts.StatusGreen {
			continue
		}
		if alert.Status == "" {
			alert.Status = alerts.StatusRed
		}
		if alert.Expired(now) {
			continue
		}

		key := e.Key(alert)
		current, exists := best[key]
		if !exists || e.wins(alert, current) {
			best[key] = alert
		}
	}

	active := make([]alerts.Alert, 0, len(best))
	for _, alert := range best {
		active = append(active, alert)
	}
	sort.Slice(active, func(i, j int) bool { return active[i].ID < active[j].ID })
	return active
}

// wins reports whether candidate should replace incumbent for the same
// dedup key: higher source reliability first, then newer timestamp
func (e *Engine) wins(candidate, incumbent alerts.Alert) bool {
	candidateRank := e.rank(candidate.Source)
	incumbentRank := e.rank(incumbent.Source)
	if candidateRank != incumbentRank {
		return candidateRank > incumbentRank
	}

	candidateTS := candidate.Timestamp()
	incumbentTS := incumbent.Timestamp()
	if !candidateTS.Equal(incumbentTS) {
		return candidateTS.After(incumbentTS)
	}

	return false
}

func (e *Engine) isTestAlert(alert alerts.Alert) bool {
	id := strings.ToLower(alert.ID)
	title := strings.ToLower(alert.Title)
	for _, pattern := range e.cfg.TestPatterns {
		if strings.Contains(id, pattern) || strings.Contains(title, pattern) {
			return true
		}
	}
	return false
}
