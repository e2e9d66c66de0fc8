package sources

import (
	"context"
	"time"

	"github.com/HairyGair/go-barry/internal/lib/alerts"
)

// Reliability ranks, higher wins dedup collisions. Manual supervisor
// entries outrank every external feed.
const (
	RankManual           = 50
	RankTomTom           = 40
	RankHERE             = 30
	RankNationalHighways = 20
	RankMapQuest         = 10
)

// Source is one external traffic feed, normalized at the boundary.
// Implementations bound their own fetches with the configured timeout
// and must not panic across this interface.
type Source interface {
	Name() string
	Reliability() int
	Fetch(ctx context.Context) ([]alerts.Alert, error)
}

// Result is the per-cycle outcome of one adapter fetch. Created per
// aggregation cycle and discarded after merge, never persisted.
type Result struct {
	Source      string
	Success     bool
	Alerts      []alerts.Alert
	Err         error
	Duration    time.Duration
	Reliability int
}
