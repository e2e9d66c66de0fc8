package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Record kinds
const (
	KindDismissal       = "dismissal"
	KindAcknowledgement = "acknowledgement"
)

// Record is a persisted supervisor action keyed by alert identity, kept so
// dismissals and acknowledgements survive a restart.
type Record struct {
	Kind      string    `json:"kind"`
	AlertID   string    `json:"alertId"`
	Actor     string    `json:"actor"`
	Reason    string    `json:"reason,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// DismissalStore persists dismissal and acknowledgement records in sqlite.
type DismissalStore struct {
	db *sql.DB
}

// Open opens (and migrates) the sqlite store at path. Use ":memory:" for
// an ephemeral store.
func Open(path string) (*DismissalStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// sqlite supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	schema := `
		CREATE TABLE IF NOT EXISTS supervisor_actions (
			kind       TEXT NOT NULL,
			alert_id   TEXT NOT NULL,
			actor      TEXT NOT NULL,
			reason     TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			PRIMARY KEY (kind, alert_id)
		);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	return &DismissalStore{db: db}, nil
}

// Close closes the underlying database
func (s *DismissalStore) Close() error {
	return s.db.Close()
}

// Save upserts a record, last writer wins per (kind, alert)
func (s *DismissalStore) Save(ctx context.Context, record Record) error {
	query := `
		INSERT INTO supervisor_actions (kind, alert_id, actor, reason, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (kind, alert_id) DO UPDATE SET
			actor = excluded.actor,
			reason = excluded.reason,
			created_at = excluded.created_at
	`
	_, err := s.db.ExecContext(ctx, query,
		record.Kind, record.AlertID, record.Actor, record.Reason,
		record.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save %s for %s: %w", record.Kind, record.AlertID, err)
	}
	return nil
}

// Delete removes a record
func (s *DismissalStore) Delete(ctx context.Context, kind, alertID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM supervisor_actions WHERE kind = ? AND alert_id = ?", kind, alertID)
	if err != nil {
		return fmt.Errorf("failed to delete %s for %s: %w", kind, alertID, err)
	}
	return nil
}

// All returns every persisted record, oldest first
func (s *DismissalStore) All(ctx context.Context) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, alert_id, actor, reason, created_at
		FROM supervisor_actions
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var record Record
		var createdAt string
		if err := rows.Scan(&record.Kind, &record.AlertID, &record.Actor, &record.Reason, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		record.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		records = append(records, record)
	}
	return records, rows.Err()
}

// PruneBefore removes records created before cutoff, returning how many
// were dropped. Used by the retention maintenance job.
func (s *DismissalStore) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM supervisor_actions WHERE created_at < ?",
		cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("failed to prune records: %w", err)
	}

	pruned, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count pruned records: %w", err)
	}
	return int(pruned), nil
}
