package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/enrollhq/accessgate/pkg/observability"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_events (
	id          INTEGER PRIMARY KEY,
	occurred_at TIMESTAMP NOT NULL,
	request_id  TEXT NOT NULL DEFAULT '',
	action      TEXT NOT NULL,
	target_id   BIGINT NOT NULL DEFAULT 0,
	detail      TEXT NOT NULL DEFAULT '{}'
)`

// Store writes audit events to a SQL database. It works against postgres in
// production and sqlite in tests; the schema sticks to the common subset.
type Store struct {
	db  *sql.DB
	log *observability.Logger
}

// NewStore creates the table if needed and returns a ready store.
func NewStore(db *sql.DB, log *observability.Logger) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize audit schema: %w", err)
	}
	return &Store{db: db, log: log}, nil
}

// Record implements Recorder. The event is logged regardless of whether the
// insert succeeds; a failed insert surfaces the error to the caller but the
// request that triggered it is not rolled back.
func (s *Store) Record(ctx context.Context, ev Event) error {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}

	s.log.WithFields(map[string]interface{}{
		"action":     string(ev.Action),
		"target_id":  ev.TargetID,
		"request_id": ev.RequestID,
	}).Info("audit event")

	detail, err := json.Marshal(ev.Detail)
	if err != nil {
		return fmt.Errorf("failed to encode audit detail: %w", err)
	}
	if ev.Detail == nil {
		detail = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO audit_events (occurred_at, request_id, action, target_id, detail) VALUES ($1, $2, $3, $4, $5)`,
		ev.Time, ev.RequestID, string(ev.Action), ev.TargetID, string(detail),
	)
	if err != nil {
		return fmt.Errorf("failed to record audit event: %w", err)
	}
	return nil
}

// RecentByTarget returns up to limit events for a target user, newest first.
func (s *Store) RecentByTarget(ctx context.Context, targetID int64, limit int) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT occurred_at, request_id, action, target_id, detail
		 FROM audit_events WHERE target_id = $1
		 ORDER BY occurred_at DESC, id DESC LIMIT $2`,
		targetID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		var detail string
		if err := rows.Scan(&ev.Time, &ev.RequestID, &ev.Action, &ev.TargetID, &detail); err != nil {
			return nil, fmt.Errorf("failed to scan audit event: %w", err)
		}
		if err := json.Unmarshal([]byte(detail), &ev.Detail); err != nil {
			return nil, fmt.Errorf("failed to decode audit detail: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}
