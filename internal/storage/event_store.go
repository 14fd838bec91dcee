package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"listkeeper/internal/logging"
)

// EventSQLStore implements EventStore on database/sql. Placeholders use
// the $N form, which both lib/pq and mattn/go-sqlite3 accept.
type EventSQLStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewEventSQLStore creates a new SQL-backed event store
func NewEventSQLStore(db *sql.DB, logger logging.Logger) *EventSQLStore {
	return &EventSQLStore{
		db:     db,
		logger: logger,
	}
}

// Ping probes the event-log table with a zero-row query
func (s *EventSQLStore) Ping(ctx context.Context) error {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM list_item_events WHERE 1 = 0`).Scan(&count)
	if err != nil {
		return fmt.Errorf("event log unavailable: %w", err)
	}
	return nil
}

// Insert appends a history event
func (s *EventSQLStore) Insert(ctx context.Context, event *ItemEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	metaBytes, err := json.Marshal(event.Meta)
	if err != nil {
		return fmt.Errorf("failed to marshal event meta: %w", err)
	}

	query := `
		INSERT INTO list_item_events (
			id, owner_id, list_id, type, event_kind, text,
			normalized_text, occurred_at, source_item_id, meta
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = s.db.ExecContext(ctx, query,
		event.ID,
		event.OwnerID,
		event.ListID,
		string(event.Type),
		string(event.Kind),
		event.Text,
		event.NormalizedText,
		event.OccurredAt,
		event.SourceItemID,
		metaBytes,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}

	s.logger.Debug("Recorded history event", "id", event.ID, "kind", event.Kind, "owner_id", event.OwnerID)
	return nil
}

// List returns matching events ordered by occurrence time
func (s *EventSQLStore) List(ctx context.Context, query EventQuery) ([]ItemEvent, error) {
	sqlQuery := `
		SELECT id, owner_id, list_id, type, event_kind, text,
		       normalized_text, occurred_at, source_item_id, meta
		FROM list_item_events
		WHERE owner_id = $1 AND type = $2 AND event_kind = $3 AND ` + listScopeClause(query.ListID, 4) + `
		ORDER BY occurred_at`

	args := []interface{}{query.OwnerID, string(query.Type), string(query.Kind)}
	if query.ListID != nil {
		args = append(args, *query.ListID)
	}

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer s.closeRows(rows, "list events")

	var events []ItemEvent
	for rows.Next() {
		var event ItemEvent
		var listID sql.NullInt64
		var metaBytes []byte

		err := rows.Scan(
			&event.ID,
			&event.OwnerID,
			&listID,
			&event.Type,
			&event.Kind,
			&event.Text,
			&event.NormalizedText,
			&event.OccurredAt,
			&event.SourceItemID,
			&metaBytes,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		if listID.Valid {
			id := listID.Int64
			event.ListID = &id
		}
		if err := json.Unmarshal(metaBytes, &event.Meta); err != nil {
			s.logger.Error("Failed to unmarshal event meta", "event_id", event.ID, "error", err)
			event.Meta = EventMeta{}
		}

		events = append(events, event)
	}

	return events, rows.Err()
}

// Count returns the number of matching events
func (s *EventSQLStore) Count(ctx context.Context, query EventQuery) (int, error) {
	sqlQuery := `
		SELECT COUNT(*) FROM list_item_events
		WHERE owner_id = $1 AND type = $2 AND event_kind = $3 AND ` + listScopeClause(query.ListID, 4)

	args := []interface{}{query.OwnerID, string(query.Type), string(query.Kind)}
	if query.ListID != nil {
		args = append(args, *query.ListID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return count, nil
}

// CountDistinctKeys counts distinct non-empty canonical keys
func (s *EventSQLStore) CountDistinctKeys(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) (int, error) {
	sqlQuery := `
		SELECT COUNT(DISTINCT normalized_text) FROM list_item_events
		WHERE owner_id = $1 AND type = $2 AND normalized_text != '' AND ` + listScopeClause(listID, 3)

	args := []interface{}{ownerID, string(itemType)}
	if listID != nil {
		args = append(args, *listID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count distinct keys: %w", err)
	}
	return count, nil
}

// LastOccurredAt returns the most recent event time, or nil when no
// events exist
func (s *EventSQLStore) LastOccurredAt(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) (*time.Time, error) {
	sqlQuery := `
		SELECT MAX(occurred_at) FROM list_item_events
		WHERE owner_id = $1 AND type = $2 AND ` + listScopeClause(listID, 3)

	args := []interface{}{ownerID, string(itemType)}
	if listID != nil {
		args = append(args, *listID)
	}

	var last sql.NullTime
	if err := s.db.QueryRowContext(ctx, sqlQuery, args...).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to get last event time: %w", err)
	}
	if !last.Valid {
		return nil, nil
	}
	t := last.Time
	return &t, nil
}

// listScopeClause narrows a query to a shared list or, when listID is
// nil, to the owner's personal list.
func listScopeClause(listID *int64, position int) string {
	if listID != nil {
		return fmt.Sprintf("list_id = $%d", position)
	}
	return "list_id IS NULL"
}

func (s *EventSQLStore) closeRows(rows *sql.Rows, description string) {
	if closeErr := rows.Close(); closeErr != nil {
		s.logger.Error("Failed to close rows", "description", description, "error", closeErr)
	}
}
