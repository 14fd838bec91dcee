package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// schemaStatements create the two tables the suggestion engine owns, plus
// the collaborator list_items table for standalone deployments. The DDL
// sticks to the dialect subset shared by PostgreSQL and SQLite.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS list_item_events (
		id TEXT PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		list_id BIGINT,
		type TEXT NOT NULL,
		event_kind TEXT NOT NULL,
		text TEXT NOT NULL,
		normalized_text TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL,
		source_item_id BIGINT NOT NULL,
		meta TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_list_item_events_scope
		ON list_item_events (owner_id, type, event_kind, occurred_at)`,
	`CREATE TABLE IF NOT EXISTS list_item_suggestion_states (
		owner_id BIGINT NOT NULL,
		type TEXT NOT NULL,
		suggestion_key TEXT NOT NULL,
		dismissed_count INTEGER NOT NULL DEFAULT 0,
		hidden_until TIMESTAMP,
		retired_at TIMESTAMP,
		reset_at TIMESTAMP,
		PRIMARY KEY (owner_id, type, suggestion_key)
	)`,
	`CREATE TABLE IF NOT EXISTS list_items (
		id BIGINT PRIMARY KEY,
		owner_id BIGINT NOT NULL,
		list_id BIGINT,
		type TEXT NOT NULL,
		text TEXT NOT NULL,
		is_completed BOOLEAN NOT NULL DEFAULT FALSE,
		sort_order INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		completed_at TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_list_items_owner
		ON list_items (owner_id, type, is_completed)`,
}

// CreateSchema applies the schema statements idempotently
func CreateSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schemaStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	return nil
}
