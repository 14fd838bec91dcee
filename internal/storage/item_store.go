package storage

import (
	"context"
	"database/sql"
	"fmt"

	"listkeeper/internal/logging"
)

// ItemSQLStore implements ItemStore on database/sql
type ItemSQLStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewItemSQLStore creates a new SQL-backed item store
func NewItemSQLStore(db *sql.DB, logger logging.Logger) *ItemSQLStore {
	return &ItemSQLStore{
		db:     db,
		logger: logger,
	}
}

// ListAdditions returns all of an owner's items ordered by creation time
func (s *ItemSQLStore) ListAdditions(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) ([]ListItem, error) {
	query := `
		SELECT id, owner_id, list_id, type, text, is_completed,
		       sort_order, created_at, completed_at
		FROM list_items
		WHERE owner_id = $1 AND type = $2 AND ` + listScopeClause(listID, 3) + `
		ORDER BY created_at`

	return s.listItems(ctx, query, ownerID, itemType, listID)
}

// ListCompletions returns an owner's completed items ordered by completion
// time, then creation time
func (s *ItemSQLStore) ListCompletions(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) ([]ListItem, error) {
	query := `
		SELECT id, owner_id, list_id, type, text, is_completed,
		       sort_order, created_at, completed_at
		FROM list_items
		WHERE owner_id = $1 AND type = $2 AND is_completed = TRUE AND ` + listScopeClause(listID, 3) + `
		ORDER BY completed_at, created_at`

	return s.listItems(ctx, query, ownerID, itemType, listID)
}

// Count counts an owner's items, optionally restricted to completed ones
func (s *ItemSQLStore) Count(ctx context.Context, ownerID int64, itemType ItemType, listID *int64, completedOnly bool) (int, error) {
	query := `
		SELECT COUNT(*) FROM list_items
		WHERE owner_id = $1 AND type = $2 AND ` + listScopeClause(listID, 3)
	if completedOnly {
		query += ` AND is_completed = TRUE`
	}

	args := []interface{}{ownerID, string(itemType)}
	if listID != nil {
		args = append(args, *listID)
	}

	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return count, nil
}

func (s *ItemSQLStore) listItems(ctx context.Context, query string, ownerID int64, itemType ItemType, listID *int64) ([]ListItem, error) {
	args := []interface{}{ownerID, string(itemType)}
	if listID != nil {
		args = append(args, *listID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error("Failed to close rows", "description", "list items", "error", closeErr)
		}
	}()

	var items []ListItem
	for rows.Next() {
		var item ListItem
		var rowListID sql.NullInt64
		var completedAt sql.NullTime

		err := rows.Scan(
			&item.ID,
			&item.OwnerID,
			&rowListID,
			&item.Type,
			&item.Text,
			&item.IsCompleted,
			&item.SortOrder,
			&item.CreatedAt,
			&completedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}

		if rowListID.Valid {
			id := rowListID.Int64
			item.ListID = &id
		}
		if completedAt.Valid {
			t := completedAt.Time
			item.CompletedAt = &t
		}

		items = append(items, item)
	}

	return items, rows.Err()
}
