package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"listkeeper/internal/logging"
)

// StateSQLStore implements StateStore on database/sql
type StateSQLStore struct {
	db     *sql.DB
	logger logging.Logger
}

// NewStateSQLStore creates a new SQL-backed suggestion-state store
func NewStateSQLStore(db *sql.DB, logger logging.Logger) *StateSQLStore {
	return &StateSQLStore{
		db:     db,
		logger: logger,
	}
}

// Get returns the state row for a key, or nil when none exists
func (s *StateSQLStore) Get(ctx context.Context, ownerID int64, itemType ItemType, key string) (*SuggestionState, error) {
	query := `
		SELECT owner_id, type, suggestion_key, dismissed_count,
		       hidden_until, retired_at, reset_at
		FROM list_item_suggestion_states
		WHERE owner_id = $1 AND type = $2 AND suggestion_key = $3`

	state, err := s.scanState(s.db.QueryRowContext(ctx, query, ownerID, string(itemType), key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion state: %w", err)
	}
	return state, nil
}

// ListByOwner returns all of an owner's state rows keyed by suggestion key
func (s *StateSQLStore) ListByOwner(ctx context.Context, ownerID int64, itemType ItemType) (map[string]*SuggestionState, error) {
	query := `
		SELECT owner_id, type, suggestion_key, dismissed_count,
		       hidden_until, retired_at, reset_at
		FROM list_item_suggestion_states
		WHERE owner_id = $1 AND type = $2`

	return s.listStates(ctx, query, ownerID, string(itemType))
}

// ListByKeys returns state rows for the given keys, keyed by suggestion key
func (s *StateSQLStore) ListByKeys(ctx context.Context, ownerID int64, itemType ItemType, keys []string) (map[string]*SuggestionState, error) {
	if len(keys) == 0 {
		return map[string]*SuggestionState{}, nil
	}

	placeholders := make([]string, len(keys))
	args := []interface{}{ownerID, string(itemType)}
	for i, key := range keys {
		placeholders[i] = fmt.Sprintf("$%d", i+3)
		args = append(args, key)
	}

	query := `
		SELECT owner_id, type, suggestion_key, dismissed_count,
		       hidden_until, retired_at, reset_at
		FROM list_item_suggestion_states
		WHERE owner_id = $1 AND type = $2 AND suggestion_key IN (` + strings.Join(placeholders, ", ") + `)`

	return s.listStates(ctx, query, args...)
}

// Save upserts a state row keyed by (owner_id, type, suggestion_key)
func (s *StateSQLStore) Save(ctx context.Context, state *SuggestionState) error {
	query := `
		INSERT INTO list_item_suggestion_states (
			owner_id, type, suggestion_key, dismissed_count,
			hidden_until, retired_at, reset_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (owner_id, type, suggestion_key) DO UPDATE SET
			dismissed_count = EXCLUDED.dismissed_count,
			hidden_until = EXCLUDED.hidden_until,
			retired_at = EXCLUDED.retired_at,
			reset_at = EXCLUDED.reset_at`

	_, err := s.db.ExecContext(ctx, query,
		state.OwnerID,
		string(state.Type),
		state.SuggestionKey,
		state.DismissedCount,
		state.HiddenUntil,
		state.RetiredAt,
		state.ResetAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save suggestion state: %w", err)
	}

	s.logger.Debug("Saved suggestion state", "owner_id", state.OwnerID, "key", state.SuggestionKey,
		"dismissed_count", state.DismissedCount)
	return nil
}

func (s *StateSQLStore) listStates(ctx context.Context, query string, args ...interface{}) (map[string]*SuggestionState, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list suggestion states: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Error("Failed to close rows", "description", "list states", "error", closeErr)
		}
	}()

	states := make(map[string]*SuggestionState)
	for rows.Next() {
		state, err := s.scanState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion state: %w", err)
		}
		states[state.SuggestionKey] = state
	}

	return states, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *StateSQLStore) scanState(row rowScanner) (*SuggestionState, error) {
	var state SuggestionState
	var hiddenUntil, retiredAt, resetAt sql.NullTime

	err := row.Scan(
		&state.OwnerID,
		&state.Type,
		&state.SuggestionKey,
		&state.DismissedCount,
		&hiddenUntil,
		&retiredAt,
		&resetAt,
	)
	if err != nil {
		return nil, err
	}

	if hiddenUntil.Valid {
		t := hiddenUntil.Time
		state.HiddenUntil = &t
	}
	if retiredAt.Valid {
		t := retiredAt.Time
		state.RetiredAt = &t
	}
	if resetAt.Valid {
		t := resetAt.Time
		state.ResetAt = &t
	}

	return &state, nil
}
