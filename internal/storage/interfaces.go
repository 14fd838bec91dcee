package storage

import (
	"context"
	"time"
)

// EventStore persists and reads the append-only history-event log.
// Implementations must keep List results ordered by occurrence time
// ascending; clustering depends on that ordering.
type EventStore interface {
	// Ping probes whether the event log is usable at all. Callers cache
	// the outcome; a failing Ping is expected when the table has not
	// been migrated yet.
	Ping(ctx context.Context) error

	Insert(ctx context.Context, event *ItemEvent) error
	List(ctx context.Context, query EventQuery) ([]ItemEvent, error)
	Count(ctx context.Context, query EventQuery) (int, error)
	CountDistinctKeys(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) (int, error)
	LastOccurredAt(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) (*time.Time, error)
}

// ItemStore reads live list-item rows, the fallback history source
type ItemStore interface {
	// ListAdditions returns all items ordered by created_at ascending.
	ListAdditions(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) ([]ListItem, error)
	// ListCompletions returns completed items ordered by completed_at,
	// then created_at, ascending.
	ListCompletions(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) ([]ListItem, error)
	Count(ctx context.Context, ownerID int64, itemType ItemType, listID *int64, completedOnly bool) (int, error)
}

// StateStore persists per-key suppression state
type StateStore interface {
	// Get returns nil without error when no row exists.
	Get(ctx context.Context, ownerID int64, itemType ItemType, key string) (*SuggestionState, error)
	ListByOwner(ctx context.Context, ownerID int64, itemType ItemType) (map[string]*SuggestionState, error)
	ListByKeys(ctx context.Context, ownerID int64, itemType ItemType, keys []string) (map[string]*SuggestionState, error)
	// Save upserts the row keyed by (owner_id, type, suggestion_key).
	Save(ctx context.Context, state *SuggestionState) error
}
