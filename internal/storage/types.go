// Package storage provides the relational row shapes and store
// abstractions for the suggestion engine: the append-only history-event
// log, the live list-item rows it falls back to, and per-key suppression
// state.
package storage

import "time"

// ItemType identifies which list an entry belongs to
type ItemType string

const (
	TypeProduct ItemType = "product"
	TypeTodo    ItemType = "todo"
)

// NormalizeItemType maps unknown type names to the product list
func NormalizeItemType(value string) ItemType {
	if value == string(TypeTodo) {
		return TypeTodo
	}
	return TypeProduct
}

// EventKind identifies a history-event kind
type EventKind string

const (
	EventAdded     EventKind = "added"
	EventCompleted EventKind = "completed"
)

// ListItem is a live list-item row. The suggestion engine reads these only
// as a fallback history source; CRUD on them belongs to the item layer.
type ListItem struct {
	ID          int64      `json:"id"`
	OwnerID     int64      `json:"owner_id"`
	ListID      *int64     `json:"list_id,omitempty"` // nil means the owner's personal list
	Type        ItemType   `json:"type"`
	Text        string     `json:"text"`
	IsCompleted bool       `json:"is_completed"`
	SortOrder   int        `json:"sort_order"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// EventMeta is the auxiliary blob carried by a history event
type EventMeta struct {
	IsCompleted bool `json:"is_completed"`
	SortOrder   int  `json:"sort_order"`
}

// ItemEvent is one append-only history-event row
type ItemEvent struct {
	ID             string    `json:"id"`
	OwnerID        int64     `json:"owner_id"`
	ListID         *int64    `json:"list_id,omitempty"`
	Type           ItemType  `json:"type"`
	Kind           EventKind `json:"event_kind"`
	Text           string    `json:"text"`
	NormalizedText string    `json:"normalized_text"`
	OccurredAt     time.Time `json:"occurred_at"`
	SourceItemID   int64     `json:"source_item_id"`
	Meta           EventMeta `json:"meta"`
}

// SuggestionState is the persisted suppression record for one suggestion
// key. It is a soft UX signal: read-modify-written without locking.
type SuggestionState struct {
	OwnerID        int64      `json:"owner_id"`
	Type           ItemType   `json:"type"`
	SuggestionKey  string     `json:"suggestion_key"`
	DismissedCount int        `json:"dismissed_count"`
	HiddenUntil    *time.Time `json:"hidden_until,omitempty"`
	RetiredAt      *time.Time `json:"retired_at,omitempty"`
	ResetAt        *time.Time `json:"reset_at,omitempty"`
}

// EventQuery scopes a history-event read
type EventQuery struct {
	OwnerID int64
	Type    ItemType
	Kind    EventKind
	ListID  *int64
}
