// Package suggest implements the recurring-item prediction engine: it
// clusters timestamped text observations by fuzzy match, derives
// due/upcoming suggestions with temporal statistics, and applies the
// per-key dismiss/retire/reset suppression state machine.
package suggest

import (
	"time"

	"listkeeper/internal/storage"
)

// HistoryEntry is one timestamped text observation
type HistoryEntry struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Suggestion is a ranked prediction that an item is due or upcoming
type Suggestion struct {
	SuggestedText          string           `json:"suggested_text"`
	SuggestionKey          string           `json:"suggestion_key"`
	Type                   storage.ItemType `json:"type"`
	Occurrences            int              `json:"occurrences"`
	AverageIntervalSeconds int64            `json:"average_interval_seconds"`
	LastAddedAt            time.Time        `json:"last_added_at"`
	NextExpectedAt         time.Time        `json:"next_expected_at"`
	SecondsUntilExpected   int64            `json:"seconds_until_expected"`
	IsDue                  bool             `json:"is_due"`
	DueRatio               float64          `json:"due_ratio"`
	Confidence             float64          `json:"confidence"`
	Variants               []string         `json:"variants"`
}

// StatRow summarizes one completion cluster for UI display
type StatRow struct {
	SuggestionKey          string     `json:"suggestion_key"`
	Text                   string     `json:"text"`
	Occurrences            int        `json:"occurrences"`
	AverageIntervalSeconds *int64     `json:"average_interval_seconds"`
	LastCompletedAt        time.Time  `json:"last_completed_at"`
	Variants               []string   `json:"variants"`
	DismissedCount         int        `json:"dismissed_count"`
	HiddenUntil            *time.Time `json:"hidden_until,omitempty"`
	RetiredAt              *time.Time `json:"retired_at,omitempty"`
	ResetAt                *time.Time `json:"reset_at,omitempty"`
}

// StatsSummary aggregates owner-level counters for the stats payload
type StatsSummary struct {
	TotalAdded          int        `json:"total_added"`
	TotalCompleted      int        `json:"total_completed"`
	UniqueItems         int        `json:"unique_items"`
	UniqueProducts      int        `json:"unique_products"`
	UniqueTodos         int        `json:"unique_todos"`
	DueSuggestions      int        `json:"due_suggestions"`
	UpcomingSuggestions int        `json:"upcoming_suggestions"`
	LastActivityAt      *time.Time `json:"last_activity_at,omitempty"`
}

// StatsPayload is the stats operation result
type StatsPayload struct {
	Stats   []StatRow    `json:"stats"`
	Summary StatsSummary `json:"summary"`
}
