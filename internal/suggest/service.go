package suggest

import (
	"context"
	"time"

	"listkeeper/internal/config"
	"listkeeper/internal/logging"
	"listkeeper/internal/normalize"
	"listkeeper/internal/storage"
)

// Service wires the history source, analytics engine, and state manager
// into the public suggestion operations. Read paths recompute from
// history on every call; write paths are either state upserts or
// fire-and-forget event recording.
type Service struct {
	events     storage.EventStore
	items      storage.ItemStore
	normalizer *normalize.Normalizer
	analytics  *Analytics
	stateMgr   *StateManager
	logger     logging.Logger
	cfg        config.SuggestConfig
	clock      func() time.Time
}

// NewService creates a suggestion service over the given stores
func NewService(events storage.EventStore, items storage.ItemStore, states storage.StateStore, cfg config.SuggestConfig, logger logging.Logger) *Service {
	normalizer := normalize.NewNormalizer()
	return &Service{
		events:     events,
		items:      items,
		normalizer: normalizer,
		analytics:  NewAnalytics(normalizer, normalize.NewMatcher(), cfg),
		stateMgr:   NewStateManager(states),
		logger:     logger.WithComponent("suggest"),
		cfg:        cfg,
		clock:      time.Now,
	}
}

// Suggest returns up to limit due and upcoming suggestions for an
// owner, best first. A non-positive limit uses the configured default.
func (s *Service) Suggest(ctx context.Context, ownerID int64, itemType storage.ItemType, limit int, listID *int64) ([]Suggestion, error) {
	itemType = storage.NormalizeItemType(string(itemType))
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}
	if limit < 1 {
		limit = 1
	}

	history := s.newHistory()
	entries, err := history.AdditionEntries(ctx, ownerID, itemType, listID)
	if err != nil {
		return nil, err
	}

	states, err := s.stateMgr.StatesByOwner(ctx, ownerID, itemType)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	suggestions := s.analytics.BuildSuggestions(entries, states, itemType, now)

	keys := make([]string, 0, len(suggestions))
	for _, suggestion := range suggestions {
		keys = append(keys, suggestion.SuggestionKey)
	}
	current, err := s.stateMgr.StatesByKeys(ctx, ownerID, itemType, keys)
	if err != nil {
		return nil, err
	}

	suggestions = s.stateMgr.FilterSuppressed(suggestions, current, now)
	suggestions = s.analytics.Deduplicate(suggestions)

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions, nil
}

// Stats returns per-item completion statistics plus owner-level summary
// counters. Counters prefer the event log and fall back to live rows
// when the log has nothing to say.
func (s *Service) Stats(ctx context.Context, ownerID int64, itemType storage.ItemType, limit int, listID *int64) (*StatsPayload, error) {
	itemType = storage.NormalizeItemType(string(itemType))
	if limit <= 0 {
		limit = 50
	}
	if limit > s.cfg.MaxStatsLimit {
		limit = s.cfg.MaxStatsLimit
	}

	history := s.newHistory()
	completions, err := history.CompletionEntries(ctx, ownerID, itemType, listID)
	if err != nil {
		return nil, err
	}

	states, err := s.stateMgr.StatesByOwner(ctx, ownerID, itemType)
	if err != nil {
		return nil, err
	}

	rows := s.analytics.BuildStats(completions, states, limit)

	totalAdded := history.CountEvents(ctx, ownerID, itemType, storage.EventAdded, listID)
	if totalAdded == 0 {
		totalAdded, err = s.items.Count(ctx, ownerID, itemType, listID, false)
		if err != nil {
			return nil, err
		}
	}

	totalCompleted := history.CountEvents(ctx, ownerID, itemType, storage.EventCompleted, listID)
	if totalCompleted == 0 {
		totalCompleted, err = s.items.Count(ctx, ownerID, itemType, listID, true)
		if err != nil {
			return nil, err
		}
	}

	uniqueItems := history.UniqueKeys(ctx, ownerID, itemType, listID)
	if uniqueItems == 0 {
		uniqueItems = len(rows)
	}

	active, err := s.Suggest(ctx, ownerID, itemType, 50, listID)
	if err != nil {
		return nil, err
	}
	due := 0
	for _, suggestion := range active {
		if suggestion.IsDue {
			due++
		}
	}

	summary := StatsSummary{
		TotalAdded:          totalAdded,
		TotalCompleted:      totalCompleted,
		UniqueItems:         uniqueItems,
		DueSuggestions:      due,
		UpcomingSuggestions: len(active) - due,
		LastActivityAt:      history.LastActivity(ctx, ownerID, itemType, listID),
	}
	if itemType == storage.TypeProduct {
		summary.UniqueProducts = uniqueItems
	} else {
		summary.UniqueTodos = uniqueItems
	}

	return &StatsPayload{Stats: rows, Summary: summary}, nil
}

// Dismiss hides a suggestion key for an escalating window, retiring it
// on the fourth dismissal. A key that normalizes to empty is ignored.
func (s *Service) Dismiss(ctx context.Context, ownerID int64, itemType storage.ItemType, key string, avgIntervalSeconds int64) error {
	itemType = storage.NormalizeItemType(string(itemType))
	normalized := s.normalizer.Key(key)
	if normalized == "" {
		return nil
	}
	if avgIntervalSeconds < 0 {
		avgIntervalSeconds = 0
	}

	_, err := s.stateMgr.Dismiss(ctx, ownerID, itemType, normalized, avgIntervalSeconds)
	return err
}

// Reset clears all suppression for a key and discards its history for
// prediction purposes
func (s *Service) Reset(ctx context.Context, ownerID int64, itemType storage.ItemType, key string) error {
	itemType = storage.NormalizeItemType(string(itemType))
	normalized := s.normalizer.Key(key)
	if normalized == "" {
		return nil
	}

	_, err := s.stateMgr.Reset(ctx, ownerID, itemType, normalized)
	return err
}

// RecordAdded logs an addition event for a just-created item. Never
// fails the caller.
func (s *Service) RecordAdded(ctx context.Context, item *storage.ListItem) {
	s.newHistory().RecordAdded(ctx, item)
}

// RecordCompleted logs a completion event for a just-completed item
func (s *Service) RecordCompleted(ctx context.Context, item *storage.ListItem) {
	s.newHistory().RecordCompleted(ctx, item)
}

// NormalizeKey exposes canonical key derivation to callers that need to
// address state rows directly
func (s *Service) NormalizeKey(text string) string {
	return s.normalizer.Key(text)
}

// newHistory builds a request-scoped history source so the event-log
// availability probe is re-evaluated per call
func (s *Service) newHistory() *HistorySource {
	h := NewHistorySource(s.events, s.items, s.normalizer, s.logger)
	h.clock = s.clock
	return h
}
