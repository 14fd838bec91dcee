package suggest

import (
	"context"
	"strings"
	"time"

	"listkeeper/internal/logging"
	"listkeeper/internal/normalize"
	"listkeeper/internal/storage"
)

// availability is the cached outcome of the event-log capability probe
type availability int

const (
	availabilityUnknown availability = iota
	availabilityAvailable
	availabilityUnavailable
)

// HistorySource supplies ordered (text, timestamp) observations for item
// additions and completions. It prefers the append-only event log and
// degrades, once per instance lifetime, to scanning live list-item rows.
// Instances are request-scoped and not safe for concurrent use; a fresh
// instance re-probes the log, so an outage self-heals per request once
// the table recovers.
type HistorySource struct {
	events     storage.EventStore
	items      storage.ItemStore
	normalizer *normalize.Normalizer
	logger     logging.Logger
	clock      func() time.Time
	state      availability
}

// NewHistorySource creates a history source over the given stores
func NewHistorySource(events storage.EventStore, items storage.ItemStore, normalizer *normalize.Normalizer, logger logging.Logger) *HistorySource {
	return &HistorySource{
		events:     events,
		items:      items,
		normalizer: normalizer,
		logger:     logger,
		clock:      time.Now,
	}
}

// AdditionEntries returns "item added" observations ordered by time. An
// empty event log falls back to live rows: every existing item implies an
// addition, so an empty log means the log simply has not caught up.
func (h *HistorySource) AdditionEntries(ctx context.Context, ownerID int64, itemType storage.ItemType, listID *int64) ([]HistoryEntry, error) {
	if h.canUseEvents(ctx) {
		events, err := h.events.List(ctx, storage.EventQuery{
			OwnerID: ownerID,
			Type:    itemType,
			Kind:    storage.EventAdded,
			ListID:  listID,
		})
		if err != nil {
			h.markUnavailable(err)
		} else if len(events) > 0 {
			return eventEntries(events), nil
		}
	}

	items, err := h.items.ListAdditions(ctx, ownerID, itemType, listID)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(items))
	for i := range items {
		text := strings.TrimSpace(items[i].Text)
		if text == "" || items[i].CreatedAt.IsZero() {
			continue
		}
		entries = append(entries, HistoryEntry{Text: text, Timestamp: items[i].CreatedAt})
	}
	return entries, nil
}

// CompletionEntries returns "item completed" observations ordered by
// time. Unlike additions, an empty but reachable event log is taken at
// face value: completions legitimately start empty.
func (h *HistorySource) CompletionEntries(ctx context.Context, ownerID int64, itemType storage.ItemType, listID *int64) ([]HistoryEntry, error) {
	if h.canUseEvents(ctx) {
		events, err := h.events.List(ctx, storage.EventQuery{
			OwnerID: ownerID,
			Type:    itemType,
			Kind:    storage.EventCompleted,
			ListID:  listID,
		})
		if err == nil {
			return eventEntries(events), nil
		}
		h.markUnavailable(err)
	}

	items, err := h.items.ListCompletions(ctx, ownerID, itemType, listID)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, 0, len(items))
	for i := range items {
		text := strings.TrimSpace(items[i].Text)
		if text == "" {
			continue
		}
		timestamp := items[i].CreatedAt
		if items[i].CompletedAt != nil {
			timestamp = *items[i].CompletedAt
		}
		if timestamp.IsZero() {
			continue
		}
		entries = append(entries, HistoryEntry{Text: text, Timestamp: timestamp})
	}
	return entries, nil
}

// RecordAdded appends an "added" event for a live item. This is
// fire-and-forget telemetry: it never returns an error to the caller.
func (h *HistorySource) RecordAdded(ctx context.Context, item *storage.ListItem) {
	occurredAt := item.CreatedAt
	if occurredAt.IsZero() {
		occurredAt = h.clock()
	}
	h.recordEvent(ctx, item, storage.EventAdded, occurredAt)
}

// RecordCompleted appends a "completed" event for a live item
func (h *HistorySource) RecordCompleted(ctx context.Context, item *storage.ListItem) {
	occurredAt := h.clock()
	if item.CompletedAt != nil && !item.CompletedAt.IsZero() {
		occurredAt = *item.CompletedAt
	}
	h.recordEvent(ctx, item, storage.EventCompleted, occurredAt)
}

func (h *HistorySource) recordEvent(ctx context.Context, item *storage.ListItem, kind storage.EventKind, occurredAt time.Time) {
	if !h.canUseEvents(ctx) {
		return
	}

	text := strings.TrimSpace(item.Text)
	if text == "" {
		return
	}

	normalized := h.normalizer.Key(text)
	if normalized == "" {
		return
	}

	event := &storage.ItemEvent{
		OwnerID:        item.OwnerID,
		ListID:         item.ListID,
		Type:           item.Type,
		Kind:           kind,
		Text:           text,
		NormalizedText: normalized,
		OccurredAt:     occurredAt,
		SourceItemID:   item.ID,
		Meta: storage.EventMeta{
			IsCompleted: item.IsCompleted,
			SortOrder:   item.SortOrder,
		},
	}

	if err := h.events.Insert(ctx, event); err != nil {
		h.markUnavailable(err)
	}
}

// CountEvents returns the number of logged events of one kind, or zero
// when the log is unavailable
func (h *HistorySource) CountEvents(ctx context.Context, ownerID int64, itemType storage.ItemType, kind storage.EventKind, listID *int64) int {
	if !h.canUseEvents(ctx) {
		return 0
	}

	count, err := h.events.Count(ctx, storage.EventQuery{
		OwnerID: ownerID,
		Type:    itemType,
		Kind:    kind,
		ListID:  listID,
	})
	if err != nil {
		h.markUnavailable(err)
		return 0
	}
	return count
}

// UniqueKeys returns the number of distinct canonical keys in the log,
// or zero when unavailable
func (h *HistorySource) UniqueKeys(ctx context.Context, ownerID int64, itemType storage.ItemType, listID *int64) int {
	if !h.canUseEvents(ctx) {
		return 0
	}

	count, err := h.events.CountDistinctKeys(ctx, ownerID, itemType, listID)
	if err != nil {
		h.markUnavailable(err)
		return 0
	}
	return count
}

// LastActivity returns the most recent logged event time, or nil when
// unavailable or empty
func (h *HistorySource) LastActivity(ctx context.Context, ownerID int64, itemType storage.ItemType, listID *int64) *time.Time {
	if !h.canUseEvents(ctx) {
		return nil
	}

	last, err := h.events.LastOccurredAt(ctx, ownerID, itemType, listID)
	if err != nil {
		h.markUnavailable(err)
		return nil
	}
	return last
}

// canUseEvents probes the event log on first use and caches the outcome
// for the instance lifetime
func (h *HistorySource) canUseEvents(ctx context.Context) bool {
	if h.state != availabilityUnknown {
		return h.state == availabilityAvailable
	}

	if err := h.events.Ping(ctx); err != nil {
		h.state = availabilityUnavailable
		h.logger.Warn("History event log is unavailable, using live-item fallback", "error", err)
		return false
	}

	h.state = availabilityAvailable
	return true
}

// markUnavailable degrades the cached flag after a failed query; the
// instance never re-probes
func (h *HistorySource) markUnavailable(err error) {
	if h.state == availabilityUnavailable {
		return
	}
	h.state = availabilityUnavailable
	h.logger.Warn("History event log failed, using live-item fallback", "error", err)
}

func eventEntries(events []storage.ItemEvent) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(events))
	for i := range events {
		text := strings.TrimSpace(events[i].Text)
		if text == "" || events[i].OccurredAt.IsZero() {
			continue
		}
		entries = append(entries, HistoryEntry{Text: text, Timestamp: events[i].OccurredAt})
	}
	return entries
}
