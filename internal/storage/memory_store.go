package storage

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"
)

// ErrUnavailable simulates a missing or broken table in the in-memory
// stores below.
var ErrUnavailable = errors.New("store unavailable")

// MemoryEventStore is an in-memory EventStore for tests and local runs.
// PingErr and FailQueries force the degraded-source branches
// deterministically.
type MemoryEventStore struct {
	mu          sync.RWMutex
	events      []ItemEvent
	nextID      int64
	PingErr     error
	FailQueries bool
	FailWrites  bool
}

// NewMemoryEventStore creates an empty in-memory event store
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{}
}

func (m *MemoryEventStore) Ping(ctx context.Context) error {
	return m.PingErr
}

func (m *MemoryEventStore) Insert(ctx context.Context, event *ItemEvent) error {
	if m.FailWrites {
		return ErrUnavailable
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		m.nextID++
		event.ID = "event-" + strconv.FormatInt(m.nextID, 10)
	}
	m.events = append(m.events, *event)
	return nil
}

func (m *MemoryEventStore) List(ctx context.Context, query EventQuery) ([]ItemEvent, error) {
	if m.FailQueries {
		return nil, ErrUnavailable
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []ItemEvent
	for _, event := range m.events {
		if event.OwnerID == query.OwnerID && event.Type == query.Type &&
			event.Kind == query.Kind && sameScope(event.ListID, query.ListID) {
			matched = append(matched, event)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].OccurredAt.Before(matched[j].OccurredAt)
	})
	return matched, nil
}

func (m *MemoryEventStore) Count(ctx context.Context, query EventQuery) (int, error) {
	events, err := m.List(ctx, query)
	if err != nil {
		return 0, err
	}
	return len(events), nil
}

func (m *MemoryEventStore) CountDistinctKeys(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) (int, error) {
	if m.FailQueries {
		return 0, ErrUnavailable
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	keys := make(map[string]struct{})
	for _, event := range m.events {
		if event.OwnerID == ownerID && event.Type == itemType &&
			sameScope(event.ListID, listID) && event.NormalizedText != "" {
			keys[event.NormalizedText] = struct{}{}
		}
	}
	return len(keys), nil
}

func (m *MemoryEventStore) LastOccurredAt(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) (*time.Time, error) {
	if m.FailQueries {
		return nil, ErrUnavailable
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var last *time.Time
	for _, event := range m.events {
		if event.OwnerID != ownerID || event.Type != itemType || !sameScope(event.ListID, listID) {
			continue
		}
		occurred := event.OccurredAt
		if last == nil || occurred.After(*last) {
			last = &occurred
		}
	}
	return last, nil
}

// Events returns a copy of all stored events, for test assertions
func (m *MemoryEventStore) Events() []ItemEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]ItemEvent(nil), m.events...)
}

// MemoryItemStore is an in-memory ItemStore for tests and local runs
type MemoryItemStore struct {
	mu    sync.RWMutex
	items []ListItem
}

// NewMemoryItemStore creates an empty in-memory item store
func NewMemoryItemStore() *MemoryItemStore {
	return &MemoryItemStore{}
}

// Add stores a live item row
func (m *MemoryItemStore) Add(item ListItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, item)
}

// RemoveAll deletes every live row for an owner, simulating list cleanup
func (m *MemoryItemStore) RemoveAll(ownerID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.items[:0]
	for _, item := range m.items {
		if item.OwnerID != ownerID {
			kept = append(kept, item)
		}
	}
	m.items = kept
}

func (m *MemoryItemStore) ListAdditions(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) ([]ListItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []ListItem
	for _, item := range m.items {
		if item.OwnerID == ownerID && item.Type == itemType && sameScope(item.ListID, listID) {
			matched = append(matched, item)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

func (m *MemoryItemStore) ListCompletions(ctx context.Context, ownerID int64, itemType ItemType, listID *int64) ([]ListItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []ListItem
	for _, item := range m.items {
		if item.OwnerID == ownerID && item.Type == itemType &&
			item.IsCompleted && sameScope(item.ListID, listID) {
			matched = append(matched, item)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		left := completionTime(matched[i])
		right := completionTime(matched[j])
		if !left.Equal(right) {
			return left.Before(right)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

func (m *MemoryItemStore) Count(ctx context.Context, ownerID int64, itemType ItemType, listID *int64, completedOnly bool) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, item := range m.items {
		if item.OwnerID != ownerID || item.Type != itemType || !sameScope(item.ListID, listID) {
			continue
		}
		if completedOnly && !item.IsCompleted {
			continue
		}
		count++
	}
	return count, nil
}

func completionTime(item ListItem) time.Time {
	if item.CompletedAt != nil {
		return *item.CompletedAt
	}
	return item.CreatedAt
}

// MemoryStateStore is an in-memory StateStore for tests and local runs
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]*SuggestionState
}

// NewMemoryStateStore creates an empty in-memory state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[string]*SuggestionState)}
}

func stateKey(ownerID int64, itemType ItemType, key string) string {
	return strconv.FormatInt(ownerID, 10) + "|" + string(itemType) + "|" + key
}

func (m *MemoryStateStore) Get(ctx context.Context, ownerID int64, itemType ItemType, key string) (*SuggestionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	state, ok := m.states[stateKey(ownerID, itemType, key)]
	if !ok {
		return nil, nil
	}
	copied := *state
	return &copied, nil
}

func (m *MemoryStateStore) ListByOwner(ctx context.Context, ownerID int64, itemType ItemType) (map[string]*SuggestionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*SuggestionState)
	for _, state := range m.states {
		if state.OwnerID == ownerID && state.Type == itemType {
			copied := *state
			result[state.SuggestionKey] = &copied
		}
	}
	return result, nil
}

func (m *MemoryStateStore) ListByKeys(ctx context.Context, ownerID int64, itemType ItemType, keys []string) (map[string]*SuggestionState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]*SuggestionState)
	for _, key := range keys {
		if state, ok := m.states[stateKey(ownerID, itemType, key)]; ok {
			copied := *state
			result[key] = &copied
		}
	}
	return result, nil
}

func (m *MemoryStateStore) Save(ctx context.Context, state *SuggestionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *state
	m.states[stateKey(state.OwnerID, state.Type, state.SuggestionKey)] = &copied
	return nil
}

func sameScope(rowListID, queryListID *int64) bool {
	if queryListID == nil {
		return rowListID == nil
	}
	return rowListID != nil && *rowListID == *queryListID
}
