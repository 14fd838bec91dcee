package suggest

import (
	"context"
	"fmt"
	"time"

	"listkeeper/internal/storage"
)

// escalation windows for repeated dismissals
const (
	firstHideSeconds = 86400
	retireThreshold  = 4
)

// StateManager owns the per-key suppression lifecycle: each dismissal
// hides a suggestion for a longer window, the fourth retires it, and a
// reset wipes the slate and moves the history boundary forward.
type StateManager struct {
	states storage.StateStore
	clock  func() time.Time
}

// NewStateManager creates a state manager over the given store
func NewStateManager(states storage.StateStore) *StateManager {
	return &StateManager{
		states: states,
		clock:  time.Now,
	}
}

// StatesByOwner loads every state row for an owner and type, keyed by
// suggestion key
func (m *StateManager) StatesByOwner(ctx context.Context, ownerID int64, itemType storage.ItemType) (map[string]*storage.SuggestionState, error) {
	states, err := m.states.ListByOwner(ctx, ownerID, itemType)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion states: %w", err)
	}
	return states, nil
}

// StatesByKeys loads only the state rows for the given keys, keyed by
// suggestion key. Used by the filtering step so it sees fresh rows for
// exactly the keys that survived analysis.
func (m *StateManager) StatesByKeys(ctx context.Context, ownerID int64, itemType storage.ItemType, keys []string) (map[string]*storage.SuggestionState, error) {
	if len(keys) == 0 {
		return map[string]*storage.SuggestionState{}, nil
	}
	states, err := m.states.ListByKeys(ctx, ownerID, itemType, keys)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion states: %w", err)
	}
	return states, nil
}

// Dismiss records one more dismissal for a key. The hide window grows
// with the count: a day, then half the item's average interval, then the
// full interval. The fourth dismissal retires the key instead of hiding
// it, and zeroes the count so a later reset starts clean.
func (m *StateManager) Dismiss(ctx context.Context, ownerID int64, itemType storage.ItemType, key string, avgIntervalSeconds int64) (*storage.SuggestionState, error) {
	state, err := m.loadOrCreate(ctx, ownerID, itemType, key)
	if err != nil {
		return nil, err
	}
	if state.RetiredAt != nil {
		// Already retired; only an explicit reset revives the key.
		return state, nil
	}

	now := m.clock()
	count := state.DismissedCount + 1

	if count >= retireThreshold {
		state.DismissedCount = 0
		state.HiddenUntil = nil
		state.RetiredAt = &now
	} else {
		hide := hideWindowSeconds(count, avgIntervalSeconds)
		until := now.Add(time.Duration(hide) * time.Second)
		state.DismissedCount = count
		state.HiddenUntil = &until
		state.RetiredAt = nil
	}

	if err := m.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save dismissal: %w", err)
	}
	return state, nil
}

// Reset clears all suppression for a key and stamps the reset boundary,
// so only history from this moment on feeds future predictions
func (m *StateManager) Reset(ctx context.Context, ownerID int64, itemType storage.ItemType, key string) (*storage.SuggestionState, error) {
	state, err := m.loadOrCreate(ctx, ownerID, itemType, key)
	if err != nil {
		return nil, err
	}

	now := m.clock()
	state.DismissedCount = 0
	state.HiddenUntil = nil
	state.RetiredAt = nil
	state.ResetAt = &now

	if err := m.states.Save(ctx, state); err != nil {
		return nil, fmt.Errorf("failed to save reset: %w", err)
	}
	return state, nil
}

// FilterSuppressed drops suggestions whose key is retired or still
// inside a hide window. Suggestions without a state row pass through.
func (m *StateManager) FilterSuppressed(suggestions []Suggestion, states map[string]*storage.SuggestionState, now time.Time) []Suggestion {
	visible := make([]Suggestion, 0, len(suggestions))
	for _, s := range suggestions {
		state, ok := states[s.SuggestionKey]
		if ok && state != nil {
			if state.RetiredAt != nil {
				continue
			}
			if state.HiddenUntil != nil && state.HiddenUntil.After(now) {
				continue
			}
		}
		visible = append(visible, s)
	}
	return visible
}

func (m *StateManager) loadOrCreate(ctx context.Context, ownerID int64, itemType storage.ItemType, key string) (*storage.SuggestionState, error) {
	state, err := m.states.Get(ctx, ownerID, itemType, key)
	if err != nil {
		return nil, fmt.Errorf("failed to load suggestion state: %w", err)
	}
	if state == nil {
		state = &storage.SuggestionState{
			OwnerID:       ownerID,
			Type:          itemType,
			SuggestionKey: key,
		}
	}
	return state, nil
}

// hideWindowSeconds returns how long a dismissal hides the key. The
// second window never shrinks below a day; the third never below a
// second, even for items with no known interval.
func hideWindowSeconds(count int, avgIntervalSeconds int64) int64 {
	switch count {
	case 1:
		return firstHideSeconds
	case 2:
		half := avgIntervalSeconds / 2
		if half < firstHideSeconds {
			return firstHideSeconds
		}
		return half
	default:
		if avgIntervalSeconds < 1 {
			return 1
		}
		return avgIntervalSeconds
	}
}
