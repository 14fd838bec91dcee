package suggest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listkeeper/internal/config"
	"listkeeper/internal/normalize"
	"listkeeper/internal/storage"
)

func newTestAnalytics() *Analytics {
	return NewAnalytics(normalize.NewNormalizer(), normalize.NewMatcher(), config.DefaultConfig().Suggest)
}

func entriesAt(base time.Time, spacing time.Duration, texts ...string) []HistoryEntry {
	entries := make([]HistoryEntry, 0, len(texts))
	for i, text := range texts {
		entries = append(entries, HistoryEntry{
			Text:      text,
			Timestamp: base.Add(time.Duration(i) * spacing),
		})
	}
	return entries
}

func TestBuildSuggestionsClustersTransliteratedVariants(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	spacing := 72 * time.Hour

	entries := entriesAt(base, spacing, "Молоко", "moloko", "молокоо")
	now := entries[2].Timestamp.Add(spacing)

	suggestions := analytics.BuildSuggestions(entries, map[string]*storage.SuggestionState{}, storage.TypeProduct, now)
	require.Len(t, suggestions, 1)

	s := suggestions[0]
	assert.Equal(t, "moloko", s.SuggestionKey)
	assert.Equal(t, "молокоо", s.SuggestedText)
	assert.Equal(t, 3, s.Occurrences)
	assert.Equal(t, int64(spacing/time.Second), s.AverageIntervalSeconds)
	assert.True(t, s.IsDue)
	assert.Equal(t, int64(0), s.SecondsUntilExpected)
	assert.InDelta(t, 1.0, s.DueRatio, 0.001)
	assert.Equal(t, []string{"moloko", "molokoo", "Молоко"}, s.Variants)
}

func TestBuildSuggestionsUpcomingBelowDueThreshold(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	spacing := 100000 * time.Second

	entries := entriesAt(base, spacing, "milk", "milk", "milk")
	// 80% of the average interval has elapsed
	now := entries[2].Timestamp.Add(80000 * time.Second)

	suggestions := analytics.BuildSuggestions(entries, map[string]*storage.SuggestionState{}, storage.TypeProduct, now)
	require.Len(t, suggestions, 1)

	assert.False(t, suggestions[0].IsDue)
	assert.InDelta(t, 0.8, suggestions[0].DueRatio, 0.001)
	assert.Equal(t, int64(20000), suggestions[0].SecondsUntilExpected)
}

func TestBuildSuggestionsSkipsFreshClusters(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	spacing := 100000 * time.Second

	entries := entriesAt(base, spacing, "milk", "milk", "milk")
	now := entries[2].Timestamp.Add(10000 * time.Second)

	suggestions := analytics.BuildSuggestions(entries, map[string]*storage.SuggestionState{}, storage.TypeProduct, now)
	assert.Empty(t, suggestions)
}

func TestBuildSuggestionsRequiresHistory(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base.Add(30 * 24 * time.Hour)

	// One observation is not a pattern
	one := entriesAt(base, time.Hour, "milk")
	assert.Empty(t, analytics.BuildSuggestions(one, map[string]*storage.SuggestionState{}, storage.TypeProduct, now))

	// Same-instant duplicates collapse to zero positive intervals
	dupes := entriesAt(base, 0, "milk", "milk")
	assert.Empty(t, analytics.BuildSuggestions(dupes, map[string]*storage.SuggestionState{}, storage.TypeProduct, now))
}

func TestBuildSuggestionsSkipsBlankAndUnclusterable(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	now := base.Add(96 * time.Hour)

	entries := []HistoryEntry{
		{Text: "   ", Timestamp: base},
		{Text: "!!!", Timestamp: base.Add(time.Hour)},
		{Text: "milk", Timestamp: base.Add(2 * time.Hour)},
		{Text: "milk", Timestamp: base.Add(26 * time.Hour)},
	}

	suggestions := analytics.BuildSuggestions(entries, map[string]*storage.SuggestionState{}, storage.TypeProduct, now)
	require.Len(t, suggestions, 1)
	assert.Equal(t, "milk", suggestions[0].SuggestionKey)
	assert.Equal(t, 2, suggestions[0].Occurrences)
}

func TestBuildSuggestionsResetBoundary(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	spacing := 24 * time.Hour
	entries := entriesAt(base, spacing, "milk", "milk", "milk", "milk")
	now := entries[3].Timestamp.Add(spacing)

	t.Run("reset after all entries hides the cluster", func(t *testing.T) {
		resetAt := entries[3].Timestamp.Add(time.Second)
		states := map[string]*storage.SuggestionState{
			"milk": {OwnerID: 1, Type: storage.TypeProduct, SuggestionKey: "milk", ResetAt: &resetAt},
		}

		assert.Empty(t, analytics.BuildSuggestions(entries, states, storage.TypeProduct, now))
	})

	t.Run("entries at or after the boundary survive", func(t *testing.T) {
		resetAt := entries[2].Timestamp
		states := map[string]*storage.SuggestionState{
			"milk": {OwnerID: 1, Type: storage.TypeProduct, SuggestionKey: "milk", ResetAt: &resetAt},
		}

		suggestions := analytics.BuildSuggestions(entries, states, storage.TypeProduct, now)
		require.Len(t, suggestions, 1)
		assert.Equal(t, 2, suggestions[0].Occurrences)
	})
}

func TestBuildSuggestionsRanking(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	var entries []HistoryEntry
	// Due cluster: last purchase two intervals ago
	entries = append(entries, entriesAt(base, day, "milk", "milk", "milk")...)
	// Upcoming cluster: last purchase 80% of an interval ago
	entries = append(entries, entriesAt(base.Add(1728*time.Minute), day, "bread", "bread", "bread")...)

	now := base.Add(4 * day) // milk ratio 2.0, bread ratio 0.8

	suggestions := analytics.BuildSuggestions(entries, map[string]*storage.SuggestionState{}, storage.TypeProduct, now)
	require.Len(t, suggestions, 2)
	assert.Equal(t, "milk", suggestions[0].SuggestionKey)
	assert.True(t, suggestions[0].IsDue)
	assert.Equal(t, "bread", suggestions[1].SuggestionKey)
	assert.False(t, suggestions[1].IsDue)
}

func TestBuildSuggestionsConfidence(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	spacing := 24 * time.Hour

	entries := entriesAt(base, spacing, "milk", "milk", "milk")
	now := entries[2].Timestamp.Add(spacing)

	suggestions := analytics.BuildSuggestions(entries, map[string]*storage.SuggestionState{}, storage.TypeProduct, now)
	require.Len(t, suggestions, 1)

	// Perfectly regular intervals: 0.55*1.0 + 0.45*(3/8) = 0.72
	assert.InDelta(t, 0.72, suggestions[0].Confidence, 0.001)
}

func TestBuildStats(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	day := 24 * time.Hour

	var entries []HistoryEntry
	entries = append(entries, entriesAt(base, day, "milk", "Milk", "milk")...)
	entries = append(entries, HistoryEntry{Text: "bread", Timestamp: base.Add(5 * day)})

	rows := analytics.BuildStats(entries, map[string]*storage.SuggestionState{}, 50)
	require.Len(t, rows, 2)

	milk := rows[0]
	assert.Equal(t, "milk", milk.SuggestionKey)
	assert.Equal(t, 3, milk.Occurrences)
	require.NotNil(t, milk.AverageIntervalSeconds)
	assert.Equal(t, int64(day/time.Second), *milk.AverageIntervalSeconds)
	assert.Equal(t, []string{"milk", "Milk"}, milk.Variants)

	bread := rows[1]
	assert.Equal(t, "bread", bread.SuggestionKey)
	assert.Equal(t, 1, bread.Occurrences)
	assert.Nil(t, bread.AverageIntervalSeconds, "single occurrence has no interval")
}

func TestBuildStatsCarriesSuppressionCounters(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	hidden := base.Add(10 * 24 * time.Hour)

	entries := entriesAt(base, 24*time.Hour, "milk", "milk")
	states := map[string]*storage.SuggestionState{
		"milk": {
			OwnerID:        1,
			Type:           storage.TypeProduct,
			SuggestionKey:  "milk",
			DismissedCount: 2,
			HiddenUntil:    &hidden,
		},
	}

	rows := analytics.BuildStats(entries, states, 50)
	require.Len(t, rows, 1)
	assert.Equal(t, 2, rows[0].DismissedCount)
	require.NotNil(t, rows[0].HiddenUntil)
	assert.True(t, rows[0].HiddenUntil.Equal(hidden))
}

func TestBuildStatsLimit(t *testing.T) {
	analytics := newTestAnalytics()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	entries := []HistoryEntry{
		{Text: "toothpaste", Timestamp: base},
		{Text: "watermelon", Timestamp: base.Add(time.Hour)},
		{Text: "detergent", Timestamp: base.Add(2 * time.Hour)},
	}

	rows := analytics.BuildStats(entries, map[string]*storage.SuggestionState{}, 2)
	assert.Len(t, rows, 2)
}

func TestDeduplicateIdempotent(t *testing.T) {
	analytics := newTestAnalytics()

	suggestions := []Suggestion{
		{SuggestionKey: "milk", SuggestedText: "Milk"},
		{SuggestionKey: "milk", SuggestedText: "Milk 2%"},
		{SuggestionKey: "", SuggestedText: "Bread"},
		{SuggestionKey: "", SuggestedText: "bread"},
	}

	once := analytics.Deduplicate(suggestions)
	require.Len(t, once, 2)
	assert.Equal(t, "milk", once[0].SuggestionKey)
	assert.Equal(t, "Bread", once[1].SuggestedText)

	twice := analytics.Deduplicate(once)
	assert.Equal(t, once, twice)
}

func TestTopVariantsOrdering(t *testing.T) {
	analytics := newTestAnalytics()

	variants := analytics.topVariants(map[string]int{
		"Milk":    3,
		"milk":    3,
		"MILK":    1,
		"milk 2%": 2,
		"mlk":     1,
	})

	// Count descending, ties alphabetical, capped at four
	assert.Equal(t, []string{"Milk", "milk", "milk 2%", "MILK"}, variants)
}

func TestResolveClusterStatePrefersLatestReset(t *testing.T) {
	early := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(48 * time.Hour)

	c := &cluster{samples: []string{"milk", "mlk"}}
	states := map[string]*storage.SuggestionState{
		"milk": {SuggestionKey: "milk", ResetAt: &early},
		"mlk":  {SuggestionKey: "mlk", ResetAt: &late},
	}

	resolved := resolveClusterState(c, states)
	require.NotNil(t, resolved)
	assert.Equal(t, "mlk", resolved.SuggestionKey)
}
