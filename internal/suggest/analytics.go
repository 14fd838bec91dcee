package suggest

import (
	"math"
	"sort"
	"strings"
	"time"

	"listkeeper/internal/config"
	"listkeeper/internal/normalize"
	"listkeeper/internal/storage"
)

// Analytics turns ordered history entries into ranked suggestions and
// per-item statistics. It is stateless and safe for concurrent use.
type Analytics struct {
	normalizer *normalize.Normalizer
	matcher    *normalize.Matcher
	cfg        config.SuggestConfig
}

// NewAnalytics creates an analytics engine with the given thresholds
func NewAnalytics(normalizer *normalize.Normalizer, matcher *normalize.Matcher, cfg config.SuggestConfig) *Analytics {
	return &Analytics{
		normalizer: normalizer,
		matcher:    matcher,
		cfg:        cfg,
	}
}

// cluster groups fuzzy-equal history entries. The first canonical key
// seen becomes the cluster's suggestion key and never changes, so state
// rows stay addressable across later variants.
type cluster struct {
	key           string
	samples       []string
	sampleSet     map[string]struct{}
	entries       []HistoryEntry
	variantCounts map[string]int
}

// clusterEntries assigns each entry to the first existing cluster whose
// canonical samples fuzzy-match it, creating a new cluster when none do.
// Entries with an empty canonical key are dropped.
func (a *Analytics) clusterEntries(entries []HistoryEntry) []*cluster {
	var clusters []*cluster

	for _, entry := range entries {
		text := strings.TrimSpace(entry.Text)
		if text == "" {
			continue
		}

		normalized := a.normalizer.Key(text)
		if normalized == "" {
			continue
		}

		target := a.findCluster(clusters, normalized)
		if target == nil {
			target = &cluster{
				key:           normalized,
				sampleSet:     map[string]struct{}{},
				variantCounts: map[string]int{},
			}
			clusters = append(clusters, target)
		}

		if _, seen := target.sampleSet[normalized]; !seen {
			target.sampleSet[normalized] = struct{}{}
			target.samples = append(target.samples, normalized)
		}
		target.entries = append(target.entries, HistoryEntry{Text: text, Timestamp: entry.Timestamp})
		target.variantCounts[text]++
	}

	return clusters
}

func (a *Analytics) findCluster(clusters []*cluster, normalized string) *cluster {
	for _, c := range clusters {
		for _, sample := range c.samples {
			if a.matcher.Match(normalized, sample) {
				return c
			}
		}
	}
	return nil
}

// BuildSuggestions derives due and upcoming suggestions from completion
// history. Clusters below the occurrence floor, with no positive
// intervals, or not yet past the upcoming threshold are omitted.
func (a *Analytics) BuildSuggestions(entries []HistoryEntry, states map[string]*storage.SuggestionState, itemType storage.ItemType, now time.Time) []Suggestion {
	clusters := a.clusterEntries(entries)
	suggestions := make([]Suggestion, 0, len(clusters))

	for _, c := range clusters {
		state := resolveClusterState(c, states)
		survivors := entriesSinceReset(c.entries, state)
		if len(survivors) < a.cfg.MinOccurrences {
			continue
		}
		sortChronologically(survivors)

		avg := averageInterval(survivors)
		if avg <= 0 {
			continue
		}

		last := survivors[len(survivors)-1]
		elapsed := now.Unix() - last.Timestamp.Unix()
		ratio := float64(elapsed) / float64(avg)
		if ratio < a.cfg.UpcomingRatio {
			continue
		}

		nextExpected := last.Timestamp.Add(time.Duration(avg) * time.Second)
		secondsUntil := nextExpected.Unix() - now.Unix()
		if secondsUntil < 0 {
			secondsUntil = 0
		}

		suggestions = append(suggestions, Suggestion{
			SuggestedText:          last.Text,
			SuggestionKey:          c.key,
			Type:                   itemType,
			Occurrences:            len(survivors),
			AverageIntervalSeconds: avg,
			LastAddedAt:            last.Timestamp,
			NextExpectedAt:         nextExpected,
			SecondsUntilExpected:   secondsUntil,
			IsDue:                  ratio >= a.cfg.DueRatio,
			DueRatio:               round2(ratio),
			Confidence:             a.confidence(survivors, avg),
			Variants:               a.topVariants(c.variantCounts),
		})
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		if suggestions[i].IsDue != suggestions[j].IsDue {
			return suggestions[i].IsDue
		}
		if suggestions[i].DueRatio != suggestions[j].DueRatio {
			return suggestions[i].DueRatio > suggestions[j].DueRatio
		}
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].Occurrences > suggestions[j].Occurrences
	})

	return suggestions
}

// BuildStats summarizes completion clusters for display, most frequent
// first. Unlike suggestions, single-occurrence clusters are included;
// their average interval is simply unknown.
func (a *Analytics) BuildStats(entries []HistoryEntry, states map[string]*storage.SuggestionState, limit int) []StatRow {
	clusters := a.clusterEntries(entries)
	rows := make([]StatRow, 0, len(clusters))

	for _, c := range clusters {
		state := resolveClusterState(c, states)
		survivors := entriesSinceReset(c.entries, state)
		if len(survivors) == 0 {
			continue
		}
		sortChronologically(survivors)

		variantCounts := map[string]int{}
		for _, entry := range survivors {
			variantCounts[entry.Text]++
		}

		last := survivors[len(survivors)-1]
		row := StatRow{
			SuggestionKey:   c.key,
			Text:            last.Text,
			Occurrences:     len(survivors),
			LastCompletedAt: last.Timestamp,
			Variants:        a.topVariants(variantCounts),
		}

		if avg := averageInterval(survivors); avg > 0 {
			row.AverageIntervalSeconds = &avg
		}

		if state != nil {
			row.DismissedCount = state.DismissedCount
			row.HiddenUntil = state.HiddenUntil
			row.RetiredAt = state.RetiredAt
			row.ResetAt = state.ResetAt
		}

		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Occurrences != rows[j].Occurrences {
			return rows[i].Occurrences > rows[j].Occurrences
		}
		if !rows[i].LastCompletedAt.Equal(rows[j].LastCompletedAt) {
			return rows[i].LastCompletedAt.After(rows[j].LastCompletedAt)
		}
		return rows[i].SuggestionKey < rows[j].SuggestionKey
	})

	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	return rows
}

// Deduplicate drops later suggestions that repeat an earlier one's key,
// canonical text, or case-folded text. Order is preserved and the
// operation is idempotent.
func (a *Analytics) Deduplicate(suggestions []Suggestion) []Suggestion {
	seen := map[string]struct{}{}
	result := make([]Suggestion, 0, len(suggestions))

	for _, s := range suggestions {
		identity := s.SuggestionKey
		if identity == "" {
			identity = a.normalizer.Key(s.SuggestedText)
		}
		if identity == "" {
			identity = strings.ToLower(strings.TrimSpace(s.SuggestedText))
		}
		if identity == "" {
			continue
		}
		if _, dup := seen[identity]; dup {
			continue
		}
		seen[identity] = struct{}{}
		result = append(result, s)
	}

	return result
}

// resolveClusterState picks the governing state row for a cluster.
// Samples may map to several rows when variants were keyed before they
// merged; the one with the latest reset boundary wins.
func resolveClusterState(c *cluster, states map[string]*storage.SuggestionState) *storage.SuggestionState {
	var best *storage.SuggestionState
	for _, sample := range c.samples {
		state, ok := states[sample]
		if !ok || state == nil {
			continue
		}
		if best == nil {
			best = state
			continue
		}
		if state.ResetAt != nil && (best.ResetAt == nil || state.ResetAt.After(*best.ResetAt)) {
			best = state
		}
	}
	return best
}

// entriesSinceReset keeps entries at or after the reset boundary. A
// completion at the exact reset instant counts as post-reset history.
func entriesSinceReset(entries []HistoryEntry, state *storage.SuggestionState) []HistoryEntry {
	if state == nil || state.ResetAt == nil {
		return entries
	}

	survivors := make([]HistoryEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Timestamp.Before(*state.ResetAt) {
			continue
		}
		survivors = append(survivors, entry)
	}
	return survivors
}

// sortChronologically orders entries by timestamp ascending. Source
// queries already order by time, but merged variants from a degraded
// fallback scan may interleave.
func sortChronologically(entries []HistoryEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Timestamp.Before(entries[j].Timestamp)
	})
}

// averageInterval returns the rounded mean of the positive second gaps
// between consecutive entries, or zero when there are none
func averageInterval(entries []HistoryEntry) int64 {
	deltas := positiveDeltas(entries)
	if len(deltas) == 0 {
		return 0
	}

	var sum int64
	for _, d := range deltas {
		sum += d
	}
	return int64(math.Round(float64(sum) / float64(len(deltas))))
}

func positiveDeltas(entries []HistoryEntry) []int64 {
	var deltas []int64
	for i := 1; i < len(entries); i++ {
		delta := entries[i].Timestamp.Unix() - entries[i-1].Timestamp.Unix()
		if delta > 0 {
			deltas = append(deltas, delta)
		}
	}
	return deltas
}

// confidence blends interval regularity with history depth. Eight
// occurrences saturate the depth term.
func (a *Analytics) confidence(entries []HistoryEntry, avg int64) float64 {
	deltas := positiveDeltas(entries)
	regularity := 0.0
	if len(deltas) > 0 && avg > 0 {
		mean := float64(avg)
		var variance float64
		for _, d := range deltas {
			diff := float64(d) - mean
			variance += diff * diff
		}
		variance /= float64(len(deltas))
		regularity = clamp01(1 - math.Sqrt(variance)/mean)
	}

	depth := clamp01(float64(len(entries)) / 8.0)
	return round2(0.55*regularity + 0.45*depth)
}

// topVariants returns the most frequent display spellings, ties broken
// alphabetically, capped at the configured sample size
func (a *Analytics) topVariants(counts map[string]int) []string {
	variants := make([]string, 0, len(counts))
	for text := range counts {
		variants = append(variants, text)
	}

	sort.Slice(variants, func(i, j int) bool {
		if counts[variants[i]] != counts[variants[j]] {
			return counts[variants[i]] > counts[variants[j]]
		}
		return variants[i] < variants[j]
	})

	if a.cfg.VariantSampleSize > 0 && len(variants) > a.cfg.VariantSampleSize {
		variants = variants[:a.cfg.VariantSampleSize]
	}
	return variants
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
