// Package normalize derives canonical keys from free-form item text and
// provides the approximate-equality predicate used for clustering.
package normalize

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// cyrillicToLatin maps lowercase Cyrillic letters to a Latin phonetic
// approximation. Soft and hard signs drop to empty.
var cyrillicToLatin = map[rune]string{
	'а': "a",
	'б': "b",
	'в': "v",
	'г': "g",
	'д': "d",
	'е': "e",
	'ё': "e",
	'ж': "zh",
	'з': "z",
	'и': "i",
	'й': "y",
	'к': "k",
	'л': "l",
	'м': "m",
	'н': "n",
	'о': "o",
	'п': "p",
	'р': "r",
	'с': "s",
	'т': "t",
	'у': "u",
	'ф': "f",
	'х': "h",
	'ц': "ts",
	'ч': "ch",
	'ш': "sh",
	'щ': "shch",
	'ы': "y",
	'э': "e",
	'ю': "yu",
	'я': "ya",
	'ь': "",
	'ъ': "",
}

// Normalizer canonicalizes item text into a comparable key.
type Normalizer struct{}

// NewNormalizer creates a new Normalizer
func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

// Key returns the canonical key for value: transliterated, lowercased,
// reduced to alphanumeric tokens, plural-stripped, deduplicated and
// sorted. An empty result means the value is unclusterable.
func (n *Normalizer) Key(value string) string {
	lower := cases.Lower(language.Und).String(value)

	normalized := collapseLatin(transliterate(lower))
	if normalized == "" {
		// Pure non-Cyrillic non-Latin script: fall back to a
		// Unicode-aware letter/number filter on the lowered original.
		normalized = collapseUnicode(lower)
		if normalized == "" {
			return ""
		}
	}

	tokens := strings.Fields(normalized)
	if len(tokens) == 0 {
		return ""
	}

	seen := make(map[string]struct{}, len(tokens))
	unique := make([]string, 0, len(tokens))
	for _, token := range tokens {
		token = normalizeToken(token)
		if token == "" {
			continue
		}
		if _, ok := seen[token]; ok {
			continue
		}
		seen[token] = struct{}{}
		unique = append(unique, token)
	}

	if len(unique) == 0 {
		return ""
	}

	// Sorting makes the key order-independent.
	sort.Strings(unique)

	return strings.Join(unique, " ")
}

// transliterate replaces Cyrillic letters with their Latin approximation.
func transliterate(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if latin, ok := cyrillicToLatin[r]; ok {
			b.WriteString(latin)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// collapseLatin keeps [a-z0-9], turns ASCII separators into spaces, drops
// any remaining non-ASCII runes and collapses whitespace.
func collapseLatin(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
		case r < 128:
			b.WriteByte(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// collapseUnicode keeps letters and numbers of any script, mapping
// everything else to spaces, and collapses whitespace.
func collapseUnicode(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			b.WriteRune(r)
			continue
		}
		b.WriteByte(' ')
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// normalizeToken strips common English plural suffixes from ASCII
// alphanumeric tokens. Short tokens and non-ASCII tokens are assumed
// morphologically stable and left untouched.
func normalizeToken(token string) string {
	if !isASCIIAlnum(token) {
		return token
	}

	length := len(token)
	if length <= 3 {
		return token
	}

	if length > 4 && strings.HasSuffix(token, "ies") {
		return token[:length-3] + "y"
	}
	if length > 4 && strings.HasSuffix(token, "es") {
		return token[:length-2]
	}
	if length > 4 && strings.HasSuffix(token, "s") {
		return token[:length-1]
	}

	return token
}

func isASCIIAlnum(token string) bool {
	if token == "" {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

// Matcher decides whether two canonical keys denote the same item. The
// thresholds are empirically chosen and tunable, not principled.
type Matcher struct {
	ContainmentRatio  float64
	DistanceRatio     float64
	SimilarityPercent float64
	JaccardThreshold  float64
}

// NewMatcher creates a Matcher with the default thresholds
func NewMatcher() *Matcher {
	return &Matcher{
		ContainmentRatio:  0.75,
		DistanceRatio:     0.22,
		SimilarityPercent: 78.0,
		JaccardThreshold:  0.6,
	}
}

// Match reports whether two keys refer to the same item. Equal keys match
// trivially; otherwise the containment, edit-distance, character-similarity
// and token-overlap rules are independent ORs. Lengths are bytes, not
// runes, on purpose.
func (m *Matcher) Match(first, second string) bool {
	if first == second {
		return true
	}

	maxLength := len(first)
	minLength := len(second)
	if minLength > maxLength {
		maxLength, minLength = minLength, maxLength
	}

	if maxLength == 0 {
		return false
	}

	if maxLength >= 5 && (strings.Contains(first, second) || strings.Contains(second, first)) {
		if float64(minLength)/float64(maxLength) >= m.ContainmentRatio {
			return true
		}
	}

	distanceThreshold := int(math.Floor(float64(maxLength) * m.DistanceRatio))
	if distanceThreshold < 1 {
		distanceThreshold = 1
	}
	if levenshtein(first, second) <= distanceThreshold {
		return true
	}

	if similarityPercent(first, second) >= m.SimilarityPercent {
		return true
	}

	firstTokens := strings.Fields(first)
	secondTokens := strings.Fields(second)
	if len(firstTokens) == 0 || len(secondTokens) == 0 {
		return false
	}

	return jaccard(firstTokens, secondTokens) >= m.JaccardThreshold
}

// levenshtein computes the byte-level edit distance between two strings.
func levenshtein(first, second string) int {
	if first == second {
		return 0
	}
	if len(first) == 0 {
		return len(second)
	}
	if len(second) == 0 {
		return len(first)
	}

	previous := make([]int, len(second)+1)
	current := make([]int, len(second)+1)

	for j := 0; j <= len(second); j++ {
		previous[j] = j
	}

	for i := 1; i <= len(first); i++ {
		current[0] = i
		for j := 1; j <= len(second); j++ {
			cost := 1
			if first[i-1] == second[j-1] {
				cost = 0
			}
			current[j] = min3(
				previous[j]+1,
				current[j-1]+1,
				previous[j-1]+cost,
			)
		}
		previous, current = current, previous
	}

	return previous[len(second)]
}

// similarityPercent reports the character-level similarity of two strings,
// in percent: twice the number of matching characters found by recursive
// longest-common-substring decomposition, over the combined length.
func similarityPercent(first, second string) float64 {
	total := len(first) + len(second)
	if total == 0 {
		return 0
	}
	return float64(commonChars(first, second)) * 2 * 100 / float64(total)
}

func commonChars(first, second string) int {
	posFirst, posSecond, length := longestCommonSubstring(first, second)
	if length == 0 {
		return 0
	}

	sum := length
	sum += commonChars(first[:posFirst], second[:posSecond])
	sum += commonChars(first[posFirst+length:], second[posSecond+length:])
	return sum
}

func longestCommonSubstring(first, second string) (posFirst, posSecond, length int) {
	for i := 0; i < len(first); i++ {
		for j := 0; j < len(second); j++ {
			k := 0
			for i+k < len(first) && j+k < len(second) && first[i+k] == second[j+k] {
				k++
			}
			if k > length {
				posFirst, posSecond, length = i, j, k
			}
		}
	}
	return posFirst, posSecond, length
}

// jaccard computes the token-set Jaccard index of two token lists.
func jaccard(firstTokens, secondTokens []string) float64 {
	firstSet := make(map[string]struct{}, len(firstTokens))
	for _, token := range firstTokens {
		firstSet[token] = struct{}{}
	}
	secondSet := make(map[string]struct{}, len(secondTokens))
	for _, token := range secondTokens {
		secondSet[token] = struct{}{}
	}

	intersection := 0
	for token := range secondSet {
		if _, ok := firstSet[token]; ok {
			intersection++
		}
	}

	union := len(firstSet) + len(secondSet) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
