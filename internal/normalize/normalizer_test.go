package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizerKey(t *testing.T) {
	normalizer := NewNormalizer()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "simple lowercase",
			input:    "Milk",
			expected: "milk",
		},
		{
			name:     "order independent",
			input:    "Milk 2%",
			expected: "2 milk",
		},
		{
			name:     "order independent reversed",
			input:    "2% milk",
			expected: "2 milk",
		},
		{
			name:     "empty input",
			input:    "",
			expected: "",
		},
		{
			name:     "whitespace only",
			input:    "   \t  ",
			expected: "",
		},
		{
			name:     "punctuation only",
			input:    "!!!",
			expected: "",
		},
		{
			name:     "cyrillic transliteration",
			input:    "Молоко",
			expected: "moloko",
		},
		{
			name:     "cyrillic with digraphs",
			input:    "Жёлтый",
			expected: "zheltyy",
		},
		{
			name:     "duplicate tokens collapse",
			input:    "milk milk MILK",
			expected: "milk",
		},
		{
			name:     "plural es stripped",
			input:    "Apples",
			expected: "appl",
		},
		{
			name:     "plural ies to y",
			input:    "berries",
			expected: "berry",
		},
		{
			name:     "plural s stripped",
			input:    "carrots",
			expected: "carrot",
		},
		{
			name:     "short token keeps plural",
			input:    "eggs",
			expected: "eggs",
		},
		{
			name:     "mixed punctuation split",
			input:    "tomato,cucumber",
			expected: "cucumber tomato",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normalizer.Key(tt.input))
		})
	}
}

func TestNormalizerKeyOrderIndependence(t *testing.T) {
	normalizer := NewNormalizer()

	assert.Equal(t, normalizer.Key("Milk 2%"), normalizer.Key("2% milk"))
	assert.Equal(t, normalizer.Key("fresh whole milk"), normalizer.Key("milk whole fresh"))
}

func TestNormalizerKeyNonLatinFallback(t *testing.T) {
	normalizer := NewNormalizer()

	// CJK survives via the Unicode-aware fallback filter
	key := normalizer.Key("牛奶")
	assert.NotEmpty(t, key)
	assert.Equal(t, key, normalizer.Key("牛奶!"))
}

func TestMatcherEquality(t *testing.T) {
	matcher := NewMatcher()

	assert.True(t, matcher.Match("moloko", "moloko"))
	assert.True(t, matcher.Match("", ""))
}

func TestMatcherRules(t *testing.T) {
	matcher := NewMatcher()

	tests := []struct {
		name     string
		first    string
		second   string
		expected bool
	}{
		{
			name:     "single edit on long string",
			first:    "moloko",
			second:   "molokoo",
			expected: true,
		},
		{
			name:     "single edit symmetric",
			first:    "molokoo",
			second:   "moloko",
			expected: true,
		},
		{
			name:     "trailing plural residue",
			first:    "chicken breast",
			second:   "chicken breasts",
			expected: true,
		},
		{
			name:     "containment with high ratio",
			first:    "banana",
			second:   "bananas!",
			expected: true,
		},
		{
			name:     "token overlap",
			first:    "2 milk",
			second:   "2 fresh milk",
			expected: true,
		},
		{
			name:     "unrelated short strings",
			first:    "tea",
			second:   "egg",
			expected: false,
		},
		{
			name:     "unrelated long strings",
			first:    "toothpaste",
			second:   "watermelon",
			expected: false,
		},
		{
			name:     "one side empty",
			first:    "",
			second:   "milk",
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, matcher.Match(tt.first, tt.second))
		})
	}
}

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 0, levenshtein("milk", "milk"))
	assert.Equal(t, 1, levenshtein("moloko", "molokoo"))
	assert.Equal(t, 3, levenshtein("tea", "egg"))
	assert.Equal(t, 4, levenshtein("", "milk"))
}

func TestSimilarityPercent(t *testing.T) {
	assert.InDelta(t, 100.0, similarityPercent("milk", "milk"), 0.001)
	assert.InDelta(t, 0.0, similarityPercent("", ""), 0.001)

	// "moloko" vs "molokoo": 6 common chars over 13 total
	assert.InDelta(t, 2.0*6*100/13, similarityPercent("moloko", "molokoo"), 0.001)
}

func TestJaccard(t *testing.T) {
	assert.InDelta(t, 1.0, jaccard([]string{"a", "b"}, []string{"b", "a"}), 0.001)
	assert.InDelta(t, 0.0, jaccard([]string{"a"}, []string{"b"}), 0.001)
	assert.InDelta(t, 2.0/3.0, jaccard([]string{"2", "milk"}, []string{"2", "milk", "fresh"}), 0.001)
}
