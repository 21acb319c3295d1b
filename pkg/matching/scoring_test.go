package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLevenshteinDistance(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 0, s.LevenshteinDistance("kitten", "kitten"))
	assert.Equal(t, 3, s.LevenshteinDistance("kitten", "sitting"))
	assert.Equal(t, 5, s.LevenshteinDistance("", "hello"))
}

func TestLevenshteinScore(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.Levenshtein("melville herman", "melville herman"))
	assert.Equal(t, 1.0, s.Levenshtein("", ""))

	// One edit over a 15-rune name stays above a 0.9 threshold.
	score := s.Levenshtein("melville herman", "melville hermann")
	assert.Greater(t, score, 0.9)
	assert.Less(t, score, 1.0)

	// Unrelated names score low.
	assert.Less(t, s.Levenshtein("melville herman", "austen jane"), 0.5)
}

func TestJaroWinkler(t *testing.T) {
	s := NewScorer()

	assert.Equal(t, 1.0, s.JaroWinkler("martha", "martha"))
	assert.Equal(t, 0.0, s.JaroWinkler("abc", "xyz"))

	// Shared prefix boosts the Jaro score.
	assert.Greater(t, s.JaroWinkler("martha", "marhta"), s.Jaro("martha", "marhta"))
}
