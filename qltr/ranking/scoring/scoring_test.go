package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestPad tests zero fill and truncation
func TestPad(t *testing.T) {
	assert.Equal(t, []float64{1, 2, 0, 0, 0, 0, 0, 0, 0, 0}, Pad([]float64{1, 2}, 10))
	assert.Equal(t, make([]float64, 10), Pad(nil, 10))
	assert.Equal(t, []float64{3, 4}, Pad([]float64{1, 2, 3, 4}, 2))

	in := []float64{5}
	out := Pad(in, 3)
	out[0] = 9
	assert.Equal(t, 5.0, in[0])
}

// TestEditDistance_Score tests character level Levenshtein distance
func TestEditDistance_Score(t *testing.T) {
	got := EditDistance{}.Score("kitten", []string{"sitting", "kitten", "", "kitte"})
	assert.Equal(t, []float64{3, 0, 6, 1}, got)
	assert.Empty(t, EditDistance{}.Score("x", nil))
}

// TestLengthDiff_Score tests term count differences
func TestLengthDiff_Score(t *testing.T) {
	got := LengthDiff{}.Score("new york hotels", []string{"new york", "hotels", "cheap new york hotels"})
	assert.Equal(t, []float64{1, 2, 1}, got)
}

// TestLength_Score tests that candidate length repeats per history entry
func TestLength_Score(t *testing.T) {
	assert.Equal(t, []float64{2, 2, 2}, Length{}.Score("a b", []string{"x", "y", "z"}))
}

// TestCosineSimilarity_Score tests term frequency cosine
func TestCosineSimilarity_Score(t *testing.T) {
	got := CosineSimilarity{}.Score("a b", []string{"a b", "c d", "a", ""})
	assert.InDelta(t, 1.0, got[0], 1e-9)
	assert.InDelta(t, 0.0, got[1], 1e-9)
	assert.InDelta(t, 1/1.4142135623730951, got[2], 1e-9)
	assert.Equal(t, 0.0, got[3])
}

// TestDefault tests scorer order
func TestDefault(t *testing.T) {
	var names []string
	for _, s := range Default() {
		names = append(names, s.Name())
	}
	assert.Equal(t, []string{"edit_distance", "length_diff", "length", "cosine_similarity"}, names)
}
