package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCorpus_Counts tests presence and frequency bookkeeping
func TestCorpus_Counts(t *testing.T) {
	c := NewCorpus([]Query{"rare", "weather", "weather", "rare unique"})

	assert.True(t, c.Contains("rare"))
	assert.False(t, c.Contains("rare unique phrase"))
	assert.Equal(t, 2, c.Count("weather"))
	assert.Equal(t, 0, c.Count("missing"))
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, 4, c.Total())
}

// TestCorpus_MostCommon tests frequency ordering with first-seen tie breaks
func TestCorpus_MostCommon(t *testing.T) {
	c := CorpusFromSessions([]Session{
		{"b", "a", "c"},
		{"a", "c", "d"},
	})

	top, err := c.MostCommon(3)
	require.NoError(t, err)
	assert.Equal(t, []QueryCount{{"a", 2}, {"c", 2}, {"b", 1}}, top)

	all, err := c.MostCommon(100)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = NewCorpus(nil).MostCommon(10)
	assert.ErrorIs(t, err, ErrEmptyCorpus)
}

// TestCorpus_WithPrefix tests term-aligned prefix walks
func TestCorpus_WithPrefix(t *testing.T) {
	c := NewCorpus([]Query{"new york", "new york hotels", "newark", "new"})

	assert.ElementsMatch(t, []Query{"new york", "new york hotels"}, c.WithPrefix("new york"))
	assert.ElementsMatch(t, []Query{"new", "new york", "new york hotels"}, c.WithPrefix("new"))
}
