package session

import (
	"errors"
	"sort"
	"strings"

	"github.com/armon/go-radix"
)

// ErrEmptyCorpus is returned when frequency statistics are requested from an empty corpus.
var ErrEmptyCorpus = errors.New("background corpus is empty")

// QueryCount pairs a query with its frequency in the corpus.
type QueryCount struct {
	Query Query
	Count int
}

// Corpus is the background bag of queries used for presence checks and
// frequency statistics.
type Corpus struct {
	tree  *radix.Tree
	total int
	order []Query // first-seen order, used to break frequency ties
}

// NewCorpus builds a corpus from a flat list of queries.
func NewCorpus(queries []Query) *Corpus {
	c := &Corpus{tree: radix.New()}
	for _, q := range queries {
		c.Add(q)
	}
	return c
}

// CorpusFromSessions concatenates every query of every session into a corpus.
func CorpusFromSessions(sessions []Session) *Corpus {
	c := &Corpus{tree: radix.New()}
	for _, s := range sessions {
		for _, q := range s {
			c.Add(q)
		}
	}
	return c
}

// Add records one occurrence of q.
func (c *Corpus) Add(q Query) {
	n := 0
	if v, ok := c.tree.Get(q); ok {
		n = v.(int)
	} else {
		c.order = append(c.order, q)
	}
	c.tree.Insert(q, n+1)
	c.total++
}

// Contains reports whether q occurs in the corpus.
func (c *Corpus) Contains(q Query) bool {
	_, ok := c.tree.Get(q)
	return ok
}

// Count returns the frequency of q.
func (c *Corpus) Count(q Query) int {
	if v, ok := c.tree.Get(q); ok {
		return v.(int)
	}
	return 0
}

// Len returns the number of distinct queries.
func (c *Corpus) Len() int { return c.tree.Len() }

// Total returns the number of recorded occurrences.
func (c *Corpus) Total() int { return c.total }

// WithPrefix returns the distinct queries that extend prefix by whole terms,
// prefix itself included when present.
func (c *Corpus) WithPrefix(prefix Query) []Query {
	var out []Query
	c.tree.WalkPrefix(prefix, func(k string, _ interface{}) bool {
		if k == prefix || strings.HasPrefix(k, prefix+" ") {
			out = append(out, k)
		}
		return false
	})
	return out
}

// MostCommon returns up to n queries by descending frequency. Ties keep
// first-seen order.
func (c *Corpus) MostCommon(n int) ([]QueryCount, error) {
	if c.Len() == 0 {
		return nil, ErrEmptyCorpus
	}
	counts := make([]QueryCount, 0, len(c.order))
	for _, q := range c.order {
		counts = append(counts, QueryCount{Query: q, Count: c.Count(q)})
	}
	sort.SliceStable(counts, func(i, j int) bool {
		return counts[i].Count > counts[j].Count
	})
	if n > 0 && n < len(counts) {
		counts = counts[:n]
	}
	return counts, nil
}
