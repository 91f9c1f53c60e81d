// Package adjacency answers "which queries most often follow this one",
// the suggestion source and prior score for candidate selection.
package adjacency

import (
	"context"
	"sort"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/adapters"
	ports "github.com/ZanzyTHEbar/query-ltr/qltr/ranking/ports"
	"github.com/ZanzyTHEbar/query-ltr/qltr/session"
)

// Index is an in-memory successor table.
type Index struct {
	successors map[string]map[string]int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{successors: make(map[string]map[string]int)}
}

// FromSessions counts every consecutive query pair of every session.
func FromSessions(sessions []session.Session) *Index {
	idx := NewIndex()
	for _, s := range sessions {
		for i := 0; i+1 < len(s); i++ {
			idx.Observe(s[i], s[i+1], 1)
		}
	}
	return idx
}

// FromTransitions builds an index from explicit counts.
func FromTransitions(transitions []adapters.Transition) *Index {
	idx := NewIndex()
	for _, t := range transitions {
		idx.Observe(t.Anchor, t.Successor, t.Frequency)
	}
	return idx
}

// Observe adds n occurrences of successor following anchor.
func (idx *Index) Observe(anchor, successor string, n int) {
	m, ok := idx.successors[anchor]
	if !ok {
		m = make(map[string]int)
		idx.successors[anchor] = m
	}
	m[successor] += n
}

// Len returns the number of anchors with at least one successor.
func (idx *Index) Len() int { return len(idx.successors) }

// Adjacent returns up to limit successors by descending frequency; equal
// frequencies are ordered by query string so results are deterministic.
func (idx *Index) Adjacent(_ context.Context, anchor string, limit int) (ports.Suggestions, error) {
	m := idx.successors[anchor]
	if len(m) == 0 {
		return ports.Suggestions{}, nil
	}

	queries := make([]string, 0, len(m))
	for q := range m {
		queries = append(queries, q)
	}
	sort.Slice(queries, func(i, j int) bool {
		if m[queries[i]] != m[queries[j]] {
			return m[queries[i]] > m[queries[j]]
		}
		return queries[i] < queries[j]
	})
	if limit > 0 && len(queries) > limit {
		queries = queries[:limit]
	}

	priors := make([]float64, len(queries))
	for i, q := range queries {
		priors[i] = float64(m[q])
	}
	return ports.Suggestions{Queries: queries, Priors: priors}, nil
}

// Transitions flattens the index, sorted by anchor then descending frequency.
func (idx *Index) Transitions() []adapters.Transition {
	var out []adapters.Transition
	for anchor, m := range idx.successors {
		for successor, n := range m {
			out = append(out, adapters.Transition{Anchor: anchor, Successor: successor, Frequency: n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Anchor != out[j].Anchor {
			return out[i].Anchor < out[j].Anchor
		}
		if out[i].Frequency != out[j].Frequency {
			return out[i].Frequency > out[j].Frequency
		}
		return out[i].Successor < out[j].Successor
	})
	return out
}

// Ensure Index implements the Adjacency interface.
var _ ports.Adjacency = (*Index)(nil)
