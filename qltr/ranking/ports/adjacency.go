package rankingports

import "context"

// Suggestions are the queries most frequently observed to follow an anchor,
// ordered by descending frequency, with their absolute frequencies as priors.
type Suggestions struct {
	Queries []string  `json:"queries"`
	Priors  []float64 `json:"priors"`
}

// Len returns the number of suggested queries.
func (s Suggestions) Len() int { return len(s.Queries) }

// Adjacency returns up to limit successors of anchor. An anchor with no
// recorded successors yields empty Suggestions and a nil error.
type Adjacency interface {
	Adjacent(ctx context.Context, anchor string, limit int) (Suggestions, error)
}
