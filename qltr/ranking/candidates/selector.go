// Package candidates proposes the next-query guesses that are ranked for a
// session, together with their prior scores.
package candidates

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	ports "github.com/ZanzyTHEbar/query-ltr/qltr/ranking/ports"
	"github.com/ZanzyTHEbar/query-ltr/qltr/session"
)

// Selection is an ordered candidate set and the anchor it was looked up with.
type Selection struct {
	ports.Suggestions
	Anchor      string // anchor actually passed to the adjacency lookup
	Shortenings int    // terms dropped from the original anchor
}

// Policy selects candidates for an anchor query.
type Policy interface {
	Select(ctx context.Context, anchor string) (Selection, error)
}

// AdjacencyPolicy returns the top-k successors of the anchor itself.
type AdjacencyPolicy struct {
	adjacency ports.Adjacency
	k         int
}

// NewAdjacencyPolicy creates the direct adjacency policy.
func NewAdjacencyPolicy(adjacency ports.Adjacency, k int) *AdjacencyPolicy {
	return &AdjacencyPolicy{adjacency: adjacency, k: k}
}

// Select looks up the anchor's successors. An anchor without successors
// yields an empty selection.
func (p *AdjacencyPolicy) Select(ctx context.Context, anchor string) (Selection, error) {
	s, err := p.adjacency.Adjacent(ctx, anchor, p.k)
	if err != nil {
		return Selection{}, fmt.Errorf("adjacency lookup for %q: %w", anchor, err)
	}
	if len(s.Queries) > p.k {
		s.Queries, s.Priors = s.Queries[:p.k], s.Priors[:p.k]
	}
	return Selection{Suggestions: s, Anchor: anchor}, nil
}

// ShorteningPolicy handles long-tail anchors: it drops trailing terms until
// the anchor occurs in the background corpus or one term remains, then
// falls through to adjacency on the shortened anchor.
type ShorteningPolicy struct {
	adjacency *AdjacencyPolicy
	corpus    *session.Corpus
}

// NewShorteningPolicy creates the iterative-shortening fallback policy.
func NewShorteningPolicy(adjacency ports.Adjacency, corpus *session.Corpus, k int) *ShorteningPolicy {
	return &ShorteningPolicy{adjacency: NewAdjacencyPolicy(adjacency, k), corpus: corpus}
}

func (p *ShorteningPolicy) Select(ctx context.Context, anchor string) (Selection, error) {
	shortened, steps := ShortenAnchor(anchor, p.corpus)
	sel, err := p.adjacency.Select(ctx, shortened)
	if err != nil {
		return Selection{}, err
	}
	sel.Shortenings = steps
	return sel, nil
}

// ShortenAnchor drops the last term of anchor until it is present in corpus
// or a single term remains. It performs at most terms-1 shortenings.
func ShortenAnchor(anchor string, corpus *session.Corpus) (string, int) {
	steps := 0
	for !corpus.Contains(anchor) && len(session.Terms(anchor)) > 1 {
		anchor = ShortenQuery(anchor)
		steps++
	}
	return anchor, steps
}

// ShortenQuery drops the last whitespace-delimited term. A single-term query
// is returned unchanged.
func ShortenQuery(q string) string {
	trimmed := strings.TrimRightFunc(q, unicode.IsSpace)
	i := strings.LastIndexFunc(trimmed, unicode.IsSpace)
	if i < 0 {
		return trimmed
	}
	return strings.TrimRightFunc(trimmed[:i], unicode.IsSpace)
}

var (
	_ Policy = (*AdjacencyPolicy)(nil)
	_ Policy = (*ShorteningPolicy)(nil)
)
