package candidates

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/ZanzyTHEbar/query-ltr/qltr/session"
)

// NoiseInjector corrupts sessions with overly common background queries.
// A noisy query is drawn with probability proportional to its frequency
// among the most frequent background queries.
type NoiseInjector struct {
	queries    []string
	weights    []float64
	cumulative []float64
}

// NewNoiseInjector picks the top most frequent queries of corpus as noise.
func NewNoiseInjector(corpus *session.Corpus, top int) (*NoiseInjector, error) {
	counts, err := corpus.MostCommon(top)
	if err != nil {
		return nil, err
	}

	n := &NoiseInjector{
		queries: make([]string, len(counts)),
		weights: make([]float64, len(counts)),
	}
	for i, c := range counts {
		n.queries[i] = c.Query
		n.weights[i] = float64(c.Count)
	}
	n.cumulative = floats.CumSum(make([]float64, len(n.weights)), n.weights)
	return n, nil
}

// Queries returns the noise vocabulary in descending frequency order.
func (n *NoiseInjector) Queries() []string { return n.queries }

// Weights returns the sampling weight of each noise query.
func (n *NoiseInjector) Weights() []float64 { return n.weights }

// Sample draws one noise query. The first cumulative weight boundary at or
// above the uniform draw wins.
func (n *NoiseInjector) Sample(rng *rand.Rand) string {
	total := n.cumulative[len(n.cumulative)-1]
	r := rng.Float64() * total
	i := sort.SearchFloat64s(n.cumulative, r)
	if i >= len(n.queries) {
		i = len(n.queries) - 1
	}
	return n.queries[i]
}

// Perturb returns a copy of s with one uniformly chosen position replaced by
// a sampled noise query.
func (n *NoiseInjector) Perturb(s session.Session, rng *rand.Rand) session.Session {
	out := s.Clone()
	if len(out) == 0 {
		return out
	}
	out[rng.IntN(len(out))] = n.Sample(rng)
	return out
}

// PerturbAll perturbs every session once, in input order.
func (n *NoiseInjector) PerturbAll(sessions []session.Session, rng *rand.Rand) []session.Session {
	out := make([]session.Session, len(sessions))
	for i, s := range sessions {
		out[i] = n.Perturb(s, rng)
	}
	return out
}
