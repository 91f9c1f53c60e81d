// Package scoring implements the per-history relevance signals computed for
// every candidate next query.
package scoring

import (
	"math"

	"gonum.org/v1/gonum/floats"

	ports "github.com/ZanzyTHEbar/query-ltr/qltr/ranking/ports"
	"github.com/ZanzyTHEbar/query-ltr/qltr/session"
)

// Pad right-fills scores with zeros up to window entries. Scores longer than
// window are truncated to the most recent window entries.
func Pad(scores []float64, window int) []float64 {
	out := make([]float64, window)
	if len(scores) > window {
		scores = scores[len(scores)-window:]
	}
	copy(out, scores)
	return out
}

// Default returns the scorers in feature-row order.
func Default() []ports.Scorer {
	return []ports.Scorer{
		EditDistance{},
		LengthDiff{},
		Length{},
		CosineSimilarity{},
	}
}

// EditDistance is the character Levenshtein distance between the candidate
// and each history query.
type EditDistance struct{}

func (EditDistance) Name() string { return "edit_distance" }

func (EditDistance) Score(candidate string, history []string) []float64 {
	out := make([]float64, len(history))
	for i, h := range history {
		out[i] = float64(levenshtein([]rune(candidate), []rune(h)))
	}
	return out
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// LengthDiff is the absolute difference in term count between the candidate
// and each history query.
type LengthDiff struct{}

func (LengthDiff) Name() string { return "length_diff" }

func (LengthDiff) Score(candidate string, history []string) []float64 {
	n := len(session.Terms(candidate))
	out := make([]float64, len(history))
	for i, h := range history {
		out[i] = math.Abs(float64(n - len(session.Terms(h))))
	}
	return out
}

// Length is the candidate's term count, repeated once per history entry so it
// pads like every other channel.
type Length struct{}

func (Length) Name() string { return "length" }

func (Length) Score(candidate string, history []string) []float64 {
	out := make([]float64, len(history))
	floats.AddConst(float64(len(session.Terms(candidate))), out)
	return out
}

// CosineSimilarity is the term-frequency cosine between the candidate and
// each history query.
type CosineSimilarity struct{}

func (CosineSimilarity) Name() string { return "cosine_similarity" }

func (CosineSimilarity) Score(candidate string, history []string) []float64 {
	out := make([]float64, len(history))
	for i, h := range history {
		out[i] = cosine(candidate, h)
	}
	return out
}

func cosine(a, b string) float64 {
	vocab := make(map[string]int)
	ta, tb := session.Terms(a), session.Terms(b)
	for _, t := range ta {
		if _, ok := vocab[t]; !ok {
			vocab[t] = len(vocab)
		}
	}
	for _, t := range tb {
		if _, ok := vocab[t]; !ok {
			vocab[t] = len(vocab)
		}
	}
	va := make([]float64, len(vocab))
	vb := make([]float64, len(vocab))
	for _, t := range ta {
		va[vocab[t]]++
	}
	for _, t := range tb {
		vb[vocab[t]]++
	}

	na, nb := floats.Norm(va, 2), floats.Norm(vb, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(va, vb) / (na * nb)
}

var (
	_ ports.Scorer = EditDistance{}
	_ ports.Scorer = LengthDiff{}
	_ ports.Scorer = Length{}
	_ ports.Scorer = CosineSimilarity{}
)
