// Package dataset labels per-session feature blocks, accumulates them into
// one grouped ranking dataset and partitions it on group boundaries.
package dataset

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/features"
	"github.com/ZanzyTHEbar/query-ltr/qltr/session"
)

const (
	Positive = 1.0
	Negative = -1.0
)

// Rejection says why a session produced no example.
type Rejection int

const (
	Accepted Rejection = iota
	RejectShortSession
	RejectNoCandidates
	RejectTooFewCandidates
	RejectTargetMissing
)

func (r Rejection) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case RejectShortSession:
		return "short_session"
	case RejectNoCandidates:
		return "no_candidates"
	case RejectTooFewCandidates:
		return "too_few_candidates"
	case RejectTargetMissing:
		return "target_missing"
	default:
		return "unknown"
	}
}

// Example is one session's labelled block: row 0 holds labels, the middle
// rows hold features and the last row holds each candidate's rank in the
// group. Columns are candidates.
type Example struct {
	Block       *mat.Dense
	Candidates  []string
	Anchor      string
	Target      string
	TargetIndex int
	Shortenings int
}

// Columns returns the candidate count.
func (e Example) Columns() int {
	_, c := e.Block.Dims()
	return c
}

// ExampleBuilder turns sessions into labelled examples.
type ExampleBuilder struct {
	assembler     *features.Assembler
	minCandidates int
}

// NewExampleBuilder creates a builder that accepts sessions with at least
// minCandidates candidates.
func NewExampleBuilder(assembler *features.Assembler, minCandidates int) *ExampleBuilder {
	return &ExampleBuilder{assembler: assembler, minCandidates: minCandidates}
}

// BlockRows is the row count of every example block.
func (b *ExampleBuilder) BlockRows() int { return b.assembler.Rows() + 2 }

// FeatureRows is the number of feature channels per candidate.
func (b *ExampleBuilder) FeatureRows() int { return b.assembler.Rows() }

// Build labels s. A rejected session returns a non-Accepted Rejection and a
// nil error; errors are reserved for lookup failures.
func (b *ExampleBuilder) Build(ctx context.Context, s session.Session) (Example, Rejection, error) {
	anchor, err := s.Anchor()
	if err != nil {
		return Example{}, RejectShortSession, nil
	}
	target, _ := s.Target()

	block, err := b.assembler.Assemble(ctx, anchor, s)
	if err != nil {
		return Example{}, Accepted, err
	}
	if block.Empty() {
		return Example{}, RejectNoCandidates, nil
	}
	cands := block.Candidates()
	if len(cands) < b.minCandidates {
		return Example{}, RejectTooFewCandidates, nil
	}

	targetIndex := -1
	for i, c := range cands {
		if c == target {
			targetIndex = i
			break
		}
	}
	if targetIndex < 0 {
		return Example{}, RejectTargetMissing, nil
	}

	featureRows, cols := block.Features.Dims()
	out := mat.NewDense(featureRows+2, cols, nil)
	for c := 0; c < cols; c++ {
		label := Negative
		if c == targetIndex {
			label = Positive
		}
		out.Set(0, c, label)
		out.Set(featureRows+1, c, float64(c))
	}
	out.Slice(1, featureRows+1, 0, cols).(*mat.Dense).Copy(block.Features)

	return Example{
		Block:       out,
		Candidates:  cands,
		Anchor:      block.Selection.Anchor,
		Target:      target,
		TargetIndex: targetIndex,
		Shortenings: block.Selection.Shortenings,
	}, Accepted, nil
}
