// Package features turns an anchor query and its session history into the
// fixed-shape feature block for one ranking group.
package features

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/candidates"
	ports "github.com/ZanzyTHEbar/query-ltr/qltr/ranking/ports"
	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/scoring"
	"github.com/ZanzyTHEbar/query-ltr/qltr/session"
)

// Block holds one row per feature channel and one column per candidate.
// Row 0 is the prior score; scorer j owns rows 1+j*window .. (j+1)*window.
type Block struct {
	Features  *mat.Dense
	Selection candidates.Selection
}

// Empty reports whether no candidates were selected.
func (b Block) Empty() bool {
	return b.Features == nil || b.Selection.Len() == 0
}

// Candidates returns the column order of the block.
func (b Block) Candidates() []string { return b.Selection.Queries }

// Assembler builds feature blocks from a candidate policy and scorers.
type Assembler struct {
	policy  candidates.Policy
	scorers []ports.Scorer
	window  int
}

// NewAssembler creates an assembler. Scorers contribute rows in the given order.
func NewAssembler(policy candidates.Policy, scorers []ports.Scorer, window int) *Assembler {
	return &Assembler{policy: policy, scorers: scorers, window: window}
}

// Rows is the feature row count, identical for every session.
func (a *Assembler) Rows() int { return 1 + len(a.scorers)*a.window }

// Window is the fixed history length each scorer is padded to.
func (a *Assembler) Window() int { return a.window }

// FeatureNames names every feature row, prior first.
func (a *Assembler) FeatureNames() []string {
	names := make([]string, 0, a.Rows())
	names = append(names, "prior")
	for _, scorer := range a.scorers {
		for h := 0; h < a.window; h++ {
			names = append(names, fmt.Sprintf("%s_h%d", scorer.Name(), h))
		}
	}
	return names
}

// Scorers returns the scorers in row order.
func (a *Assembler) Scorers() []ports.Scorer { return a.scorers }

// Assemble selects candidates for anchor and scores each one against the
// most recent window queries preceding the target of s.
func (a *Assembler) Assemble(ctx context.Context, anchor string, s session.Session) (Block, error) {
	sel, err := a.policy.Select(ctx, anchor)
	if err != nil {
		return Block{}, err
	}
	if sel.Len() == 0 {
		return Block{Selection: sel}, nil
	}
	if len(sel.Priors) != sel.Len() {
		return Block{}, fmt.Errorf("anchor %q: %d priors for %d candidates", sel.Anchor, len(sel.Priors), sel.Len())
	}

	history := s.History(a.window)
	features := mat.NewDense(a.Rows(), sel.Len(), nil)
	features.SetRow(0, sel.Priors)

	for c, candidate := range sel.Queries {
		for j, scorer := range a.scorers {
			padded := scoring.Pad(scorer.Score(candidate, history), a.window)
			base := 1 + j*a.window
			for h, v := range padded {
				features.Set(base+h, c, v)
			}
		}
	}

	return Block{Features: features, Selection: sel}, nil
}
