package trainer

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/dataset"
)

// LinearOptions configures LinearRanker.
type LinearOptions struct {
	K            int
	Epochs       int
	LearningRate float64
	Subsample    float64 // fraction of training groups visited per epoch
	Seed         uint64
}

// DefaultLinearOptions returns the options used when config leaves them unset.
func DefaultLinearOptions() LinearOptions {
	return LinearOptions{K: 20, Epochs: 50, LearningRate: 0.1, Subsample: 0.5, Seed: 1}
}

// LinearRanker learns one weight per standardized feature from pairwise
// preferences: within a group every positive row should outscore every
// negative one. The epoch with the best validation nDCG is kept.
type LinearRanker struct {
	Options         LinearOptions `json:"options"`
	Weights         []float64     `json:"weights"`
	Mean            []float64     `json:"mean"`
	Scale           []float64     `json:"scale"`
	BestEpoch       int           `json:"best_epoch"`
	ValidationScore float64       `json:"validation_score"`
	fitted          bool
}

// NewLinearRanker creates an unfitted ranker.
func NewLinearRanker(opts LinearOptions) *LinearRanker {
	d := DefaultLinearOptions()
	if opts.K <= 0 {
		opts.K = d.K
	}
	if opts.Epochs <= 0 {
		opts.Epochs = d.Epochs
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = d.LearningRate
	}
	if opts.Subsample <= 0 || opts.Subsample > 1 {
		opts.Subsample = d.Subsample
	}
	return &LinearRanker{Options: opts}
}

func (l *LinearRanker) Metric() string { return fmt.Sprintf("nDCG@%d", l.Options.K) }

// Fit trains on train and selects the epoch by nDCG on validation.
func (l *LinearRanker) Fit(ctx context.Context, train, validation dataset.Partition) error {
	if train.Groups() == 0 {
		return fmt.Errorf("empty training partition")
	}
	x := train.Features()
	rows, cols := x.Dims()
	l.standardize(x)

	xs := mat.NewDense(rows, cols, nil)
	l.transform(xs, x)
	labels := train.Labels()

	rng := rand.New(rand.NewPCG(l.Options.Seed, l.Options.Seed^0x2545f4914f6cdd1d))
	w := make([]float64, cols)
	grad := make([]float64, cols)
	diff := make([]float64, cols)

	l.Weights = make([]float64, cols)
	l.ValidationScore = math.Inf(-1)
	groups := train.Groups()
	visit := int(math.Max(1, math.Floor(l.Options.Subsample*float64(groups))))

	for epoch := 1; epoch <= l.Options.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range grad {
			grad[i] = 0
		}
		pairs := 0
		for _, g := range rng.Perm(groups)[:visit] {
			lo, hi := train.Pointers[g], train.Pointers[g+1]
			for pos := lo; pos < hi; pos++ {
				if labels[pos] <= 0 {
					continue
				}
				for neg := lo; neg < hi; neg++ {
					if labels[neg] > 0 {
						continue
					}
					floats.SubTo(diff, xs.RawRowView(pos), xs.RawRowView(neg))
					// d/dw log(1+exp(-w.diff)) = -sigmoid(-w.diff) * diff
					s := floats.Dot(w, diff)
					floats.AddScaled(grad, -1/(1+math.Exp(s)), diff)
					pairs++
				}
			}
		}
		if pairs > 0 {
			floats.AddScaled(w, -l.Options.LearningRate/float64(pairs), grad)
		}

		score, err := NDCG(validation, l.predict(validation.Features(), w), l.Options.K)
		if err != nil {
			return fmt.Errorf("failed to score validation partition: %w", err)
		}
		if score > l.ValidationScore {
			l.ValidationScore = score
			l.BestEpoch = epoch
			copy(l.Weights, w)
		}
	}
	l.fitted = true
	return nil
}

// Evaluate returns nDCG@k on test.
func (l *LinearRanker) Evaluate(ctx context.Context, test dataset.Partition) (float64, error) {
	if !l.fitted {
		return 0, errNotFitted
	}
	return NDCG(test, l.Score(test.Features()), l.Options.K)
}

// Score returns one relevance score per row of x.
func (l *LinearRanker) Score(x mat.Matrix) []float64 {
	return l.predict(x, l.Weights)
}

// Save writes the weights and standardization as JSON.
func (l *LinearRanker) Save(path string) error {
	if !l.fitted {
		return errNotFitted
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	raw, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

func (l *LinearRanker) standardize(x mat.Matrix) {
	rows, cols := x.Dims()
	l.Mean = make([]float64, cols)
	l.Scale = make([]float64, cols)
	col := make([]float64, rows)
	for c := 0; c < cols; c++ {
		mat.Col(col, c, x)
		mean, std := stat.MeanStdDev(col, nil)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		l.Mean[c], l.Scale[c] = mean, std
	}
}

func (l *LinearRanker) transform(dst *mat.Dense, x mat.Matrix) {
	dst.Apply(func(_, c int, v float64) float64 {
		return (v - l.Mean[c]) / l.Scale[c]
	}, x)
}

func (l *LinearRanker) predict(x mat.Matrix, w []float64) []float64 {
	rows, cols := x.Dims()
	if rows == 0 {
		return nil
	}
	xs := mat.NewDense(rows, cols, nil)
	l.transform(xs, x)
	out := mat.NewVecDense(rows, nil)
	out.MulVec(xs, mat.NewVecDense(cols, w))
	return out.RawVector().Data
}

var _ Trainer = (*LinearRanker)(nil)
