// Package trainer is the boundary to the ranking model: it receives the
// partitions and reports an evaluation metric.
package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/dataset"
)

// Trainer fits a ranking model on grouped partitions.
type Trainer interface {
	Metric() string
	Fit(ctx context.Context, train, validation dataset.Partition) error
	Evaluate(ctx context.Context, test dataset.Partition) (float64, error)
	Save(path string) error
}

var errNotFitted = errors.New("model has not been fitted")

// NDCG returns the mean nDCG@k over the groups of p, ranking rows by scores.
// Rows with a positive label have gain 1.
func NDCG(p dataset.Partition, scores []float64, k int) (float64, error) {
	if len(scores) != p.Len() {
		return 0, fmt.Errorf("%d scores for %d rows", len(scores), p.Len())
	}
	if p.Groups() == 0 {
		return 0, nil
	}

	labels := p.Labels()
	perGroup := make([]float64, p.Groups())
	for g := range perGroup {
		lo, hi := p.Pointers[g], p.Pointers[g+1]
		perGroup[g] = groupNDCG(labels[lo:hi], scores[lo:hi], k)
	}
	return stat.Mean(perGroup, nil), nil
}

func groupNDCG(labels, scores []float64, k int) float64 {
	gains := make([]float64, len(labels))
	for i, l := range labels {
		if l > 0 {
			gains[i] = 1
		}
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })

	ranked := make([]float64, len(order))
	for i, idx := range order {
		ranked[i] = gains[idx]
	}
	ideal := append([]float64(nil), gains...)
	sort.Sort(sort.Reverse(sort.Float64Slice(ideal)))

	idcg := dcg(ideal, k)
	if idcg == 0 {
		return 0
	}
	return dcg(ranked, k) / idcg
}

func dcg(gains []float64, k int) float64 {
	if k > len(gains) {
		k = len(gains)
	}
	sum := 0.0
	for i := 0; i < k; i++ {
		sum += (math.Pow(2, gains[i]) - 1) / math.Log2(float64(i)+2)
	}
	return sum
}

// PriorBaseline ranks candidates by their prior score alone. It stands in
// for a learned model and gives the floor a ranker has to beat.
type PriorBaseline struct {
	K               int     `json:"k"`
	ValidationScore float64 `json:"validation_score"`
	TrainGroups     int     `json:"train_groups"`
	fitted          bool
}

// NewPriorBaseline creates a baseline evaluated with nDCG@k.
func NewPriorBaseline(k int) *PriorBaseline {
	return &PriorBaseline{K: k}
}

func (b *PriorBaseline) Metric() string { return fmt.Sprintf("nDCG@%d", b.K) }

// Fit records the validation metric; the prior needs no training.
func (b *PriorBaseline) Fit(ctx context.Context, train, validation dataset.Partition) error {
	score, err := b.score(validation)
	if err != nil {
		return fmt.Errorf("failed to score validation partition: %w", err)
	}
	b.ValidationScore = score
	b.TrainGroups = train.Groups()
	b.fitted = true
	return nil
}

// Evaluate returns nDCG@k on test.
func (b *PriorBaseline) Evaluate(ctx context.Context, test dataset.Partition) (float64, error) {
	if !b.fitted {
		return 0, errNotFitted
	}
	return b.score(test)
}

func (b *PriorBaseline) score(p dataset.Partition) (float64, error) {
	features := p.Features()
	priors := make([]float64, p.Len())
	for r := range priors {
		priors[r] = features.At(r, 0)
	}
	return NDCG(p, priors, b.K)
}

// Save writes the baseline parameters as JSON.
func (b *PriorBaseline) Save(path string) error {
	if !b.fitted {
		return errNotFitted
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return os.WriteFile(path, raw, 0o644)
}

var _ Trainer = (*PriorBaseline)(nil)
