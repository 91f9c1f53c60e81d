package trainer

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/dataset"
)

// indicatorGroups puts the positive of group g at (7*g)%20. The prior grows
// with position and carries no signal; column 2 flags the positive.
func indicatorGroups(groups int) *dataset.Dataset {
	m := mat.NewDense(groups*20, 5, nil)
	for g := 0; g < groups; g++ {
		p := (7 * g) % 20
		for i := 0; i < 20; i++ {
			label, flag := dataset.Negative, 0.0
			if i == p {
				label, flag = dataset.Positive, 1
			}
			m.SetRow(g*20+i, []float64{label, float64(i), flag, 0, float64(i)})
		}
	}
	return &dataset.Dataset{Matrix: m, GroupSize: 20}
}

func TestLinearRanker_LearnsIndicator(t *testing.T) {
	ctx := context.Background()
	split, err := dataset.PartitionDataset(indicatorGroups(10))
	require.NoError(t, err)

	l := NewLinearRanker(LinearOptions{K: 20, Epochs: 20, Seed: 3})
	assert.Equal(t, "nDCG@20", l.Metric())
	_, err = l.Evaluate(ctx, split.Test)
	assert.Error(t, err)

	require.NoError(t, l.Fit(ctx, split.Train, split.Validation))
	require.Len(t, l.Weights, 3)
	assert.Greater(t, l.Weights[1], 0.0)
	assert.Equal(t, 0.0, l.Weights[2], "constant column gets no gradient")
	assert.InDelta(t, 1.0, l.ValidationScore, 1e-9)
	assert.GreaterOrEqual(t, l.BestEpoch, 1)

	score, err := l.Evaluate(ctx, split.Test)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	baseline := NewPriorBaseline(20)
	require.NoError(t, baseline.Fit(ctx, split.Train, split.Validation))
	prior, err := baseline.Evaluate(ctx, split.Test)
	require.NoError(t, err)
	assert.Less(t, prior, score)

	path := filepath.Join(t.TempDir(), "linear.json")
	require.NoError(t, l.Save(path))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var saved LinearRanker
	require.NoError(t, json.Unmarshal(raw, &saved))
	assert.Equal(t, l.Weights, saved.Weights)
	assert.Equal(t, 20, saved.Options.Epochs)
}

func TestLinearRanker_Cancelled(t *testing.T) {
	split, err := dataset.PartitionDataset(indicatorGroups(10))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = NewLinearRanker(LinearOptions{}).Fit(ctx, split.Train, split.Validation)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewLinearRanker_Defaults(t *testing.T) {
	l := NewLinearRanker(LinearOptions{Subsample: 2, Seed: 9})
	want := DefaultLinearOptions()
	want.Seed = 9
	assert.Equal(t, want, l.Options)
}
