package dataset

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrDegenerateSplit is returned when a split would leave a partition without groups.
var ErrDegenerateSplit = errors.New("too few query groups to form train, validation and test partitions")

// Partition is a contiguous run of whole query groups, backed by a view of
// the dataset matrix.
type Partition struct {
	Name       string
	Rows       *mat.Dense
	Pointers   []int // re-based to 0, one entry per group start plus the end
	FirstGroup int   // index of the first group in the full dataset
	FirstRow   int
}

// Groups returns the number of query groups.
func (p Partition) Groups() int { return len(p.Pointers) - 1 }

// Len returns the number of candidate rows.
func (p Partition) Len() int {
	r, _ := p.Rows.Dims()
	return r
}

// Labels returns column 0.
func (p Partition) Labels() []float64 {
	return mat.Col(nil, 0, p.Rows)
}

// Features returns the feature columns without the label and group index.
func (p Partition) Features() *mat.Dense {
	r, c := p.Rows.Dims()
	return p.Rows.Slice(0, r, 1, c-1).(*mat.Dense)
}

// GroupIndex returns the last column, each candidate's rank in its group.
func (p Partition) GroupIndex() []float64 {
	_, c := p.Rows.Dims()
	return mat.Col(nil, c-1, p.Rows)
}

// Split holds the three partitions in dataset order.
type Split struct {
	Train      Partition
	Validation Partition
	Test       Partition
}

// Partitions returns train, validation and test in order.
func (s Split) Partitions() []Partition {
	return []Partition{s.Train, s.Validation, s.Test}
}

// Proportions of the split: Train of all groups, Validation of the groups
// left after training.
type Proportions struct {
	Train      float64
	Validation float64
}

// DefaultProportions is 55% train, then 40/60 of the remainder, about 20/25 overall.
var DefaultProportions = Proportions{Train: 0.55, Validation: 0.40}

// Cuts returns the group counts of each partition for n groups.
func (p Proportions) Cuts(n int) (train, validation, test int) {
	train = floorCount(p.Train, n)
	remaining := n - train
	validation = floorCount(p.Validation, remaining)
	return train, validation, remaining - validation
}

// floorCount is floor(f*n), tolerant of binary rounding just below an integer.
func floorCount(f float64, n int) int {
	return int(math.Floor(f*float64(n) + 1e-9))
}

// Partition splits d on group boundaries. Every partition must receive at
// least one group.
func (p Proportions) Partition(d *Dataset) (Split, error) {
	pointers, err := QueryGroupPointers(d.Rows(), d.GroupSize)
	if err != nil {
		return Split{}, err
	}
	groups := len(pointers) - 1

	train, validation, test := p.Cuts(groups)
	if train < 1 || validation < 1 || test < 1 {
		return Split{}, fmt.Errorf("%w: %d groups give train=%d validation=%d test=%d",
			ErrDegenerateSplit, groups, train, validation, test)
	}

	return Split{
		Train:      slice(d, "train", pointers, 0, train),
		Validation: slice(d, "validation", pointers, train, train+validation),
		Test:       slice(d, "test", pointers, train+validation, groups),
	}, nil
}

// PartitionDataset splits d with DefaultProportions.
func PartitionDataset(d *Dataset) (Split, error) {
	return DefaultProportions.Partition(d)
}

func slice(d *Dataset, name string, pointers []int, from, to int) Partition {
	_, cols := d.Matrix.Dims()
	start, end := pointers[from], pointers[to]

	rebased := make([]int, to-from+1)
	for i := range rebased {
		rebased[i] = pointers[from+i] - start
	}

	return Partition{
		Name:       name,
		Rows:       d.Matrix.Slice(start, end, 0, cols).(*mat.Dense),
		Pointers:   rebased,
		FirstGroup: from,
		FirstRow:   start,
	}
}
