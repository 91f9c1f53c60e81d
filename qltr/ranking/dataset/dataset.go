package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrNoSessionsAccepted is returned when a run accepted no session at all.
	ErrNoSessionsAccepted = errors.New("no sessions accepted")
	// ErrRaggedGroup is returned for an example whose candidate count differs
	// from the fixed group size.
	ErrRaggedGroup = errors.New("example does not match the query group size")
	// ErrRaggedDataset is returned when the row count is not a whole number of groups.
	ErrRaggedDataset = errors.New("dataset rows are not a multiple of the group size")
)

// Dataset is the transposed concatenation of accepted examples: one row per
// (session, candidate) pair. Column 0 is the label, the last column is the
// in-group candidate index, the columns between are features.
type Dataset struct {
	Matrix    *mat.Dense
	GroupSize int
}

// Groups returns the number of query groups.
func (d *Dataset) Groups() int {
	r, _ := d.Matrix.Dims()
	return r / d.GroupSize
}

// Rows returns the number of candidate rows.
func (d *Dataset) Rows() int {
	r, _ := d.Matrix.Dims()
	return r
}

// Accumulator owns the growing dataset buffer. Append examples in input
// order, then Finalize once.
type Accumulator struct {
	groupSize   int
	featureRows int
	data        []float64
	sessions    int
	finalized   bool
}

// NewAccumulator creates an accumulator for blocks with featureRows feature
// channels and groupSize candidates each. expectedSessions presizes the buffer.
func NewAccumulator(featureRows, groupSize, expectedSessions int) *Accumulator {
	width := featureRows + 2
	return &Accumulator{
		groupSize:   groupSize,
		featureRows: featureRows,
		data:        make([]float64, 0, expectedSessions*groupSize*width),
	}
}

// Width is the dataset column count.
func (a *Accumulator) Width() int { return a.featureRows + 2 }

// Sessions returns the number of appended examples.
func (a *Accumulator) Sessions() int { return a.sessions }

// Append transposes ex into groupSize dataset rows.
func (a *Accumulator) Append(ex Example) error {
	if a.finalized {
		return errors.New("accumulator already finalized")
	}
	rows, cols := ex.Block.Dims()
	if cols != a.groupSize {
		return fmt.Errorf("%w: %d candidates, group size %d", ErrRaggedGroup, cols, a.groupSize)
	}
	if rows != a.Width() {
		return fmt.Errorf("example has %d rows, want %d", rows, a.Width())
	}

	for c := 0; c < cols; c++ {
		a.data = append(a.data, mat.Col(nil, c, ex.Block)...)
	}
	a.sessions++
	return nil
}

// Finalize returns the immutable dataset. It fails when nothing was appended.
func (a *Accumulator) Finalize() (*Dataset, error) {
	if a.sessions == 0 {
		return nil, ErrNoSessionsAccepted
	}
	a.finalized = true
	return &Dataset{
		Matrix:    mat.NewDense(a.sessions*a.groupSize, a.Width(), a.data),
		GroupSize: a.groupSize,
	}, nil
}

// QueryGroupPointers returns the row offset of every group start followed by
// the total row count: 0, size, 2*size, ..., rows.
func QueryGroupPointers(rows, groupSize int) ([]int, error) {
	if groupSize <= 0 {
		return nil, fmt.Errorf("group size must be positive: %d", groupSize)
	}
	if rows%groupSize != 0 {
		return nil, fmt.Errorf("%w: %d rows, group size %d", ErrRaggedDataset, rows, groupSize)
	}
	pointers := make([]int, rows/groupSize+1)
	for i := range pointers {
		pointers[i] = i * groupSize
	}
	return pointers, nil
}
