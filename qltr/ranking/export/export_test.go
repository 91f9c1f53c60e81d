package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/dataset"
)

func tinyDataset(groups int) *dataset.Dataset {
	rows, cols := groups*20, 5
	m := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		label := dataset.Negative
		if r%20 == 3 {
			label = dataset.Positive
		}
		m.SetRow(r, []float64{label, float64(r), 0.5, 2, float64(r % 20)})
	}
	return &dataset.Dataset{Matrix: m, GroupSize: 20}
}

// TestWriteLETOR tests the per-row text layout
func TestWriteLETOR(t *testing.T) {
	split, err := dataset.PartitionDataset(tinyDataset(5))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteLETOR(&buf, split.Validation))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 20)
	// validation starts at group 2, row 40
	assert.Equal(t, "-1 qid:2 1:40 2:0.5 3:2 # 0", lines[0])
	assert.Equal(t, "1 qid:2 1:43 2:0.5 3:2 # 3", lines[3])
}

// TestExporter_Export tests files and manifest on disk
func TestExporter_Export(t *testing.T) {
	split, err := dataset.PartitionDataset(tinyDataset(10))
	require.NoError(t, err)

	dir := t.TempDir()
	runDir, err := NewExporter(dir).Export(split, Manifest{
		RunID:        "run-1",
		Experiment:   "next_query",
		GroupSize:    20,
		FeatureNames: []string{"prior", "f1", "f2"},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "run-1"), runDir)

	raw, err := os.ReadFile(filepath.Join(runDir, "manifest.json"))
	require.NoError(t, err)
	var m Manifest
	require.NoError(t, json.Unmarshal(raw, &m))
	require.Len(t, m.Partitions, 3)
	assert.Equal(t, []int{5, 2, 3}, []int{m.Partitions[0].Groups, m.Partitions[1].Groups, m.Partitions[2].Groups})

	total := 0
	for _, p := range m.Partitions {
		f, err := os.Open(filepath.Join(runDir, p.File))
		require.NoError(t, err)
		n := 0
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			n++
		}
		f.Close()
		assert.Equal(t, p.Rows, n, p.Name)
		total += n
	}
	assert.Equal(t, 200, total)
}

// TestValidateManifest tests schema rejection
func TestValidateManifest(t *testing.T) {
	err := ValidateManifest(Manifest{RunID: "x", Experiment: "sideways", GroupSize: 20, FeatureNames: []string{"prior"}})
	assert.Error(t, err)
}
