// Package export writes dataset partitions in the grouped text layout rankers
// consume, plus a JSON manifest describing the run.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/dataset"
)

// PartitionInfo summarizes one exported partition.
type PartitionInfo struct {
	Name       string `json:"name"`
	File       string `json:"file"`
	Groups     int    `json:"groups"`
	Rows       int    `json:"rows"`
	FirstGroup int    `json:"first_group"`
	Pointers   []int  `json:"pointers"`
}

// Manifest describes an exported dataset.
type Manifest struct {
	RunID        string          `json:"run_id"`
	Experiment   string          `json:"experiment"`
	CreatedAt    time.Time       `json:"created_at"`
	GroupSize    int             `json:"group_size"`
	FeatureNames []string        `json:"feature_names"`
	Partitions   []PartitionInfo `json:"partitions"`
}

const manifestSchema = `{
  "type": "object",
  "required": ["run_id", "experiment", "group_size", "feature_names", "partitions"],
  "properties": {
    "run_id":        {"type": "string", "minLength": 1},
    "experiment":    {"type": "string", "enum": ["next_query", "noisy", "long_tail"]},
    "group_size":    {"type": "integer", "minimum": 1},
    "feature_names": {"type": "array", "minItems": 1, "items": {"type": "string"}},
    "partitions": {
      "type": "array",
      "minItems": 3,
      "maxItems": 3,
      "items": {
        "type": "object",
        "required": ["name", "file", "groups", "rows", "pointers"],
        "properties": {
          "groups":   {"type": "integer", "minimum": 1},
          "rows":     {"type": "integer", "minimum": 1},
          "pointers": {"type": "array", "minItems": 2, "items": {"type": "integer", "minimum": 0}}
        }
      }
    }
  }
}`

var manifestSchemaLoader = gojsonschema.NewStringLoader(manifestSchema)

// WriteLETOR writes p as "<label> qid:<group> 1:<f1> ... n:<fn> # <rank>",
// one line per candidate row. Group ids continue from p.FirstGroup.
func WriteLETOR(w io.Writer, p dataset.Partition) error {
	bw := bufio.NewWriter(w)
	features := p.Features()
	labels := p.Labels()
	ranks := p.GroupIndex()
	_, nf := features.Dims()

	var sb strings.Builder
	for g := 0; g < p.Groups(); g++ {
		qid := strconv.Itoa(p.FirstGroup + g)
		for r := p.Pointers[g]; r < p.Pointers[g+1]; r++ {
			sb.Reset()
			sb.WriteString(strconv.FormatFloat(labels[r], 'g', -1, 64))
			sb.WriteString(" qid:")
			sb.WriteString(qid)
			for f := 0; f < nf; f++ {
				sb.WriteByte(' ')
				sb.WriteString(strconv.Itoa(f + 1))
				sb.WriteByte(':')
				sb.WriteString(strconv.FormatFloat(features.At(r, f), 'g', -1, 64))
			}
			sb.WriteString(" # ")
			sb.WriteString(strconv.FormatFloat(ranks[r], 'g', -1, 64))
			sb.WriteByte('\n')
			if _, err := bw.WriteString(sb.String()); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Exporter writes a split into a directory.
type Exporter struct {
	dir string
}

// NewExporter creates an exporter rooted at dir.
func NewExporter(dir string) *Exporter {
	return &Exporter{dir: dir}
}

// Export writes one LETOR file per partition and manifest.json into
// <dir>/<run id>. It returns the run directory.
func (e *Exporter) Export(split dataset.Split, manifest Manifest) (string, error) {
	runDir := filepath.Join(e.dir, manifest.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory %s: %w", runDir, err)
	}

	manifest.Partitions = manifest.Partitions[:0]
	for _, p := range split.Partitions() {
		file := p.Name + ".txt"
		if err := writeFile(filepath.Join(runDir, file), func(w io.Writer) error { return WriteLETOR(w, p) }); err != nil {
			return "", fmt.Errorf("failed to export %s partition: %w", p.Name, err)
		}
		manifest.Partitions = append(manifest.Partitions, PartitionInfo{
			Name:       p.Name,
			File:       file,
			Groups:     p.Groups(),
			Rows:       p.Len(),
			FirstGroup: p.FirstGroup,
			Pointers:   p.Pointers,
		})
	}

	if err := ValidateManifest(manifest); err != nil {
		return "", err
	}
	err := writeFile(filepath.Join(runDir, "manifest.json"), func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(manifest)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write manifest: %w", err)
	}
	return runDir, nil
}

// ValidateManifest checks m against the manifest schema.
func ValidateManifest(m Manifest) error {
	result, err := gojsonschema.Validate(manifestSchemaLoader, gojsonschema.NewGoLoader(m))
	if err != nil {
		return fmt.Errorf("failed to validate manifest: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("invalid manifest: %s", strings.Join(msgs, "; "))
	}
	return nil
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
