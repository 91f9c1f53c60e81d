package adjacency

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ZanzyTHEbar/query-ltr/qltr/ranking/adapters"
)

// transitionSchema describes one line of a JSONL adjacency table.
const transitionSchema = `{
  "type": "object",
  "required": ["anchor", "successor", "frequency"],
  "properties": {
    "anchor":    {"type": "string", "minLength": 1},
    "successor": {"type": "string", "minLength": 1},
    "frequency": {"type": "integer", "minimum": 1}
  },
  "additionalProperties": false
}`

var transitionSchemaLoader = gojsonschema.NewStringLoader(transitionSchema)

// LoadJSONL reads a JSONL adjacency table from path.
func LoadJSONL(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open adjacency table %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSONL(f)
}

// ReadJSONL validates each line against the transition schema and builds an index.
func ReadJSONL(r io.Reader) (*Index, error) {
	idx := NewIndex()
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		result, err := gojsonschema.Validate(transitionSchemaLoader, gojsonschema.NewStringLoader(line))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", lineNo, err)
		}
		if !result.Valid() {
			msgs := make([]string, 0, len(result.Errors()))
			for _, e := range result.Errors() {
				msgs = append(msgs, e.String())
			}
			return nil, fmt.Errorf("line %d: %s", lineNo, strings.Join(msgs, "; "))
		}

		var t adapters.Transition
		if err := json.Unmarshal([]byte(line), &t); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		idx.Observe(t.Anchor, t.Successor, t.Frequency)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read adjacency table: %w", err)
	}
	return idx, nil
}

// WriteJSONL writes the index as a JSONL adjacency table.
func WriteJSONL(w io.Writer, idx *Index) error {
	enc := json.NewEncoder(w)
	for _, t := range idx.Transitions() {
		if err := enc.Encode(t); err != nil {
			return fmt.Errorf("failed to write transition: %w", err)
		}
	}
	return nil
}
