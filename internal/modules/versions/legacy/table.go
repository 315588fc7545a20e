package legacy

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Table maps paths of the previous site onto the ids their pages had there.
// Pages migrated from it carry that id as original_id metadata.
type Table struct {
	paths map[string]string
}

type fileFormat struct {
	Paths map[string]int64 `yaml:"paths"`
}

// Empty returns a table without entries.
func Empty() *Table { return &Table{paths: map[string]string{}} }

// Load reads a table file. An empty filename yields an empty table.
func Load(filename string) (*Table, error) {
	if strings.TrimSpace(filename) == "" {
		return Empty(), nil
	}
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("open legacy path table: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a table from YAML of the form:
//
//	paths:
//	  docs/old-guide: 1234
func Parse(r io.Reader) (*Table, error) {
	var raw fileFormat
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode legacy path table: %w", err)
	}
	t := Empty()
	for path, id := range raw.Paths {
		key := normalize(path)
		if key == "" || id <= 0 {
			return nil, fmt.Errorf("legacy path table: invalid entry %q: %d", path, id)
		}
		t.paths[key] = strconv.FormatInt(id, 10)
	}
	return t, nil
}

func normalize(path string) string {
	return strings.Trim(strings.TrimSpace(path), "/")
}

// Lookup returns the legacy id recorded for a relative path.
func (t *Table) Lookup(path string) (string, bool) {
	if t == nil {
		return "", false
	}
	id, ok := t.paths[normalize(path)]
	return id, ok
}

// Len counts the entries.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.paths)
}
