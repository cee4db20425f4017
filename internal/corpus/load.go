package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// DecodeJSON reads a JSON array of question records. Only a payload that is
// not an array is an error; bad records are reported in the result.
func DecodeJSON(r io.Reader) (*LoadResult, error) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid format: expected JSON array: %w", err)
	}

	drafts := make([]draft, len(raw))
	broken := make(map[int]string)
	for i, msg := range raw {
		var rec record
		if err := json.Unmarshal(msg, &rec); err != nil {
			broken[i] = "malformed record"
			continue
		}
		d, err := rec.toDraft()
		if err != nil {
			broken[i] = err.Error()
			continue
		}
		drafts[i] = d
	}

	return collect(drafts, broken, func(i int) string { return fmt.Sprintf("record %d", i+1) }), nil
}

// LoadFile picks a decoder by extension: .json or .xlsx.
func LoadFile(path string) (*LoadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return DecodeJSON(f)
	case ".xlsx":
		return DecodeXLSX(f, DefaultSheetLayout())
	default:
		return nil, fmt.Errorf("unsupported corpus format %q", filepath.Ext(path))
	}
}

// SaveFile writes the corpus to path in the format its extension names,
// replacing any existing file atomically.
func (c *Corpus) SaveFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create corpus dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".corpus-*")
	if err != nil {
		return fmt.Errorf("create temp corpus: %w", err)
	}
	defer os.Remove(tmp.Name())

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		err = c.ExportJSON(tmp)
	case ".xlsx":
		err = EncodeXLSX(tmp, c.All(), DefaultSheetLayout())
	default:
		err = fmt.Errorf("unsupported corpus format %q", filepath.Ext(path))
	}
	if err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp corpus: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace corpus: %w", err)
	}
	return nil
}
