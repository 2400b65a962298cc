package artifact

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/programme-lv/pathogen/api"
)

const zstdExt = ".zst"

// DefaultPath is <dir>/pathogen_results_<unix>.json, with .zst appended when
// compress is set.
func DefaultPath(dir string, at time.Time, compress bool) string {
	name := fmt.Sprintf("pathogen_results_%d.json", at.Unix())
	if compress {
		name += zstdExt
	}
	return filepath.Join(dir, name)
}

// Save writes res as indented JSON. Paths ending in .zst are zstd-compressed.
func Save(path string, res *api.Result) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create results dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".pathogen_results.*")
	if err != nil {
		return fmt.Errorf("failed to create results file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, res, isCompressed(path)); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write results file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to move results file into place: %w", err)
	}
	return nil
}

// Load reads an artifact written by Save.
func Load(path string) (*api.Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open results file: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if isCompressed(path) {
		d, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		defer d.Close()
		r = d
	}

	var res api.Result
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("failed to decode results file %s: %w", path, err)
	}
	return &res, nil
}

func encode(w io.Writer, res *api.Result, compress bool) error {
	if !compress {
		return writeJSON(w, res)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return err
	}
	if err := writeJSON(enc, res); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func writeJSON(w io.Writer, res *api.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(res)
}

func isCompressed(path string) bool {
	return strings.HasSuffix(path, zstdExt)
}
