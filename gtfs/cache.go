package gtfs

import (
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// SaveIndex writes idx to w using gob encoding.
func SaveIndex(idx *Index, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(idx); err != nil {
		return fmt.Errorf("failed to encode GTFS index: %w", err)
	}
	return nil
}

// LoadIndex reads an index written by SaveIndex.
func LoadIndex(r io.Reader) (*Index, error) {
	idx := NewIndex()
	if err := gob.NewDecoder(r).Decode(idx); err != nil {
		return nil, fmt.Errorf("failed to decode GTFS index: %w", err)
	}
	return idx, nil
}

// SaveFile writes idx to path, replacing it atomically.
func SaveFile(idx *Index, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".gtfs-index-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if err := SaveIndex(idx, tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadCacheFile reads an index from path.
func LoadCacheFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache file: %w", err)
	}
	defer f.Close()
	return LoadIndex(f)
}
