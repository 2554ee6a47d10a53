package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
)

// FileStore keeps the ledger in a JSON file shaped as {"alerts": {fingerprint: unix}}.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by the file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file.
func (s *FileStore) Path() string { return s.path }

type fileState struct {
	Alerts map[string]float64 `json:"alerts"`
}

func (s *FileStore) Load(_ context.Context) (Ledger, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return New(), nil
	}
	if err != nil {
		return New(), fmt.Errorf("read ledger %s: %w", s.path, err)
	}

	// Older state files stored fractional seconds; truncate them.
	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return New(), fmt.Errorf("parse ledger %s: %w", s.path, err)
	}

	l := make(Ledger, len(state.Alerts))
	for k, ts := range state.Alerts {
		if math.IsNaN(ts) || math.IsInf(ts, 0) {
			continue
		}
		l[k] = int64(ts)
	}
	return l, nil
}

func (s *FileStore) Save(_ context.Context, l Ledger) error {
	state := struct {
		Alerts Ledger `json:"alerts"`
	}{Alerts: l}
	if state.Alerts == nil {
		state.Alerts = New()
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ledger: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create ledger directory: %w", err)
	}

	// Write a sibling temp file, then rename it over the ledger.
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
