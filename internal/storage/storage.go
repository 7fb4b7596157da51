package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
)

// JSONStorage keeps the archive in a single JSON file, rewritten atomically
// on every save.
type JSONStorage struct {
	mu       sync.RWMutex
	filepath string
	maxRuns  int
	data     *storageData
	now      func() time.Time
}

type storageData struct {
	Runs        []StoredRun `json:"runs"` // oldest first
	LastUpdated time.Time   `json:"last_updated"`
}

// NewJSONStorage opens the archive at path, loading it if the file exists.
// maxRuns <= 0 keeps every run.
func NewJSONStorage(path string, maxRuns int) (*JSONStorage, error) {
	s := &JSONStorage{
		filepath: path,
		maxRuns:  maxRuns,
		data:     &storageData{},
		now:      time.Now,
	}

	if _, err := os.Stat(path); err == nil {
		if err := s.load(); err != nil {
			return nil, fmt.Errorf("loading storage: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("checking storage file: %w", err)
	}

	return s, nil
}

func (s *JSONStorage) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filepath)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	var loaded storageData
	if err := json.Unmarshal(data, &loaded); err != nil {
		return err
	}
	s.data = &loaded
	return nil
}

// save writes the archive through a temp file and rename. Callers hold mu.
func (s *JSONStorage) save() error {
	s.data.LastUpdated = s.now()

	data, err := json.MarshalIndent(s.data, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(s.filepath); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("creating storage directory: %w", err)
		}
	}

	// Write to temp file first
	tmpFile := s.filepath + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0o600); err != nil {
		return err
	}

	// Atomic rename
	if err := os.Rename(tmpFile, s.filepath); err != nil {
		_ = os.Remove(tmpFile)
		return err
	}
	return nil
}

// SaveRun appends result and persists the archive. A run with an existing
// ID replaces it. On a write failure the in-memory archive is unchanged.
func (s *JSONStorage) SaveRun(result models.MultiResult) error {
	if result.RunID == "" {
		return errors.New("run has no ID")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.data.Runs
	s.data.Runs = trim(upsert(prev, StoredRun{SavedAt: s.now(), Result: result}), s.maxRuns)
	if err := s.save(); err != nil {
		s.data.Runs = prev
		return fmt.Errorf("saving run %s: %w", result.RunID, err)
	}
	return nil
}

// Run returns the run with the given ID.
func (s *JSONStorage) Run(id string) (StoredRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return find(s.data.Runs, id)
}

// Runs returns summaries, newest first.
func (s *JSONStorage) Runs(limit int) []RunSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return summaries(s.data.Runs, limit)
}

// Statistics aggregates every stored run.
func (s *JSONStorage) Statistics() Statistics {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return computeStatistics(s.data.Runs)
}

// upsert returns a new slice with run appended, or replacing the stored run
// with the same ID in place.
func upsert(runs []StoredRun, run StoredRun) []StoredRun {
	out := make([]StoredRun, 0, len(runs)+1)
	replaced := false
	for _, r := range runs {
		if r.Result.RunID == run.Result.RunID {
			out = append(out, run)
			replaced = true
			continue
		}
		out = append(out, r)
	}
	if !replaced {
		out = append(out, run)
	}
	return out
}

func find(runs []StoredRun, id string) (StoredRun, error) {
	for i := len(runs) - 1; i >= 0; i-- {
		if runs[i].Result.RunID == id {
			return runs[i], nil
		}
	}
	return StoredRun{}, fmt.Errorf("%s: %w", id, ErrRunNotFound)
}
