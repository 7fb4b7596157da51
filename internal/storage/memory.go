package storage

import (
	"errors"
	"sync"
	"time"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
)

// MemoryStorage keeps runs for the life of the process. It backs the HTTP
// server when no archive file is configured, and doubles as a test store.
type MemoryStorage struct {
	mu      sync.RWMutex
	runs    []StoredRun
	maxRuns int
	now     func() time.Time

	// SaveErr, when set, is returned by SaveRun without storing the run
	SaveErr error
}

// NewMemoryStorage returns an empty store. maxRuns <= 0 keeps every run.
func NewMemoryStorage(maxRuns int) *MemoryStorage {
	return &MemoryStorage{maxRuns: maxRuns, now: time.Now}
}

// SaveRun stores result.
func (m *MemoryStorage) SaveRun(result models.MultiResult) error {
	if result.RunID == "" {
		return errors.New("run has no ID")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.runs = trim(upsert(m.runs, StoredRun{SavedAt: m.now(), Result: result}), m.maxRuns)
	return nil
}

// Run returns the run with the given ID.
func (m *MemoryStorage) Run(id string) (StoredRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return find(m.runs, id)
}

// Runs returns summaries, newest first.
func (m *MemoryStorage) Runs(limit int) []RunSummary {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return summaries(m.runs, limit)
}

// Statistics aggregates every stored run.
func (m *MemoryStorage) Statistics() Statistics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return computeStatistics(m.runs)
}
