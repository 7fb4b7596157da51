// Package storage archives completed screening runs so they can be listed
// and compared later. Screening itself never reads from the archive.
package storage

import (
	"sort"
	"time"

	"github.com/Tapanrajnayak/credit-spread-optimizer/internal/models"
)

// Interface defines the contract for screening run persistence.
//
// Implementations must be safe for concurrent use - callers can assume all methods
// are goroutine-safe and can safely call these methods from multiple goroutines.
type Interface interface {
	// SaveRun archives a completed run. Runs without an ID are rejected.
	SaveRun(result models.MultiResult) error
	// Run returns the stored run with the given ID or ErrRunNotFound.
	Run(id string) (StoredRun, error)
	// Runs returns summaries of the newest runs first. limit <= 0 returns all.
	Runs(limit int) []RunSummary
	// Statistics aggregates every stored run.
	Statistics() Statistics
}

// StoredRun is one archived screening run.
type StoredRun struct {
	SavedAt time.Time          `json:"saved_at"`
	Result  models.MultiResult `json:"result"`
}

// RunSummary is the list view of a stored run.
type RunSummary struct {
	ID              string    `json:"id"`
	SavedAt         time.Time `json:"saved_at"`
	VIX             float64   `json:"vix"`
	Underlyings     []string  `json:"underlyings"`
	Considered      int       `json:"considered"`
	Passed          int       `json:"passed"`
	Recommendations int       `json:"recommendations"`
	TopScore        float64   `json:"top_score"`
}

// Statistics summarizes the archive.
type Statistics struct {
	TotalRuns       int                    `json:"total_runs"`
	RunsWithTrades  int                    `json:"runs_with_trades"`
	TotalConsidered int                    `json:"total_considered"`
	TotalPassed     int                    `json:"total_passed"`
	PassRate        float64                `json:"pass_rate"` // percent of all considered candidates
	Rejections      models.RejectionCounts `json:"rejections"`
	TopRejection    models.RejectionReason `json:"top_rejection,omitempty"`
	LastRunAt       time.Time              `json:"last_run_at,omitempty"`
}

// NewStorage returns a file-backed archive for path, or an in-memory one
// when path is empty.
func NewStorage(path string, maxRuns int) (Interface, error) {
	if path == "" {
		return NewMemoryStorage(maxRuns), nil
	}
	return NewJSONStorage(path, maxRuns)
}

// Ensure both implementations satisfy Interface
var (
	_ Interface = (*JSONStorage)(nil)
	_ Interface = (*MemoryStorage)(nil)
)

func summarize(run StoredRun) RunSummary {
	r := run.Result
	s := RunSummary{
		ID:              r.RunID,
		SavedAt:         run.SavedAt,
		VIX:             r.VIX,
		Underlyings:     append([]string(nil), r.Underlyings...),
		Considered:      r.Considered,
		Passed:          r.Passed,
		Recommendations: len(r.Recommendations),
	}
	if len(r.Recommendations) > 0 {
		s.TopScore = r.Recommendations[0].Score
	}
	return s
}

// summaries lists runs newest first. runs is ordered oldest first.
func summaries(runs []StoredRun, limit int) []RunSummary {
	n := len(runs)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]RunSummary, 0, n)
	for i := len(runs) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, summarize(runs[i]))
	}
	return out
}

func computeStatistics(runs []StoredRun) Statistics {
	stats := Statistics{Rejections: models.NewRejectionCounts()}
	for _, run := range runs {
		r := run.Result
		stats.TotalRuns++
		stats.TotalConsidered += r.Considered
		stats.TotalPassed += r.Passed
		if !r.Empty() {
			stats.RunsWithTrades++
		}
		stats.Rejections.Merge(r.Rejections)
		if run.SavedAt.After(stats.LastRunAt) {
			stats.LastRunAt = run.SavedAt
		}
	}
	if stats.TotalConsidered > 0 {
		stats.PassRate = float64(stats.TotalPassed) / float64(stats.TotalConsidered) * 100
	}

	sorted := stats.Rejections.Sorted()
	// Ties go to the earlier filter
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Count > sorted[j].Count })
	if len(sorted) > 0 {
		stats.TopRejection = sorted[0].Reason
	}
	return stats
}

// trim drops the oldest runs beyond maxRuns.
func trim(runs []StoredRun, maxRuns int) []StoredRun {
	if maxRuns <= 0 || len(runs) <= maxRuns {
		return runs
	}
	return append([]StoredRun(nil), runs[len(runs)-maxRuns:]...)
}
