package domain

import "time"

// SyncStats holds statistics about the processing of one source.
type SyncStats struct {
	Source    string
	Fetched   int
	New       int
	Updated   int
	Swapped   int
	Vacated   int
	Errors    int
	Published int
	Duration  time.Duration
}

// RunStats aggregates a whole synchronization run.
type RunStats struct {
	Job       string
	RunID     string
	Sources   int
	Failed    int
	New       int
	Updated   int
	Errors    int
	Published int
	Duration  time.Duration
}

// Add folds the stats of one source into the run totals.
func (r *RunStats) Add(s *SyncStats) {
	r.Sources++
	r.New += s.New
	r.Updated += s.Updated
	r.Errors += s.Errors
	r.Published += s.Published
}

// Total is the number of entries touched by the run.
func (r *RunStats) Total() int {
	return r.New + r.Updated
}
