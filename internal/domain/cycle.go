package domain

import "time"

// CycleReport summarizes one pass over every account.
type CycleReport struct {
	ID        string
	Started   time.Time
	Finished  time.Time
	Accounts  int
	Scanned   int
	New       int
	Delivered int
	Failed    int
	Recorded  int
	Errors    int
	// Aborted is set when the ledger could not persist and the cycle ended early.
	Aborted bool
}

// Duration of the cycle.
func (r CycleReport) Duration() time.Duration {
	if r.Finished.Before(r.Started) {
		return 0
	}
	return r.Finished.Sub(r.Started)
}
