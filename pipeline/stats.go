package pipeline

import (
	"sync"
	"time"

	"github.com/poiesic/pulse/core"
)

// State is the orchestrator's run state.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
)

// Stats is a snapshot of an orchestrator's run history.
type Stats struct {
	State          State
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	RejectedRuns   int
	LastRunID      string
	LastRunAt      time.Time
	LastSuccessAt  time.Time
	LastError      string
	Totals         core.StageCounts
	Tokens         int
	Cost           float64
}

type statsRecorder struct {
	mu sync.Mutex
	s  Stats
}

func (r *statsRecorder) start(runID string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.TotalRuns++
	r.s.LastRunID = runID
	r.s.LastRunAt = at
}

func (r *statsRecorder) finish(report *core.RunReport, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.Totals.Add(report.Counts)
	r.s.Tokens += report.Tokens
	r.s.Cost += report.Cost
	if err != nil {
		r.s.FailedRuns++
		r.s.LastError = err.Error()
		return
	}
	r.s.SuccessfulRuns++
	r.s.LastSuccessAt = report.FinishedAt
	r.s.LastError = ""
}

func (r *statsRecorder) reject() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.s.RejectedRuns++
}

func (r *statsRecorder) snapshot() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.s
}
