package models

import (
	"fmt"
	"time"
)

// RunStatus is the lifecycle state of a durable run
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// RunRecord is the journal entry for one durable orchestration run
type RunRecord struct {
	ID          string    `badgerhold:"key"`
	Status      RunStatus `badgerhold:"index"`
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time
}

// StepOutcome records how a journaled step finished
type StepOutcome string

const (
	StepOutcomeCompleted StepOutcome = "completed"
	StepOutcomeFailed    StepOutcome = "failed"
)

// StepRecord is the durably recorded result of one step within a run. A step
// whose record exists is never re-executed when the run is replayed; a crash
// between execution and recording causes re-execution, so steps must tolerate
// at-least-once semantics.
type StepRecord struct {
	Key         string `badgerhold:"key"`
	RunID       string `badgerhold:"index"`
	Seq         int
	Name        string
	Outcome     StepOutcome
	Result      []byte // JSON-encoded step result
	Error       string
	Attempts    int
	CompletedAt time.Time
}

// StepKey builds the journal key for a step within a run. The sequence number
// keeps repeated step names distinct and preserves issue order.
func StepKey(runID string, seq int, name string) string {
	return fmt.Sprintf("%s/%04d:%s", runID, seq, name)
}
