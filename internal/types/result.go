package types

import (
	"fmt"
	"time"
)

// Phase is a step of a single sync invocation.
type Phase string

// Phase constants, in pipeline order
const (
	PhaseIdle      Phase = "IDLE"
	PhaseFetching  Phase = "FETCHING"
	PhaseParsing   Phase = "PARSING"
	PhaseDiffing   Phase = "DIFFING"
	PhaseApplying  Phase = "APPLYING"
	PhaseReopening Phase = "REOPENING"
	PhaseReporting Phase = "REPORTING"
)

// Direction names a sync pipeline.
type Direction string

// Direction constants
const (
	DirectionPull      Direction = "external-to-increment"
	DirectionPush      Direction = "increment-to-external"
	DirectionPropagate Direction = "propagate"
)

// SyncResult is the outcome of one sync invocation. It is returned to the caller, never persisted.
type SyncResult struct {
	RunID         string        `json:"run_id,omitempty"`
	Direction     Direction     `json:"direction"`
	Success       bool          `json:"success"`
	DryRun        bool          `json:"dry_run,omitempty"`
	ACsUpdated    int           `json:"acs_updated"`
	TasksUpdated  int           `json:"tasks_updated"`
	TasksReopened int           `json:"tasks_reopened"`
	ACsPropagated int           `json:"acs_propagated"`
	Changes       []SyncChange  `json:"changes,omitempty"`
	Conflicts     []Conflict    `json:"conflicts,omitempty"`
	Errors        []string      `json:"errors,omitempty"`
	Warnings      []string      `json:"warnings,omitempty"`
	Diagnostics   []Diagnostic  `json:"diagnostics,omitempty"`
	Satisfied     []string      `json:"satisfied_stories,omitempty"`
	Reopened      []string      `json:"reopened,omitempty"`
	Phases        []Phase       `json:"phases,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// NewSyncResult returns a successful, empty result for the given direction.
func NewSyncResult(dir Direction) *SyncResult {
	return &SyncResult{Direction: dir, Success: true}
}

// AddError records a failure and marks the run unsuccessful.
func (r *SyncResult) AddError(err error) {
	r.Success = false
	r.Errors = append(r.Errors, err.Error())
}

// AddWarning records a non-fatal message.
func (r *SyncResult) AddWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ConflictCount returns the number of entries that are real conflicts.
func (r *SyncResult) ConflictCount() int {
	n := 0
	for _, c := range r.Conflicts {
		if c.IsConflict() {
			n++
		}
	}
	return n
}
