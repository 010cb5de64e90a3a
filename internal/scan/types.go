// Package scan defines core types shared across subsystems.
package scan

import (
	"time"
)

// Identifier is an accession token naming one record in the input dump and
// the corresponding remote MetaboCard page. Opaque beyond comparison.
type Identifier string

// Flag is the binary classification outcome for one record.
type Flag string

// Flag values written to the report.
const (
	FlagYes Flag = "Yes"
	FlagNo  Flag = "No"
)

// Row is the atomic unit appended to the report: one identifier, one flag.
type Row struct {
	ID   Identifier
	Flag Flag
}

// Result is what a fetch worker hands back to the writer. Exactly one of
// Flag or Err is meaningful: Err non-nil means the fetch was abandoned after
// exhausting its retry budget.
type Result struct {
	ID       Identifier
	Flag     Flag
	Attempts int
	Duration time.Duration
	Err      error
}

// RunState is the coordinator lifecycle state.
type RunState string

// Coordinator states. Aborted is reached only on a fatal source or sink
// error; per-identifier fetch failures never leave Running/Draining.
const (
	StateStarting RunState = "starting"
	StateRunning  RunState = "running"
	StateDraining RunState = "draining"
	StateDone     RunState = "done"
	StateAborted  RunState = "aborted"
)

// ResumeSet holds the identifiers already present in the report at startup.
// It is loaded once and treated as immutable for the run.
type ResumeSet map[Identifier]struct{}

// Contains reports whether id was completed by a previous run.
func (s ResumeSet) Contains(id Identifier) bool {
	_, ok := s[id]
	return ok
}

// Summary reports run totals once the coordinator reaches a terminal state.
type Summary struct {
	RunID      string        `json:"run_id"`
	State      RunState      `json:"state"`
	Produced   int64         `json:"produced"`
	Dispatched int64         `json:"dispatched"`
	Succeeded  int64         `json:"succeeded"`
	Failed     int64         `json:"failed"`
	Skipped    int64         `json:"skipped"`
	Elapsed    time.Duration `json:"elapsed"`
}
