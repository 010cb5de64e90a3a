// Package progress defines the event stream emitted by the scan pipeline.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StageRunDone    Stage = "RUN_DONE"
	StageRunError   Stage = "RUN_ERROR"
	StageFetchDone  Stage = "FETCH_DONE"
	StageFetchError Stage = "FETCH_ERROR"
	StageResumeSkip Stage = "RESUME_SKIP"
)

// Event captures a single pipeline milestone.
type Event struct {
	// RunID identifies the scan run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// ID is the identifier involved, for fetch and skip stages.
	ID string
	// Flag carries the classification outcome for successful fetches.
	Flag string
	// Attempts is how many HTTP attempts the fetch consumed.
	Attempts int
	// Dur captures fetch latency or total run wall time.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageRunError:
	case StageFetchDone:
		if e.ID == "" {
			return errors.New("fetch done requires id")
		}
		if e.Flag == "" {
			return errors.New("fetch done requires flag")
		}
	case StageFetchError:
		if e.ID == "" {
			return errors.New("fetch error requires id")
		}
	case StageResumeSkip:
		if e.ID == "" {
			return errors.New("resume skip requires id")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for display.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
