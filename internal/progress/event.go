// Package progress defines the diagnostics events emitted by the pipeline.
// The stream is a side channel: omitting it entirely (nil Emitter) does not
// affect the data output.
package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the type of milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart       Stage = "RUN_START"
	StageRunDone        Stage = "RUN_DONE"
	StageSourceFetch    Stage = "SOURCE_FETCH"
	StageContactResolve Stage = "CONTACT_RESOLVE"
	StageSkip           Stage = "SKIP"
)

// Event captures a single component of pipeline progress.
type Event struct {
	// RunID uniquely identifies a pipeline run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Stage denotes which milestone occurred.
	Stage Stage
	// Source optionally scopes the event to a listing source name.
	Source string
	// Location optionally scopes the event to a "City, RG" label.
	Location string
	// URL is the optional page URL involved.
	URL string
	// Count carries a stage-specific tally: postings found for SOURCE_FETCH,
	// records produced for RUN_DONE.
	Count int
	// Dur captures execution latency where it is meaningful.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
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
	case StageRunStart, StageRunDone:
	case StageSourceFetch:
		if e.Source == "" {
			return errors.New("source fetch requires source")
		}
	case StageContactResolve:
		if e.URL == "" {
			return errors.New("contact resolve requires url")
		}
	case StageSkip:
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
