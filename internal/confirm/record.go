// Package confirm drives the voice confirmation loop: ask, listen, score,
// and retry until the expected value is validated or the speaker gives up.
//
// One [ValidationRecord] is produced per checklist item and is the exact
// audit trail of the loop: every scored attempt in order, then exactly one
// terminal status. Records serialize to JSON and are persisted by the audit
// stores.
package confirm

import (
	"time"

	"github.com/acuvox/acuvox/internal/match"
)

// Status is the terminal state of one confirmation loop.
type Status string

const (
	// StatusValidated means an attempt was accepted.
	StatusValidated Status = "validated"

	// StatusInterrupted means the speaker said the cancel phrase, or the
	// context was cancelled, before any attempt was accepted.
	StatusInterrupted Status = "interrupted"

	// StatusExhausted means the configured attempt limit was reached
	// without an accepted attempt.
	StatusExhausted Status = "exhausted"

	// StatusSkipped means the item was not run, e.g. its strategy tag is
	// unknown to this build.
	StatusSkipped Status = "skipped"
)

// Attempt is one scored listening window.
type Attempt struct {
	// Raw is the transcript text exactly as recognised.
	Raw string `json:"raw"`

	// Normalized is the canonical form that was matched.
	Normalized string `json:"normalized"`

	// BestCandidate is the expected value the attempt scored highest
	// against, verbatim as configured.
	BestCandidate string `json:"best_candidate,omitempty"`

	// Score is the numeric match score of the attempt.
	Score float64 `json:"score"`

	// Decision is the classifier verdict for the attempt.
	Decision match.Decision `json:"decision"`

	// At is when the attempt was scored.
	At time.Time `json:"at"`
}

// ValidationRecord is the audit trail of one confirmation loop.
type ValidationRecord struct {
	// ID uniquely identifies this record.
	ID string `json:"id"`

	// ItemID is the checklist item the loop confirmed.
	ItemID string `json:"item_id"`

	// Status is the single terminal state of the loop.
	Status Status `json:"status"`

	// Attempts lists every scored attempt in chronological order.
	Attempts []Attempt `json:"attempts"`

	// StartedAt and FinishedAt bound the loop's lifetime.
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}
