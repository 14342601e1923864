// Package audit persists validation records for traceability.
//
// Two backends are provided: an append-only JSON-lines file store for
// single-machine deployments, and a PostgreSQL store that additionally
// keeps a pgvector index of validated utterances for later similarity
// analysis (which phrasings actually validate in the field).
package audit

import (
	"context"
	"time"

	"github.com/acuvox/acuvox/internal/confirm"
)

// Store persists validation records.
type Store interface {
	// SaveRecord persists one finished validation record under sessionID.
	SaveRecord(ctx context.Context, sessionID string, rec confirm.ValidationRecord) error
}

// Entry is the envelope written for every saved record.
type Entry struct {
	Timestamp time.Time                `json:"timestamp"`
	SessionID string                   `json:"session_id"`
	Record    confirm.ValidationRecord `json:"record"`
}
