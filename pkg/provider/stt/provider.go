// Package stt defines the Listener interface for Speech-to-Text backends.
//
// Unlike a streaming dictation interface, the confirmation loop works in
// discrete listening windows: it asks a question, listens for one bounded
// window, and scores whatever was heard. A Listener therefore exposes a
// single blocking Listen call that returns one Transcript per window.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"time"

	"github.com/acuvox/acuvox/pkg/types"
)

// ErrModelUnavailable is returned at construction time when the underlying
// recognition model cannot be loaded. It is fatal: a session must not start
// without a working listener.
var ErrModelUnavailable = errors.New("stt: model unavailable")

// Listener is the abstraction over any speech-to-text backend.
type Listener interface {
	// Listen blocks for at most timeout, transcribing captured audio, and
	// returns the transcript of the window. Silence or a timeout with no
	// speech yields a Transcript with empty Text and a nil error — the
	// caller treats that as a rejected attempt, not a failure. Transient
	// capture problems are recovered inside the window; only unrecoverable
	// conditions (cancelled context, dead model) surface as errors.
	Listen(ctx context.Context, timeout time.Duration) (types.Transcript, error)
}
