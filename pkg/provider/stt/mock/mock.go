// Package mock provides a test double for the stt.Listener interface.
//
// Use Listener to script the transcripts a confirmation loop will hear, in
// order, and to inspect how many listening windows were opened.
//
// Example:
//
//	l := &mock.Listener{Transcripts: []types.Transcript{
//	    {Text: "euh je ne sais pas"},
//	    {Text: "paul dupont"},
//	}}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/acuvox/acuvox/pkg/provider/stt"
	"github.com/acuvox/acuvox/pkg/types"
)

// Compile-time interface assertion.
var _ stt.Listener = (*Listener)(nil)

// ListenCall records a single invocation of Listen.
type ListenCall struct {
	Ctx     context.Context
	Timeout time.Duration
}

// Listener is a mock implementation of stt.Listener. Each Listen call
// returns the next scripted transcript; once the script is exhausted it
// returns empty transcripts, like a silent room.
type Listener struct {
	mu sync.Mutex

	// Transcripts are returned one per Listen call, in order.
	Transcripts []types.Transcript

	// Err, if non-nil, is returned by every Listen call.
	Err error

	// ListenCalls records every call to Listen.
	ListenCalls []ListenCall

	next int
}

// Listen records the call and returns the next scripted transcript.
func (l *Listener) Listen(ctx context.Context, timeout time.Duration) (types.Transcript, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ListenCalls = append(l.ListenCalls, ListenCall{Ctx: ctx, Timeout: timeout})
	if l.Err != nil {
		return types.Transcript{}, l.Err
	}
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, err
	}
	if l.next >= len(l.Transcripts) {
		return types.Transcript{}, nil
	}
	t := l.Transcripts[l.next]
	l.next++
	return t, nil
}
