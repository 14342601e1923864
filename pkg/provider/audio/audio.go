// Package audio defines the frame source abstraction between audio capture
// and the STT listener.
//
// Capture itself is external to this package: a device callback, a network
// receiver, or a file reader pushes [types.AudioFrame] values into a
// [FrameQueue], and the listener consumes them through the [Source]
// interface. The queue is bounded — when the consumer falls behind, new
// frames are dropped rather than blocking the capture path, and the drop
// count is kept for diagnostics.
//
// [FileSource] provides a WAV-backed Source for tests and offline runs.
package audio

import (
	"sync"
	"sync/atomic"

	"github.com/acuvox/acuvox/pkg/types"
)

// Source delivers captured audio frames to a consumer. The Frames channel is
// closed when the source ends (end of file, device shutdown); a consumer must
// treat a closed channel as permanent silence.
type Source interface {
	// Frames returns the channel the source delivers frames on.
	Frames() <-chan types.AudioFrame

	// Close stops the source and releases its resources. Close is
	// idempotent. After Close returns, the Frames channel is closed once
	// pending frames have been drained.
	Close() error
}

// defaultQueueCapacity bounds the capture hand-off queue. At 100 ms frames
// this buffers roughly six seconds of audio.
const defaultQueueCapacity = 64

// Compile-time assertion that FrameQueue satisfies Source.
var _ Source = (*FrameQueue)(nil)

// FrameQueue is a bounded hand-off queue between a capture callback and a
// listen attempt. Push never blocks: when the queue is full the frame is
// dropped and counted, so a slow consumer cannot stall the capture device.
//
// FrameQueue is safe for concurrent use by one producer and one consumer,
// including a Push racing Close during shutdown: a frame pushed after Close
// is counted as dropped.
type FrameQueue struct {
	ch      chan types.AudioFrame
	dropped atomic.Uint64

	mu     sync.RWMutex
	closed bool
}

// NewFrameQueue creates a FrameQueue with the given capacity. A capacity of
// zero or less selects the default.
func NewFrameQueue(capacity int) *FrameQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &FrameQueue{ch: make(chan types.AudioFrame, capacity)}
}

// Push offers a frame to the queue. It returns false if the frame was
// dropped because the queue is full or already closed.
func (q *FrameQueue) Push(frame types.AudioFrame) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		q.dropped.Add(1)
		return false
	}
	select {
	case q.ch <- frame:
		return true
	default:
		q.dropped.Add(1)
		return false
	}
}

// Frames implements [Source].
func (q *FrameQueue) Frames() <-chan types.AudioFrame { return q.ch }

// Dropped returns the number of frames discarded because the queue was full.
func (q *FrameQueue) Dropped() uint64 { return q.dropped.Load() }

// Close implements [Source]. Pending frames remain readable until the
// channel is drained.
func (q *FrameQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.ch)
	}
	return nil
}

// Drain reads from ch until the channel is closed, discarding all values.
// Use this to prevent goroutine leaks when abandoning a source mid-stream.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
