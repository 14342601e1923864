// Package mock provides an in-memory mock implementation of the
// [audio.Source] interface for use in unit tests.
//
// The mock is safe for concurrent use. It exposes exported fields the test
// sets to script the delivered frames, and records Close calls so tests can
// assert on lifecycle behaviour.
//
// Typical usage:
//
//	src := mock.NewSource(
//	    types.AudioFrame{Data: speech, SampleRate: 16000, Channels: 1},
//	    types.AudioFrame{Data: silence, SampleRate: 16000, Channels: 1},
//	)
//	listener, err := whisper.New(modelPath, src)
package mock

import (
	"sync"

	"github.com/acuvox/acuvox/pkg/provider/audio"
	"github.com/acuvox/acuvox/pkg/types"
)

// Compile-time assertion that Source satisfies audio.Source.
var _ audio.Source = (*Source)(nil)

// Source is a mock implementation of [audio.Source] that delivers a scripted
// sequence of frames and then leaves the channel open (simulating a quiet
// capture device) until Close.
type Source struct {
	mu sync.Mutex

	ch   chan types.AudioFrame
	once sync.Once

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// NewSource creates a Source pre-loaded with the given frames, delivered in
// order. The channel buffer is sized to hold them all, so pushing never
// blocks the test.
func NewSource(frames ...types.AudioFrame) *Source {
	capacity := len(frames)
	if capacity < 1 {
		capacity = 1
	}
	s := &Source{ch: make(chan types.AudioFrame, capacity)}
	for _, f := range frames {
		s.ch <- f
	}
	return s
}

// Push appends another frame to the script. It panics if the buffer is full;
// size the source via NewSource for long scripts.
func (s *Source) Push(frame types.AudioFrame) {
	select {
	case s.ch <- frame:
	default:
		panic("mock: source buffer full")
	}
}

// Frames implements [audio.Source].
func (s *Source) Frames() <-chan types.AudioFrame { return s.ch }

// Close implements [audio.Source]. The frames channel is closed so a
// consumer blocked on it wakes up.
func (s *Source) Close() error {
	s.mu.Lock()
	s.CallCountClose++
	s.mu.Unlock()
	s.once.Do(func() { close(s.ch) })
	return nil
}
