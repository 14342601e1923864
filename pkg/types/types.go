// Package types defines the shared types used across all Acuvox packages.
//
// These types form the lingua franca between the audio source, the STT
// listener, the matching engine, and the confirmation loop. They are
// intentionally minimal — each package defines its own domain types, but
// cross-cutting data structures live here to avoid circular imports.
package types

import "time"

// AudioFrame represents a single fixed-size block of audio data flowing
// through the capture hand-off queue. Frames are the atomic unit of audio
// transport: pushed by the capture callback, consumed by a listen attempt.
type AudioFrame struct {
	// PCM audio data, 16-bit signed little-endian.
	Data []byte

	// SampleRate in Hz (e.g., 16000 for STT input).
	SampleRate int

	// Channels: 1 for mono (STT input), 2 for stereo capture devices.
	Channels int

	// Timestamp marks when this frame was captured, relative to stream start.
	Timestamp time.Duration
}

// Transcript represents a finalized speech-to-text result from one bounded
// listen attempt. An empty Text means the attempt timed out on silence; that
// is a normal outcome, not an error.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the STT backend does not report confidence.
	Confidence float64

	// Words contains per-word detail when available. May be nil for backends
	// that don't support word-level output.
	Words []WordDetail

	// Duration is the length of the captured utterance.
	Duration time.Duration
}

// WordDetail holds per-word metadata from STT backends that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Utterance pairs the raw transcript of one listen attempt with its
// normalized form. It is created per attempt and discarded after scoring.
type Utterance struct {
	// Raw is the transcript text exactly as produced by the STT listener.
	Raw string

	// Normalized is the canonical form used for all matching comparisons.
	Normalized string
}
