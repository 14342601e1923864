// Package whisper provides a local whisper.cpp-backed STT listener.
//
// It uses the whisper.cpp CGO bindings directly, with no server in between.
// Because whisper.cpp is a batch (non-streaming) transcription engine, the
// listener buffers incoming PCM audio from an [audio.Source], applies an
// energy-based silence detector to find the end of the spoken answer, and
// submits the captured utterance as a single inference call.
//
// The whisper.cpp static library (libwhisper.a) and headers (whisper.h) must
// be available at link time via LIBRARY_PATH and C_INCLUDE_PATH environment
// variables.
//
// Usage:
//
//	l, err := whisper.New("models/ggml-small.bin", source,
//	    whisper.WithLanguage("fr"),
//	    whisper.WithSilenceThresholdMs(500),
//	)
//	transcript, err := l.Listen(ctx, 7*time.Second)
package whisper

import (
	"math"
	"time"
)

const (
	// bitsPerSample is fixed at 16 for the 16-bit signed little-endian PCM
	// audio that whisper.cpp expects.
	bitsPerSample = 16

	// defaultRMSThreshold is the root-mean-square energy level (in 16-bit PCM
	// units) below which audio is considered silent. The maximum possible
	// value for 16-bit audio is 32 767; 300 corresponds to near-silence.
	defaultRMSThreshold = 300.0

	defaultLanguage           = "fr"
	defaultSampleRate         = 16000
	defaultSilenceThresholdMs = 500

	// defaultPollTimeout is how long one wait for the next capture frame may
	// last before the gap itself is counted as silence.
	defaultPollTimeout = 250 * time.Millisecond

	// defaultListenWindow bounds a Listen call whose caller passed no
	// timeout.
	defaultListenWindow = 7 * time.Second
)

// computeRMS returns the root-mean-square amplitude of 16-bit little-endian
// PCM audio. Empty input yields 0.
func computeRMS(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		sample := int16(uint16(pcm[i*2]) | uint16(pcm[i*2+1])<<8)
		sum += float64(sample) * float64(sample)
	}
	return math.Sqrt(sum / float64(n))
}

// chunkDurationMs returns the playback duration of a PCM chunk in
// milliseconds.
func chunkDurationMs(pcm []byte, sampleRate, channels int) int {
	bytesPerMs := sampleRate * channels * (bitsPerSample / 8) / 1000
	if bytesPerMs <= 0 {
		return 0
	}
	return len(pcm) / bytesPerMs
}
