package whisper

import (
	"math"
	"testing"
)

func TestPCMToFloat32(t *testing.T) {
	t.Parallel()

	// Samples: 0, 16384 (0.5), -32768 (-1.0).
	pcm := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x80}
	samples := pcmToFloat32(pcm)

	if len(samples) != 3 {
		t.Fatalf("len = %d, want 3", len(samples))
	}
	if samples[0] != 0 {
		t.Errorf("samples[0] = %v, want 0", samples[0])
	}
	if samples[1] != 0.5 {
		t.Errorf("samples[1] = %v, want 0.5", samples[1])
	}
	if samples[2] != -1.0 {
		t.Errorf("samples[2] = %v, want -1.0", samples[2])
	}
}

func TestPCMToFloat32IgnoresTrailingByte(t *testing.T) {
	t.Parallel()

	if got := pcmToFloat32([]byte{0x00, 0x40, 0xFF}); len(got) != 1 {
		t.Errorf("len = %d, want 1", len(got))
	}
}

func TestComputeRMS(t *testing.T) {
	t.Parallel()

	if rms := computeRMS(nil); rms != 0 {
		t.Errorf("RMS(nil) = %v, want 0", rms)
	}
	if rms := computeRMS(make([]byte, 640)); rms != 0 {
		t.Errorf("RMS(silence) = %v, want 0", rms)
	}

	// A constant amplitude signal has RMS equal to that amplitude.
	pcm := make([]byte, 640)
	for i := 0; i < len(pcm); i += 2 {
		pcm[i] = 0xE8 // 1000 little-endian
		pcm[i+1] = 0x03
	}
	if rms := computeRMS(pcm); math.Abs(rms-1000) > 1e-6 {
		t.Errorf("RMS(const 1000) = %v, want 1000", rms)
	}
}

func TestChunkDurationMs(t *testing.T) {
	t.Parallel()

	// 16 kHz mono 16-bit: 32 bytes per millisecond.
	if ms := chunkDurationMs(make([]byte, 3200), 16000, 1); ms != 100 {
		t.Errorf("duration = %d ms, want 100", ms)
	}
	if ms := chunkDurationMs(make([]byte, 3200), 0, 1); ms != 0 {
		t.Errorf("duration with zero rate = %d, want 0", ms)
	}
}
