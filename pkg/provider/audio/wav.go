package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/acuvox/acuvox/pkg/types"
)

// ErrUnsupportedWAV is returned by [NewFileSource] for WAV files that are not
// 16-bit PCM.
var ErrUnsupportedWAV = errors.New("audio: unsupported WAV format")

// Compile-time assertion that FileSource satisfies Source.
var _ Source = (*FileSource)(nil)

// FileSource streams the contents of a 16-bit PCM WAV file as AudioFrames.
// It is used for tests and offline runs in place of a live capture device.
// Frames are delivered in fixed-duration chunks, optionally paced at real
// time.
type FileSource struct {
	frames chan types.AudioFrame
	stop   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

// FileOption is a functional option for configuring a FileSource.
type FileOption func(*fileConfig)

type fileConfig struct {
	chunkDuration time.Duration
	realtime      bool
}

// WithChunkDuration sets the duration of each emitted frame. Defaults to
// 100 ms.
func WithChunkDuration(d time.Duration) FileOption {
	return func(c *fileConfig) {
		if d > 0 {
			c.chunkDuration = d
		}
	}
}

// WithRealtime makes the source sleep between frames so playback matches the
// recording's wall-clock duration. By default frames are delivered as fast
// as the consumer accepts them.
func WithRealtime(enabled bool) FileOption {
	return func(c *fileConfig) { c.realtime = enabled }
}

// NewFileSource opens the WAV file at path and starts streaming its frames.
// The Frames channel is closed when the file is exhausted or the source is
// closed. Only 16-bit PCM files are supported.
func NewFileSource(path string, opts ...FileOption) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %q: %w", path, err)
	}

	format, data, err := readWAV(f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("audio: read %q: %w", path, err)
	}

	cfg := fileConfig{chunkDuration: 100 * time.Millisecond}
	for _, o := range opts {
		o(&cfg)
	}

	s := &FileSource{
		frames: make(chan types.AudioFrame, defaultQueueCapacity),
		stop:   make(chan struct{}),
	}
	s.wg.Add(1)
	go s.stream(format, data, cfg)
	return s, nil
}

// Frames implements [Source].
func (s *FileSource) Frames() <-chan types.AudioFrame { return s.frames }

// Close implements [Source].
func (s *FileSource) Close() error {
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
	return nil
}

// stream chops the PCM data into chunkDuration frames and pushes them until
// exhaustion or Close.
func (s *FileSource) stream(format Format, data []byte, cfg fileConfig) {
	defer s.wg.Done()
	defer close(s.frames)

	bytesPerChunk := int(int64(format.SampleRate) * int64(format.Channels) * 2 *
		int64(cfg.chunkDuration) / int64(time.Second))
	if bytesPerChunk < 2 {
		bytesPerChunk = 2
	}
	// Keep frames aligned on whole samples.
	bytesPerChunk -= bytesPerChunk % (format.Channels * 2)

	var elapsed time.Duration
	for off := 0; off < len(data); off += bytesPerChunk {
		end := off + bytesPerChunk
		if end > len(data) {
			end = len(data)
		}
		frame := types.AudioFrame{
			Data:       data[off:end],
			SampleRate: format.SampleRate,
			Channels:   format.Channels,
			Timestamp:  elapsed,
		}
		elapsed += cfg.chunkDuration

		if cfg.realtime {
			select {
			case <-time.After(cfg.chunkDuration):
			case <-s.stop:
				return
			}
		}
		select {
		case s.frames <- frame:
		case <-s.stop:
			return
		}
	}
}

// readWAV parses a RIFF/WAVE container and returns the PCM format and the
// raw sample data. Chunks other than "fmt " and "data" are skipped.
func readWAV(r io.Reader) (Format, []byte, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Format{}, nil, fmt.Errorf("read RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("%w: not a RIFF/WAVE file", ErrUnsupportedWAV)
	}

	var (
		format  Format
		haveFmt bool
	)
	for {
		var hdr [8]byte
		if _, err := io.ReadFull(r, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return Format{}, nil, fmt.Errorf("%w: missing data chunk", ErrUnsupportedWAV)
			}
			return Format{}, nil, fmt.Errorf("read chunk header: %w", err)
		}
		id := string(hdr[0:4])
		size := binary.LittleEndian.Uint32(hdr[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, nil, fmt.Errorf("read fmt chunk: %w", err)
			}
			if size < 16 {
				return Format{}, nil, fmt.Errorf("%w: fmt chunk too short", ErrUnsupportedWAV)
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			channels := int(binary.LittleEndian.Uint16(body[2:4]))
			sampleRate := int(binary.LittleEndian.Uint32(body[4:8]))
			bitsPerSample := binary.LittleEndian.Uint16(body[14:16])
			if audioFormat != 1 || bitsPerSample != 16 {
				return Format{}, nil, fmt.Errorf("%w: want 16-bit PCM, got format %d with %d bits",
					ErrUnsupportedWAV, audioFormat, bitsPerSample)
			}
			if channels < 1 || channels > 2 || sampleRate <= 0 {
				return Format{}, nil, fmt.Errorf("%w: %d channels at %d Hz",
					ErrUnsupportedWAV, channels, sampleRate)
			}
			format = Format{SampleRate: sampleRate, Channels: channels}
			haveFmt = true

		case "data":
			if !haveFmt {
				return Format{}, nil, fmt.Errorf("%w: data chunk before fmt", ErrUnsupportedWAV)
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(r, data); err != nil {
				return Format{}, nil, fmt.Errorf("read data chunk: %w", err)
			}
			return format, data, nil

		default:
			// RIFF chunks are word-aligned; skip the pad byte on odd sizes.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Format{}, nil, fmt.Errorf("skip %q chunk: %w", id, err)
			}
		}
	}
}
