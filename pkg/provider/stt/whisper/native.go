package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/acuvox/acuvox/pkg/provider/audio"
	"github.com/acuvox/acuvox/pkg/provider/stt"
	"github.com/acuvox/acuvox/pkg/types"
	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// Compile-time assertion that Listener satisfies stt.Listener.
var _ stt.Listener = (*Listener)(nil)

// Listener implements stt.Listener using the whisper.cpp Go bindings (CGO).
// The model is loaded once at construction and shared by every listen
// window; each inference runs in a fresh whisper context.
type Listener struct {
	model  whisperlib.Model
	source audio.Source

	language           string
	sampleRate         int
	silenceThresholdMs int
	rmsThreshold       float64
	pollTimeout        time.Duration

	// mu serializes Listen calls: two concurrent windows would steal each
	// other's frames from the shared source.
	mu sync.Mutex
}

// Option is a functional option for configuring a Listener.
type Option func(*Listener)

// WithLanguage sets the BCP-47 language code for transcription (e.g., "fr",
// "en"). Defaults to "fr".
func WithLanguage(lang string) Option {
	return func(l *Listener) { l.language = lang }
}

// WithSampleRate sets the audio sample rate in Hz that frames are coerced to
// before inference. Defaults to 16000, which is what whisper.cpp expects.
func WithSampleRate(rate int) Option {
	return func(l *Listener) { l.sampleRate = rate }
}

// WithSilenceThresholdMs sets the consecutive-silence duration (ms) after
// speech that ends the listen window. Defaults to 500 ms.
func WithSilenceThresholdMs(ms int) Option {
	return func(l *Listener) { l.silenceThresholdMs = ms }
}

// WithRMSThreshold sets the energy level below which a frame counts as
// silence. Defaults to 300 (16-bit PCM units).
func WithRMSThreshold(rms float64) Option {
	return func(l *Listener) { l.rmsThreshold = rms }
}

// WithPollTimeout sets how long a wait for the next capture frame may last
// before the gap is counted as silence. Defaults to 250 ms.
func WithPollTimeout(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.pollTimeout = d
		}
	}
}

// New creates a Listener that loads the whisper.cpp model from the given
// file path and consumes frames from source. A model that cannot be loaded
// is fatal: the error wraps [stt.ErrModelUnavailable]. The caller must call
// Close when the listener is no longer needed.
func New(modelPath string, source audio.Source, opts ...Option) (*Listener, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("whisper: model path must not be empty: %w", stt.ErrModelUnavailable)
	}
	if source == nil {
		return nil, errors.New("whisper: source must not be nil")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q (%v): %w", modelPath, err, stt.ErrModelUnavailable)
	}

	l := &Listener{
		model:              model,
		source:             source,
		language:           defaultLanguage,
		sampleRate:         defaultSampleRate,
		silenceThresholdMs: defaultSilenceThresholdMs,
		rmsThreshold:       defaultRMSThreshold,
		pollTimeout:        defaultPollTimeout,
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Close releases the whisper model. Must be called when the listener is no
// longer needed.
func (l *Listener) Close() error {
	if l.model != nil {
		return l.model.Close()
	}
	return nil
}

// Listen implements [stt.Listener]. It consumes frames from the source,
// buffering speech until silence follows it, then transcribes the buffered
// utterance. The window ends at the earlier of speech-then-silence and the
// wall-clock timeout; pure silence yields an empty transcript and no error.
//
// Frames dropped by the capture side (delivered with empty data after an
// overflow) are skipped and listening continues.
func (l *Listener) Listen(ctx context.Context, timeout time.Duration) (types.Transcript, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if timeout <= 0 {
		timeout = defaultListenWindow
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	poll := time.NewTimer(l.pollTimeout)
	defer poll.Stop()

	coercer := audio.Coercer{Target: audio.Format{SampleRate: l.sampleRate, Channels: 1}}

	var (
		buffer    []byte
		hadSpeech bool
		silenceMs int
	)

	flush := func() (types.Transcript, error) {
		if !hadSpeech || len(buffer) == 0 {
			return types.Transcript{}, nil
		}
		text, err := l.infer(buffer)
		if err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: transcribe window: %w", err)
		}
		return types.Transcript{
			Text:     text,
			Duration: time.Duration(chunkDurationMs(buffer, l.sampleRate, 1)) * time.Millisecond,
		}, nil
	}

	for {
		if !poll.Stop() {
			select {
			case <-poll.C:
			default:
			}
		}
		poll.Reset(l.pollTimeout)

		select {
		case <-ctx.Done():
			return types.Transcript{}, fmt.Errorf("whisper: listen cancelled: %w", ctx.Err())

		case <-deadline.C:
			return flush()

		case <-poll.C:
			// No frame arrived within the poll window; the gap itself counts
			// as silence once speech has started.
			if hadSpeech {
				silenceMs += int(l.pollTimeout / time.Millisecond)
				if silenceMs >= l.silenceThresholdMs {
					return flush()
				}
			}

		case frame, ok := <-l.source.Frames():
			if !ok {
				// Source ended; whatever was captured is the answer.
				return flush()
			}
			frame = coercer.Coerce(frame)
			if len(frame.Data) == 0 {
				// Capture overflow or corrupt frame: skip it, keep listening.
				slog.Debug("whisper: skipping empty capture frame")
				continue
			}

			rms := computeRMS(frame.Data)
			chunkMs := chunkDurationMs(frame.Data, l.sampleRate, 1)

			if rms < l.rmsThreshold {
				if hadSpeech {
					silenceMs += chunkMs
					buffer = append(buffer, frame.Data...)
					if silenceMs >= l.silenceThresholdMs {
						return flush()
					}
				}
			} else {
				hadSpeech = true
				silenceMs = 0
				buffer = append(buffer, frame.Data...)
			}
		}
	}
}

// infer converts the buffered PCM audio to float32, runs whisper.cpp
// inference using a fresh context, and returns the concatenated text.
func (l *Listener) infer(pcm []byte) (string, error) {
	samples := pcmToFloat32(pcm)

	// Each whisper context is NOT thread-safe, but the model can be shared.
	wctx, err := l.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("create context: %w", err)
	}

	if err := wctx.SetLanguage(l.language); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", l.language, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read segment: %w", err)
		}
		text := strings.TrimSpace(segment.Text)
		if text != "" {
			parts = append(parts, text)
		}
	}

	return strings.Join(parts, " "), nil
}
