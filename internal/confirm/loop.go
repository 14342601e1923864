package confirm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/acuvox/acuvox/internal/checklist"
	"github.com/acuvox/acuvox/internal/match"
	"github.com/acuvox/acuvox/internal/observe"
	"github.com/acuvox/acuvox/internal/textnorm"
	"github.com/acuvox/acuvox/pkg/provider/stt"
)

// DefaultCancelToken is the normalized fragment that interrupts a loop when
// it occurs anywhere in an answer. The stem catches "terminé", "terminer"
// and "on a terminé" alike.
const DefaultCancelToken = "termin"

// Prompter announces questions and retry requests to the speaker. attempt
// is 0 for the initial question and counts scored attempts afterwards; last
// is the decision that triggered the retry.
type Prompter interface {
	Prompt(item checklist.Item, attempt int, last match.Decision)
}

// LoopOption is a functional option for [Loop].
type LoopOption func(*Loop)

// WithMaxAttempts bounds the number of scored attempts per item. Zero (the
// default) retries indefinitely until validation or interruption; with a
// positive limit the loop ends in [StatusExhausted] once it is reached.
func WithMaxAttempts(n int) LoopOption {
	return func(l *Loop) {
		l.maxAttempts = n
	}
}

// WithCancelToken overrides the normalized cancellation fragment.
// Default: [DefaultCancelToken].
func WithCancelToken(token string) LoopOption {
	return func(l *Loop) {
		if token != "" {
			l.cancelToken = textnorm.Normalize(token)
		}
	}
}

// WithPrompter sets the prompter used to announce questions and retries.
func WithPrompter(p Prompter) LoopOption {
	return func(l *Loop) {
		l.prompter = p
	}
}

// WithLogger overrides the logger. Default: [slog.Default].
func WithLogger(log *slog.Logger) LoopOption {
	return func(l *Loop) {
		l.log = log
	}
}

// WithMetrics enables metric recording.
func WithMetrics(m *observe.Metrics) LoopOption {
	return func(l *Loop) {
		l.metrics = m
	}
}

// Loop runs the listen-score-retry cycle for checklist items.
type Loop struct {
	listener stt.Listener
	engine   *Engine

	maxAttempts int
	cancelToken string
	prompter    Prompter
	log         *slog.Logger
	metrics     *observe.Metrics
}

// NewLoop returns a [Loop] reading from listener and scoring with engine.
func NewLoop(listener stt.Listener, engine *Engine, opts ...LoopOption) *Loop {
	l := &Loop{
		listener:    listener,
		engine:      engine,
		cancelToken: DefaultCancelToken,
		log:         slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Confirm runs the loop for one item until an attempt validates, the
// speaker cancels, the attempt limit is reached, or the context ends.
// The returned record is complete even when an error is also returned.
func (l *Loop) Confirm(ctx context.Context, item checklist.Item) (ValidationRecord, error) {
	rec := ValidationRecord{
		ID:        uuid.NewString(),
		ItemID:    item.ID,
		StartedAt: time.Now().UTC(),
	}

	if l.prompter != nil {
		l.prompter.Prompt(item, 0, "")
	}

	for {
		if err := ctx.Err(); err != nil {
			return l.finish(ctx, rec, StatusInterrupted), err
		}

		listenStart := time.Now()
		transcript, err := l.listener.Listen(ctx, item.Timeout)
		if l.metrics != nil {
			l.metrics.ListenDuration.Record(ctx, time.Since(listenStart).Seconds())
		}
		if err != nil {
			return l.finish(ctx, rec, StatusInterrupted), fmt.Errorf("confirm: item %q: listen: %w", item.ID, err)
		}

		normalized := textnorm.Normalize(transcript.Text)

		// Cancellation is checked before scoring so "terminé" never counts
		// as a failed attempt.
		if normalized != "" && strings.Contains(normalized, l.cancelToken) {
			l.log.Info("confirmation interrupted by speaker", "item", item.ID)
			return l.finish(ctx, rec, StatusInterrupted), nil
		}

		res, err := l.engine.Score(ctx, transcript.Text, item)
		if err != nil {
			return l.finish(ctx, rec, StatusSkipped), err
		}

		rec.Attempts = append(rec.Attempts, Attempt{
			Raw:           transcript.Text,
			Normalized:    normalized,
			BestCandidate: res.Candidate,
			Score:         res.Score,
			Decision:      res.Decision,
			At:            time.Now().UTC(),
		})
		if l.metrics != nil {
			l.metrics.RecordAttempt(ctx, item.ID, string(res.Decision))
		}
		l.log.Debug("attempt scored",
			"item", item.ID,
			"attempt", len(rec.Attempts),
			"decision", res.Decision,
			"score", res.Score,
		)

		if res.Decision == match.Valid {
			return l.finish(ctx, rec, StatusValidated), nil
		}
		if l.maxAttempts > 0 && len(rec.Attempts) >= l.maxAttempts {
			l.log.Info("attempt limit reached", "item", item.ID, "attempts", len(rec.Attempts))
			return l.finish(ctx, rec, StatusExhausted), nil
		}

		if l.prompter != nil {
			l.prompter.Prompt(item, len(rec.Attempts), res.Decision)
		}
	}
}

// finish stamps the terminal status exactly once and records it.
func (l *Loop) finish(ctx context.Context, rec ValidationRecord, status Status) ValidationRecord {
	rec.Status = status
	rec.FinishedAt = time.Now().UTC()
	if l.metrics != nil {
		l.metrics.RecordValidation(ctx, rec.ItemID, string(status))
	}
	return rec
}

// RunSummary is the outcome of one full checklist run.
type RunSummary struct {
	// Records holds one record per item in checklist order, including
	// skipped items.
	Records []ValidationRecord `json:"records"`

	// Skipped lists the IDs of items that could not run.
	Skipped []string `json:"skipped,omitempty"`

	// PassRate is validated items over executed (non-skipped) items.
	PassRate float64 `json:"pass_rate"`

	// Interrupted reports whether the speaker ended the run early.
	Interrupted bool `json:"interrupted"`
}

// RunChecklist confirms every item of cl in order. Items whose strategy is
// unknown are skipped and reported, not fatal. An interruption ends the
// whole run; remaining items are not asked.
func (l *Loop) RunChecklist(ctx context.Context, cl *checklist.Checklist) (RunSummary, error) {
	var summary RunSummary

	if l.metrics != nil {
		l.metrics.ActiveSessions.Add(ctx, 1)
		defer l.metrics.ActiveSessions.Add(ctx, -1)
	}

	for _, item := range cl.Items {
		if err := item.Strategy.Validate(); errors.Is(err, checklist.ErrUnknownStrategy) {
			l.log.Warn("skipping item with unknown strategy", "item", item.ID, "strategy", item.Strategy.Kind())
			summary.Skipped = append(summary.Skipped, item.ID)
			now := time.Now().UTC()
			summary.Records = append(summary.Records, ValidationRecord{
				ID:         uuid.NewString(),
				ItemID:     item.ID,
				Status:     StatusSkipped,
				StartedAt:  now,
				FinishedAt: now,
			})
			continue
		}

		rec, err := l.Confirm(ctx, item)
		summary.Records = append(summary.Records, rec)
		if err != nil {
			summary.PassRate = passRate(summary)
			return summary, err
		}
		if rec.Status == StatusInterrupted {
			summary.Interrupted = true
			break
		}
	}

	summary.PassRate = passRate(summary)
	return summary, nil
}

// passRate is validated over executed records; skipped records don't count.
func passRate(s RunSummary) float64 {
	var executed, validated int
	for _, rec := range s.Records {
		if rec.Status == StatusSkipped {
			continue
		}
		executed++
		if rec.Status == StatusValidated {
			validated++
		}
	}
	if executed == 0 {
		return 0
	}
	return float64(validated) / float64(executed)
}
