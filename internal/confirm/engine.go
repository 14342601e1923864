package confirm

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/acuvox/acuvox/internal/checklist"
	"github.com/acuvox/acuvox/internal/match"
	"github.com/acuvox/acuvox/internal/match/spanmatch"
	"github.com/acuvox/acuvox/internal/observe"
	"github.com/acuvox/acuvox/pkg/provider/embeddings"
)

// Engine dispatches an utterance to the matcher selected by a checklist
// item's strategy.
//
// When no embeddings provider is available — none configured, or the
// session-start probe failed — the engine runs degraded: embedding-strategy
// items are scored by whole-string fuzzy similarity instead. A provider
// failure mid-session flips the engine into the same degraded state for the
// rest of the session, logged once.
type Engine struct {
	provider   embeddings.Provider
	vocab      checklist.Vocabulary
	thresholds *match.Thresholds
	log        *slog.Logger
	metrics    *observe.Metrics

	mu       sync.Mutex
	degraded bool
}

// EngineOption is a functional option for [Engine].
type EngineOption func(*Engine)

// WithEmbeddings supplies the embeddings provider used by embedding-strategy
// items. Without it the engine starts degraded.
func WithEmbeddings(p embeddings.Provider) EngineOption {
	return func(e *Engine) {
		e.provider = p
	}
}

// WithVocabulary supplies the concept vocabulary used by concept-strategy
// items.
func WithVocabulary(v checklist.Vocabulary) EngineOption {
	return func(e *Engine) {
		e.vocab = v
	}
}

// WithDefaultThresholds sets the decision thresholds applied to items that
// do not carry their own. Default: [match.DefaultThresholds].
func WithDefaultThresholds(th match.Thresholds) EngineOption {
	return func(e *Engine) {
		e.thresholds = &th
	}
}

// WithEngineLogger overrides the logger. Default: [slog.Default].
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithEngineMetrics enables metric recording.
func WithEngineMetrics(m *observe.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// NewEngine returns an [Engine] configured with the supplied options.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{log: slog.Default()}
	for _, o := range opts {
		o(e)
	}
	if e.provider == nil {
		e.degraded = true
	} else if e.metrics != nil {
		e.provider = meteredProvider{Provider: e.provider, metrics: e.metrics}
	}
	return e
}

// Probe verifies the embeddings provider with a single embed call. On
// failure the engine enters degraded mode and the error is returned for
// logging; the session may still proceed.
func (e *Engine) Probe(ctx context.Context) error {
	e.mu.Lock()
	provider, degraded := e.provider, e.degraded
	e.mu.Unlock()
	if degraded || provider == nil {
		return nil
	}
	if _, err := provider.Embed(ctx, "probe"); err != nil {
		e.degrade(fmt.Errorf("confirm: embeddings probe: %w", err))
		return fmt.Errorf("confirm: embeddings probe: %w", err)
	}
	return nil
}

// Degraded reports whether embedding-strategy items are being scored by the
// fuzzy fallback.
func (e *Engine) Degraded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.degraded
}

// degrade flips the engine into degraded mode, logging the reason once.
func (e *Engine) degrade(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.degraded {
		return
	}
	e.degraded = true
	e.log.Warn("embeddings unavailable, falling back to string similarity", "error", err)
}

// Score matches utterance against item's expected values using the item's
// strategy. The returned error is reserved for unrunnable items (unknown
// strategy); matcher-level provider failures degrade instead of failing.
func (e *Engine) Score(ctx context.Context, utterance string, item checklist.Item) (match.Result, error) {
	start := time.Now()
	res, err := e.score(ctx, utterance, item)
	if err == nil && e.metrics != nil {
		e.metrics.RecordMatchDuration(ctx, item.Strategy.Kind(), time.Since(start).Seconds())
	}
	return res, err
}

func (e *Engine) score(ctx context.Context, utterance string, item checklist.Item) (match.Result, error) {
	switch s := item.Strategy.(type) {
	case checklist.FuzzyMatch:
		return e.fuzzy(utterance, s.Expected, s.Thresholds), nil

	case checklist.KeywordMatch:
		var opts []match.KeywordsOption
		if s.Fuzzy {
			opts = append(opts, match.WithFuzzyContainment(s.FuzzyThreshold))
		}
		return match.NewKeywords(opts...).Match(utterance, s.Keywords, s.MinRequired), nil

	case checklist.ConceptDetection:
		minTotal := s.TotalMin
		if minTotal <= 0 {
			minTotal = len(s.Categories)
		}
		return match.NewConcepts().Match(utterance, e.vocab, s.Categories, s.MinPerCategory, minTotal), nil

	case checklist.EmbeddingSpanMatch:
		return e.embedding(ctx, utterance, s), nil

	default:
		return match.Result{}, fmt.Errorf("confirm: item %q: %w", item.ID, checklist.ErrUnknownStrategy)
	}
}

// embedding scores via span matching, falling back to fuzzy similarity when
// the engine is degraded or the provider fails mid-session.
func (e *Engine) embedding(ctx context.Context, utterance string, s checklist.EmbeddingSpanMatch) match.Result {
	e.mu.Lock()
	degraded := e.degraded
	provider := e.provider
	e.mu.Unlock()

	if !degraded && provider != nil {
		th := s.Thresholds
		if th == nil {
			th = e.thresholds
		}
		var opts []spanmatch.Option
		if th != nil {
			opts = append(opts, spanmatch.WithThresholds(*th))
		}
		res, err := spanmatch.New(provider, opts...).MatchBest(ctx, utterance, s.Expected)
		if err == nil {
			return res
		}
		if e.metrics != nil {
			e.metrics.RecordProviderError(ctx, provider.ModelID(), "embeddings")
		}
		e.degrade(err)
	}

	return e.fuzzy(utterance, s.Expected, s.Thresholds)
}

func (e *Engine) fuzzy(utterance string, expected []string, th *match.Thresholds) match.Result {
	if th == nil {
		th = e.thresholds
	}
	var opts []match.FuzzyOption
	if th != nil {
		opts = append(opts, match.WithFuzzyThresholds(*th))
	}
	return match.NewFuzzy(opts...).Match(utterance, expected)
}

// meteredProvider records embedding inference latency around the wrapped
// provider's calls.
type meteredProvider struct {
	embeddings.Provider
	metrics *observe.Metrics
}

func (p meteredProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	start := time.Now()
	vec, err := p.Provider.Embed(ctx, text)
	if err == nil {
		p.metrics.RecordEmbedDuration(ctx, p.ModelID(), time.Since(start).Seconds())
	}
	return vec, err
}

func (p meteredProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	start := time.Now()
	vecs, err := p.Provider.EmbedBatch(ctx, texts)
	if err == nil {
		p.metrics.RecordEmbedDuration(ctx, p.ModelID(), time.Since(start).Seconds())
	}
	return vecs, err
}
