// Command acuvox runs a voice-driven checklist confirmation session.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/acuvox/acuvox/internal/audit"
	"github.com/acuvox/acuvox/internal/checklist"
	"github.com/acuvox/acuvox/internal/config"
	"github.com/acuvox/acuvox/internal/confirm"
	"github.com/acuvox/acuvox/internal/health"
	"github.com/acuvox/acuvox/internal/match"
	"github.com/acuvox/acuvox/internal/observe"
	"github.com/acuvox/acuvox/internal/resilience"
	"github.com/acuvox/acuvox/pkg/provider/audio"
	"github.com/acuvox/acuvox/pkg/provider/embeddings"
	"github.com/acuvox/acuvox/pkg/provider/embeddings/charbox"
	ollamaembed "github.com/acuvox/acuvox/pkg/provider/embeddings/ollama"
	oaembed "github.com/acuvox/acuvox/pkg/provider/embeddings/openai"
	"github.com/acuvox/acuvox/pkg/provider/stt"
	"github.com/acuvox/acuvox/pkg/provider/stt/whisper"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "acuvox: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "acuvox: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("acuvox starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Observability ─────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "acuvox"})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Provider registry ─────────────────────────────────────────────────────
	reg := config.NewRegistry()
	registerBuiltinProviders(reg, cfg.Session.LanguageOrDefault())

	providers, err := buildProviders(cfg, reg)
	if err != nil {
		slog.Error("failed to build providers", "err", err)
		return 1
	}
	defer providers.close()

	// ── Checklist, vocabulary and patient record ──────────────────────────────
	cl, err := checklist.Load(cfg.Session.Checklist)
	if err != nil {
		slog.Error("failed to load checklist", "err", err)
		return 1
	}
	if err := cl.Validate(); err != nil {
		slog.Error("checklist is invalid", "err", err)
		return 1
	}

	var vocab checklist.Vocabulary
	if cfg.Session.Vocabulary != "" {
		vocab, err = checklist.LoadVocabulary(cfg.Session.Vocabulary)
		if err != nil {
			slog.Error("failed to load vocabulary", "err", err)
			return 1
		}
	}

	if cfg.Session.Record != "" {
		rec, err := checklist.LoadRecord(cfg.Session.Record)
		if err != nil {
			slog.Error("failed to load patient record", "err", err)
			return 1
		}
		applyRecord(cl, rec)
	}

	// ── Audit store ───────────────────────────────────────────────────────────
	store, storeClose, err := buildStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialise audit store", "err", err)
		return 1
	}
	if storeClose != nil {
		defer storeClose()
	}

	// ── Engine and loop ───────────────────────────────────────────────────────
	engineOpts := []confirm.EngineOption{
		confirm.WithEmbeddings(providers.embeddings),
		confirm.WithVocabulary(vocab),
		confirm.WithEngineMetrics(metrics),
	}
	if th := cfg.Session.Thresholds; th != nil {
		engineOpts = append(engineOpts, confirm.WithDefaultThresholds(match.Thresholds{OK: th.OK, Maybe: th.Maybe}))
	}
	engine := confirm.NewEngine(engineOpts...)
	if providers.embeddings != nil {
		if err := engine.Probe(ctx); err != nil {
			slog.Warn("embeddings probe failed; running degraded", "err", err)
		}
	}

	loop := confirm.NewLoop(providers.listener, engine,
		confirm.WithMaxAttempts(cfg.Session.MaxAttempts),
		confirm.WithCancelToken(cfg.Session.CancelPhraseOrDefault()),
		confirm.WithPrompter(consolePrompter{}),
		confirm.WithMetrics(metrics),
	)

	sessionID := uuid.NewString()
	slog.Info("session starting",
		"session_id", sessionID,
		"items", len(cl.Items),
		"degraded", engine.Degraded(),
	)

	// ── Run: HTTP endpoints alongside the confirmation session ───────────────
	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if cfg.Server.ListenAddr != "" {
		srv = newHTTPServer(cfg, metrics, engine)
		g.Go(func() error {
			slog.Info("http server listening", "addr", cfg.Server.ListenAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	var summary confirm.RunSummary
	g.Go(func() error {
		defer stop() // session end also stops the HTTP server
		var runErr error
		summary, runErr = loop.RunChecklist(gctx, cl)
		persistCtx := context.WithoutCancel(gctx)
		persistRecords(persistCtx, store, sessionID, summary.Records)
		if pg, ok := store.(*audit.PostgresStore); ok &&
			cfg.Audit.Postgres.IndexUtterances && !engine.Degraded() {
			indexUtterances(persistCtx, pg, providers.embeddings, sessionID, summary.Records)
		}
		return runErr
	})

	err = g.Wait()
	printSummary(summary)
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Provider wiring ───────────────────────────────────────────────────────────

// sessionProviders holds the instantiated providers for one process lifetime.
type sessionProviders struct {
	source     audio.Source
	listener   stt.Listener
	embeddings embeddings.Provider

	closers []func() error
}

func (p *sessionProviders) close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			slog.Warn("provider close error", "err", err)
		}
	}
}

// registerBuiltinProviders wires all built-in provider factories into reg.
// Each factory receives a config.ProviderEntry and constructs the
// appropriate provider from the real implementation packages. language is
// the session language, used by STT providers whose entry does not set its
// own.
func registerBuiltinProviders(reg *config.Registry, language string) {
	// ── Audio ─────────────────────────────────────────────────────────────────

	reg.RegisterAudio("wav", func(entry config.ProviderEntry) (audio.Source, error) {
		path := optString(entry.Options, "path")
		var opts []audio.FileOption
		if optBool(entry.Options, "realtime") {
			opts = append(opts, audio.WithRealtime(true))
		}
		return audio.NewFileSource(path, opts...)
	})

	reg.RegisterAudio("queue", func(entry config.ProviderEntry) (audio.Source, error) {
		return audio.NewFrameQueue(optInt(entry.Options, "capacity")), nil
	})

	// ── STT ───────────────────────────────────────────────────────────────────

	reg.RegisterSTT("whisper-native", func(entry config.ProviderEntry, source audio.Source) (stt.Listener, error) {
		modelPath := entry.Model
		if modelPath == "" {
			modelPath = optString(entry.Options, "model_path")
		}
		var opts []whisper.Option
		if lang := resolveLanguage(entry, language); lang != "" {
			opts = append(opts, whisper.WithLanguage(lang))
		}
		if ms := optInt(entry.Options, "silence_threshold_ms"); ms > 0 {
			opts = append(opts, whisper.WithSilenceThresholdMs(ms))
		}
		return whisper.New(modelPath, source, opts...)
	})

	// ── Embeddings ────────────────────────────────────────────────────────────

	reg.RegisterEmbeddings("charbox", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		return charbox.New(charbox.Config{
			ModelPath:  entry.Model,
			VocabPath:  optString(entry.Options, "vocab_path"),
			RuntimeLib: optString(entry.Options, "runtime_lib"),
			SeqLen:     optInt(entry.Options, "seq_len"),
			Dimensions: optInt(entry.Options, "dimensions"),
		})
	})

	reg.RegisterEmbeddings("ollama", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []ollamaembed.Option
		if dims := optInt(entry.Options, "dimensions"); dims > 0 {
			opts = append(opts, ollamaembed.WithDimensions(dims))
		}
		return ollamaembed.New(entry.BaseURL, entry.Model, opts...)
	})

	reg.RegisterEmbeddings("openai", func(entry config.ProviderEntry) (embeddings.Provider, error) {
		var opts []oaembed.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaembed.WithBaseURL(entry.BaseURL))
		}
		return oaembed.New(entry.APIKey, entry.Model, opts...)
	})
}

// buildProviders instantiates the providers named in cfg. The audio source
// and STT listener are required; a missing or broken embeddings chain is not
// fatal because the engine can run degraded on string similarity.
func buildProviders(cfg *config.Config, reg *config.Registry) (*sessionProviders, error) {
	ps := &sessionProviders{}

	source, err := reg.CreateAudio(cfg.Providers.Audio)
	if err != nil {
		return nil, fmt.Errorf("create audio source %q: %w", cfg.Providers.Audio.Name, err)
	}
	ps.source = source
	ps.closers = append(ps.closers, source.Close)
	slog.Info("provider created", "kind", "audio", "name", cfg.Providers.Audio.Name)

	listener, err := reg.CreateSTT(cfg.Providers.STT, source)
	if err != nil {
		return nil, fmt.Errorf("create stt listener %q: %w", cfg.Providers.STT.Name, err)
	}
	ps.listener = listener
	if c, ok := listener.(interface{ Close() error }); ok {
		ps.closers = append(ps.closers, c.Close)
	}
	slog.Info("provider created", "kind", "stt", "name", cfg.Providers.STT.Name)

	ps.embeddings = buildEmbeddings(cfg, reg, ps)
	return ps, nil
}

// buildEmbeddings constructs the embeddings chain: the primary provider,
// wrapped in a circuit-breaker fallback group when fallbacks are configured.
// Returns nil when nothing usable could be built; the engine then degrades.
func buildEmbeddings(cfg *config.Config, reg *config.Registry, ps *sessionProviders) embeddings.Provider {
	name := cfg.Providers.Embeddings.Name
	if name == "" {
		return nil
	}

	primary, err := reg.CreateEmbeddings(cfg.Providers.Embeddings)
	if err != nil {
		slog.Warn("embeddings provider unavailable; matching will degrade to string similarity",
			"name", name, "err", err)
		return nil
	}
	if c, ok := primary.(interface{ Close() error }); ok {
		ps.closers = append(ps.closers, c.Close)
	}
	slog.Info("provider created", "kind", "embeddings", "name", name)

	if len(cfg.Providers.EmbeddingsFallbacks) == 0 {
		return primary
	}

	chain := resilience.NewEmbeddingsFallback(primary, name, resilience.FallbackConfig{})
	for _, entry := range cfg.Providers.EmbeddingsFallbacks {
		fb, err := reg.CreateEmbeddings(entry)
		if err != nil {
			slog.Warn("skipping embeddings fallback", "name", entry.Name, "err", err)
			continue
		}
		if c, ok := fb.(interface{ Close() error }); ok {
			ps.closers = append(ps.closers, c.Close)
		}
		chain.AddFallback(entry.Name, fb)
		slog.Info("embeddings fallback registered", "name", entry.Name)
	}
	return chain
}

// ── Audit store ───────────────────────────────────────────────────────────────

func buildStore(ctx context.Context, cfg *config.Config) (audit.Store, func(), error) {
	switch cfg.Audit.Backend {
	case config.AuditFile:
		return audit.NewFileStore(cfg.Audit.File.Path), nil, nil
	case config.AuditPostgres:
		pg, err := audit.NewPostgresStore(ctx, cfg.Audit.Postgres.DSN, cfg.Audit.Postgres.EmbeddingDimensions)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return nil, nil, nil
	}
}

// persistRecords saves every record of the finished run. Persistence
// failures are logged, not fatal: the run result has already been printed.
func persistRecords(ctx context.Context, store audit.Store, sessionID string, records []confirm.ValidationRecord) {
	if store == nil {
		return
	}
	for _, rec := range records {
		if err := store.SaveRecord(ctx, sessionID, rec); err != nil {
			slog.Error("failed to persist validation record", "record", rec.ID, "err", err)
		}
	}
}

// indexUtterances embeds each validated final answer and upserts it into the
// semantic review index, so past confirmations can be searched by meaning.
func indexUtterances(ctx context.Context, pg *audit.PostgresStore, provider embeddings.Provider, sessionID string, records []confirm.ValidationRecord) {
	for _, rec := range records {
		if rec.Status != confirm.StatusValidated || len(rec.Attempts) == 0 {
			continue
		}
		last := rec.Attempts[len(rec.Attempts)-1]
		vec, err := provider.Embed(ctx, last.Normalized)
		if err != nil {
			slog.Warn("skipping utterance index entry", "record", rec.ID, "err", err)
			continue
		}
		if err := pg.IndexUtterance(ctx, audit.Utterance{
			ID:        rec.ID,
			SessionID: sessionID,
			ItemID:    rec.ItemID,
			Text:      last.Raw,
			Embedding: vec,
			Timestamp: last.At,
		}); err != nil {
			slog.Warn("failed to index utterance", "record", rec.ID, "err", err)
		}
	}
}

// ── HTTP endpoints ────────────────────────────────────────────────────────────

func newHTTPServer(cfg *config.Config, metrics *observe.Metrics, engine *confirm.Engine) *http.Server {
	mux := http.NewServeMux()
	health.New(health.Checker{
		Name: "engine",
		Check: func(context.Context) error {
			if engine.Degraded() {
				return errors.New("engine is degraded: embeddings unavailable")
			}
			return nil
		},
	}).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	return &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// ── Session helpers ───────────────────────────────────────────────────────────

// applyRecord fills empty expected-value lists from the patient record: an
// item whose ID matches a record field gets that field's spoken variants.
func applyRecord(cl *checklist.Checklist, rec *checklist.PatientRecord) {
	candidates := rec.Candidates()
	for i, item := range cl.Items {
		vals, ok := candidates[item.ID]
		if !ok {
			continue
		}
		switch s := item.Strategy.(type) {
		case checklist.FuzzyMatch:
			if len(s.Expected) == 0 {
				s.Expected = vals
				cl.Items[i].Strategy = s
			}
		case checklist.EmbeddingSpanMatch:
			if len(s.Expected) == 0 {
				s.Expected = vals
				cl.Items[i].Strategy = s
			}
		}
	}
}

// consolePrompter announces questions on stdout for an operator console.
type consolePrompter struct{}

func (consolePrompter) Prompt(item checklist.Item, attempt int, last match.Decision) {
	if attempt == 0 {
		fmt.Printf("\n? %s\n", item.Question)
		if item.Hint != "" {
			fmt.Printf("  (%s)\n", item.Hint)
		}
		return
	}
	fmt.Printf("  [%s] veuillez répéter — %s\n", last, item.Question)
}

func printSummary(s confirm.RunSummary) {
	fmt.Println("\n── session summary ──")
	for _, rec := range s.Records {
		fmt.Printf("  %-20s %s (%d attempts)\n", rec.ItemID, rec.Status, len(rec.Attempts))
	}
	if len(s.Skipped) > 0 {
		fmt.Printf("  skipped: %v\n", s.Skipped)
	}
	fmt.Printf("  pass rate: %.0f%%\n", s.PassRate*100)
	if s.Interrupted {
		fmt.Println("  session was interrupted by the speaker")
	}
}

// ── Logger ────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// resolveLanguage picks the STT language: the provider entry's own
// "language" option wins over the session-level fallback.
func resolveLanguage(entry config.ProviderEntry, fallback string) string {
	if lang := optString(entry.Options, "language"); lang != "" {
		return lang
	}
	return fallback
}

// optString extracts a string value from a provider Options map. Returns ""
// if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optInt extracts an integer value from a provider Options map. YAML decodes
// whole numbers as int; zero is returned for anything else.
func optInt(opts map[string]any, key string) int {
	if opts == nil {
		return 0
	}
	switch v := opts[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return 0
}

// optBool extracts a boolean value from a provider Options map.
func optBool(opts map[string]any, key string) bool {
	if opts == nil {
		return false
	}
	b, _ := opts[key].(bool)
	return b
}
