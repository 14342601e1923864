package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"audio":      {"wav", "queue"},
	"stt":        {"whisper-native"},
	"embeddings": {"charbox", "ollama", "openai"},
}

// Load reads the YAML configuration file at path and returns a validated
// [Config]. It is a convenience wrapper around [LoadFromReader] and
// [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("audio", cfg.Providers.Audio.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("embeddings", cfg.Providers.Embeddings.Name)
	for _, entry := range cfg.Providers.EmbeddingsFallbacks {
		validateProviderName("embeddings", entry.Name)
	}

	if len(cfg.Providers.EmbeddingsFallbacks) > 0 && cfg.Providers.Embeddings.Name == "" {
		errs = append(errs, errors.New("providers.embeddings_fallbacks requires providers.embeddings to be set"))
	}
	if cfg.Providers.Embeddings.Name == "" {
		slog.Warn("no embeddings provider configured; embedding-strategy items will run in degraded fuzzy mode")
	}
	if cfg.Providers.STT.Name != "" && cfg.Providers.Audio.Name == "" {
		errs = append(errs, errors.New("providers.stt requires providers.audio to supply capture frames"))
	}

	// Session
	if cfg.Session.Checklist == "" {
		errs = append(errs, errors.New("session.checklist is required"))
	}
	if cfg.Session.MaxAttempts < 0 {
		errs = append(errs, fmt.Errorf("session.max_attempts %d must not be negative", cfg.Session.MaxAttempts))
	}
	if th := cfg.Session.Thresholds; th != nil {
		if th.OK <= 0 || th.OK > 1 {
			errs = append(errs, fmt.Errorf("session.thresholds.ok %.2f is out of range (0, 1]", th.OK))
		}
		if th.Maybe < 0 || th.Maybe > th.OK {
			errs = append(errs, fmt.Errorf("session.thresholds.maybe %.2f must be in [0, ok]", th.Maybe))
		}
	}

	// Audit
	if cfg.Audit.Backend != "" && !cfg.Audit.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("audit.backend %q is invalid; valid values: file, postgres", cfg.Audit.Backend))
	}
	switch cfg.Audit.Backend {
	case AuditFile:
		if cfg.Audit.File.Path == "" {
			errs = append(errs, errors.New("audit.file.path is required when audit.backend is file"))
		}
	case AuditPostgres:
		if cfg.Audit.Postgres.DSN == "" {
			errs = append(errs, errors.New("audit.postgres.dsn is required when audit.backend is postgres"))
		}
		if cfg.Audit.Postgres.IndexUtterances && cfg.Audit.Postgres.EmbeddingDimensions <= 0 {
			errs = append(errs, errors.New("audit.postgres.embedding_dimensions is required when index_utterances is enabled"))
		}
	}
	if cfg.Audit.Backend == "" {
		slog.Warn("audit.backend is empty; validation records will not be persisted")
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}
