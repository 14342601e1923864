package resilience

import (
	"context"

	"github.com/acuvox/acuvox/pkg/provider/embeddings"
)

// EmbeddingsFallback implements [embeddings.Provider] with automatic failover
// across multiple embedding backends, each guarded by its own circuit
// breaker. The usual chain is local ONNX encoder first, then Ollama, then a
// hosted API — so the span matcher keeps working through a dead model file
// or a down server without the session degrading to string similarity.
//
// Dimensions and ModelID report the primary's values: the whole chain must
// be configured with models of the same output dimension, otherwise scores
// from different entries would not be comparable.
type EmbeddingsFallback struct {
	group   *FallbackGroup[embeddings.Provider]
	primary embeddings.Provider
}

// Compile-time interface assertion.
var _ embeddings.Provider = (*EmbeddingsFallback)(nil)

// NewEmbeddingsFallback creates an [EmbeddingsFallback] with primary as the
// preferred backend.
func NewEmbeddingsFallback(primary embeddings.Provider, primaryName string, cfg FallbackConfig) *EmbeddingsFallback {
	return &EmbeddingsFallback{
		group:   NewFallbackGroup(primary, primaryName, cfg),
		primary: primary,
	}
}

// AddFallback registers an additional embeddings provider as a fallback.
func (f *EmbeddingsFallback) AddFallback(name string, provider embeddings.Provider) {
	f.group.AddFallback(name, provider)
}

// Embed implements [embeddings.Provider] against the first healthy backend.
func (f *EmbeddingsFallback) Embed(ctx context.Context, text string) ([]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([]float32, error) {
		return p.Embed(ctx, text)
	})
}

// EmbedBatch implements [embeddings.Provider] against the first healthy
// backend. The whole batch goes to a single backend; results from different
// entries are never mixed within one batch.
func (f *EmbeddingsFallback) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return ExecuteWithResult(f.group, func(p embeddings.Provider) ([][]float32, error) {
		return p.EmbedBatch(ctx, texts)
	})
}

// Dimensions implements [embeddings.Provider], reporting the primary's value.
func (f *EmbeddingsFallback) Dimensions() int {
	return f.primary.Dimensions()
}

// ModelID implements [embeddings.Provider], reporting the primary's value.
func (f *EmbeddingsFallback) ModelID() string {
	return f.primary.ModelID()
}
