// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// An embeddings provider maps text strings to dense float32 vectors. The
// span-matching strategy embeds candidate word windows and expected values
// and ranks them by cosine similarity; the audit layer optionally indexes
// validated utterances for semantic review queries.
//
// Implementations must be safe for concurrent use. The model behind a
// provider is loaded once at startup and shared read-only across all
// matching calls.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
//
// All embedding vectors returned by a single Provider instance must share
// the same dimensionality (returned by Dimensions). Callers must not mix
// vectors from different Provider instances in the same similarity
// computation.
//
// Implementations must be safe for concurrent use.
type Provider interface {
	// Embed computes the embedding vector for a single text string. Returns
	// a float32 slice of length Dimensions() or an error if the request
	// fails or ctx is cancelled.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch computes embedding vectors for a slice of one or more text
	// strings in a single backend call. The returned slice has the same
	// length as texts and the i-th element corresponds to texts[i].
	//
	// Returns an error if any single embedding fails or if ctx is cancelled.
	// Partial results are not returned — on error the entire slice is nil.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed length of every embedding vector produced
	// by this provider. Constant for the lifetime of the Provider instance.
	Dimensions() int

	// ModelID returns the backend-specific model identifier, for logging and
	// for ensuring consistent model usage across a session.
	ModelID() string
}
