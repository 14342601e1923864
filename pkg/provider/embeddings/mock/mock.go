// Package mock provides a test double for the embeddings.Provider interface.
//
// Use Provider to return pre-canned or deterministically computed embedding
// vectors without a live model, and to verify which texts were submitted for
// embedding.
//
// Example:
//
//	p := &mock.Provider{
//	    Func:            mock.NgramVectors(64),
//	    DimensionsValue: 64,
//	    ModelIDValue:    "test-embed-v1",
//	}
//	vec, _ := p.Embed(ctx, "paul dupont")
package mock

import (
	"context"
	"math"
	"sync"

	"github.com/acuvox/acuvox/pkg/provider/embeddings"
)

// Compile-time interface assertion.
var _ embeddings.Provider = (*Provider)(nil)

// EmbedCall records a single invocation of Embed.
type EmbedCall struct {
	Ctx  context.Context
	Text string
}

// EmbedBatchCall records a single invocation of EmbedBatch.
type EmbedBatchCall struct {
	Ctx   context.Context
	Texts []string
}

// Provider is a mock implementation of embeddings.Provider.
type Provider struct {
	mu sync.Mutex

	// --- Configurable responses ---

	// Func, when non-nil, computes the vector for every embedded text. It
	// takes precedence over EmbedResult/EmbedBatchResult and makes the mock
	// deterministic per input string, which matching tests rely on.
	Func func(text string) []float32

	// EmbedResult is returned by Embed when Func is nil.
	EmbedResult []float32

	// EmbedErr, if non-nil, is returned as the error from Embed.
	EmbedErr error

	// EmbedBatchResult is returned by EmbedBatch when Func is nil.
	EmbedBatchResult [][]float32

	// EmbedBatchErr, if non-nil, is returned as the error from EmbedBatch.
	EmbedBatchErr error

	// DimensionsValue is returned by Dimensions.
	DimensionsValue int

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// --- Call records ---

	// EmbedCalls records every call to Embed in order.
	EmbedCalls []EmbedCall

	// EmbedBatchCalls records every call to EmbedBatch in order.
	EmbedBatchCalls []EmbedBatchCall
}

// Embed records the call and returns the configured vector.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.EmbedCalls = append(p.EmbedCalls, EmbedCall{Ctx: ctx, Text: text})
	if p.EmbedErr != nil {
		return nil, p.EmbedErr
	}
	if p.Func != nil {
		return p.Func(text), nil
	}
	return p.EmbedResult, nil
}

// EmbedBatch records the call and returns one vector per input text.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	cp := make([]string, len(texts))
	copy(cp, texts)
	p.EmbedBatchCalls = append(p.EmbedBatchCalls, EmbedBatchCall{Ctx: ctx, Texts: cp})
	if p.EmbedBatchErr != nil {
		return nil, p.EmbedBatchErr
	}
	if p.Func != nil {
		result := make([][]float32, len(texts))
		for i, t := range texts {
			result[i] = p.Func(t)
		}
		return result, nil
	}
	if p.EmbedBatchResult != nil {
		return p.EmbedBatchResult, nil
	}
	return make([][]float32, len(texts)), nil
}

// Dimensions returns DimensionsValue.
func (p *Provider) Dimensions() int { return p.DimensionsValue }

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string { return p.ModelIDValue }

// NgramVectors returns a deterministic text→vector function for tests:
// character trigram counts hashed into dims buckets. Identical strings map
// to identical vectors (cosine 1.0) and similar strings to nearby vectors,
// which is enough structure for span-selection assertions.
func NgramVectors(dims int) func(text string) []float32 {
	return func(text string) []float32 {
		vec := make([]float32, dims)
		padded := " " + text + " "
		runes := []rune(padded)
		for i := 0; i+3 <= len(runes); i++ {
			var h uint32 = 2166136261
			for _, r := range runes[i : i+3] {
				h ^= uint32(r)
				h *= 16777619
			}
			vec[int(h)%dims]++
		}
		var norm float64
		for _, v := range vec {
			norm += float64(v) * float64(v)
		}
		if norm > 0 {
			inv := float32(1 / math.Sqrt(norm))
			for i := range vec {
				vec[i] *= inv
			}
		}
		return vec
	}
}
