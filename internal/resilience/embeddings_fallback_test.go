package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/acuvox/acuvox/pkg/provider/embeddings/mock"
)

func TestEmbeddingsFallback_PrimaryHealthy(t *testing.T) {
	primary := &mock.Provider{EmbedResult: []float32{1, 0}, DimensionsValue: 2, ModelIDValue: "primary"}
	backup := &mock.Provider{EmbedResult: []float32{0, 1}}

	f := NewEmbeddingsFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("backup", backup)

	vec, err := f.Embed(context.Background(), "genou gauche")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vec[0] != 1 {
		t.Errorf("vec = %v, want primary's result", vec)
	}
	if len(backup.EmbedCalls) != 0 {
		t.Errorf("backup was called %d times", len(backup.EmbedCalls))
	}
	if f.ModelID() != "primary" || f.Dimensions() != 2 {
		t.Errorf("identity = %q/%d, want primary's", f.ModelID(), f.Dimensions())
	}
}

func TestEmbeddingsFallback_FailsOver(t *testing.T) {
	primary := &mock.Provider{EmbedErr: errors.New("model file corrupt")}
	backup := &mock.Provider{EmbedResult: []float32{0, 1}}

	f := NewEmbeddingsFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("backup", backup)

	vec, err := f.Embed(context.Background(), "genou gauche")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if vec[1] != 1 {
		t.Errorf("vec = %v, want backup's result", vec)
	}
}

func TestEmbeddingsFallback_AllFail(t *testing.T) {
	primary := &mock.Provider{EmbedBatchErr: errors.New("down")}
	backup := &mock.Provider{EmbedBatchErr: errors.New("also down")}

	f := NewEmbeddingsFallback(primary, "primary", FallbackConfig{})
	f.AddFallback("backup", backup)

	if _, err := f.EmbedBatch(context.Background(), []string{"a", "b"}); !errors.Is(err, ErrAllFailed) {
		t.Fatalf("err = %v, want ErrAllFailed", err)
	}
}

func TestEmbeddingsFallback_OpenBreakerSkipsPrimary(t *testing.T) {
	primary := &mock.Provider{EmbedErr: errors.New("down")}
	backup := &mock.Provider{EmbedResult: []float32{1}}

	f := NewEmbeddingsFallback(primary, "primary", FallbackConfig{
		CircuitBreaker: CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour},
	})
	f.AddFallback("backup", backup)

	// Two failing calls trip the primary's breaker.
	for i := 0; i < 2; i++ {
		if _, err := f.Embed(context.Background(), "x"); err != nil {
			t.Fatalf("Embed %d: %v", i, err)
		}
	}
	callsBefore := len(primary.EmbedCalls)

	if _, err := f.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed after trip: %v", err)
	}
	if len(primary.EmbedCalls) != callsBefore {
		t.Errorf("primary called with open breaker (%d → %d calls)",
			callsBefore, len(primary.EmbedCalls))
	}
}
