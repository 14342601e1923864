// Package charbox provides an embeddings provider backed by a local
// character-level ONNX encoder model, executed in-process through the ONNX
// Runtime bindings.
//
// The encoder consumes a fixed-length sequence of character ids (produced by
// mapping normalized text through the model's [Vocab] table) and emits one
// fixed-size dense vector per input row. No network calls are made; the
// model is loaded once at construction and shared read-only afterwards.
package charbox

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/acuvox/acuvox/pkg/provider/embeddings"
)

const (
	defaultSeqLen     = 200
	defaultInputName  = "input_ids"
	defaultOutputName = "embedding"
)

// Compile-time interface assertion.
var _ embeddings.Provider = (*Provider)(nil)

// ortInit guards the process-wide ONNX Runtime environment, which may only
// be initialised once.
var ortInit sync.Once

// Config configures a charbox [Provider].
type Config struct {
	// ModelPath is the path to the ONNX encoder model file. Required.
	ModelPath string

	// VocabPath is the path to the character vocabulary file. Required.
	VocabPath string

	// RuntimeLib is an optional path to the ONNX Runtime shared library.
	// When empty, the bindings' platform default is used.
	RuntimeLib string

	// SeqLen is the fixed input sequence length in characters.
	// Default: 200.
	SeqLen int

	// Dimensions is the encoder's output vector length. Required; it must
	// match the model's output shape.
	Dimensions int

	// InputName and OutputName override the model's tensor names.
	// Defaults: "input_ids" and "embedding".
	InputName  string
	OutputName string
}

// Provider implements [embeddings.Provider] with a local char-level encoder.
//
// ONNX Runtime sessions are not safe for concurrent Run calls, so inference
// is serialised internally; everything else is read-only after construction.
type Provider struct {
	session *ort.DynamicAdvancedSession
	vocab   *Vocab

	seqLen  int
	dims    int
	modelID string

	mu sync.Mutex
}

// New loads the vocabulary and encoder model described by cfg.
//
// A failure here is the recoverable MatchEngineUnavailable condition: the
// caller is expected to fall back to string-similarity-only scoring rather
// than abort the session.
func New(cfg Config) (*Provider, error) {
	if cfg.ModelPath == "" {
		return nil, errors.New("charbox: model path must not be empty")
	}
	if cfg.Dimensions <= 0 {
		return nil, errors.New("charbox: dimensions must be positive")
	}
	if cfg.SeqLen <= 0 {
		cfg.SeqLen = defaultSeqLen
	}
	if cfg.InputName == "" {
		cfg.InputName = defaultInputName
	}
	if cfg.OutputName == "" {
		cfg.OutputName = defaultOutputName
	}

	vocab, err := LoadVocab(cfg.VocabPath)
	if err != nil {
		return nil, err
	}

	var initErr error
	ortInit.Do(func() {
		if cfg.RuntimeLib != "" {
			ort.SetSharedLibraryPath(cfg.RuntimeLib)
		}
		initErr = ort.InitializeEnvironment()
	})
	if initErr != nil {
		return nil, fmt.Errorf("charbox: initialise onnx runtime: %w", initErr)
	}

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("charbox: load model %q: %w", cfg.ModelPath, err)
	}

	return &Provider{
		session: session,
		vocab:   vocab,
		seqLen:  cfg.SeqLen,
		dims:    cfg.Dimensions,
		modelID: filepath.Base(cfg.ModelPath),
	}, nil
}

// Close releases the ONNX session. The provider must not be used afterwards.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session != nil {
		err := p.session.Destroy()
		p.session = nil
		return err
	}
	return nil
}

// Embed implements [embeddings.Provider].
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch implements [embeddings.Provider]. All texts of the batch are
// vectorised and inferred in a single session run.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("charbox: empty batch")
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("charbox: %w", err)
	}

	n := int64(len(texts))
	ids := p.vocab.Vectorize(texts, p.seqLen)

	input, err := ort.NewTensor(ort.NewShape(n, int64(p.seqLen)), ids)
	if err != nil {
		return nil, fmt.Errorf("charbox: create input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(n, int64(p.dims)))
	if err != nil {
		return nil, fmt.Errorf("charbox: create output tensor: %w", err)
	}
	defer output.Destroy()

	p.mu.Lock()
	if p.session == nil {
		p.mu.Unlock()
		return nil, errors.New("charbox: provider is closed")
	}
	err = p.session.Run([]ort.Value{input}, []ort.Value{output})
	p.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("charbox: inference: %w", err)
	}

	flat := output.GetData()
	vecs := make([][]float32, len(texts))
	for i := range texts {
		row := make([]float32, p.dims)
		copy(row, flat[i*p.dims:(i+1)*p.dims])
		vecs[i] = row
	}
	return vecs, nil
}

// Dimensions implements [embeddings.Provider].
func (p *Provider) Dimensions() int { return p.dims }

// ModelID implements [embeddings.Provider].
func (p *Provider) ModelID() string { return p.modelID }
