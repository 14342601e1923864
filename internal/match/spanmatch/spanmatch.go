// Package spanmatch implements the embedding-based span matching strategy.
//
// An utterance rarely equals the expected value verbatim; the speaker embeds
// it in a sentence ("le patient est Paul Dupont, opération à dix heures").
// The matcher therefore enumerates word windows of the utterance, embeds
// every window together with the candidate through an
// [embeddings.Provider], and selects the window with the highest cosine
// similarity. The final score blends that embedding similarity with a
// character-n-gram similarity of the selected window, which penalises
// semantically close but lexically different spans.
package spanmatch

import (
	"context"
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/acuvox/acuvox/internal/match"
	"github.com/acuvox/acuvox/internal/textnorm"
	"github.com/acuvox/acuvox/pkg/provider/embeddings"
)

const (
	// defaultMinWindow and defaultMaxWindow bound the word-window widths
	// enumerated over the utterance.
	defaultMinWindow = 2
	defaultMaxWindow = 6

	// embedWeight and ngramWeight blend the two sub-scores into the final
	// score. They must sum to 1 so the result stays in [0,1].
	embedWeight = 0.7
	ngramWeight = 0.3
)

// Option is a functional option for [Matcher].
type Option func(*Matcher)

// WithThresholds overrides the decision thresholds applied to the blended
// score. Default: [match.DefaultThresholds].
func WithThresholds(th match.Thresholds) Option {
	return func(m *Matcher) {
		m.thresholds = th
	}
}

// WithWindowRange overrides the word-window width range. Values outside
// 1..min..max are ignored.
func WithWindowRange(minW, maxW int) Option {
	return func(m *Matcher) {
		if minW >= 1 && maxW >= minW {
			m.minWindow = minW
			m.maxWindow = maxW
		}
	}
}

// Matcher scores utterances against candidates by blended span similarity.
// It is read-only after construction and safe for concurrent use as long as
// the underlying provider is.
type Matcher struct {
	provider   embeddings.Provider
	thresholds match.Thresholds
	minWindow  int
	maxWindow  int
}

// New returns a [Matcher] backed by provider.
func New(provider embeddings.Provider, opts ...Option) *Matcher {
	m := &Matcher{
		provider:   provider,
		thresholds: match.DefaultThresholds(),
		minWindow:  defaultMinWindow,
		maxWindow:  defaultMaxWindow,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Match scores utterance against a single candidate.
//
// For proper-name candidates (two or more leading alphabetic tokens) the
// span set is first filtered to windows sharing at least one token with the
// candidate, so that an unrelated name in a semantically similar sentence
// cannot win. If the filter leaves nothing, all spans are evaluated — the
// filter narrows, it never empties.
func (m *Matcher) Match(ctx context.Context, utterance, candidate string) (match.Result, error) {
	norm := textnorm.Normalize(utterance)
	if norm == "" {
		return match.Result{Candidate: candidate, Decision: match.Rejected}, nil
	}

	spans := m.spans(norm)
	if isProperName(candidate) {
		if filtered := filterByOverlap(spans, candidate); len(filtered) > 0 {
			spans = filtered
		}
	}

	// One batch for the candidate and every span.
	texts := make([]string, 0, len(spans)+1)
	texts = append(texts, candidate)
	texts = append(texts, spans...)
	vecs, err := m.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return match.Result{}, fmt.Errorf("spanmatch: embed spans: %w", err)
	}
	if len(vecs) != len(texts) {
		return match.Result{}, fmt.Errorf("spanmatch: expected %d embeddings, got %d", len(texts), len(vecs))
	}

	candVec := vecs[0]
	bestIdx := 0
	bestEmbed := math.Inf(-1)
	for i := range spans {
		if cos := cosine(candVec, vecs[i+1]); cos > bestEmbed {
			bestEmbed = cos
			bestIdx = i
		}
	}

	bestSpan := spans[bestIdx]
	ngram := NgramSimilarity(bestSpan, candidate)
	score := embedWeight*bestEmbed + ngramWeight*ngram

	return match.Result{
		Candidate:      candidate,
		Score:          score,
		Decision:       match.Classify(score, m.thresholds),
		BestSpan:       bestSpan,
		EmbeddingScore: bestEmbed,
		NgramScore:     ngram,
	}, nil
}

// MatchBest scores utterance against every candidate and returns the result
// for the highest-scoring one. On equal scores the first-listed candidate
// wins. At least one candidate is required.
func (m *Matcher) MatchBest(ctx context.Context, utterance string, candidates []string) (match.Result, error) {
	if len(candidates) == 0 {
		return match.Result{}, fmt.Errorf("spanmatch: no candidates")
	}

	var best match.Result
	for i, c := range candidates {
		res, err := m.Match(ctx, utterance, c)
		if err != nil {
			return match.Result{}, err
		}
		if i == 0 || res.Score > best.Score {
			best = res
		}
	}
	return best, nil
}

// spans enumerates word windows of widths minWindow..maxWindow over the
// already-normalized utterance. Utterances shorter than the minimum width
// yield the whole utterance as the only span.
func (m *Matcher) spans(normalized string) []string {
	toks := strings.Fields(normalized)
	var spans []string
	maxW := m.maxWindow
	if len(toks) < maxW {
		maxW = len(toks)
	}
	for w := m.minWindow; w <= maxW; w++ {
		for i := 0; i+w <= len(toks); i++ {
			spans = append(spans, strings.Join(toks[i:i+w], " "))
		}
	}
	if len(spans) == 0 {
		spans = []string{normalized}
	}
	return spans
}

// filterByOverlap keeps only spans sharing at least one token with candidate.
func filterByOverlap(spans []string, candidate string) []string {
	candTokens := make(map[string]struct{})
	for _, t := range textnorm.Tokens(candidate) {
		candTokens[t] = struct{}{}
	}

	var filtered []string
	for _, span := range spans {
		for _, t := range strings.Fields(span) {
			if _, ok := candTokens[t]; ok {
				filtered = append(filtered, span)
				break
			}
		}
	}
	return filtered
}

// isProperName reports whether candidate looks like a person name: at least
// two normalized tokens with the first two purely alphabetic. Times, room
// numbers and procedure codes fail this test and skip the overlap filter.
func isProperName(candidate string) bool {
	toks := textnorm.Tokens(candidate)
	if len(toks) < 2 {
		return false
	}
	for _, t := range toks[:2] {
		for _, r := range t {
			if !unicode.IsLetter(r) {
				return false
			}
		}
	}
	return true
}

// cosine returns the cosine similarity of two float32 vectors. Mismatched
// lengths or zero vectors yield 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// NgramSimilarity returns the character-n-gram similarity of two strings:
// the mean of the 3-, 4- and 5-gram count-vector cosines over the
// normalized inputs. It is exposed for the degraded matching path, which
// scores without an embeddings provider.
func NgramSimilarity(a, b string) float64 {
	a = textnorm.Normalize(a)
	b = textnorm.Normalize(b)
	var sum float64
	for _, n := range []int{3, 4, 5} {
		sum += cosineCounts(charNgrams(a, n), charNgrams(b, n))
	}
	return sum / 3
}

// charNgrams counts the character n-grams of s, padded with one space on
// each side so word boundaries contribute grams.
func charNgrams(s string, n int) map[string]int {
	runes := []rune(" " + s + " ")
	counts := make(map[string]int)
	for i := 0; i+n <= len(runes); i++ {
		counts[string(runes[i:i+n])]++
	}
	return counts
}

// cosineCounts returns the cosine similarity of two sparse count vectors.
func cosineCounts(a, b map[string]int) float64 {
	var dot, na, nb float64
	for k, va := range a {
		na += float64(va) * float64(va)
		if vb, ok := b[k]; ok {
			dot += float64(va) * float64(vb)
		}
	}
	for _, vb := range b {
		nb += float64(vb) * float64(vb)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
