package match

import (
	"github.com/antzucaro/matchr"

	"github.com/acuvox/acuvox/internal/textnorm"
)

// FuzzyOption is a functional option for configuring a [Fuzzy] matcher.
type FuzzyOption func(*Fuzzy)

// WithFuzzyThresholds overrides the decision thresholds applied to the
// similarity score. Default: [DefaultThresholds].
func WithFuzzyThresholds(th Thresholds) FuzzyOption {
	return func(f *Fuzzy) {
		f.thresholds = th
	}
}

// Fuzzy scores an utterance against candidates by whole-string similarity.
//
// The similarity ratio is Levenshtein-based: 1 − distance/maxLen over the
// normalized strings, so identical normalized strings score exactly 1.0 and
// always classify as [Valid]. Fuzzy is read-only after construction and safe
// for concurrent use.
type Fuzzy struct {
	thresholds Thresholds
}

// NewFuzzy returns a [Fuzzy] matcher configured with the supplied options.
func NewFuzzy(opts ...FuzzyOption) *Fuzzy {
	f := &Fuzzy{thresholds: DefaultThresholds()}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Match normalizes utterance and every candidate, computes the similarity
// ratio for each pair, and returns the result for the best candidate.
// On ties the first-seen candidate wins. An empty (or punctuation-only)
// utterance is rejected with score 0 without any candidate comparison.
func (f *Fuzzy) Match(utterance string, candidates []string) Result {
	norm := textnorm.Normalize(utterance)
	if norm == "" {
		return Result{Score: 0, Decision: Rejected}
	}

	var (
		bestScore     float64
		bestCandidate string
	)
	for _, c := range candidates {
		if score := Ratio(norm, textnorm.Normalize(c)); score > bestScore {
			bestScore = score
			bestCandidate = c
		}
	}

	return Result{
		Candidate: bestCandidate,
		Score:     bestScore,
		Decision:  Classify(bestScore, f.thresholds),
	}
}

// Ratio returns the Levenshtein similarity ratio between two strings in
// [0,1]: 1 − distance/maxLen. Both inputs are compared as-is; callers
// normalize first. Two empty strings are fully similar.
func Ratio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	dist := matchr.Levenshtein(a, b)
	return 1.0 - float64(dist)/float64(maxLen)
}
