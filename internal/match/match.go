// Package match implements the matching engine that scores a spoken
// utterance against the expected values of a checklist field.
//
// Four independent strategies are provided:
//
//   - [Fuzzy] — whole-string edit-distance similarity against each candidate.
//   - [Keywords] — substring/token presence counting against a keyword list,
//     with optional fuzzy tolerance and per-keyword weighting.
//   - [Concepts] — multi-category vocabulary detection with per-category and
//     total minimum-count requirements.
//   - spanmatch.Matcher (subpackage) — embedding + character-n-gram blended
//     span search.
//
// Fuzzy and span matching share the numeric [0,1] score space and derive
// their [Decision] exclusively through [Classify]; keyword and concept
// matching use a hard count threshold and emit only Valid or Rejected.
//
// All matchers are read-only after construction and safe for concurrent use.
// A [Result] is constructed once per call and never mutated afterwards.
package match

// Decision is the verdict assigned to one scored attempt.
type Decision string

const (
	// Valid means the utterance sufficiently matched an expected value.
	Valid Decision = "valid"

	// Uncertain means the score fell into the ambiguous band between the
	// rejection and acceptance thresholds. The confirmation loop re-prompts.
	Uncertain Decision = "uncertain"

	// Rejected means the utterance did not match. The confirmation loop
	// re-prompts.
	Rejected Decision = "rejected"
)

// IsValid reports whether d is a recognised decision value.
func (d Decision) IsValid() bool {
	switch d {
	case Valid, Uncertain, Rejected:
		return true
	}
	return false
}

// Thresholds holds the two score cutoffs used by [Classify].
// Strategies that share the numeric [0,1] score space (fuzzy and span
// matching) must apply the same thresholds consistently.
type Thresholds struct {
	// OK is the minimum score that classifies as [Valid].
	OK float64 `yaml:"ok"`

	// Maybe is the minimum score that classifies as [Uncertain].
	// Scores below Maybe classify as [Rejected].
	Maybe float64 `yaml:"maybe"`
}

// DefaultThresholds returns the standard cutoffs: 0.88 for acceptance and
// 0.70 for the uncertainty band.
func DefaultThresholds() Thresholds {
	return Thresholds{OK: 0.88, Maybe: 0.70}
}

// Classify maps a numeric score in [0,1] to a [Decision] under th.
// A score exactly at th.OK is [Valid]; a score exactly at th.Maybe is
// [Uncertain]. This is the only derivation path from score to decision.
func Classify(score float64, th Thresholds) Decision {
	switch {
	case score >= th.OK:
		return Valid
	case score >= th.Maybe:
		return Uncertain
	default:
		return Rejected
	}
}

// Result is the immutable outcome of a single matching call.
// Fields that do not apply to the strategy that produced the result are left
// at their zero values.
type Result struct {
	// Candidate is the best-matching expected value, verbatim as configured.
	Candidate string `json:"candidate,omitempty"`

	// Score is the numeric match score. Fuzzy and span strategies use the
	// [0,1] similarity space; keyword and concept strategies report the
	// found-term count.
	Score float64 `json:"score"`

	// Decision is the verdict derived from Score.
	Decision Decision `json:"decision"`

	// BestSpan is the word window of the utterance that scored highest
	// against Candidate. Only set by the span-matching strategy.
	BestSpan string `json:"best_span,omitempty"`

	// EmbeddingScore and NgramScore are the span strategy's sub-scores
	// before blending. Zero for other strategies.
	EmbeddingScore float64 `json:"embedding_score,omitempty"`
	NgramScore     float64 `json:"ngram_score,omitempty"`

	// Found lists the keywords detected by the keyword strategy, in
	// keyword-list order.
	Found []string `json:"found,omitempty"`

	// Concepts groups the vocabulary terms detected by the concept strategy
	// by category name.
	Concepts map[string][]string `json:"concepts,omitempty"`

	// Required is the minimum count the keyword or concept strategy had to
	// reach for a Valid decision.
	Required int `json:"required,omitempty"`
}
