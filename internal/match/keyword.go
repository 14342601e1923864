package match

import (
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/acuvox/acuvox/internal/textnorm"
)

// Keyword is one entry of a keyword list. Weight defaults to 1 when zero;
// a heavier keyword counts multiple times toward the required minimum.
type Keyword struct {
	Text   string `yaml:"text"`
	Weight int    `yaml:"weight"`
}

// KeywordsOption is a functional option for configuring a [Keywords] matcher.
type KeywordsOption func(*Keywords)

// WithFuzzyContainment switches containment testing from exact normalized
// substring to a Jaro-Winkler comparison of the keyword against every
// same-length token window of the utterance. A keyword counts as found when
// the best window similarity reaches threshold. A non-positive threshold
// keeps the default of 0.85.
func WithFuzzyContainment(threshold float64) KeywordsOption {
	return func(k *Keywords) {
		k.fuzzy = true
		if threshold > 0 {
			k.fuzzyThreshold = threshold
		}
	}
}

// Keywords counts keyword presence in an utterance.
//
// Decision is a hard count threshold: [Valid] when the weighted found count
// reaches the required minimum, [Rejected] otherwise. There is no uncertainty
// band for this strategy. Keywords is read-only after construction and safe
// for concurrent use.
type Keywords struct {
	fuzzy          bool
	fuzzyThreshold float64
}

// NewKeywords returns a [Keywords] matcher configured with the supplied
// options. By default containment is an exact normalized-substring test.
func NewKeywords(opts ...KeywordsOption) *Keywords {
	k := &Keywords{fuzzyThreshold: 0.85}
	for _, o := range opts {
		o(k)
	}
	return k
}

// Match tests every keyword for containment in the normalized utterance and
// returns the accumulated result. Found keywords are reported in the order
// of the input keyword list, not utterance order. An empty utterance is
// rejected with no keyword tested.
func (k *Keywords) Match(utterance string, keywords []Keyword, minRequired int) Result {
	norm := textnorm.Normalize(utterance)
	if norm == "" {
		return Result{Score: 0, Decision: Rejected, Required: minRequired}
	}

	tokens := strings.Fields(norm)

	var (
		found []string
		count int
	)
	for _, kw := range keywords {
		kwNorm := textnorm.Normalize(kw.Text)
		if kwNorm == "" {
			continue
		}
		if !k.contains(norm, tokens, kwNorm) {
			continue
		}
		found = append(found, kw.Text)
		weight := kw.Weight
		if weight <= 0 {
			weight = 1
		}
		count += weight
	}

	decision := Rejected
	if count >= minRequired {
		decision = Valid
	}

	return Result{
		Score:    float64(count),
		Decision: decision,
		Found:    found,
		Required: minRequired,
	}
}

// contains reports whether the normalized keyword occurs in the utterance.
// In exact mode this is a plain substring test. In fuzzy mode the keyword is
// compared against every window of the same token length and matches when
// the best Jaro-Winkler similarity reaches the configured threshold.
func (k *Keywords) contains(norm string, tokens []string, keyword string) bool {
	if strings.Contains(norm, keyword) {
		return true
	}
	if !k.fuzzy {
		return false
	}

	width := len(strings.Fields(keyword))
	if width == 0 || width > len(tokens) {
		return false
	}
	for i := 0; i+width <= len(tokens); i++ {
		window := strings.Join(tokens[i:i+width], " ")
		if matchr.JaroWinkler(window, keyword, false) >= k.fuzzyThreshold {
			return true
		}
	}
	return false
}
