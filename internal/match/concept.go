package match

import (
	"strings"

	"github.com/acuvox/acuvox/internal/textnorm"
)

// Concepts detects domain vocabulary grouped into named categories
// (e.g. "risques" → {"hypothermie", "allergie"}).
//
// A category is satisfied when at least its configured minimum of terms is
// found in the utterance; the overall decision is [Valid] only when every
// required category that exists in the vocabulary is satisfied and the total
// found-term count reaches the total minimum. Like the keyword strategy this
// is a hard threshold with no uncertainty band.
//
// Concepts is stateless and safe for concurrent use.
type Concepts struct{}

// NewConcepts returns a [Concepts] matcher.
func NewConcepts() *Concepts {
	return &Concepts{}
}

// Match detects vocabulary terms of the required categories in utterance.
//
// Categories listed in required but absent from vocab are skipped silently —
// a checklist may reference a richer vocabulary than the one deployed.
// minPerCategory supplies the per-category minimum found-term count; a
// missing or non-positive entry defaults to 1. totalMin is the minimum total
// found-term count across all categories.
//
// The returned result carries the found terms grouped by category for audit
// and display.
func (c *Concepts) Match(
	utterance string,
	vocab map[string][]string,
	required []string,
	minPerCategory map[string]int,
	totalMin int,
) Result {
	norm := textnorm.Normalize(utterance)
	if norm == "" {
		return Result{Score: 0, Decision: Rejected, Required: totalMin}
	}

	foundByCategory := make(map[string][]string)
	total := 0
	allSatisfied := true

	for _, category := range required {
		terms, ok := vocab[category]
		if !ok {
			continue
		}

		var found []string
		for _, term := range terms {
			termNorm := textnorm.Normalize(term)
			if termNorm == "" {
				continue
			}
			if strings.Contains(norm, termNorm) {
				found = append(found, term)
			}
		}

		min := minPerCategory[category]
		if min <= 0 {
			min = 1
		}
		if len(found) < min {
			allSatisfied = false
		}
		if len(found) > 0 {
			foundByCategory[category] = found
			total += len(found)
		}
	}

	decision := Rejected
	if allSatisfied && total >= totalMin {
		decision = Valid
	}

	return Result{
		Score:    float64(total),
		Decision: decision,
		Concepts: foundByCategory,
		Required: totalMin,
	}
}
