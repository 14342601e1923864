package match_test

import (
	"testing"

	"github.com/acuvox/acuvox/internal/match"
)

func TestClassifyBoundaries(t *testing.T) {
	t.Parallel()

	th := match.DefaultThresholds()

	tests := []struct {
		score float64
		want  match.Decision
	}{
		{1.0, match.Valid},
		{0.88, match.Valid},  // exactly at the OK threshold
		{0.8799, match.Uncertain},
		{0.70, match.Uncertain}, // exactly at the Maybe threshold
		{0.6999, match.Rejected},
		{0, match.Rejected},
	}
	for _, tt := range tests {
		if got := match.Classify(tt.score, th); got != tt.want {
			t.Errorf("Classify(%v) = %q, want %q", tt.score, got, tt.want)
		}
	}
}

func TestClassifyCustomThresholds(t *testing.T) {
	t.Parallel()

	strict := match.Thresholds{OK: 0.95, Maybe: 0.85}
	if got := match.Classify(0.90, strict); got != match.Uncertain {
		t.Errorf("Classify(0.90, strict) = %q, want %q", got, match.Uncertain)
	}
	if got := match.Classify(0.95, strict); got != match.Valid {
		t.Errorf("Classify(0.95, strict) = %q, want %q", got, match.Valid)
	}
}

func TestDecisionIsValid(t *testing.T) {
	t.Parallel()

	for _, d := range []match.Decision{match.Valid, match.Uncertain, match.Rejected} {
		if !d.IsValid() {
			t.Errorf("Decision(%q).IsValid() = false, want true", d)
		}
	}
	if match.Decision("maybe").IsValid() {
		t.Error(`Decision("maybe").IsValid() = true, want false`)
	}
}

func TestFuzzyIdenticalStrings(t *testing.T) {
	t.Parallel()

	f := match.NewFuzzy()
	res := f.Match("marie dupont", []string{"marie dupont"})
	if res.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0", res.Score)
	}
	if res.Decision != match.Valid {
		t.Errorf("Decision = %q, want %q", res.Decision, match.Valid)
	}
	if res.Candidate != "marie dupont" {
		t.Errorf("Candidate = %q, want %q", res.Candidate, "marie dupont")
	}
}

func TestFuzzyNormalizesBothSides(t *testing.T) {
	t.Parallel()

	f := match.NewFuzzy()
	res := f.Match("  MARIE Dupont! ", []string{"Marie Dupont"})
	if res.Score != 1.0 || res.Decision != match.Valid {
		t.Errorf("got score=%v decision=%q, want 1.0/valid", res.Score, res.Decision)
	}
}

func TestFuzzyBestCandidateFirstSeenWinsTies(t *testing.T) {
	t.Parallel()

	f := match.NewFuzzy()
	// Both candidates normalize to the same string; the first must win.
	res := f.Match("salle 4", []string{"Salle 4", "salle 4"})
	if res.Candidate != "Salle 4" {
		t.Errorf("Candidate = %q, want first-seen %q", res.Candidate, "Salle 4")
	}
}

func TestFuzzyEmptyUtterance(t *testing.T) {
	t.Parallel()

	f := match.NewFuzzy()
	res := f.Match("", []string{"marie dupont"})
	if res.Decision != match.Rejected || res.Score != 0 {
		t.Errorf("got score=%v decision=%q, want 0/rejected", res.Score, res.Decision)
	}
	if res.Candidate != "" {
		t.Errorf("Candidate = %q, want empty (no comparison performed)", res.Candidate)
	}
}

func TestFuzzyCloseButNotExact(t *testing.T) {
	t.Parallel()

	f := match.NewFuzzy()
	res := f.Match("marie dupond", []string{"marie dupont", "jean martin"})
	if res.Candidate != "marie dupont" {
		t.Errorf("Candidate = %q, want %q", res.Candidate, "marie dupont")
	}
	if res.Score <= 0.9 || res.Score >= 1.0 {
		t.Errorf("Score = %v, want in (0.9, 1.0)", res.Score)
	}
}

func TestRatioMonotonicity(t *testing.T) {
	t.Parallel()

	// A closer string must never score lower than a more distant one.
	exact := match.Ratio("appendicectomie", "appendicectomie")
	oneEdit := match.Ratio("appendicectomie", "appendicectomis")
	farOff := match.Ratio("appendicectomie", "cholecystectomie")
	if !(exact >= oneEdit && oneEdit >= farOff) {
		t.Errorf("Ratio not monotonic: exact=%v oneEdit=%v farOff=%v", exact, oneEdit, farOff)
	}
	if exact != 1.0 {
		t.Errorf("Ratio of identical strings = %v, want 1.0", exact)
	}
}

func TestKeywordsBasicCount(t *testing.T) {
	t.Parallel()

	k := match.NewKeywords()
	res := k.Match("oui et confirmé",
		[]match.Keyword{{Text: "oui"}, {Text: "confirmé"}, {Text: "ok"}}, 2)

	if res.Decision != match.Valid {
		t.Fatalf("Decision = %q, want %q", res.Decision, match.Valid)
	}
	if res.Score != 2 {
		t.Errorf("Score = %v, want 2", res.Score)
	}
	want := []string{"oui", "confirmé"}
	if len(res.Found) != len(want) {
		t.Fatalf("Found = %v, want %v", res.Found, want)
	}
	for i := range want {
		if res.Found[i] != want[i] {
			t.Errorf("Found[%d] = %q, want %q (keyword-list order)", i, res.Found[i], want[i])
		}
	}
}

func TestKeywordsBelowMinimum(t *testing.T) {
	t.Parallel()

	k := match.NewKeywords()
	res := k.Match("oui", []match.Keyword{{Text: "oui"}, {Text: "confirmé"}}, 2)
	if res.Decision != match.Rejected {
		t.Errorf("Decision = %q, want %q (no uncertain tier)", res.Decision, match.Rejected)
	}
	if res.Score != 1 {
		t.Errorf("Score = %v, want 1", res.Score)
	}
}

func TestKeywordsWeighted(t *testing.T) {
	t.Parallel()

	k := match.NewKeywords()
	res := k.Match("allergie signalée",
		[]match.Keyword{{Text: "allergie", Weight: 2}, {Text: "aucune"}}, 2)
	if res.Decision != match.Valid {
		t.Errorf("Decision = %q, want %q (weight 2 satisfies minimum alone)", res.Decision, match.Valid)
	}
}

func TestKeywordsEmptyUtterance(t *testing.T) {
	t.Parallel()

	k := match.NewKeywords()
	res := k.Match("", []match.Keyword{{Text: "oui"}}, 1)
	if res.Decision != match.Rejected || res.Score != 0 || len(res.Found) != 0 {
		t.Errorf("got %+v, want rejected/0/no found", res)
	}
}

func TestKeywordsFuzzyContainment(t *testing.T) {
	t.Parallel()

	k := match.NewKeywords(match.WithFuzzyContainment(0.85))
	// "insulline" misheard for "insuline": not an exact substring, but
	// Jaro-Winkler over the token window clears the threshold.
	res := k.Match("insulline administrée", []match.Keyword{{Text: "insuline"}}, 1)
	if res.Decision != match.Valid {
		t.Errorf("Decision = %q, want %q", res.Decision, match.Valid)
	}

	exact := match.NewKeywords()
	if got := exact.Match("insulline administrée", []match.Keyword{{Text: "insuline"}}, 1); got.Decision != match.Rejected {
		t.Errorf("exact mode Decision = %q, want %q", got.Decision, match.Rejected)
	}
}

func TestConceptsAllCategoriesSatisfied(t *testing.T) {
	t.Parallel()

	c := match.NewConcepts()
	vocab := map[string][]string{
		"risques":     {"hypothermie", "allergie"},
		"traitements": {"insuline", "antibiotique"},
	}
	res := c.Match("hypothermie et insuline", vocab,
		[]string{"risques", "traitements"},
		map[string]int{"risques": 1, "traitements": 1}, 2)

	if res.Decision != match.Valid {
		t.Fatalf("Decision = %q, want %q", res.Decision, match.Valid)
	}
	if res.Score != 2 {
		t.Errorf("Score = %v, want 2", res.Score)
	}
	if got := res.Concepts["risques"]; len(got) != 1 || got[0] != "hypothermie" {
		t.Errorf(`Concepts["risques"] = %v, want ["hypothermie"]`, got)
	}
	if got := res.Concepts["traitements"]; len(got) != 1 || got[0] != "insuline" {
		t.Errorf(`Concepts["traitements"] = %v, want ["insuline"]`, got)
	}
}

func TestConceptsCategoryBelowMinimum(t *testing.T) {
	t.Parallel()

	c := match.NewConcepts()
	vocab := map[string][]string{
		"risques":     {"hypothermie", "allergie"},
		"traitements": {"insuline"},
	}
	// "traitements" category found nothing: overall rejected even though the
	// total count reaches totalMin.
	res := c.Match("hypothermie et allergie", vocab,
		[]string{"risques", "traitements"}, nil, 2)
	if res.Decision != match.Rejected {
		t.Errorf("Decision = %q, want %q", res.Decision, match.Rejected)
	}
	if res.Score != 2 {
		t.Errorf("Score = %v, want 2 (terms still counted)", res.Score)
	}
}

func TestConceptsAbsentCategorySkipped(t *testing.T) {
	t.Parallel()

	c := match.NewConcepts()
	vocab := map[string][]string{"risques": {"hypothermie"}}
	// "materiel" is not in the vocabulary: skipped silently, not a failure.
	res := c.Match("hypothermie", vocab, []string{"risques", "materiel"}, nil, 1)
	if res.Decision != match.Valid {
		t.Errorf("Decision = %q, want %q", res.Decision, match.Valid)
	}
}

func TestConceptsEmptyUtterance(t *testing.T) {
	t.Parallel()

	c := match.NewConcepts()
	res := c.Match("", map[string][]string{"risques": {"x"}}, []string{"risques"}, nil, 1)
	if res.Decision != match.Rejected || res.Score != 0 {
		t.Errorf("got %+v, want rejected/0", res)
	}
}
