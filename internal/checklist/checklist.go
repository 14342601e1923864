// Package checklist defines the checklist schema and its YAML loader.
//
// A checklist is an ordered list of items; each item carries a question to
// read out, the matching strategy that decides whether the spoken answer
// confirms the expected value, and that strategy's payload. Strategies are
// tagged variants: the `strategy` key in YAML selects the concrete type.
//
// Example:
//
//	items:
//	  - id: patient-name
//	    question: "Quel est le nom du patient ?"
//	    strategy: embedding
//	    expected: ["Paul Dupont", "Dupont Paul"]
//	  - id: allergies
//	    question: "Le patient a-t-il des allergies connues ?"
//	    strategy: keywords
//	    keywords:
//	      - text: "aucune allergie"
//	      - text: "pas d allergie"
//	    min_required: 1
package checklist

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/acuvox/acuvox/internal/match"
)

// ErrUnknownStrategy marks a checklist item whose strategy tag is not
// recognised. The item is skipped during a run, not fatal to the checklist.
var ErrUnknownStrategy = errors.New("checklist: unknown strategy")

// Strategy tag values accepted in the `strategy` field.
const (
	StrategyFuzzy     = "fuzzy"
	StrategyKeywords  = "keywords"
	StrategyConcepts  = "concepts"
	StrategyEmbedding = "embedding"
)

// defaultTimeout bounds a single listening window when the item does not
// set one.
const defaultTimeout = 7 * time.Second

// Strategy is the tagged variant carried by an [Item]. Concrete types are
// [FuzzyMatch], [KeywordMatch], [ConceptDetection], [EmbeddingSpanMatch]
// and [Unknown]; consumers dispatch with a type switch.
type Strategy interface {
	// Kind returns the YAML tag of the variant.
	Kind() string

	// Validate checks the variant payload for structural problems.
	Validate() error
}

// FuzzyMatch confirms by whole-string similarity against expected values.
type FuzzyMatch struct {
	// Expected lists the accepted answer variants.
	Expected []string

	// Thresholds overrides the decision cutoffs. Nil means defaults.
	Thresholds *match.Thresholds
}

func (FuzzyMatch) Kind() string { return StrategyFuzzy }

func (s FuzzyMatch) Validate() error {
	if len(s.Expected) == 0 {
		return errors.New("fuzzy strategy requires at least one expected value")
	}
	return nil
}

// KeywordMatch confirms when enough keywords occur in the answer.
type KeywordMatch struct {
	// Keywords are the terms to detect, with optional weights.
	Keywords []match.Keyword

	// MinRequired is the weighted count needed for a valid decision.
	MinRequired int

	// Fuzzy enables tolerant containment instead of exact substring tests.
	Fuzzy bool

	// FuzzyThreshold is the similarity cutoff for tolerant containment.
	// Zero means the matcher default.
	FuzzyThreshold float64
}

func (KeywordMatch) Kind() string { return StrategyKeywords }

func (s KeywordMatch) Validate() error {
	if len(s.Keywords) == 0 {
		return errors.New("keywords strategy requires at least one keyword")
	}
	if s.MinRequired <= 0 {
		return errors.New("keywords strategy requires min_required > 0")
	}
	return nil
}

// ConceptDetection confirms when the answer covers required vocabulary
// categories. The category terms come from the run's [Vocabulary].
type ConceptDetection struct {
	// Categories lists the vocabulary categories that must be covered.
	Categories []string

	// MinPerCategory overrides the per-category minimum term count.
	// Categories absent from the map require one term.
	MinPerCategory map[string]int

	// TotalMin is the minimum total term count across all categories.
	TotalMin int
}

func (ConceptDetection) Kind() string { return StrategyConcepts }

func (s ConceptDetection) Validate() error {
	if len(s.Categories) == 0 {
		return errors.New("concepts strategy requires at least one category")
	}
	return nil
}

// EmbeddingSpanMatch confirms by embedding-based span search against
// expected values.
type EmbeddingSpanMatch struct {
	// Expected lists the accepted answer variants.
	Expected []string

	// Thresholds overrides the decision cutoffs. Nil means defaults.
	Thresholds *match.Thresholds
}

func (EmbeddingSpanMatch) Kind() string { return StrategyEmbedding }

func (s EmbeddingSpanMatch) Validate() error {
	if len(s.Expected) == 0 {
		return errors.New("embedding strategy requires at least one expected value")
	}
	return nil
}

// Unknown preserves a strategy tag this build does not recognise, so a
// checklist written for a newer build still loads; the runner skips the
// item and reports it.
type Unknown struct {
	// Tag is the unrecognised strategy value verbatim.
	Tag string
}

func (u Unknown) Kind() string { return u.Tag }

func (u Unknown) Validate() error {
	return fmt.Errorf("%w: %q", ErrUnknownStrategy, u.Tag)
}

// Item is one confirmation step of a checklist.
type Item struct {
	// ID identifies the item within the checklist. Required, unique.
	ID string

	// Question is the prompt read to the speaker.
	Question string

	// Hint is optional extra guidance shown on retries.
	Hint string

	// Timeout bounds a single listening window.
	Timeout time.Duration

	// Strategy decides how the answer is matched.
	Strategy Strategy
}

// Checklist is an ordered list of confirmation items.
type Checklist struct {
	Items []Item
}

// fileSchema is the raw YAML layout of a checklist file. Every payload
// field of every strategy variant is declared here so the decoder can run
// with strict field checking; itemSpec.build sorts them into variants.
type fileSchema struct {
	Items []itemSpec `yaml:"items"`
}

type itemSpec struct {
	ID             string            `yaml:"id"`
	Question       string            `yaml:"question"`
	Hint           string            `yaml:"hint"`
	TimeoutSeconds float64           `yaml:"timeout_seconds"`
	Strategy       string            `yaml:"strategy"`
	Expected       []string          `yaml:"expected"`
	Thresholds     *match.Thresholds `yaml:"thresholds"`
	Keywords       []match.Keyword   `yaml:"keywords"`
	MinRequired    int               `yaml:"min_required"`
	Fuzzy          bool              `yaml:"fuzzy"`
	FuzzyThreshold float64           `yaml:"fuzzy_threshold"`
	Categories     []string          `yaml:"categories"`
	MinPerCategory map[string]int    `yaml:"min_per_category"`
	TotalMin       int               `yaml:"total_min"`
}

// build converts the raw spec into a typed [Item].
func (s itemSpec) build() Item {
	item := Item{
		ID:       s.ID,
		Question: s.Question,
		Hint:     s.Hint,
		Timeout:  defaultTimeout,
	}
	if s.TimeoutSeconds > 0 {
		item.Timeout = time.Duration(s.TimeoutSeconds * float64(time.Second))
	}

	switch s.Strategy {
	case StrategyFuzzy:
		item.Strategy = FuzzyMatch{Expected: s.Expected, Thresholds: s.Thresholds}
	case StrategyKeywords:
		item.Strategy = KeywordMatch{
			Keywords:       s.Keywords,
			MinRequired:    s.MinRequired,
			Fuzzy:          s.Fuzzy,
			FuzzyThreshold: s.FuzzyThreshold,
		}
	case StrategyConcepts:
		item.Strategy = ConceptDetection{
			Categories:     s.Categories,
			MinPerCategory: s.MinPerCategory,
			TotalMin:       s.TotalMin,
		}
	case StrategyEmbedding:
		item.Strategy = EmbeddingSpanMatch{Expected: s.Expected, Thresholds: s.Thresholds}
	default:
		item.Strategy = Unknown{Tag: s.Strategy}
	}
	return item
}

// Load reads and parses a checklist YAML file from disk.
func Load(path string) (*Checklist, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checklist: open %q: %w", path, err)
	}
	defer f.Close()

	cl, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("checklist: parse %q: %w", path, err)
	}
	return cl, nil
}

// LoadFromReader parses checklist YAML from an [io.Reader]. The reader is
// consumed entirely; the caller is responsible for closing it.
func LoadFromReader(r io.Reader) (*Checklist, error) {
	var raw fileSchema
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true) // reject unknown keys to catch typos
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("checklist: decode yaml: %w", err)
	}

	cl := &Checklist{Items: make([]Item, 0, len(raw.Items))}
	for _, spec := range raw.Items {
		cl.Items = append(cl.Items, spec.build())
	}
	return cl, nil
}

// Validate checks the checklist for structural problems: missing or
// duplicate item IDs, empty questions, and invalid payloads of recognised
// strategies. Unknown strategy tags do NOT fail validation — the runner
// skips those items — so a checklist authored for a newer build degrades
// instead of refusing to load.
func (c *Checklist) Validate() error {
	if len(c.Items) == 0 {
		return errors.New("checklist: no items")
	}

	seen := make(map[string]struct{}, len(c.Items))
	for i, item := range c.Items {
		if item.ID == "" {
			return fmt.Errorf("checklist: item %d: id must not be empty", i)
		}
		if _, dup := seen[item.ID]; dup {
			return fmt.Errorf("checklist: duplicate item id %q", item.ID)
		}
		seen[item.ID] = struct{}{}

		if item.Question == "" {
			return fmt.Errorf("checklist: item %q: question must not be empty", item.ID)
		}
		if err := item.Strategy.Validate(); err != nil && !errors.Is(err, ErrUnknownStrategy) {
			return fmt.Errorf("checklist: item %q: %w", item.ID, err)
		}
	}
	return nil
}
