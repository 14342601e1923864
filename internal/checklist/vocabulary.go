package checklist

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Vocabulary maps a category name to the terms that evidence it. Concept
// detection items reference categories by name; the vocabulary is loaded
// once per run and shared read-only.
type Vocabulary map[string][]string

// vocabularyFile is the raw YAML layout of a vocabulary file.
type vocabularyFile struct {
	Categories map[string][]string `yaml:"categories"`
}

// LoadVocabulary reads and parses a vocabulary YAML file from disk.
func LoadVocabulary(path string) (Vocabulary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checklist: open vocabulary %q: %w", path, err)
	}
	defer f.Close()

	v, err := LoadVocabularyFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("checklist: parse vocabulary %q: %w", path, err)
	}
	return v, nil
}

// LoadVocabularyFromReader parses vocabulary YAML from an [io.Reader].
func LoadVocabularyFromReader(r io.Reader) (Vocabulary, error) {
	var raw vocabularyFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("checklist: decode vocabulary yaml: %w", err)
	}
	if len(raw.Categories) == 0 {
		return nil, errors.New("checklist: vocabulary has no categories")
	}
	for name, terms := range raw.Categories {
		if len(terms) == 0 {
			return nil, fmt.Errorf("checklist: vocabulary category %q has no terms", name)
		}
	}
	return Vocabulary(raw.Categories), nil
}
