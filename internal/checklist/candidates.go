package checklist

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// PatientRecord holds the fields of a surgical case sheet that expand into
// spoken answer candidates. A speaker rarely repeats a value exactly as
// written — "Dupont Paul" instead of "Paul Dupont", "douze juin" instead of
// "12/06" — so each field expands into the variant list the matchers score
// against.
type PatientRecord struct {
	FirstName string `yaml:"first_name" json:"first_name"`
	LastName  string `yaml:"last_name" json:"last_name"`
	BirthDate string `yaml:"birth_date" json:"birth_date"`
	Procedure string `yaml:"procedure" json:"procedure"`
}

// LoadRecord reads a patient record from the YAML file at path.
func LoadRecord(path string) (*PatientRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("checklist: open record %q: %w", path, err)
	}
	defer f.Close()

	rec := &PatientRecord{}
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(rec); err != nil {
		return nil, fmt.Errorf("checklist: decode record %q: %w", path, err)
	}
	return rec, nil
}

// Candidates expands the record into per-field candidate lists, keyed by
// field name. Fields with no value are absent from the map.
func (r PatientRecord) Candidates() map[string][]string {
	out := make(map[string][]string)
	if v := NameVariants(r.FirstName, r.LastName); len(v) > 0 {
		out["name"] = v
	}
	if v := BirthDateVariants(r.BirthDate); len(v) > 0 {
		out["birth_date"] = v
	}
	if v := ProcedureVariants(r.Procedure); len(v) > 0 {
		out["procedure"] = v
	}
	return out
}

// NameVariants returns the spoken permutations of a person name: both
// orders plus each part alone. Duplicates are removed, first occurrence
// wins.
func NameVariants(first, last string) []string {
	first = strings.TrimSpace(first)
	last = strings.TrimSpace(last)

	var variants []string
	switch {
	case first != "" && last != "":
		variants = []string{
			first + " " + last,
			last + " " + first,
			first,
			last,
		}
	case first != "":
		variants = []string{first}
	case last != "":
		variants = []string{last}
	}
	return dedupe(variants)
}

// birthDateLayouts are the accepted written forms of a birth date, tried
// in order.
var birthDateLayouts = []string{"2006-01-02", "02-01-2006", "02/01/2006"}

// frenchMonths spells out month names for spoken date variants.
var frenchMonths = [...]string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

// BirthDateVariants returns written and spoken forms of a birth date:
// numeric layouts, the month spelled out, the year alone, and day-month
// without the year. An unparseable input is returned as its own single
// variant so matching still has something to work with.
func BirthDateVariants(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}

	var t time.Time
	var err error
	for _, layout := range birthDateLayouts {
		if t, err = time.Parse(layout, s); err == nil {
			break
		}
	}
	if err != nil {
		return []string{s}
	}

	month := frenchMonths[t.Month()-1]
	return dedupe([]string{
		t.Format("02/01/2006"),
		fmt.Sprintf("%d %s %d", t.Day(), month, t.Year()),
		t.Format("2006-01-02"),
		t.Format("02 01 2006"),
		t.Format("2006"),
		fmt.Sprintf("%d %s", t.Day(), month),
	})
}

// ProcedureVariants returns written forms of a procedure name: verbatim,
// lower-cased, and with accented vowels flattened, since transcripts often
// drop accents.
func ProcedureVariants(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	flat := strings.NewReplacer("é", "e", "è", "e", "ê", "e", "à", "a", "ô", "o").Replace(s)
	return dedupe([]string{s, strings.ToLower(s), flat, strings.ToLower(flat)})
}

// dedupe removes duplicates preserving first-seen order.
func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
