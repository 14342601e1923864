package checklist

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestNameVariants(t *testing.T) {
	t.Parallel()

	got := NameVariants("Paul", "Dupont")
	want := []string{"Paul Dupont", "Dupont Paul", "Paul", "Dupont"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("NameVariants = %v, want %v", got, want)
	}

	if got := NameVariants("", "Dupont"); !reflect.DeepEqual(got, []string{"Dupont"}) {
		t.Errorf("last only = %v", got)
	}
	if got := NameVariants("", ""); got != nil {
		t.Errorf("empty = %v, want nil", got)
	}
	// Same first and last name collapses duplicates.
	if got := NameVariants("Martin", "Martin"); !reflect.DeepEqual(got, []string{"Martin Martin", "Martin"}) {
		t.Errorf("duplicate parts = %v", got)
	}
}

func TestBirthDateVariants(t *testing.T) {
	t.Parallel()

	got := BirthDateVariants("1985-06-12")
	want := []string{"12/06/1985", "12 juin 1985", "1985-06-12", "12 06 1985", "1985", "12 juin"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("BirthDateVariants = %v, want %v", got, want)
	}

	// Alternative written layouts parse to the same variants.
	if alt := BirthDateVariants("12/06/1985"); !reflect.DeepEqual(alt, want) {
		t.Errorf("slash layout = %v, want %v", alt, want)
	}

	// Unparseable input is passed through as the sole candidate.
	if got := BirthDateVariants("vers 1985"); !reflect.DeepEqual(got, []string{"vers 1985"}) {
		t.Errorf("unparseable = %v", got)
	}
	if got := BirthDateVariants(""); got != nil {
		t.Errorf("empty = %v, want nil", got)
	}
}

func TestProcedureVariants(t *testing.T) {
	t.Parallel()

	got := ProcedureVariants("Cholécystectomie")
	if got[0] != "Cholécystectomie" {
		t.Errorf("first variant = %q, want verbatim", got[0])
	}
	var hasFlat bool
	for _, v := range got {
		if v == "cholecystectomie" {
			hasFlat = true
		}
	}
	if !hasFlat {
		t.Errorf("variants %v missing accent-flattened lower form", got)
	}
}

func TestLoadRecord(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "patient.yaml")
	const body = `
first_name: Paul
last_name: Dupont
birth_date: "1985-06-12"
procedure: Appendicectomie
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	rec, err := LoadRecord(path)
	if err != nil {
		t.Fatalf("LoadRecord: %v", err)
	}
	if rec.FirstName != "Paul" || rec.BirthDate != "1985-06-12" {
		t.Errorf("record = %+v", rec)
	}

	// Unknown keys are rejected.
	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("first_name: x\nward: 3\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := LoadRecord(bad); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	r := PatientRecord{FirstName: "Paul", LastName: "Dupont", BirthDate: "1985-06-12", Procedure: "Appendicectomie"}
	c := r.Candidates()
	for _, field := range []string{"name", "birth_date", "procedure"} {
		if len(c[field]) == 0 {
			t.Errorf("field %q has no candidates", field)
		}
	}

	empty := PatientRecord{}
	if got := empty.Candidates(); len(got) != 0 {
		t.Errorf("empty record candidates = %v", got)
	}
}
