package confirm

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/acuvox/acuvox/internal/checklist"
	"github.com/acuvox/acuvox/internal/match"
	embmock "github.com/acuvox/acuvox/pkg/provider/embeddings/mock"
	sttmock "github.com/acuvox/acuvox/pkg/provider/stt/mock"
	"github.com/acuvox/acuvox/pkg/types"
)

func fuzzyItem(id string, expected ...string) checklist.Item {
	return checklist.Item{
		ID:       id,
		Question: "question for " + id,
		Strategy: checklist.FuzzyMatch{Expected: expected},
	}
}

func scripted(texts ...string) *sttmock.Listener {
	l := &sttmock.Listener{}
	for _, t := range texts {
		l.Transcripts = append(l.Transcripts, types.Transcript{Text: t})
	}
	return l
}

func TestConfirmRetriesUntilValid(t *testing.T) {
	t.Parallel()

	listener := scripted("euh je ne sais pas", "paul dupuis", "paul dupont")
	loop := NewLoop(listener, NewEngine())

	rec, err := loop.Confirm(context.Background(), fuzzyItem("patient-name", "Paul Dupont"))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Status != StatusValidated {
		t.Fatalf("Status = %q, want %q", rec.Status, StatusValidated)
	}
	if len(rec.Attempts) != 3 {
		t.Fatalf("attempts = %d, want 3", len(rec.Attempts))
	}
	// Near-miss on the second attempt must not validate but may be uncertain.
	if rec.Attempts[1].Decision == match.Valid {
		t.Errorf("attempt 2 decision = %q", rec.Attempts[1].Decision)
	}
	if rec.Attempts[2].Decision != match.Valid {
		t.Errorf("attempt 3 decision = %q, want valid", rec.Attempts[2].Decision)
	}
	if rec.FinishedAt.Before(rec.StartedAt) {
		t.Error("FinishedAt before StartedAt")
	}
}

func TestConfirmCancelPhraseInterrupts(t *testing.T) {
	t.Parallel()

	listener := scripted("mauvaise reponse", "on a terminé")
	loop := NewLoop(listener, NewEngine())

	rec, err := loop.Confirm(context.Background(), fuzzyItem("consent", "oui"))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Status != StatusInterrupted {
		t.Fatalf("Status = %q, want %q", rec.Status, StatusInterrupted)
	}
	// The cancel phrase itself is not a scored attempt.
	if len(rec.Attempts) != 1 {
		t.Errorf("attempts = %d, want 1", len(rec.Attempts))
	}
}

func TestConfirmEmptyTranscriptIsRejectedAttempt(t *testing.T) {
	t.Parallel()

	listener := scripted("", "oui")
	loop := NewLoop(listener, NewEngine())

	rec, err := loop.Confirm(context.Background(), fuzzyItem("consent", "oui"))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Status != StatusValidated {
		t.Fatalf("Status = %q, want %q", rec.Status, StatusValidated)
	}
	if len(rec.Attempts) != 2 {
		t.Fatalf("attempts = %d, want 2", len(rec.Attempts))
	}
	if rec.Attempts[0].Decision != match.Rejected || rec.Attempts[0].Score != 0 {
		t.Errorf("silent attempt = %+v, want rejected score 0", rec.Attempts[0])
	}
}

func TestConfirmMaxAttemptsExhausts(t *testing.T) {
	t.Parallel()

	listener := scripted("non", "non", "non", "non")
	loop := NewLoop(listener, NewEngine(), WithMaxAttempts(3))

	rec, err := loop.Confirm(context.Background(), fuzzyItem("consent", "oui"))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Status != StatusExhausted {
		t.Fatalf("Status = %q, want %q", rec.Status, StatusExhausted)
	}
	if len(rec.Attempts) != 3 {
		t.Errorf("attempts = %d, want 3", len(rec.Attempts))
	}
}

func TestConfirmListenerErrorPropagates(t *testing.T) {
	t.Parallel()

	wantErr := errors.New("device gone")
	loop := NewLoop(&sttmock.Listener{Err: wantErr}, NewEngine())

	rec, err := loop.Confirm(context.Background(), fuzzyItem("consent", "oui"))
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapping of %v", err, wantErr)
	}
	if rec.Status != StatusInterrupted {
		t.Errorf("Status = %q, want %q", rec.Status, StatusInterrupted)
	}
}

func TestConfirmContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop := NewLoop(scripted("oui"), NewEngine())

	rec, err := loop.Confirm(ctx, fuzzyItem("consent", "oui"))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if rec.Status != StatusInterrupted {
		t.Errorf("Status = %q, want %q", rec.Status, StatusInterrupted)
	}
}

func TestEngineDegradedFallsBackToFuzzy(t *testing.T) {
	t.Parallel()

	// No embeddings provider configured: embedding items score by string
	// similarity and an exact answer still validates.
	engine := NewEngine()
	if !engine.Degraded() {
		t.Fatal("engine without provider should be degraded")
	}

	loop := NewLoop(scripted("paul dupont"), engine)
	item := checklist.Item{
		ID:       "patient-name",
		Question: "q",
		Strategy: checklist.EmbeddingSpanMatch{Expected: []string{"Paul Dupont"}},
	}
	rec, err := loop.Confirm(context.Background(), item)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if rec.Status != StatusValidated {
		t.Errorf("Status = %q, want %q", rec.Status, StatusValidated)
	}
}

func TestEngineDegradesOnProviderFailure(t *testing.T) {
	t.Parallel()

	provider := &embmock.Provider{EmbedBatchErr: errors.New("model crashed")}
	engine := NewEngine(WithEmbeddings(provider))
	if engine.Degraded() {
		t.Fatal("engine with provider should start healthy")
	}

	item := checklist.Item{
		ID:       "patient-name",
		Question: "q",
		Strategy: checklist.EmbeddingSpanMatch{Expected: []string{"Paul Dupont"}},
	}
	res, err := engine.Score(context.Background(), "paul dupont", item)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if res.Decision != match.Valid {
		t.Errorf("fallback decision = %q, want valid", res.Decision)
	}
	if !engine.Degraded() {
		t.Error("engine should be degraded after provider failure")
	}
}

func TestEngineProbe(t *testing.T) {
	t.Parallel()

	healthy := &embmock.Provider{Func: embmock.NgramVectors(16), DimensionsValue: 16}
	engine := NewEngine(WithEmbeddings(healthy))
	if err := engine.Probe(context.Background()); err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if engine.Degraded() {
		t.Error("healthy probe must not degrade")
	}

	broken := &embmock.Provider{EmbedErr: errors.New("no model file")}
	engine = NewEngine(WithEmbeddings(broken))
	if err := engine.Probe(context.Background()); err == nil {
		t.Fatal("Probe should report the failure")
	}
	if !engine.Degraded() {
		t.Error("failed probe must degrade the engine")
	}
}

func TestRunChecklistSkipsUnknownStrategy(t *testing.T) {
	t.Parallel()

	cl := &checklist.Checklist{Items: []checklist.Item{
		fuzzyItem("consent", "oui"),
		{ID: "mystery", Question: "q", Strategy: checklist.Unknown{Tag: "telepathy"}},
		fuzzyItem("site", "genou gauche"),
	}}
	listener := scripted("oui", "genou gauche")
	loop := NewLoop(listener, NewEngine())

	sum, err := loop.RunChecklist(context.Background(), cl)
	if err != nil {
		t.Fatalf("RunChecklist: %v", err)
	}
	if !reflect.DeepEqual(sum.Skipped, []string{"mystery"}) {
		t.Errorf("Skipped = %v", sum.Skipped)
	}
	if len(sum.Records) != 3 {
		t.Fatalf("records = %d, want 3", len(sum.Records))
	}
	if sum.Records[1].Status != StatusSkipped {
		t.Errorf("skipped record status = %q", sum.Records[1].Status)
	}
	if sum.PassRate != 1.0 {
		t.Errorf("PassRate = %v, want 1.0 (skipped items excluded)", sum.PassRate)
	}
}

func TestRunChecklistStopsOnInterruption(t *testing.T) {
	t.Parallel()

	cl := &checklist.Checklist{Items: []checklist.Item{
		fuzzyItem("consent", "oui"),
		fuzzyItem("site", "genou gauche"),
		fuzzyItem("never-asked", "x"),
	}}
	listener := scripted("oui", "terminé")
	loop := NewLoop(listener, NewEngine())

	sum, err := loop.RunChecklist(context.Background(), cl)
	if err != nil {
		t.Fatalf("RunChecklist: %v", err)
	}
	if !sum.Interrupted {
		t.Error("Interrupted = false, want true")
	}
	if len(sum.Records) != 2 {
		t.Fatalf("records = %d, want 2 (third item never asked)", len(sum.Records))
	}
	if sum.PassRate != 0.5 {
		t.Errorf("PassRate = %v, want 0.5", sum.PassRate)
	}
}

func TestValidationRecordJSONRoundTrip(t *testing.T) {
	t.Parallel()

	listener := scripted("non", "presque oui", "oui")
	loop := NewLoop(listener, NewEngine())
	rec, err := loop.Confirm(context.Background(), fuzzyItem("consent", "oui"))
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got ValidationRecord
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !reflect.DeepEqual(got, rec) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, rec)
	}
}

type recordingPrompter struct {
	calls []int
}

func (p *recordingPrompter) Prompt(_ checklist.Item, attempt int, _ match.Decision) {
	p.calls = append(p.calls, attempt)
}

func TestConfirmPromptsOnEachRetry(t *testing.T) {
	t.Parallel()

	prompter := &recordingPrompter{}
	listener := scripted("non", "non", "oui")
	loop := NewLoop(listener, NewEngine(), WithPrompter(prompter))

	if _, err := loop.Confirm(context.Background(), fuzzyItem("consent", "oui")); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	// Initial prompt plus one per failed attempt.
	if !reflect.DeepEqual(prompter.calls, []int{0, 1, 2}) {
		t.Errorf("prompt calls = %v, want [0 1 2]", prompter.calls)
	}
}
