package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/careledger/claimsort/internal/llm"
	"github.com/careledger/claimsort/internal/model"
	"github.com/careledger/claimsort/internal/store"
)

// fakeSource serves an in-memory document inventory
type fakeSource struct {
	docs  []store.Document
	texts map[string]string // name -> text
}

func (f *fakeSource) List(ctx context.Context) ([]store.Document, error) {
	return f.docs, nil
}

func (f *fakeSource) Text(ctx context.Context, doc store.Document) (string, error) {
	text, ok := f.texts[doc.Name]
	if !ok {
		return "", fmt.Errorf("no such document %s", doc.Name)
	}
	return text, nil
}

// fakeGroupings records all destination side effects
type fakeGroupings struct {
	initial []model.GroupingInfo
	ensured map[string]string // label -> URL
	metas   map[string]model.ClaimMeta
	moves   map[string]string // doc name -> destination URL
}

func newFakeGroupings(initial ...model.GroupingInfo) *fakeGroupings {
	return &fakeGroupings{
		initial: initial,
		ensured: make(map[string]string),
		metas:   make(map[string]model.ClaimMeta),
		moves:   make(map[string]string),
	}
}

func (f *fakeGroupings) Groupings(ctx context.Context) ([]model.GroupingInfo, error) {
	return f.initial, nil
}

func (f *fakeGroupings) Ensure(ctx context.Context, label string) (string, error) {
	if u, ok := f.ensured[label]; ok {
		return u, nil
	}
	u := "mem://claims/" + label
	f.ensured[label] = u
	return u, nil
}

func (f *fakeGroupings) WriteMeta(ctx context.Context, groupingURL string, meta model.ClaimMeta) error {
	if _, exists := f.metas[groupingURL]; exists {
		return nil
	}
	f.metas[groupingURL] = meta
	return nil
}

func (f *fakeGroupings) MoveDocument(ctx context.Context, doc store.Document, groupingURL, newName string) (string, error) {
	dest := groupingURL + "/" + newName
	f.moves[doc.Name] = dest
	return dest, nil
}

// fakeReports records appended rows
type fakeReports struct {
	rows []string // "groupingURL|storedName"
}

func (f *fakeReports) Append(ctx context.Context, groupingURL string, rec *model.DocumentRecord, storedName string) error {
	f.rows = append(f.rows, groupingURL+"|"+storedName)
	return nil
}

// scriptedProvider answers each prompt by looking for a marker substring
// of the document text and returning the canned JSON for it
type scriptedProvider struct {
	responses map[string]string // marker -> JSON response
	err       error
	calls     int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	for marker, response := range p.responses {
		if strings.Contains(req.Prompt, marker) {
			return &llm.CompletionResponse{Text: response, Model: "scripted"}, nil
		}
	}
	return nil, fmt.Errorf("no scripted response for prompt")
}

func (p *scriptedProvider) IsAvailable(ctx context.Context) bool { return true }

func testConfig() *model.Config {
	cfg := model.DefaultConfig()
	cfg.Cache.Enabled = false
	cfg.RateLimiting.RequestsPerSecond = 0
	cfg.LLM.Timeout = 5
	return cfg
}

func doc(name string) store.Document {
	return store.Document{URL: "mem://inbox/" + name, Name: name, Size: 100}
}

// Long enough to clear the minimum text length
func docText(marker string) string {
	return marker + ": scanned medical document body with enough characters to be usable for extraction."
}

func extraction(identity, date, patient string) string {
	return fmt.Sprintf(`{"category":"ConsultationBill","identity_key":%q,"event_date":%q,"patient_name":%q}`, identity, date, patient)
}

func TestRun_AnchorsOnEarliestEvent(t *testing.T) {
	// The later-dated document is listed first; chronological sorting
	// must still anchor the cluster on the earliest event date.
	source := &fakeSource{
		docs: []store.Document{doc("visit2.txt"), doc("visit1.txt")},
		texts: map[string]string{
			"visit2.txt": docText("VISIT-TWO"),
			"visit1.txt": docText("VISIT-ONE"),
		},
	}
	provider := &scriptedProvider{responses: map[string]string{
		"VISIT-TWO": extraction("U1", "2025-01-12", "Asha Rao"),
		"VISIT-ONE": extraction("U1", "2025-01-05", "Asha Rao"),
	}}
	groupings := newFakeGroupings()
	reports := &fakeReports{}

	p := New(testConfig(), provider, source, groupings, reports)
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if report.Documents != 2 || report.Organized != 2 || report.Skipped != 0 {
		t.Errorf("Unexpected counts: %+v", report)
	}
	if report.ClaimsCreated != 1 || report.ClaimsMatched != 1 {
		t.Errorf("Expected one created and one matched, got %+v", report)
	}

	if len(groupings.ensured) != 1 {
		t.Fatalf("Expected a single grouping, got %v", groupings.ensured)
	}
	if _, ok := groupings.ensured["Asha-Rao_U1_2025-01-05"]; !ok {
		t.Errorf("Expected the label anchored on the earliest date, got %v", groupings.ensured)
	}

	if len(groupings.metas) != 1 {
		t.Fatalf("Expected one sidecar, got %d", len(groupings.metas))
	}
	for _, meta := range groupings.metas {
		want := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
		if !meta.AnchorDate.Equal(want) {
			t.Errorf("Expected anchor %v, got %v", want, meta.AnchorDate)
		}
		if meta.Version != model.MetaVersion {
			t.Errorf("Expected sidecar version %d, got %d", model.MetaVersion, meta.Version)
		}
	}

	if len(groupings.moves) != 2 {
		t.Errorf("Expected both documents relocated, got %v", groupings.moves)
	}
	if len(reports.rows) != 2 {
		t.Errorf("Expected two report rows, got %v", reports.rows)
	}
}

func TestRun_OutsideWindowStartsNewClaim(t *testing.T) {
	source := &fakeSource{
		docs: []store.Document{doc("jan.txt"), doc("feb.txt")},
		texts: map[string]string{
			"jan.txt": docText("JAN"),
			"feb.txt": docText("FEB"),
		},
	}
	provider := &scriptedProvider{responses: map[string]string{
		"JAN": extraction("U1", "2025-01-05", "Asha"),
		"FEB": extraction("U1", "2025-02-10", "Asha"),
	}}
	groupings := newFakeGroupings()

	p := New(testConfig(), provider, source, groupings, &fakeReports{})
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if report.ClaimsCreated != 2 {
		t.Errorf("Expected two distinct claims, got %d", report.ClaimsCreated)
	}
	if len(groupings.ensured) != 2 {
		t.Errorf("Expected two groupings, got %v", groupings.ensured)
	}
}

func TestRun_MatchesExistingDestinationClaim(t *testing.T) {
	anchor := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	existing := model.GroupingInfo{
		Name: "Asha_U1_2025-01-05",
		URL:  "mem://claims/Asha_U1_2025-01-05",
		Meta: &model.ClaimMeta{
			Version:    model.MetaVersion,
			ClusterKey: "U1",
			Label:      "Asha_U1_2025-01-05",
			AnchorDate: anchor,
		},
	}

	source := &fakeSource{
		docs:  []store.Document{doc("followup.txt")},
		texts: map[string]string{"followup.txt": docText("FOLLOWUP")},
	}
	provider := &scriptedProvider{responses: map[string]string{
		"FOLLOWUP": extraction("U1", "2025-01-10", "Asha"),
	}}
	groupings := newFakeGroupings(existing)

	p := New(testConfig(), provider, source, groupings, &fakeReports{})
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if report.ClaimsCreated != 0 || report.ClaimsMatched != 1 {
		t.Errorf("Expected a match against the persisted claim, got %+v", report)
	}
	// Re-ensuring an existing grouping must not mint a sidecar
	if len(groupings.metas) != 0 {
		t.Errorf("Expected no new sidecar, got %v", groupings.metas)
	}
	if _, ok := groupings.moves["followup.txt"]; !ok {
		t.Error("Expected the document relocated into the existing grouping")
	}
}

func TestRun_FailureIsContainedPerDocument(t *testing.T) {
	source := &fakeSource{
		docs: []store.Document{doc("good.txt"), doc("blank.txt")},
		texts: map[string]string{
			"good.txt":  docText("GOOD"),
			"blank.txt": "tiny", // below the minimum usable length
		},
	}
	provider := &scriptedProvider{responses: map[string]string{
		"GOOD": extraction("U1", "2025-01-05", "Asha"),
	}}
	groupings := newFakeGroupings()

	p := New(testConfig(), provider, source, groupings, &fakeReports{})
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("A per-document failure must not fail the run, got %v", err)
	}

	if report.Documents != 2 || report.Organized != 1 || report.Skipped != 1 {
		t.Errorf("Unexpected counts: %+v", report)
	}

	var skipped *model.DocumentOutcome
	for i := range report.Outcomes {
		if report.Outcomes[i].Status == model.OutcomeSkipped {
			skipped = &report.Outcomes[i]
		}
	}
	if skipped == nil || skipped.SourceName != "blank.txt" {
		t.Fatalf("Expected blank.txt skipped, got %+v", report.Outcomes)
	}
	if skipped.Error == "" {
		t.Error("Expected the skip outcome to carry the failure detail")
	}
	if _, moved := groupings.moves["blank.txt"]; moved {
		t.Error("Expected the failed document left in the source")
	}
}

func TestRun_ModelFailureSkipsAll(t *testing.T) {
	source := &fakeSource{
		docs:  []store.Document{doc("a.txt")},
		texts: map[string]string{"a.txt": docText("A")},
	}
	provider := &scriptedProvider{err: errors.New("service unavailable")}

	p := New(testConfig(), provider, source, newFakeGroupings(), &fakeReports{})
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected the run to complete, got %v", err)
	}
	if report.Skipped != 1 || report.Organized != 0 {
		t.Errorf("Expected the document skipped, got %+v", report)
	}
}

func TestRun_UnknownIdentityStaysSeparate(t *testing.T) {
	source := &fakeSource{
		docs: []store.Document{doc("scan-a.txt"), doc("scan-b.txt")},
		texts: map[string]string{
			"scan-a.txt": docText("SCAN-A"),
			"scan-b.txt": docText("SCAN-B"),
		},
	}
	provider := &scriptedProvider{responses: map[string]string{
		"SCAN-A": extraction("", "2025-01-05", ""),
		"SCAN-B": extraction("", "2025-01-05", ""),
	}}
	groupings := newFakeGroupings()

	p := New(testConfig(), provider, source, groupings, &fakeReports{})
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if report.ClaimsCreated != 2 {
		t.Errorf("Expected each unknown-identity document in its own claim, got %d created", report.ClaimsCreated)
	}
	if len(groupings.ensured) != 2 {
		t.Errorf("Expected two groupings, got %v", groupings.ensured)
	}
}

func TestRun_EmptySource(t *testing.T) {
	source := &fakeSource{texts: map[string]string{}}
	provider := &scriptedProvider{}

	p := New(testConfig(), provider, source, newFakeGroupings(), &fakeReports{})
	report, err := p.Run(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if report.Documents != 0 || len(report.Outcomes) != 0 {
		t.Errorf("Expected an empty report, got %+v", report)
	}
	if provider.calls != 0 {
		t.Errorf("Expected no model calls, got %d", provider.calls)
	}
	if report.RunID == "" {
		t.Error("Expected a run identifier")
	}
}
