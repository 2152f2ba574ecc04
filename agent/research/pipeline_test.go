package research

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

type fakeSynth struct {
	decomposeResp string
	decomposeErr  error
	reportResp    string
	reportErr     error

	prompts     Prompts
	reportCalls []string
}

func (f *fakeSynth) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	switch systemPrompt {
	case f.prompts.Decompose:
		if f.decomposeErr != nil {
			return "", f.decomposeErr
		}
		return f.decomposeResp, nil
	case f.prompts.Report:
		f.reportCalls = append(f.reportCalls, userPrompt)
		if f.reportErr != nil {
			return "", f.reportErr
		}
		return f.reportResp, nil
	}
	return "", fmt.Errorf("unexpected system prompt %q", systemPrompt)
}

// fakeSearch serves canned results per query. Queries listed in hang
// block until the caller's deadline expires; queries in fail error out.
type fakeSearch struct {
	results map[string][]contractx.SearchResult
	fail    map[string]error
	hang    map[string]bool
}

func (f *fakeSearch) Search(ctx context.Context, query string) ([]contractx.SearchResult, error) {
	if f.hang[query] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if err, ok := f.fail[query]; ok {
		return nil, err
	}
	return f.results[query], nil
}

type fakeMemory struct {
	records   []contractx.MemoryRecord
	recallErr error
}

func (f *fakeMemory) Remember(ctx context.Context, ownerID, role, content string) (contractx.MemoryRecord, error) {
	return contractx.MemoryRecord{}, errors.New("not expected")
}

func (f *fakeMemory) Recall(ctx context.Context, ownerID, query string, limit int) ([]contractx.MemoryRecord, error) {
	if f.recallErr != nil {
		return nil, f.recallErr
	}
	return f.records, nil
}

func (f *fakeMemory) Status(ctx context.Context, ownerID string) (contractx.MemoryStatus, error) {
	return contractx.MemoryStatus{}, nil
}

func (f *fakeMemory) ClearRecent(ctx context.Context, ownerID string, window time.Duration) (int, error) {
	return 0, nil
}

var testPrompts = Prompts{Decompose: "decompose-system", Report: "report-system"}

func decompositionJSON(queries ...string) string {
	parts := make([]string, 0, len(queries))
	for _, q := range queries {
		parts = append(parts, fmt.Sprintf(`{"query": %q, "goal": "goal"}`, q))
	}
	return fmt.Sprintf(`{"queries": [%s]}`, strings.Join(parts, ","))
}

func result(rank int, sourceURL, title string) contractx.SearchResult {
	return contractx.SearchResult{SourceURL: sourceURL, Title: title, Snippet: "snippet", Rank: rank}
}

func newTestPipeline(t *testing.T, synth *fakeSynth, search *fakeSearch, memory contractx.MemoryStore) *Pipeline {
	t.Helper()

	synth.prompts = testPrompts
	p, err := New(synth, search, memory, testPrompts, Config{
		QueryTimeout:   50 * time.Millisecond,
		OverallTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return p
}

func TestResearchPartialFailure(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{
		decomposeResp: decompositionJSON("q1", "q2", "q3", "q4"),
		reportResp:    "# Executive Summary\nFindings hold.\n# Conclusion\nDone.",
	}
	search := &fakeSearch{
		results: map[string][]contractx.SearchResult{
			"q1": {result(1, "https://a.example/one", "A")},
			"q2": {result(1, "https://b.example/two", "B")},
			"q3": {result(1, "https://c.example/three", "C")},
		},
		hang: map[string]bool{"q4": true},
	}

	p := newTestPipeline(t, synth, search, nil)
	report, err := p.Research(context.Background(), "climate tipping points", "alice")
	if err != nil {
		t.Fatalf("Research() error = %v", err)
	}

	if report.PartialFailureCount != 1 {
		t.Fatalf("PartialFailureCount = %d, want 1", report.PartialFailureCount)
	}
	if len(report.Sources) != 3 {
		t.Fatalf("len(Sources) = %d, want 3", len(report.Sources))
	}
	if len(report.Sections) != 2 {
		t.Fatalf("len(Sections) = %d, want 2", len(report.Sections))
	}
	if report.Sections[0].Heading != "Executive Summary" {
		t.Fatalf("Sections[0].Heading = %q", report.Sections[0].Heading)
	}
}

func TestResearchAllSubQueriesFailed(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{
		decomposeResp: decompositionJSON("q1", "q2", "q3"),
		reportResp:    "unused",
	}
	search := &fakeSearch{
		fail: map[string]error{
			"q1": contractx.ErrServiceUnavailable,
			"q2": contractx.ErrServiceUnavailable,
		},
		hang: map[string]bool{"q3": true},
	}

	p := newTestPipeline(t, synth, search, nil)
	_, err := p.Research(context.Background(), "anything", "alice")
	if !errors.Is(err, contractx.ErrResearchFailed) {
		t.Fatalf("Research() error = %v, want ErrResearchFailed", err)
	}
	if len(synth.reportCalls) != 0 {
		t.Fatalf("report synthesis was called despite total failure")
	}
}

func TestResearchSynthesisFailureIsFatal(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{
		decomposeResp: decompositionJSON("q1", "q2", "q3"),
		reportErr:     contractx.ErrServiceUnavailable,
	}
	search := &fakeSearch{
		results: map[string][]contractx.SearchResult{
			"q1": {result(1, "https://a.example", "A")},
			"q2": {result(1, "https://b.example", "B")},
			"q3": {result(1, "https://c.example", "C")},
		},
	}

	p := newTestPipeline(t, synth, search, nil)
	_, err := p.Research(context.Background(), "anything", "alice")
	if !errors.Is(err, contractx.ErrSynthesis) {
		t.Fatalf("Research() error = %v, want ErrSynthesis", err)
	}
}

func TestResearchDeduplicatesSources(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{
		decomposeResp: decompositionJSON("q1", "q2", "q3"),
		reportResp:    "# Report\nBody.",
	}
	search := &fakeSearch{
		results: map[string][]contractx.SearchResult{
			"q1": {result(3, "https://Example.com/page/", "first copy")},
			"q2": {result(1, "https://example.com/page", "better copy")},
			"q3": {result(2, "https://other.example/page", "other")},
		},
	}

	p := newTestPipeline(t, synth, search, nil)
	report, err := p.Research(context.Background(), "anything", "alice")
	if err != nil {
		t.Fatalf("Research() error = %v", err)
	}

	if len(report.Sources) != 2 {
		t.Fatalf("len(Sources) = %d, want 2 after dedupe", len(report.Sources))
	}
	if len(synth.reportCalls) != 1 {
		t.Fatalf("report synthesis calls = %d, want 1", len(synth.reportCalls))
	}
	if !strings.Contains(synth.reportCalls[0], "better copy") {
		t.Fatalf("synthesis prompt lost the better-ranked duplicate:\n%s", synth.reportCalls[0])
	}
	if strings.Contains(synth.reportCalls[0], "first copy") {
		t.Fatalf("synthesis prompt kept the worse-ranked duplicate:\n%s", synth.reportCalls[0])
	}
}

func TestResearchDecompositionFailureFallsBack(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{
		decomposeErr: contractx.ErrServiceUnavailable,
		reportResp:   "# Report\nBody.",
	}
	search := &fakeSearch{
		results: map[string][]contractx.SearchResult{
			"tariffs overview": {result(1, "https://a.example", "A")},
			"tariffs analysis": {result(1, "https://b.example", "B")},
			"tariffs impact":   {result(1, "https://c.example", "C")},
		},
	}

	p := newTestPipeline(t, synth, search, nil)
	report, err := p.Research(context.Background(), "tariffs", "alice")
	if err != nil {
		t.Fatalf("Research() error = %v", err)
	}
	if report.PartialFailureCount != 0 {
		t.Fatalf("PartialFailureCount = %d, want 0", report.PartialFailureCount)
	}
	if len(report.Sources) != 3 {
		t.Fatalf("len(Sources) = %d, want 3 from fallback facets", len(report.Sources))
	}
}

func TestResearchMemoryContextIncluded(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{
		decomposeResp: decompositionJSON("q1", "q2", "q3"),
		reportResp:    "# Report\nBody.",
	}
	search := &fakeSearch{
		results: map[string][]contractx.SearchResult{
			"q1": {result(1, "https://a.example", "A")},
			"q2": {result(1, "https://b.example", "B")},
			"q3": {result(1, "https://c.example", "C")},
		},
	}
	memory := &fakeMemory{records: []contractx.MemoryRecord{
		{OwnerID: "alice", Role: contractx.RoleUser, Content: "I work in climate policy"},
	}}

	p := newTestPipeline(t, synth, search, memory)
	if _, err := p.Research(context.Background(), "anything", "alice"); err != nil {
		t.Fatalf("Research() error = %v", err)
	}
	if !strings.Contains(synth.reportCalls[0], "I work in climate policy") {
		t.Fatalf("synthesis prompt missing recalled memory:\n%s", synth.reportCalls[0])
	}
}

func TestResearchMemoryFailureTolerated(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{
		decomposeResp: decompositionJSON("q1", "q2", "q3"),
		reportResp:    "# Report\nBody.",
	}
	search := &fakeSearch{
		results: map[string][]contractx.SearchResult{
			"q1": {result(1, "https://a.example", "A")},
			"q2": {result(1, "https://b.example", "B")},
			"q3": {result(1, "https://c.example", "C")},
		},
	}
	memory := &fakeMemory{recallErr: contractx.ErrMemoryUnavailable}

	p := newTestPipeline(t, synth, search, memory)
	if _, err := p.Research(context.Background(), "anything", "alice"); err != nil {
		t.Fatalf("Research() error = %v, want memory failure tolerated", err)
	}
}

func TestFormatReportDisclosesPartialFailures(t *testing.T) {
	t.Parallel()

	out := FormatReport(&contractx.ResearchReport{
		Topic:               "t",
		Sections:            []contractx.ReportSection{{Heading: "Summary", Body: "Body."}},
		Sources:             []string{"https://a.example"},
		PartialFailureCount: 2,
	})

	if !strings.Contains(out, "2 sub-queries failed or timed out") {
		t.Fatalf("FormatReport() missing failure disclosure:\n%s", out)
	}
	if !strings.Contains(out, "https://a.example") {
		t.Fatalf("FormatReport() missing sources:\n%s", out)
	}
}
