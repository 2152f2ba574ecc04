package websearch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

var testPrompts = Prompts{
	Rephrase: "rephrase-system",
	Answer:   "answer-system",
}

type fakeSynth struct {
	rephraseReply string
	rephraseErr   error
	answerReply   string
	answerErr     error

	answerPrompts []string
}

func (f *fakeSynth) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	switch systemPrompt {
	case testPrompts.Rephrase:
		return f.rephraseReply, f.rephraseErr
	case testPrompts.Answer:
		f.answerPrompts = append(f.answerPrompts, userPrompt)
		return f.answerReply, f.answerErr
	default:
		return "", errors.New("unexpected system prompt " + systemPrompt)
	}
}

type fakeSearch struct {
	results []contractx.SearchResult
	err     error

	queries []string
}

func (f *fakeSearch) Search(_ context.Context, query string) ([]contractx.SearchResult, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

type fakeMemory struct {
	records   []contractx.MemoryRecord
	recallErr error
}

func (f *fakeMemory) Remember(context.Context, string, string, string) (contractx.MemoryRecord, error) {
	return contractx.MemoryRecord{}, errors.New("not expected")
}

func (f *fakeMemory) Recall(context.Context, string, string, int) ([]contractx.MemoryRecord, error) {
	return f.records, f.recallErr
}

func (f *fakeMemory) Status(context.Context, string) (contractx.MemoryStatus, error) {
	return contractx.MemoryStatus{}, nil
}

func (f *fakeMemory) ClearRecent(context.Context, string, time.Duration) (int, error) {
	return 0, nil
}

func someResults() []contractx.SearchResult {
	return []contractx.SearchResult{
		{SourceURL: "https://example.com/a", Title: "First", Snippet: "alpha", Rank: 1},
		{SourceURL: "https://example.com/b", Title: "Second", Snippet: "beta", Rank: 2},
	}
}

func TestHandleAnswersFromResults(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{answerReply: "cited answer"}
	search := &fakeSearch{results: someResults()}

	h, err := New(synth, search, nil, testPrompts, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := h.Handle(context.Background(), contractx.Request{RequesterID: "alice", Text: "latest go release"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got != "cited answer" {
		t.Fatalf("answer = %q, want %q", got, "cited answer")
	}

	if len(search.queries) != 1 || search.queries[0] != "latest go release" {
		t.Fatalf("search queries = %v, want the raw question once", search.queries)
	}
	if len(synth.answerPrompts) != 1 {
		t.Fatalf("answer prompts = %d, want 1", len(synth.answerPrompts))
	}
	prompt := synth.answerPrompts[0]
	for _, want := range []string{"https://example.com/a", "First", "alpha", "latest go release"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("answer prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestHandleSearchFailurePropagates(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{answerReply: "unused"}
	search := &fakeSearch{err: contractx.ErrServiceUnavailable}

	h, err := New(synth, search, nil, testPrompts, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = h.Handle(context.Background(), contractx.Request{RequesterID: "alice", Text: "q"})
	if !errors.Is(err, contractx.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
	if len(synth.answerPrompts) != 0 {
		t.Fatalf("synthesis ran despite search failure")
	}
}

func TestHandleEmptyResultsFailVisibly(t *testing.T) {
	t.Parallel()

	h, err := New(&fakeSynth{}, &fakeSearch{}, nil, testPrompts, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = h.Handle(context.Background(), contractx.Request{RequesterID: "alice", Text: "q"})
	if !errors.Is(err, contractx.ErrServiceUnavailable) {
		t.Fatalf("err = %v, want ErrServiceUnavailable", err)
	}
}

func TestHandleRephrasesWithContext(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{rephraseReply: `"go 1.25 release date"`, answerReply: "ok"}
	search := &fakeSearch{results: someResults()}
	memory := &fakeMemory{records: []contractx.MemoryRecord{
		{OwnerID: "alice", Role: contractx.RoleUser, Content: "we were talking about Go versions"},
	}}

	h, err := New(synth, search, memory, testPrompts, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := h.Handle(context.Background(), contractx.Request{RequesterID: "alice", Text: "when is it out"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(search.queries) != 1 || search.queries[0] != "go 1.25 release date" {
		t.Fatalf("search queries = %v, want the rephrased query", search.queries)
	}
	if !strings.Contains(synth.answerPrompts[0], "Search query used: go 1.25 release date") {
		t.Errorf("answer prompt does not mention the rephrased query:\n%s", synth.answerPrompts[0])
	}
}

func TestHandleRephraseFailureFallsBack(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{rephraseErr: errors.New("model down"), answerReply: "ok"}
	search := &fakeSearch{results: someResults()}
	memory := &fakeMemory{records: []contractx.MemoryRecord{
		{OwnerID: "alice", Role: contractx.RoleAssistant, Content: "earlier reply"},
	}}

	h, err := New(synth, search, memory, testPrompts, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := h.Handle(context.Background(), contractx.Request{RequesterID: "alice", Text: "original question"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(search.queries) != 1 || search.queries[0] != "original question" {
		t.Fatalf("search queries = %v, want the original text", search.queries)
	}
}

func TestHandleRecallFailureTolerated(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{answerReply: "ok"}
	search := &fakeSearch{results: someResults()}
	memory := &fakeMemory{recallErr: errors.New("store down")}

	h, err := New(synth, search, memory, testPrompts, Config{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := h.Handle(context.Background(), contractx.Request{RequesterID: "alice", Text: "q"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got != "ok" {
		t.Fatalf("answer = %q, want %q", got, "ok")
	}
}

func TestNewRequiresDependencies(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, &fakeSearch{}, nil, testPrompts, Config{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("nil synth err = %v, want ErrValidation", err)
	}
	if _, err := New(&fakeSynth{}, nil, nil, testPrompts, Config{}); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("nil search err = %v, want ErrValidation", err)
	}
}
