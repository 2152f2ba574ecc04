package knowledge

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"testing"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

// fakeEmbedder derives a deterministic unit vector from the text so
// identical strings always land on the same point.
type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}

	h := fnv.New64a()
	h.Write([]byte(text))
	seed := h.Sum64()

	vec := make([]float32, 16)
	var norm float64
	for i := range vec {
		seed = seed*6364136223846793005 + 1442695040888963407
		v := float32(int64(seed>>33)) / float32(1<<31)
		vec[i] = v
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		vec[0] = 1
		return vec, nil
	}
	inv := float32(1.0 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec, nil
}

type fakeSynth struct {
	reply string
	err   error

	prompts []string
}

func (f *fakeSynth) Complete(_ context.Context, _, userPrompt string) (string, error) {
	f.prompts = append(f.prompts, userPrompt)
	return f.reply, f.err
}

type fakeProvider struct {
	passages string
	err      error
}

func (f *fakeProvider) Lookup(context.Context, string) (string, error) {
	return f.passages, f.err
}

func seedDocs() []Document {
	return []Document{
		{Title: "Shipping policy", Text: "Orders ship within two business days."},
		{Title: "Returns", Text: "Returns are accepted within thirty days of delivery."},
		{Title: "Support hours", Text: "Support is available weekdays nine to five."},
	}
}

func TestCorpusLookupReturnsSimilarPassages(t *testing.T) {
	t.Parallel()

	corpus, err := NewCorpus(context.Background(), &fakeEmbedder{}, seedDocs())
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}

	// Querying with a document's exact text must surface that document.
	got, err := corpus.Lookup(context.Background(), "Orders ship within two business days.")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if !strings.Contains(got, "Orders ship within two business days.") {
		t.Fatalf("lookup result missing the matching passage:\n%s", got)
	}
	if !strings.Contains(got, "[Shipping policy]") {
		t.Errorf("lookup result missing the passage title:\n%s", got)
	}
}

func TestCorpusEmptyLookup(t *testing.T) {
	t.Parallel()

	corpus, err := NewCorpus(context.Background(), &fakeEmbedder{}, nil)
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}

	got, err := corpus.Lookup(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if got != "" {
		t.Fatalf("lookup on empty corpus = %q, want empty", got)
	}
}

func TestCorpusValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewCorpus(context.Background(), nil, nil); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("nil embedder err = %v, want ErrValidation", err)
	}

	corpus, err := NewCorpus(context.Background(), &fakeEmbedder{}, seedDocs())
	if err != nil {
		t.Fatalf("NewCorpus: %v", err)
	}
	if _, err := corpus.Lookup(context.Background(), "  "); !errors.Is(err, contractx.ErrValidation) {
		t.Fatalf("blank query err = %v, want ErrValidation", err)
	}
}

func TestHandlerIncludesPassagesInPrompt(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{reply: "answer"}
	h, err := New(synth, &fakeProvider{passages: "[Returns]\nReturns are accepted within thirty days."}, "kb-system")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := h.Handle(context.Background(), contractx.Request{RequesterID: "alice", Text: "what is the return window"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got != "answer" {
		t.Fatalf("answer = %q, want %q", got, "answer")
	}

	prompt := synth.prompts[0]
	if !strings.Contains(prompt, "Returns are accepted within thirty days.") {
		t.Errorf("prompt missing passage:\n%s", prompt)
	}
	if !strings.Contains(prompt, "what is the return window") {
		t.Errorf("prompt missing question:\n%s", prompt)
	}
}

func TestHandlerAnswersWithoutPassages(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{reply: "from model knowledge"}
	h, err := New(synth, &fakeProvider{}, "kb-system")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got, err := h.Handle(context.Background(), contractx.Request{RequesterID: "alice", Text: "q"})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got != "from model knowledge" {
		t.Fatalf("answer = %q", got)
	}
	if !strings.Contains(synth.prompts[0], "No reference passages matched") {
		t.Errorf("prompt should flag the empty corpus:\n%s", synth.prompts[0])
	}
}

func TestHandlerToleratesLookupFailure(t *testing.T) {
	t.Parallel()

	synth := &fakeSynth{reply: "ok"}
	h, err := New(synth, &fakeProvider{err: errors.New("corpus down")}, "kb-system")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := h.Handle(context.Background(), contractx.Request{RequesterID: "alice", Text: "q"}); err != nil {
		t.Fatalf("Handle: %v", err)
	}
}

func TestHandlerSynthesisFailure(t *testing.T) {
	t.Parallel()

	h, err := New(&fakeSynth{err: errors.New("model down")}, &fakeProvider{passages: "p"}, "kb-system")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = h.Handle(context.Background(), contractx.Request{RequesterID: "alice", Text: "q"})
	if !errors.Is(err, contractx.ErrSynthesis) {
		t.Fatalf("err = %v, want ErrSynthesis", err)
	}
}
