// Package knowledge implements the curated-corpus strategy: a small
// embedded document collection queried by similarity, with answers
// synthesized from the retrieved passages.
package knowledge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

// Embedder converts text to a vector for similarity search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Document is one seeded corpus entry.
type Document struct {
	Title string
	Text  string
}

// Corpus is a read-only chromem-go collection of seeded documents.
type Corpus struct {
	col      *chromem.Collection
	embedder Embedder
	count    int
	topK     int
}

var _ contractx.KnowledgeProvider = (*Corpus)(nil)

// defaultTopK bounds how many passages a lookup returns.
const defaultTopK = 3

// NewCorpus indexes docs into a fresh collection. An empty docs slice is
// valid; Lookup then always returns no passages.
func NewCorpus(ctx context.Context, embedder Embedder, docs []Document) (*Corpus, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", contractx.ErrValidation)
	}

	db := chromem.NewDB()
	col, err := db.CreateCollection("knowledge_base", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create collection: %v", contractx.ErrServiceUnavailable, err)
	}

	c := &Corpus{col: col, embedder: embedder, topK: defaultTopK}
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		embedding, err := embedder.Embed(ctx, doc.Text)
		if err != nil {
			return nil, fmt.Errorf("%w: embed document %q: %v", contractx.ErrServiceUnavailable, doc.Title, err)
		}
		err = col.AddDocument(ctx, chromem.Document{
			ID:        uuid.NewString(),
			Content:   doc.Text,
			Embedding: embedding,
			Metadata:  map[string]string{"title": doc.Title},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: add document %q: %v", contractx.ErrServiceUnavailable, doc.Title, err)
		}
		c.count++
	}

	log.Debug().Int("documents", c.count).Msg("knowledge corpus indexed")
	return c, nil
}

// Lookup returns the most similar passages joined as text, or "" when
// the corpus holds nothing.
func (c *Corpus) Lookup(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("%w: lookup query is empty", contractx.ErrValidation)
	}
	if c.count == 0 {
		return "", nil
	}

	embedding, err := c.embedder.Embed(ctx, query)
	if err != nil {
		return "", fmt.Errorf("%w: embed query: %v", contractx.ErrServiceUnavailable, err)
	}

	limit := c.topK
	if limit > c.count {
		limit = c.count
	}
	results, err := c.col.QueryEmbedding(ctx, embedding, limit, nil, nil)
	if err != nil {
		return "", fmt.Errorf("%w: query corpus: %v", contractx.ErrServiceUnavailable, err)
	}

	var b strings.Builder
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n\n")
		}
		if title := r.Metadata["title"]; title != "" {
			fmt.Fprintf(&b, "[%s]\n", title)
		}
		b.WriteString(r.Content)
	}
	return b.String(), nil
}

// Handler answers from the corpus, falling back to the model's own
// knowledge when the corpus has nothing relevant.
type Handler struct {
	synth        contractx.Synthesizer
	provider     contractx.KnowledgeProvider
	systemPrompt string
	now          func() time.Time
}

var _ contractx.Handler = (*Handler)(nil)

func New(synth contractx.Synthesizer, provider contractx.KnowledgeProvider, systemPrompt string) (*Handler, error) {
	if synth == nil {
		return nil, fmt.Errorf("%w: synthesizer is required", contractx.ErrValidation)
	}
	if provider == nil {
		return nil, fmt.Errorf("%w: knowledge provider is required", contractx.ErrValidation)
	}
	return &Handler{synth: synth, provider: provider, systemPrompt: systemPrompt, now: time.Now}, nil
}

func (h *Handler) Handle(ctx context.Context, req contractx.Request) (string, error) {
	passages, err := h.provider.Lookup(ctx, req.Text)
	if err != nil {
		// Answer from model knowledge alone when the corpus is unreachable.
		log.Warn().Err(err).Msg("knowledge lookup skipped")
		passages = ""
	}

	answer, err := h.synth.Complete(ctx, h.systemPrompt, h.buildPrompt(req.Text, passages))
	if err != nil {
		return "", fmt.Errorf("%w: knowledge answer: %v", contractx.ErrSynthesis, err)
	}
	return answer, nil
}

func (h *Handler) buildPrompt(question, passages string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current date: %s\n\n", h.now().Format("2006-01-02"))
	if passages != "" {
		b.WriteString("Reference passages:\n")
		b.WriteString(passages)
		b.WriteString("\n\n")
	} else {
		b.WriteString("No reference passages matched. Answer from your own knowledge and say so when uncertain.\n\n")
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
