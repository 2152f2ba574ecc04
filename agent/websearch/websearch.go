// Package websearch implements the single-search strategy: one query
// against the metasearch provider, answered with cited sources.
package websearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

type Config struct {
	RecallLimit int `envconfig:"RECALL_LIMIT" split_words:"true" default:"3"`
}

// Prompts carries the two prompts this handler uses.
type Prompts struct {
	Rephrase string
	Answer   string
}

type Handler struct {
	synth       contractx.Synthesizer
	search      contractx.SearchProvider
	memory      contractx.MemoryStore
	prompts     Prompts
	recallLimit int
	now         func() time.Time
}

var _ contractx.Handler = (*Handler)(nil)

func New(synth contractx.Synthesizer, search contractx.SearchProvider, memory contractx.MemoryStore, prompts Prompts, cfg Config) (*Handler, error) {
	if synth == nil {
		return nil, fmt.Errorf("%w: synthesizer is required", contractx.ErrValidation)
	}
	if search == nil {
		return nil, fmt.Errorf("%w: search provider is required", contractx.ErrValidation)
	}

	recallLimit := cfg.RecallLimit
	if recallLimit <= 0 {
		recallLimit = 3
	}

	return &Handler{
		synth:       synth,
		search:      search,
		memory:      memory,
		prompts:     prompts,
		recallLimit: recallLimit,
		now:         time.Now,
	}, nil
}

// Handle answers one request with a single search. A forced search must
// fail visibly, so provider errors propagate; memory and rephrasing are
// best-effort extras around it.
func (h *Handler) Handle(ctx context.Context, req contractx.Request) (string, error) {
	records := h.recallContext(ctx, req)

	query := h.rephrase(ctx, req.Text, records)

	results, err := h.search.Search(ctx, query)
	if err != nil {
		return "", fmt.Errorf("web search for %q: %w", query, err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("%w: no results for %q", contractx.ErrServiceUnavailable, query)
	}

	answer, err := h.synth.Complete(ctx, h.prompts.Answer, h.buildAnswerPrompt(req.Text, query, results, records))
	if err != nil {
		return "", fmt.Errorf("%w: search answer: %v", contractx.ErrSynthesis, err)
	}
	return answer, nil
}

func (h *Handler) recallContext(ctx context.Context, req contractx.Request) []contractx.MemoryRecord {
	if h.memory == nil {
		return nil
	}
	records, err := h.memory.Recall(ctx, req.RequesterID, req.Text, h.recallLimit)
	if err != nil {
		// Non-chat strategies proceed without memory.
		log.Warn().Str("requester", req.RequesterID).Err(err).Msg("memory recall skipped for web search")
		return nil
	}
	return records
}

// rephrase sharpens the raw question into a search query using the
// conversation context. Any failure falls back to the original text.
func (h *Handler) rephrase(ctx context.Context, text string, records []contractx.MemoryRecord) string {
	if len(records) == 0 {
		return text
	}

	var b strings.Builder
	b.WriteString("Conversation context:\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "- %s: %s\n", rec.Role, rec.Content)
	}
	fmt.Fprintf(&b, "\nUser question: %s\n", text)

	rephrased, err := h.synth.Complete(ctx, h.prompts.Rephrase, b.String())
	if err != nil {
		log.Warn().Err(err).Msg("query rephrase skipped")
		return text
	}

	rephrased = strings.TrimSpace(strings.Trim(strings.TrimSpace(rephrased), `"`))
	if rephrased == "" {
		return text
	}
	return rephrased
}

func (h *Handler) buildAnswerPrompt(original, query string, results []contractx.SearchResult, records []contractx.MemoryRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current date: %s\n\n", h.now().Format("2006-01-02"))
	fmt.Fprintf(&b, "User question: %s\n", original)
	if query != original {
		fmt.Fprintf(&b, "Search query used: %s\n", query)
	}

	b.WriteString("\nSearch results:\n")
	for _, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s)\n", r.Rank, r.Title, r.SourceURL)
		if snippet := strings.TrimSpace(r.Snippet); snippet != "" {
			fmt.Fprintf(&b, "   %s\n", snippet)
		}
	}

	if len(records) > 0 {
		b.WriteString("\nConversation context:\n")
		for _, rec := range records {
			fmt.Fprintf(&b, "- %s: %s\n", rec.Role, rec.Content)
		}
	}

	b.WriteString("\nAnswer the question using the search results and cite sources.")
	return b.String()
}
