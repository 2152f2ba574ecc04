// Package chat implements the conversational strategy: recall the
// requester's memory, generate a reply, and record both sides of the
// exchange for future turns.
package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

type Config struct {
	RecallLimit int `envconfig:"RECALL_LIMIT" split_words:"true" default:"5"`
}

type Handler struct {
	synth        contractx.Synthesizer
	memory       contractx.MemoryStore
	systemPrompt string
	recallLimit  int
	now          func() time.Time
}

var _ contractx.Handler = (*Handler)(nil)

func New(synth contractx.Synthesizer, memory contractx.MemoryStore, systemPrompt string, cfg Config) (*Handler, error) {
	if synth == nil {
		return nil, fmt.Errorf("%w: synthesizer is required", contractx.ErrValidation)
	}
	if memory == nil {
		return nil, fmt.Errorf("%w: memory store is required", contractx.ErrValidation)
	}

	recallLimit := cfg.RecallLimit
	if recallLimit <= 0 {
		recallLimit = 5
	}

	return &Handler{
		synth:        synth,
		memory:       memory,
		systemPrompt: systemPrompt,
		recallLimit:  recallLimit,
		now:          time.Now,
	}, nil
}

// Handle runs one chat turn. Chat requires memory: recall failure is
// surfaced rather than degraded, and a failed generation remembers
// nothing so a broken turn never pollutes future recall.
func (h *Handler) Handle(ctx context.Context, req contractx.Request) (string, error) {
	records, err := h.memory.Recall(ctx, req.RequesterID, req.Text, h.recallLimit)
	if err != nil {
		return "", fmt.Errorf("%w: recall for chat: %v", contractx.ErrMemoryUnavailable, err)
	}

	reply, err := h.synth.Complete(ctx, h.systemPrompt, h.buildPrompt(req.Text, records))
	if err != nil {
		return "", fmt.Errorf("%w: chat reply: %v", contractx.ErrSynthesis, err)
	}

	// User message first, then the reply: recall must see the exchange in
	// causal order.
	if _, err := h.memory.Remember(ctx, req.RequesterID, contractx.RoleUser, req.Text); err != nil {
		return "", fmt.Errorf("%w: remember user message: %v", contractx.ErrMemoryUnavailable, err)
	}
	if _, err := h.memory.Remember(ctx, req.RequesterID, contractx.RoleAssistant, reply); err != nil {
		return "", fmt.Errorf("%w: remember assistant reply: %v", contractx.ErrMemoryUnavailable, err)
	}

	log.Debug().Str("requester", req.RequesterID).Int("recalled", len(records)).Msg("chat turn completed")
	return reply, nil
}

func (h *Handler) buildPrompt(text string, records []contractx.MemoryRecord) string {
	var b strings.Builder

	if len(records) > 0 {
		b.WriteString("Relevant memories from past conversations:\n")
		for _, rec := range records {
			fmt.Fprintf(&b, "- %s: %s\n", rec.Role, rec.Content)
		}
	} else {
		b.WriteString("No relevant long-term memories found.\n")
	}

	fmt.Fprintf(&b, "\nToday's date: %s\n", h.now().Format("2006-01-02"))
	fmt.Fprintf(&b, "\nUser says: %q\n", text)
	b.WriteString("\nRespond as a friendly, helpful assistant, using the memories above when they are relevant.")
	return b.String()
}
