package contract

import (
	"context"
	"time"
)

// Synthesizer is the black-box text-generation call used for
// classification, decomposition, and report writing. One call: prompt in,
// generated text out, or an error.
type Synthesizer interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// SearchProvider executes one query against an external metasearch
// service and returns ranked results. No internal retry: the research
// pipeline tolerates and continues, a forced search fails visibly.
type SearchProvider interface {
	Search(ctx context.Context, query string) ([]SearchResult, error)
}

// KnowledgeProvider answers a query from a fixed internal corpus via
// similarity lookup.
type KnowledgeProvider interface {
	Lookup(ctx context.Context, query string) (string, error)
}

// MemoryStore is per-user conversational memory over a vector backend.
//
// All operations are partitioned strictly by ownerID: no call for one
// owner may read or mutate another owner's records. Remember calls for a
// single owner are serialized so CreatedAt preserves causal order.
type MemoryStore interface {
	// Remember appends a new record. Existing records are never overwritten.
	Remember(ctx context.Context, ownerID, role, content string) (MemoryRecord, error)

	// Recall returns up to limit records, most relevant first, with ties
	// broken by recency. An owner with no records yields an empty slice,
	// not an error.
	Recall(ctx context.Context, ownerID, query string, limit int) ([]MemoryRecord, error)

	// Status summarizes the owner's stored memory.
	Status(ctx context.Context, ownerID string) (MemoryStatus, error)

	// ClearRecent deletes the owner's records newer than now-window and
	// returns the number removed. Older history is preserved unless the
	// window spans all of it.
	ClearRecent(ctx context.Context, ownerID string, window time.Duration) (int, error)
}

// Handler executes one processing strategy for a request.
type Handler interface {
	Handle(ctx context.Context, req Request) (string, error)
}
