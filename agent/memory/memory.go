// Package memory implements per-user conversational memory over a
// vector-similarity backend.
//
// Two backends share the contract.MemoryStore behavior:
//   - ChromemStore: embedded chromem-go collections, the default.
//   - PostgresStore: durable bun/Postgres rows for deployments that
//     outlive the process.
//
// Records are append-only and partitioned strictly by owner. Within one
// owner, CreatedAt is strictly increasing so recall can preserve the
// causal order of a conversation turn.
package memory

import (
	"context"
	"math"
	"sync"
	"time"
)

// Embedder converts text to a vector for similarity search. The llm
// package provides the production implementation; tests use a
// deterministic fake.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DefaultRecallLimit bounds recall when the caller passes limit <= 0.
const DefaultRecallLimit = 5

// ownerClock hands out strictly increasing timestamps per owner, so two
// appends in the same wall-clock instant still have a defined order.
type ownerClock struct {
	mu   sync.Mutex
	last map[string]time.Time
}

func newOwnerClock() *ownerClock {
	return &ownerClock{last: make(map[string]time.Time)}
}

func (c *ownerClock) next(ownerID string, now time.Time) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	if last, ok := c.last[ownerID]; ok && !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	c.last[ownerID] = now
	return now
}

// cosineSimilarity assumes neither vector is zero; mismatched lengths
// score zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
