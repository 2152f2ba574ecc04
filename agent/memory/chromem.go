package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

// ChromemStore keeps per-owner memory in embedded chromem-go
// collections. One collection per owner gives tenant isolation at the
// index level; a side index of record metadata serves Status and
// ClearRecent, which the vector index cannot answer on its own.
type ChromemStore struct {
	db       *chromem.DB
	embedder Embedder
	clock    *ownerClock
	now      func() time.Time

	mu          sync.RWMutex
	collections map[string]*chromem.Collection
	index       map[string][]recordMeta // append-ordered per owner
}

type recordMeta struct {
	id        string
	role      string
	content   string
	createdAt time.Time
}

var _ contractx.MemoryStore = (*ChromemStore)(nil)

func NewChromemStore(embedder Embedder) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", contractx.ErrValidation)
	}
	return &ChromemStore{
		db:          chromem.NewDB(),
		embedder:    embedder,
		clock:       newOwnerClock(),
		now:         time.Now,
		collections: make(map[string]*chromem.Collection),
		index:       make(map[string][]recordMeta),
	}, nil
}

func (s *ChromemStore) getOrCreateCollection(ownerID string) (*chromem.Collection, error) {
	s.mu.RLock()
	col, ok := s.collections[ownerID]
	s.mu.RUnlock()
	if ok {
		return col, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok := s.collections[ownerID]; ok {
		return col, nil
	}

	col, err := s.db.CreateCollection("owner_"+ownerID, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create collection: %v", contractx.ErrMemoryUnavailable, err)
	}
	s.collections[ownerID] = col
	return col, nil
}

// Remember appends one record for the owner.
func (s *ChromemStore) Remember(ctx context.Context, ownerID, role, content string) (contractx.MemoryRecord, error) {
	if strings.TrimSpace(ownerID) == "" {
		return contractx.MemoryRecord{}, fmt.Errorf("%w: owner id is empty", contractx.ErrValidation)
	}
	if strings.TrimSpace(content) == "" {
		return contractx.MemoryRecord{}, fmt.Errorf("%w: memory content is empty", contractx.ErrValidation)
	}

	embedding, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return contractx.MemoryRecord{}, fmt.Errorf("%w: embed content: %v", contractx.ErrMemoryUnavailable, err)
	}

	col, err := s.getOrCreateCollection(ownerID)
	if err != nil {
		return contractx.MemoryRecord{}, err
	}

	rec := contractx.MemoryRecord{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Role:      role,
		Content:   content,
		CreatedAt: s.clock.next(ownerID, s.now().UTC()),
	}

	err = col.AddDocument(ctx, chromem.Document{
		ID:        rec.ID,
		Content:   content,
		Embedding: embedding,
		Metadata: map[string]string{
			"owner_id":   ownerID,
			"role":       role,
			"created_at": rec.CreatedAt.Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return contractx.MemoryRecord{}, fmt.Errorf("%w: add document: %v", contractx.ErrMemoryUnavailable, err)
	}

	s.mu.Lock()
	s.index[ownerID] = append(s.index[ownerID], recordMeta{
		id:        rec.ID,
		role:      role,
		content:   content,
		createdAt: rec.CreatedAt,
	})
	s.mu.Unlock()

	log.Debug().Str("owner", ownerID).Str("role", role).Msg("memory record stored")
	return rec, nil
}

// Recall returns up to limit records for the owner, most relevant first,
// ties broken by recency.
func (s *ChromemStore) Recall(ctx context.Context, ownerID, query string, limit int) ([]contractx.MemoryRecord, error) {
	if limit <= 0 {
		limit = DefaultRecallLimit
	}

	s.mu.RLock()
	col, ok := s.collections[ownerID]
	count := len(s.index[ownerID])
	s.mu.RUnlock()
	if !ok || count == 0 {
		return nil, nil
	}
	if limit > count {
		limit = count
	}

	embedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", contractx.ErrMemoryUnavailable, err)
	}

	results, err := col.QueryEmbedding(ctx, embedding, limit, map[string]string{"owner_id": ownerID}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: query collection: %v", contractx.ErrMemoryUnavailable, err)
	}

	type scored struct {
		rec contractx.MemoryRecord
		sim float32
	}
	ranked := make([]scored, 0, len(results))
	for _, r := range results {
		createdAt, _ := time.Parse(time.RFC3339Nano, r.Metadata["created_at"])
		ranked = append(ranked, scored{
			rec: contractx.MemoryRecord{
				ID:        r.ID,
				OwnerID:   ownerID,
				Role:      r.Metadata["role"],
				Content:   r.Content,
				CreatedAt: createdAt,
			},
			sim: r.Similarity,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].sim != ranked[j].sim {
			return ranked[i].sim > ranked[j].sim
		}
		return ranked[i].rec.CreatedAt.After(ranked[j].rec.CreatedAt)
	})

	records := make([]contractx.MemoryRecord, 0, len(ranked))
	for _, r := range ranked {
		records = append(records, r.rec)
	}
	return records, nil
}

// Status summarizes the owner's stored memory.
func (s *ChromemStore) Status(ctx context.Context, ownerID string) (contractx.MemoryStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	metas := s.index[ownerID]
	status := contractx.MemoryStatus{RecordCount: len(metas)}
	if len(metas) == 0 {
		return status, nil
	}

	// Appends are ordered per owner, so the slice bounds are the extremes.
	oldest := metas[0].createdAt
	newest := metas[len(metas)-1].createdAt
	status.OldestCreatedAt = &oldest
	status.NewestCreatedAt = &newest
	return status, nil
}

// ClearRecent deletes the owner's records with CreatedAt >= now-window.
func (s *ChromemStore) ClearRecent(ctx context.Context, ownerID string, window time.Duration) (int, error) {
	if window < 0 {
		return 0, fmt.Errorf("%w: clear window is negative", contractx.ErrValidation)
	}
	cutoff := s.now().UTC().Add(-window)

	s.mu.Lock()
	defer s.mu.Unlock()

	metas := s.index[ownerID]
	if len(metas) == 0 {
		return 0, nil
	}

	var kept []recordMeta
	var removed []string
	for _, m := range metas {
		if m.createdAt.Before(cutoff) {
			kept = append(kept, m)
			continue
		}
		removed = append(removed, m.id)
	}
	if len(removed) == 0 {
		return 0, nil
	}

	if col, ok := s.collections[ownerID]; ok {
		if err := col.Delete(ctx, nil, nil, removed...); err != nil {
			return 0, fmt.Errorf("%w: delete documents: %v", contractx.ErrMemoryUnavailable, err)
		}
	}
	s.index[ownerID] = kept

	log.Info().Str("owner", ownerID).Int("removed", len(removed)).Dur("window", window).Msg("recent memory cleared")
	return len(removed), nil
}
