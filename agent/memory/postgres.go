package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

// recallScanLimit caps how many recent rows are loaded per recall before
// similarity ranking in process.
const recallScanLimit = 256

type PostgresConfig struct {
	DSN string `envconfig:"POSTGRES_DSN" split_words:"true"`
}

type memoryRow struct {
	bun.BaseModel `bun:"table:memory_records,alias:mr"`

	ID        string    `bun:"id,pk"`
	OwnerID   string    `bun:"owner_id,notnull"`
	Role      string    `bun:"role,notnull"`
	Content   string    `bun:"content,notnull"`
	Embedding []float64 `bun:"embedding,array"`
	CreatedAt time.Time `bun:"created_at,notnull"`
}

// PostgresStore is the durable MemoryStore backend. Rows carry their
// embedding; similarity is ranked in process over the owner's most
// recent rows, which keeps the schema plain SQL.
type PostgresStore struct {
	db       *bun.DB
	embedder Embedder
	clock    *ownerClock
	now      func() time.Time
}

var _ contractx.MemoryStore = (*PostgresStore)(nil)

// NewPostgresStore connects to Postgres and ensures the schema exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig, embedder Embedder) (*PostgresStore, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("%w: postgres dsn is required", contractx.ErrValidation)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", contractx.ErrValidation)
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	db := bun.NewDB(sqldb, pgdialect.New())

	store := &PostgresStore{
		db:       db,
		embedder: embedder,
		clock:    newOwnerClock(),
		now:      time.Now,
	}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.NewCreateTable().
		Model((*memoryRow)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%w: create memory_records table: %v", contractx.ErrMemoryUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) Remember(ctx context.Context, ownerID, role, content string) (contractx.MemoryRecord, error) {
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

	row := memoryRow{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Role:      role,
		Content:   content,
		Embedding: toFloat64(embedding),
		CreatedAt: s.clock.next(ownerID, s.now().UTC()),
	}
	if _, err := s.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return contractx.MemoryRecord{}, fmt.Errorf("%w: insert record: %v", contractx.ErrMemoryUnavailable, err)
	}

	log.Debug().Str("owner", ownerID).Str("role", role).Msg("memory record stored")
	return contractx.MemoryRecord{
		ID:        row.ID,
		OwnerID:   row.OwnerID,
		Role:      row.Role,
		Content:   row.Content,
		CreatedAt: row.CreatedAt,
	}, nil
}

func (s *PostgresStore) Recall(ctx context.Context, ownerID, query string, limit int) ([]contractx.MemoryRecord, error) {
	if limit <= 0 {
		limit = DefaultRecallLimit
	}

	queryEmbedding, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", contractx.ErrMemoryUnavailable, err)
	}

	var rows []memoryRow
	err = s.db.NewSelect().
		Model(&rows).
		Where("owner_id = ?", ownerID).
		OrderExpr("created_at DESC").
		Limit(recallScanLimit).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: select records: %v", contractx.ErrMemoryUnavailable, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	type scored struct {
		row memoryRow
		sim float64
	}
	ranked := make([]scored, 0, len(rows))
	for _, row := range rows {
		ranked = append(ranked, scored{row: row, sim: cosineSimilarity(queryEmbedding, toFloat32(row.Embedding))})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].sim != ranked[j].sim {
			return ranked[i].sim > ranked[j].sim
		}
		return ranked[i].row.CreatedAt.After(ranked[j].row.CreatedAt)
	})
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	records := make([]contractx.MemoryRecord, 0, len(ranked))
	for _, r := range ranked {
		records = append(records, contractx.MemoryRecord{
			ID:        r.row.ID,
			OwnerID:   r.row.OwnerID,
			Role:      r.row.Role,
			Content:   r.row.Content,
			CreatedAt: r.row.CreatedAt,
		})
	}
	return records, nil
}

func (s *PostgresStore) Status(ctx context.Context, ownerID string) (contractx.MemoryStatus, error) {
	var summary struct {
		Count  int          `bun:"count"`
		Oldest sql.NullTime `bun:"oldest"`
		Newest sql.NullTime `bun:"newest"`
	}
	err := s.db.NewSelect().
		Model((*memoryRow)(nil)).
		ColumnExpr("count(*) AS count").
		ColumnExpr("min(created_at) AS oldest").
		ColumnExpr("max(created_at) AS newest").
		Where("owner_id = ?", ownerID).
		Scan(ctx, &summary)
	if err != nil {
		return contractx.MemoryStatus{}, fmt.Errorf("%w: summarize records: %v", contractx.ErrMemoryUnavailable, err)
	}

	status := contractx.MemoryStatus{RecordCount: summary.Count}
	if summary.Oldest.Valid {
		oldest := summary.Oldest.Time
		status.OldestCreatedAt = &oldest
	}
	if summary.Newest.Valid {
		newest := summary.Newest.Time
		status.NewestCreatedAt = &newest
	}
	return status, nil
}

func (s *PostgresStore) ClearRecent(ctx context.Context, ownerID string, window time.Duration) (int, error) {
	if window < 0 {
		return 0, fmt.Errorf("%w: clear window is negative", contractx.ErrValidation)
	}
	cutoff := s.now().UTC().Add(-window)

	res, err := s.db.NewDelete().
		Model((*memoryRow)(nil)).
		Where("owner_id = ?", ownerID).
		Where("created_at >= ?", cutoff).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: delete records: %v", contractx.ErrMemoryUnavailable, err)
	}

	removed, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: rows affected: %v", contractx.ErrMemoryUnavailable, err)
	}

	log.Info().Str("owner", ownerID).Int64("removed", removed).Dur("window", window).Msg("recent memory cleared")
	return int(removed), nil
}

func toFloat64(vec []float32) []float64 {
	out := make([]float64, len(vec))
	for i, v := range vec {
		out[i] = float64(v)
	}
	return out
}

func toFloat32(vec []float64) []float32 {
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(v)
	}
	return out
}
