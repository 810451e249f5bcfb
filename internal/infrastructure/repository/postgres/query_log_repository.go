package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

type QueryLogRepository struct {
	db *sql.DB
}

func NewQueryLogRepository(db *sql.DB) *QueryLogRepository {
	return &QueryLogRepository{db: db}
}

// LogQuery is idempotent on query_id so redelivered messages are harmless.
func (r *QueryLogRepository) LogQuery(ctx context.Context, entry domain.QueryLogEntry) error {
	statsJSON, err := json.Marshal(entry.Stats)
	if err != nil {
		return fmt.Errorf("marshal stats: %w", err)
	}

	var category sql.NullString
	if entry.GuardrailCategory != "" {
		category = sql.NullString{String: entry.GuardrailCategory, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO query_logs (
	query_id, query_text, stats, latency_ms, has_answer, confidence, guardrail_category, cache_hit, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (query_id) DO NOTHING
`,
		entry.QueryID, entry.QueryText, statsJSON, entry.LatencyMs, entry.HasAnswer,
		entry.Confidence, category, entry.CacheHit, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert query log: %w", err)
	}
	return nil
}
