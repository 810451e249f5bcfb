package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

// DocumentRepository serves chunk full-text search and the document metadata
// listing used for freshness checks.
type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) ListDocuments(ctx context.Context) ([]domain.DocumentMeta, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, filename, title, document_type, effective_date, retrieved_at
FROM documents
ORDER BY id
`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	out := make([]domain.DocumentMeta, 0)
	for rows.Next() {
		var (
			doc          domain.DocumentMeta
			title        sql.NullString
			documentType sql.NullString
			effective    sql.NullTime
			retrieved    sql.NullTime
		)
		if err := rows.Scan(&doc.ID, &doc.Filename, &title, &documentType, &effective, &retrieved); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		doc.Title = title.String
		doc.DocumentType = documentType.String
		doc.EffectiveDate = nullTimePtr(effective)
		doc.RetrievedAt = nullTimePtr(retrieved)
		out = append(out, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}

// SearchLexical ranks chunks with ts_rank_cd over the generated tsvector.
func (r *DocumentRepository) SearchLexical(ctx context.Context, queryText string, topK int) ([]domain.SearchResult, error) {
	queryText = strings.TrimSpace(queryText)
	if queryText == "" || topK <= 0 {
		return []domain.SearchResult{}, nil
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT c.id, c.document_id, d.filename, d.title, c.content, c.page_number, c.chunk_index, c.metadata,
	ts_rank_cd(c.content_tsv, q) AS score
FROM chunks c
JOIN documents d ON d.id = c.document_id,
	plainto_tsquery('english', $1) q
WHERE c.content_tsv @@ q
ORDER BY score DESC, c.id
LIMIT $2
`, queryText, topK)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SearchResult, 0, topK)
	for rows.Next() {
		var (
			res         domain.SearchResult
			title       sql.NullString
			pageNumber  sql.NullInt64
			metadataRaw []byte
		)
		if err := rows.Scan(
			&res.ChunkID, &res.DocumentID, &res.Filename, &title, &res.Content,
			&pageNumber, &res.ChunkIndex, &metadataRaw, &res.Score,
		); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		res.Title = title.String
		if pageNumber.Valid {
			page := int(pageNumber.Int64)
			res.PageNumber = &page
		}
		if len(metadataRaw) > 0 {
			metadata, err := decodeMetadata(metadataRaw)
			if err != nil {
				return nil, fmt.Errorf("decode chunk %s metadata: %w", res.ChunkID, err)
			}
			res.Metadata = metadata
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chunks: %w", err)
	}
	return out, nil
}

// decodeMetadata flattens JSON values to strings.
func decodeMetadata(raw []byte) (map[string]string, error) {
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]string, len(values))
	for k, v := range values {
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprintf("%v", v)
	}
	return out, nil
}

func nullTimePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time.UTC()
	return &t
}
