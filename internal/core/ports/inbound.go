package ports

import (
	"context"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

// QueryService is the inbound contract for answering a question end to end.
type QueryService interface {
	AnswerQuery(ctx context.Context, question string, opts domain.QueryOptions) (*domain.QueryResponse, error)
}
