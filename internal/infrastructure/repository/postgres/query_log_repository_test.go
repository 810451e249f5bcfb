package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/benefits-rag/internal/core/domain"
)

func TestQueryLogRepositoryInsertsEntry(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	createdAt := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec("INSERT INTO query_logs").
		WithArgs("q-1", "what is the look-back period", sqlmock.AnyArg(), int64(120), true, 71, "look_back_period", false, createdAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewQueryLogRepository(db)
	err = repo.LogQuery(context.Background(), domain.QueryLogEntry{
		QueryID:           "q-1",
		QueryText:         "what is the look-back period",
		Stats:             domain.RetrievalStats{VectorResults: 3},
		LatencyMs:         120,
		HasAnswer:         true,
		Confidence:        71,
		GuardrailCategory: "look_back_period",
		CreatedAt:         createdAt,
	})
	if err != nil {
		t.Fatalf("LogQuery() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestQueryLogRepositoryStoresNullCategory(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer db.Close()

	mock.ExpectExec("INSERT INTO query_logs").
		WithArgs("q-2", "hello", sqlmock.AnyArg(), int64(0), false, 0, nil, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = NewQueryLogRepository(db).LogQuery(context.Background(), domain.QueryLogEntry{
		QueryID:   "q-2",
		QueryText: "hello",
		CacheHit:  true,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("LogQuery() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
