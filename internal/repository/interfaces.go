package repository

import (
	"context"
	"database/sql"

	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/query"
)

// DBTX is the subset of *sql.DB the repositories need. Production wires a pgx
// pool through pgx/v5/stdlib; tests use SQLite.
type DBTX interface {
	QueryContext(ctx context.Context, sqlText string, args ...any) (*sql.Rows, error)
}

// SpanRow is a listed span together with its projected sort value.
type SpanRow struct {
	Span      domain.Span
	SortValue any
}

// SpanRepository executes compiled span listing plans
type SpanRepository interface {
	ListSpans(ctx context.Context, plan query.Select, sortType domain.CursorSortColumnDataType) ([]SpanRow, error)
}

// SpanCostRepository loads span cost rows in batch
type SpanCostRepository interface {
	GetBySpanIDs(ctx context.Context, spanRowIDs []int64) ([]domain.SpanCost, error)
}
