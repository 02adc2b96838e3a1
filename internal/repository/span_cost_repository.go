package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rpattn/spanql/internal/db"
	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/query"
)

type spanCostRepository struct {
	db      DBTX
	dialect query.Dialect
}

// NewSpanCostRepository creates a repository for span cost rows
func NewSpanCostRepository(conn DBTX, dialect query.Dialect) SpanCostRepository {
	return &spanCostRepository{db: conn, dialect: dialect}
}

// GetBySpanIDs loads the cost rows of the given spans. Spans without costs are
// simply absent from the result.
func (r *spanCostRepository) GetBySpanIDs(ctx context.Context, spanRowIDs []int64) ([]domain.SpanCost, error) {
	if len(spanRowIDs) == 0 {
		return []domain.SpanCost{}, nil
	}

	ids := make([]any, len(spanRowIDs))
	for i, id := range spanRowIDs {
		ids[i] = id
	}

	plan := query.From(db.SpanCosts,
		db.SpanCosts.Col("id"),
		db.SpanCosts.Col("span_rowid"),
		db.SpanCosts.Col("trace_rowid"),
		db.SpanCosts.Col("prompt_cost"),
		db.SpanCosts.Col("completion_cost"),
		db.SpanCosts.Col("total_cost"),
	).Where(query.In(db.SpanCosts.Col("span_rowid"), ids...)).
		OrderBy(query.Asc(db.SpanCosts.Col("span_rowid")))

	sqlText, args := plan.SQL(r.dialect)
	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get span costs: %w", err)
	}
	defer rows.Close()

	costs := make([]domain.SpanCost, 0, len(spanRowIDs))
	for rows.Next() {
		var (
			cost                      domain.SpanCost
			prompt, completion, total sql.NullFloat64
		)
		if err := rows.Scan(&cost.ID, &cost.SpanRowID, &cost.TraceRowID, &prompt, &completion, &total); err != nil {
			return nil, fmt.Errorf("scan span cost row: %w", err)
		}
		cost.PromptCost = nullableFloat(prompt)
		cost.CompletionCost = nullableFloat(completion)
		cost.TotalCost = nullableFloat(total)
		costs = append(costs, cost)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate span cost rows: %w", err)
	}

	return costs, nil
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
