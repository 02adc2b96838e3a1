package spansort

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/spanql/internal/db"
	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/pagination"
	"github.com/rpattn/spanql/internal/query"
)

func basePlan() query.Select {
	return query.From(db.Spans, db.Spans.Col("id"))
}

func colSort(col domain.SpanColumn, dir domain.SortDir) domain.SpanSort {
	return domain.SpanSort{Col: &col, Dir: dir}
}

func TestCompileStructuralColumns(t *testing.T) {
	cases := []struct {
		name string
		sort domain.SpanSort
		sql  string
	}{
		{
			name: "direct column descending",
			sort: colSort(domain.SpanColumnLatencyMs, domain.SortDirDesc),
			sql:  `SELECT spans.id, spans.latency_ms AS "latencyMs_span_sort_column" FROM spans ORDER BY spans.latency_ms DESC NULLS LAST`,
		},
		{
			name: "derived sum",
			sort: colSort(domain.SpanColumnCumulativeTokenCountTotal, domain.SortDirAsc),
			sql: `SELECT spans.id, (spans.cumulative_llm_token_count_prompt + spans.cumulative_llm_token_count_completion) AS "cumulativeTokenCountTotal_span_sort_column" ` +
				`FROM spans ORDER BY (spans.cumulative_llm_token_count_prompt + spans.cumulative_llm_token_count_completion) ASC NULLS LAST`,
		},
		{
			name: "joined cost",
			sort: colSort(domain.SpanColumnTokenCostTotal, domain.SortDirAsc),
			sql: `SELECT spans.id, span_costs.total_cost AS "tokenCostTotal_span_sort_column" FROM spans ` +
				`JOIN span_costs ON span_costs.span_rowid = spans.id ORDER BY span_costs.total_cost ASC NULLS LAST`,
		},
		{
			name: "aggregated subquery",
			sort: colSort(domain.SpanColumnCumulativeTokenCostTotal, domain.SortDirDesc),
			sql: `SELECT spans.id, trace_costs.cumulative_total_cost AS "cumulativeTokenCostTotal_span_sort_column" FROM spans ` +
				`JOIN (SELECT sum(span_costs.total_cost) AS "cumulative_total_cost", span_costs.trace_rowid FROM span_costs GROUP BY span_costs.trace_rowid) AS trace_costs ` +
				`ON spans.trace_rowid = trace_costs.trace_rowid ORDER BY trace_costs.cumulative_total_cost DESC NULLS LAST`,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Compile(basePlan(), tc.sort)
			require.NoError(t, err)
			sql, args := cfg.Plan.SQL(query.Postgres)
			assert.Equal(t, tc.sql, sql)
			assert.Empty(t, args)
			assert.Equal(t, tc.sort.Col.ColumnName(), cfg.ColumnName)
			assert.Equal(t, tc.sort.Dir, cfg.Dir)
		})
	}
}

func TestCompileEvalKeyJoinsByName(t *testing.T) {
	sort := domain.SpanSort{
		EvalResultKey: &domain.EvalResultKey{Name: "accuracy", Attr: domain.EvalAttrScore},
		Dir:           domain.SortDirAsc,
	}
	cfg, err := Compile(basePlan(), sort)
	require.NoError(t, err)

	sql, args := cfg.Plan.SQL(query.Postgres)
	assert.Equal(t,
		`SELECT spans.id, span_annotations.score AS "score_eval_sort_column" FROM spans `+
			`JOIN span_annotations ON (span_annotations.span_rowid = spans.id AND span_annotations.name = $1) `+
			`ORDER BY span_annotations.score ASC NULLS LAST`,
		sql)
	assert.Equal(t, []any{"accuracy"}, args)
	assert.Equal(t, domain.CursorSortColumnDataTypeFloat, cfg.DataType)
}

func TestCompileNullsLastInBothDirections(t *testing.T) {
	for _, dir := range []domain.SortDir{domain.SortDirAsc, domain.SortDirDesc} {
		for _, col := range domain.AllSpanColumns {
			cfg, err := Compile(basePlan(), colSort(col, dir))
			require.NoError(t, err)
			orderings := cfg.Plan.Orderings()
			require.Len(t, orderings, 1)
			assert.True(t, orderings[0].NullsLast, "%s %s", col, dir)
			assert.Equal(t, dir == domain.SortDirDesc, orderings[0].Desc)
		}
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	sort := colSort(domain.SpanColumnCumulativeTokenCostTotal, domain.SortDirDesc)
	first, err := Compile(basePlan(), sort)
	require.NoError(t, err)
	second, err := Compile(basePlan(), sort)
	require.NoError(t, err)

	sql1, args1 := first.Plan.SQL(query.Postgres)
	sql2, args2 := second.Plan.SQL(query.Postgres)
	assert.Equal(t, sql1, sql2)
	assert.Equal(t, args1, args2)
	assert.Equal(t, first.ColumnName, second.ColumnName)
	assert.Equal(t, first.Plan.Orderings(), second.Plan.Orderings())
}

func TestCompileAppendsAfterExistingOrderAndLeavesBaseUntouched(t *testing.T) {
	base := basePlan().OrderBy(query.Asc(db.Spans.Col("trace_rowid")))
	cfg, err := Compile(base, colSort(domain.SpanColumnTokenCostTotal, domain.SortDirDesc))
	require.NoError(t, err)

	assert.Len(t, base.Orderings(), 1)
	assert.Empty(t, base.Joins())
	assert.Len(t, base.Columns(), 1)

	withTie := cfg.Plan.OrderBy(query.Asc(db.Spans.Col("id")))
	orderings := withTie.Orderings()
	require.Len(t, orderings, 3)
	assert.Equal(t, db.Spans.Col("trace_rowid"), orderings[0].Expr)
	assert.Equal(t, db.Spans.Col("id"), orderings[2].Expr)
}

func TestCompileRejectsAmbiguousSortBeforePlanning(t *testing.T) {
	col := domain.SpanColumnLatencyMs
	for name, sort := range map[string]domain.SpanSort{
		"both":    {Col: &col, EvalResultKey: &domain.EvalResultKey{Name: "accuracy", Attr: domain.EvalAttrScore}, Dir: domain.SortDirAsc},
		"neither": {Dir: domain.SortDirAsc},
	} {
		t.Run(name, func(t *testing.T) {
			cfg, err := Compile(basePlan(), sort)
			var invalid *domain.SortValidationError
			require.True(t, errors.As(err, &invalid), "got %v", err)
			assert.Equal(t, SortConfig{}, cfg)
		})
	}
}

func TestCompileUnknownColumn(t *testing.T) {
	_, err := Compile(basePlan(), colSort(domain.SpanColumn("nope"), domain.SortDirAsc))
	var unknown *domain.UnknownSortKeyError
	assert.True(t, errors.As(err, &unknown))
}

func TestSeekAfter(t *testing.T) {
	cfg, err := Compile(basePlan(), colSort(domain.SpanColumnLatencyMs, domain.SortDirDesc))
	require.NoError(t, err)
	tie := db.Spans.Col("id")

	cur, err := pagination.NewCursor(3, 5.0, domain.CursorSortColumnDataTypeFloat)
	require.NoError(t, err)
	pred, err := cfg.SeekAfter(cur, tie)
	require.NoError(t, err)
	sql, args := query.SQL(pred, query.Postgres)
	assert.Equal(t, "(spans.latency_ms < $1 OR (spans.latency_ms = $2 AND spans.id > $3) OR spans.latency_ms IS NULL)", sql)
	assert.Equal(t, []any{5.0, 5.0, int64(3)}, args)

	nullCur, err := pagination.NewCursor(2, nil, domain.CursorSortColumnDataTypeFloat)
	require.NoError(t, err)
	pred, err = cfg.SeekAfter(nullCur, tie)
	require.NoError(t, err)
	sql, args = query.SQL(pred, query.Postgres)
	assert.Equal(t, "(spans.latency_ms IS NULL AND spans.id > $1)", sql)
	assert.Equal(t, []any{int64(2)}, args)
}

func TestSeekAfterAscendingUsesGreaterThan(t *testing.T) {
	cfg, err := Compile(basePlan(), colSort(domain.SpanColumnCumulativeTokenCountPrompt, domain.SortDirAsc))
	require.NoError(t, err)
	cur, err := pagination.NewCursor(9, int64(100), domain.CursorSortColumnDataTypeInt)
	require.NoError(t, err)

	pred, err := cfg.SeekAfter(cur, db.Spans.Col("id"))
	require.NoError(t, err)
	sql, _ := query.SQL(pred, query.SQLite)
	assert.Equal(t,
		"(spans.cumulative_llm_token_count_prompt > ?1 OR (spans.cumulative_llm_token_count_prompt = ?2 AND spans.id > ?3) OR spans.cumulative_llm_token_count_prompt IS NULL)",
		sql)
}

func TestSeekAfterRejectsCursorOfAnotherType(t *testing.T) {
	cfg, err := Compile(basePlan(), colSort(domain.SpanColumnStartTime, domain.SortDirAsc))
	require.NoError(t, err)
	cur, err := pagination.NewCursor(1, 0.5, domain.CursorSortColumnDataTypeFloat)
	require.NoError(t, err)

	_, err = cfg.SeekAfter(cur, db.Spans.Col("id"))
	var decodeErr *domain.CursorDecodeError
	assert.True(t, errors.As(err, &decodeErr))
}
