// Package spansort compiles a span sort request into a query plan: it resolves
// the requested key, injects the joins the key needs, projects the sort value
// and appends a NULLS LAST ordering. Cursor seek predicates are derived from
// the same compiled configuration.
package spansort

import (
	"fmt"

	"github.com/rpattn/spanql/internal/db"
	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/query"
)

// JoinContext carries the source a join rule added to the plan, if any.
type JoinContext struct {
	Joined query.Source
}

// Descriptor describes how a sort key is computed.
type Descriptor struct {
	Key         string
	DisplayName string
	ColumnName  string
	DataType    domain.CursorSortColumnDataType
	// Join returns a plan extended with whatever the expression reads from.
	// It must not modify its argument.
	Join       func(plan query.Select) (query.Select, JoinContext)
	Expression func(jc JoinContext) query.Expr
}

var catalog = newCatalog()

func newCatalog() map[domain.SpanColumn]Descriptor {
	m := make(map[domain.SpanColumn]Descriptor, len(domain.AllSpanColumns))
	for _, col := range domain.AllSpanColumns {
		m[col] = describeColumn(col)
	}
	return m
}

func noJoin(plan query.Select) (query.Select, JoinContext) {
	return plan, JoinContext{}
}

func direct(e query.Expr) func(JoinContext) query.Expr {
	return func(JoinContext) query.Expr { return e }
}

func joinedColumn(name string) func(JoinContext) query.Expr {
	return func(jc JoinContext) query.Expr {
		if jc.Joined == nil {
			panic(fmt.Sprintf("spansort: column %q read without its join", name))
		}
		return jc.Joined.Col(name)
	}
}

func describeColumn(col domain.SpanColumn) Descriptor {
	d := Descriptor{
		Key:        col.String(),
		ColumnName: col.ColumnName(),
		Join:       noJoin,
	}

	switch col {
	case domain.SpanColumnStartTime:
		d.DisplayName = "Start time"
		d.DataType = domain.CursorSortColumnDataTypeDatetime
		d.Expression = direct(db.Spans.Col("start_time"))
	case domain.SpanColumnEndTime:
		d.DisplayName = "End time"
		d.DataType = domain.CursorSortColumnDataTypeDatetime
		d.Expression = direct(db.Spans.Col("end_time"))
	case domain.SpanColumnLatencyMs:
		d.DisplayName = "Latency (ms)"
		d.DataType = domain.CursorSortColumnDataTypeFloat
		d.Expression = direct(db.Spans.Col("latency_ms"))
	case domain.SpanColumnTokenCountTotal:
		d.DisplayName = "Total tokens"
		d.DataType = domain.CursorSortColumnDataTypeFloat
		d.Expression = direct(db.Spans.Col("llm_token_count_total"))
	case domain.SpanColumnTokenCountPrompt:
		d.DisplayName = "Prompt tokens"
		d.DataType = domain.CursorSortColumnDataTypeFloat
		d.Expression = direct(db.Spans.Col("llm_token_count_prompt"))
	case domain.SpanColumnTokenCountCompletion:
		d.DisplayName = "Completion tokens"
		d.DataType = domain.CursorSortColumnDataTypeFloat
		d.Expression = direct(db.Spans.Col("llm_token_count_completion"))
	case domain.SpanColumnCumulativeTokenCountTotal:
		d.DisplayName = "Cumulative total tokens"
		d.DataType = domain.CursorSortColumnDataTypeInt
		d.Expression = direct(query.Add(
			db.Spans.Col("cumulative_llm_token_count_prompt"),
			db.Spans.Col("cumulative_llm_token_count_completion"),
		))
	case domain.SpanColumnCumulativeTokenCountPrompt:
		d.DisplayName = "Cumulative prompt tokens"
		d.DataType = domain.CursorSortColumnDataTypeInt
		d.Expression = direct(db.Spans.Col("cumulative_llm_token_count_prompt"))
	case domain.SpanColumnCumulativeTokenCountCompletion:
		d.DisplayName = "Cumulative completion tokens"
		d.DataType = domain.CursorSortColumnDataTypeInt
		d.Expression = direct(db.Spans.Col("cumulative_llm_token_count_completion"))
	case domain.SpanColumnTokenCostTotal:
		d.DisplayName = "Total cost"
		d.DataType = domain.CursorSortColumnDataTypeFloat
		d.Join = joinSpanCosts
		d.Expression = joinedColumn("total_cost")
	case domain.SpanColumnCumulativeTokenCostTotal:
		d.DisplayName = "Cumulative total cost"
		d.DataType = domain.CursorSortColumnDataTypeFloat
		d.Join = joinTraceCosts
		d.Expression = joinedColumn("cumulative_total_cost")
	default:
		panic(fmt.Sprintf("spansort: span column %q has no sort descriptor", col))
	}

	return d
}

// joinSpanCosts joins the cost row of each span. Spans without a cost row are dropped.
func joinSpanCosts(plan query.Select) (query.Select, JoinContext) {
	plan = plan.Join(db.SpanCosts, query.Eq(db.SpanCosts.Col("span_rowid"), db.Spans.Col("id")))
	return plan, JoinContext{Joined: db.SpanCosts}
}

// joinTraceCosts joins the summed cost of the span's whole trace.
func joinTraceCosts(plan query.Select) (query.Select, JoinContext) {
	traceCosts := query.From(db.SpanCosts,
		query.Label(query.Sum(db.SpanCosts.Col("total_cost")), "cumulative_total_cost"),
		db.SpanCosts.Col("trace_rowid"),
	).GroupBy(db.SpanCosts.Col("trace_rowid")).As("trace_costs")

	plan = plan.Join(traceCosts, query.Eq(db.Spans.Col("trace_rowid"), traceCosts.Col("trace_rowid")))
	return plan, JoinContext{Joined: traceCosts}
}

// ResolveColumn looks up the descriptor of a structural span column.
func ResolveColumn(col domain.SpanColumn) (Descriptor, error) {
	d, ok := catalog[col]
	if !ok {
		return Descriptor{}, &domain.UnknownSortKeyError{Key: col.String()}
	}
	return d, nil
}

// Columns returns the descriptors of every structural column in enum order.
func Columns() []Descriptor {
	out := make([]Descriptor, 0, len(domain.AllSpanColumns))
	for _, col := range domain.AllSpanColumns {
		out = append(out, catalog[col])
	}
	return out
}

// Resolve dispatches a validated sort to the structural or annotation catalog.
func Resolve(sort domain.SpanSort) (Descriptor, error) {
	if err := sort.Validate(); err != nil {
		return Descriptor{}, err
	}
	if sort.Col != nil {
		return ResolveColumn(*sort.Col)
	}
	return ResolveEval(*sort.EvalResultKey)
}
