package spansort

import (
	"fmt"

	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/pagination"
	"github.com/rpattn/spanql/internal/query"
)

// SortConfig is the result of compiling a span sort against a base plan.
type SortConfig struct {
	// Plan carries the joins, the projected sort column and the sort term. The
	// caller appends its own tie-break ordering.
	Plan query.Select
	// Expr is the unlabeled sort expression, usable in predicates.
	Expr       query.Expr
	Dir         domain.SortDir
	DisplayName string
	ColumnName  string
	DataType    domain.CursorSortColumnDataType
}

// Compile validates sort, resolves its key and returns plan extended with the
// key's joins, the labeled sort column and a NULLS LAST order term. plan itself
// is left untouched.
func Compile(plan query.Select, sort domain.SpanSort) (SortConfig, error) {
	d, err := Resolve(sort)
	if err != nil {
		return SortConfig{}, err
	}

	plan, jc := d.Join(plan)
	expr := d.Expression(jc)
	plan = plan.AddColumns(query.Label(expr, d.ColumnName))

	term := query.Asc(expr)
	if sort.Dir == domain.SortDirDesc {
		term = query.Desc(expr)
	}
	plan = plan.OrderBy(term.WithNullsLast())

	return SortConfig{
		Plan:        plan,
		Expr:        expr,
		Dir:         sort.Dir,
		DisplayName: d.DisplayName,
		ColumnName:  d.ColumnName,
		DataType:    d.DataType,
	}, nil
}

// SeekAfter returns a predicate selecting the rows that follow cursor in the
// compiled order extended by tieBreak ascending. NULL sort values come last in
// both directions, so they always satisfy a predicate seeded by a non-NULL value.
func (c SortConfig) SeekAfter(cursor pagination.Cursor, tieBreak query.Expr) (query.Expr, error) {
	if cursor.SortColumn.Type != c.DataType {
		return nil, &domain.CursorDecodeError{
			Reason: fmt.Sprintf("cursor was issued for a %s sort column but the requested sort column is %s",
				cursor.SortColumn.Type, c.DataType),
		}
	}

	afterTie := query.Gt(tieBreak, query.Value(cursor.RowID))
	if cursor.SortColumn.Value == nil {
		return query.And(query.IsNull(c.Expr), afterTie), nil
	}

	value := cursor.SortColumn.Value
	beyond := query.Gt(c.Expr, query.Value(value))
	if c.Dir == domain.SortDirDesc {
		beyond = query.Lt(c.Expr, query.Value(value))
	}

	return query.Or(
		beyond,
		query.And(query.Eq(c.Expr, query.Value(value)), afterTie),
		query.IsNull(c.Expr),
	), nil
}
