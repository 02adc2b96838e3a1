package spansort

import (
	"github.com/rpattn/spanql/internal/db"
	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/query"
)

// ResolveEval builds the descriptor for sorting by a named span annotation.
// The join is an inner equality join on the annotation name, so spans without
// an annotation of that name are excluded from the listing rather than being
// ordered as NULL.
func ResolveEval(key domain.EvalResultKey) (Descriptor, error) {
	var (
		column   string
		dataType domain.CursorSortColumnDataType
		display  string
	)
	switch key.Attr {
	case domain.EvalAttrScore:
		column, dataType, display = "score", domain.CursorSortColumnDataTypeFloat, "score"
	case domain.EvalAttrLabel:
		column, dataType, display = "label", domain.CursorSortColumnDataTypeString, "label"
	default:
		return Descriptor{}, &domain.UnknownSortKeyError{Key: "evalResultKey.attr:" + key.Attr.String()}
	}

	name := key.Name
	return Descriptor{
		Key:         "eval:" + name + ":" + key.Attr.String(),
		DisplayName: name + " " + display,
		ColumnName:  key.Attr.ColumnName(),
		DataType:    dataType,
		Join: func(plan query.Select) (query.Select, JoinContext) {
			plan = plan.Join(db.SpanAnnotations, query.And(
				query.Eq(db.SpanAnnotations.Col("span_rowid"), db.Spans.Col("id")),
				query.Eq(db.SpanAnnotations.Col("name"), query.Value(name)),
			))
			return plan, JoinContext{Joined: db.SpanAnnotations}
		},
		Expression: joinedColumn(column),
	}, nil
}
