package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/rpattn/spanql/internal/db"
	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/query"
)

// spanColumns is the projection every span listing starts from. The compiled
// sort column is appended after these.
var spanColumns = []query.Expr{
	db.Spans.Col("id"),
	db.Spans.Col("trace_rowid"),
	db.Spans.Col("span_id"),
	db.Spans.Col("parent_id"),
	db.Spans.Col("name"),
	db.Spans.Col("span_kind"),
	db.Spans.Col("start_time"),
	db.Spans.Col("end_time"),
	db.Spans.Col("latency_ms"),
	db.Spans.Col("llm_token_count_prompt"),
	db.Spans.Col("llm_token_count_completion"),
	db.Spans.Col("llm_token_count_total"),
	db.Spans.Col("cumulative_llm_token_count_prompt"),
	db.Spans.Col("cumulative_llm_token_count_completion"),
}

// SpanSelect returns the base plan listing the spans of a project.
func SpanSelect(projectID int64) query.Select {
	return query.From(db.Spans, spanColumns...).
		Join(db.Traces, query.Eq(db.Traces.Col("id"), db.Spans.Col("trace_rowid"))).
		Where(query.Eq(db.Traces.Col("project_rowid"), query.Value(projectID)))
}

// SpanTieBreak is the unique key appended after every sort term.
func SpanTieBreak() query.Column {
	return db.Spans.Col("id")
}

// spanRepository implements SpanRepository over database/sql
type spanRepository struct {
	db      DBTX
	dialect query.Dialect
}

// NewSpanRepository creates a new span repository
func NewSpanRepository(conn DBTX, dialect query.Dialect) SpanRepository {
	return &spanRepository{db: conn, dialect: dialect}
}

// ListSpans executes a plan built on SpanSelect whose last projected column is
// the compiled sort value.
func (r *spanRepository) ListSpans(ctx context.Context, plan query.Select, sortType domain.CursorSortColumnDataType) ([]SpanRow, error) {
	if got, want := len(plan.Columns()), len(spanColumns)+1; got != want {
		return nil, fmt.Errorf("span plan projects %d columns, expected %d", got, want)
	}

	sqlText, args := plan.SQL(r.dialect)
	rows, err := r.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list spans: %w", err)
	}
	defer rows.Close()

	var result []SpanRow
	for rows.Next() {
		var (
			span       domain.Span
			parentID   sql.NullString
			latency    sql.NullFloat64
			prompt     sql.NullInt64
			completion sql.NullInt64
			total      sql.NullInt64
			sortValue  = sortValueScanner{dataType: sortType}
		)
		if err := rows.Scan(
			&span.ID,
			&span.TraceRowID,
			&span.SpanID,
			&parentID,
			&span.Name,
			&span.SpanKind,
			&span.StartTime,
			&span.EndTime,
			&latency,
			&prompt,
			&completion,
			&total,
			&span.CumulativeLLMTokenCountPrompt,
			&span.CumulativeLLMTokenCountCompletion,
			&sortValue,
		); err != nil {
			return nil, fmt.Errorf("scan span row: %w", err)
		}

		if parentID.Valid {
			span.ParentID = &parentID.String
		}
		if latency.Valid {
			span.LatencyMs = &latency.Float64
		}
		span.LLMTokenCountPrompt = nullableInt(prompt)
		span.LLMTokenCountCompletion = nullableInt(completion)
		span.LLMTokenCountTotal = nullableInt(total)

		result = append(result, SpanRow{Span: span, SortValue: sortValue.value})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate span rows: %w", err)
	}

	return result, nil
}

func nullableInt(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	n := v.Int64
	return &n
}

// sortValueScanner converts the projected sort column into the Go type the
// cursor codec expects for its logical type.
type sortValueScanner struct {
	dataType domain.CursorSortColumnDataType
	value    any
}

var sqliteTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (s *sortValueScanner) Scan(src any) error {
	if src == nil {
		s.value = nil
		return nil
	}
	if b, ok := src.([]byte); ok {
		src = string(b)
	}

	switch s.dataType {
	case domain.CursorSortColumnDataTypeInt:
		switch v := src.(type) {
		case int64:
			s.value = v
			return nil
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return fmt.Errorf("parse INT sort value: %w", err)
			}
			s.value = n
			return nil
		}
	case domain.CursorSortColumnDataTypeFloat:
		switch v := src.(type) {
		case float64:
			s.value = v
			return nil
		case int64:
			s.value = float64(v)
			return nil
		case string:
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("parse FLOAT sort value: %w", err)
			}
			s.value = f
			return nil
		}
	case domain.CursorSortColumnDataTypeString:
		if v, ok := src.(string); ok {
			s.value = v
			return nil
		}
	case domain.CursorSortColumnDataTypeDatetime:
		switch v := src.(type) {
		case time.Time:
			s.value = v.UTC()
			return nil
		case string:
			for _, layout := range sqliteTimeLayouts {
				if t, err := time.Parse(layout, v); err == nil {
					s.value = t.UTC()
					return nil
				}
			}
			return fmt.Errorf("parse DATETIME sort value %q", v)
		}
	}
	return fmt.Errorf("cannot scan %T into a %s sort value", src, s.dataType)
}
