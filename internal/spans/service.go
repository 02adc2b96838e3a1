// Package spans lists the spans of a project one cursor page at a time.
package spans

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/pagination"
	"github.com/rpattn/spanql/internal/query"
	"github.com/rpattn/spanql/internal/repository"
	"github.com/rpattn/spanql/internal/spanloader"
	"github.com/rpattn/spanql/internal/spansort"
)

// Config bounds page sizes.
type Config struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultConfig returns the page sizes used when none are configured
func DefaultConfig() Config {
	return Config{DefaultPageSize: 50, MaxPageSize: 1000}
}

// ListSpansInput describes one page request.
type ListSpansInput struct {
	ProjectID int64
	Sort      *domain.SpanSort
	First     int
	After     string
}

// SpanNode is the client-facing view of a span.
type SpanNode struct {
	ID                        int64     `json:"id"`
	SpanID                    string    `json:"spanId"`
	TraceRowID                int64     `json:"traceRowId"`
	ParentID                  *string   `json:"parentId,omitempty"`
	Name                      string    `json:"name"`
	SpanKind                  string    `json:"spanKind"`
	StartTime                 time.Time `json:"startTime"`
	EndTime                   time.Time `json:"endTime"`
	LatencyMs                 *float64  `json:"latencyMs"`
	TokenCountPrompt          *int64    `json:"tokenCountPrompt"`
	TokenCountCompletion      *int64    `json:"tokenCountCompletion"`
	TokenCountTotal           *int64    `json:"tokenCountTotal"`
	CumulativeTokenCountTotal int64     `json:"cumulativeTokenCountTotal"`
	TokenCostTotal            *float64  `json:"tokenCostTotal"`
}

// SpanConnection is one page of spans.
type SpanConnection = pagination.Connection[SpanNode]

// Service compiles sort requests and runs them against the span store.
type Service struct {
	spans  repository.SpanRepository
	costs  repository.SpanCostRepository
	config Config
}

func NewService(spans repository.SpanRepository, costs repository.SpanCostRepository, config Config) *Service {
	if config.DefaultPageSize <= 0 {
		config.DefaultPageSize = DefaultConfig().DefaultPageSize
	}
	if config.MaxPageSize < config.DefaultPageSize {
		config.MaxPageSize = config.DefaultPageSize
	}
	return &Service{spans: spans, costs: costs, config: config}
}

// PageSize clamps a requested page size to the configured bounds.
func (s *Service) PageSize(first int) (int, error) {
	if first < 0 {
		return 0, &domain.InvalidInputError{Field: "first", Reason: fmt.Sprintf("must not be negative, got %d", first)}
	}
	if first == 0 {
		return s.config.DefaultPageSize, nil
	}
	if first > s.config.MaxPageSize {
		return s.config.MaxPageSize, nil
	}
	return first, nil
}

// BuildPlan compiles the sort of input, applies its cursor and appends the
// tie-break and limit. It returns the executable plan with the compiled sort.
func BuildPlan(input ListSpansInput, pageSize int) (query.Select, spansort.SortConfig, error) {
	sort := domain.DefaultSpanSort()
	if input.Sort != nil {
		sort = *input.Sort
	}

	cfg, err := spansort.Compile(repository.SpanSelect(input.ProjectID), sort)
	if err != nil {
		return query.Select{}, spansort.SortConfig{}, err
	}

	plan := cfg.Plan
	if input.After != "" {
		cursor, err := pagination.Decode(input.After, cfg.DataType)
		if err != nil {
			return query.Select{}, spansort.SortConfig{}, err
		}
		seek, err := cfg.SeekAfter(cursor, repository.SpanTieBreak())
		if err != nil {
			return query.Select{}, spansort.SortConfig{}, err
		}
		plan = plan.Where(seek)
	}

	plan = plan.OrderBy(query.Asc(repository.SpanTieBreak())).Limit(pageSize + 1)
	return plan, cfg, nil
}

// ListSpans returns one page of the project's spans in the requested order.
func (s *Service) ListSpans(ctx context.Context, input ListSpansInput) (SpanConnection, error) {
	pageSize, err := s.PageSize(input.First)
	if err != nil {
		return SpanConnection{}, err
	}

	plan, cfg, err := BuildPlan(input, pageSize)
	if err != nil {
		return SpanConnection{}, err
	}

	start := time.Now()
	rows, err := s.spans.ListSpans(ctx, plan, cfg.DataType)
	if err != nil {
		return SpanConnection{}, err
	}

	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}

	costs, err := s.loadCosts(ctx, rows)
	if err != nil {
		return SpanConnection{}, fmt.Errorf("failed to load span costs: %w", err)
	}

	edges := make([]pagination.Edge[SpanNode], len(rows))
	for i, row := range rows {
		token, err := pagination.Encode(row.Span.ID, row.SortValue, cfg.DataType)
		if err != nil {
			return SpanConnection{}, fmt.Errorf("encode cursor for span %d: %w", row.Span.ID, err)
		}
		node := toNode(row.Span)
		if cost, ok := costs[row.Span.ID]; ok {
			node.TokenCostTotal = cost.TotalCost
		}
		edges[i] = pagination.Edge[SpanNode]{Node: node, Cursor: token}
	}

	slog.Debug("listed spans",
		"project_id", input.ProjectID,
		"sort_column", cfg.ColumnName,
		"dir", cfg.Dir,
		"rows", len(edges),
		"has_next", hasNext,
		"duration", time.Since(start))

	return pagination.NewConnection(edges, hasNext, input.After != ""), nil
}

func (s *Service) loadCosts(ctx context.Context, rows []repository.SpanRow) (map[int64]domain.SpanCost, error) {
	if len(rows) == 0 || s.costs == nil {
		return map[int64]domain.SpanCost{}, nil
	}
	loader := spanloader.FromContext(ctx)
	if loader == nil {
		loader = spanloader.NewCostLoader(s.costs)
	}
	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.Span.ID
	}
	return loader.LoadMany(ctx, ids)
}

func toNode(span domain.Span) SpanNode {
	return SpanNode{
		ID:                        span.ID,
		SpanID:                    span.SpanID,
		TraceRowID:                span.TraceRowID,
		ParentID:                  span.ParentID,
		Name:                      span.Name,
		SpanKind:                  span.SpanKind,
		StartTime:                 span.StartTime,
		EndTime:                   span.EndTime,
		LatencyMs:                 span.LatencyMs,
		TokenCountPrompt:          span.LLMTokenCountPrompt,
		TokenCountCompletion:      span.LLMTokenCountCompletion,
		TokenCountTotal:           span.LLMTokenCountTotal,
		CumulativeTokenCountTotal: span.CumulativeLLMTokenCountTotal(),
	}
}
