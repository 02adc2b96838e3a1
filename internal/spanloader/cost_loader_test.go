package spanloader

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rpattn/spanql/internal/domain"
)

type stubCostRepo struct {
	mu    sync.Mutex
	calls [][]int64
	costs map[int64]domain.SpanCost
	err   error
}

func (s *stubCostRepo) GetBySpanIDs(ctx context.Context, ids []int64) ([]domain.SpanCost, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]int64(nil), ids...))
	s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []domain.SpanCost
	for _, id := range ids {
		if c, ok := s.costs[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func total(v float64) *float64 { return &v }

func TestLoadManyBatchesIntoSingleQuery(t *testing.T) {
	repo := &stubCostRepo{costs: map[int64]domain.SpanCost{
		1: {SpanRowID: 1, TotalCost: total(0.5)},
		3: {SpanRowID: 3, TotalCost: total(1.5)},
	}}
	loader := NewCostLoader(repo)

	got, err := loader.LoadMany(context.Background(), []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("load many failed: %v", err)
	}
	if len(repo.calls) != 1 {
		t.Fatalf("expected 1 batch call, got %d", len(repo.calls))
	}
	if len(got) != 2 || *got[1].TotalCost != 0.5 || *got[3].TotalCost != 1.5 {
		t.Fatalf("unexpected costs: %+v", got)
	}
	if _, ok := got[2]; ok {
		t.Fatalf("span without cost should be absent")
	}
}

func TestLoadManyOmitsSpansWithoutCost(t *testing.T) {
	loader := NewCostLoader(&stubCostRepo{costs: map[int64]domain.SpanCost{}})

	got, err := loader.LoadMany(context.Background(), []int64{7})
	if err != nil {
		t.Fatalf("load many failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no costs, got %+v", got)
	}
}

func TestLoadPropagatesRepositoryError(t *testing.T) {
	boom := errors.New("boom")
	loader := NewCostLoader(&stubCostRepo{err: boom})

	if _, err := loader.LoadMany(context.Background(), []int64{2, 3}); !errors.Is(err, boom) {
		t.Fatalf("expected repository error, got %v", err)
	}
}

func TestContextRoundTrip(t *testing.T) {
	if FromContext(context.Background()) != nil {
		t.Fatalf("expected no loader on empty context")
	}
	loader := NewCostLoader(&stubCostRepo{})
	if FromContext(NewContext(context.Background(), loader)) != loader {
		t.Fatalf("expected loader from context")
	}
}
