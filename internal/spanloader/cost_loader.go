package spanloader

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/repository"

	"github.com/graph-gophers/dataloader"
)

type ctxKey string

const costLoaderKey ctxKey = "costLoader"

// CostLoader batches span cost lookups issued while rendering one page.
type CostLoader struct {
	Loader *dataloader.Loader
}

func NewCostLoader(repo repository.SpanCostRepository) *CostLoader {
	batchFn := func(ctx context.Context, keys dataloader.Keys) []*dataloader.Result {
		ids := make([]int64, len(keys))
		for i, k := range keys {
			id, err := strconv.ParseInt(k.String(), 10, 64)
			if err != nil {
				return errorResults(len(keys), fmt.Errorf("invalid span row id %q: %w", k.String(), err))
			}
			ids[i] = id
		}

		costs, err := repo.GetBySpanIDs(ctx, ids)
		if err != nil {
			return errorResults(len(keys), err)
		}

		costMap := make(map[int64]domain.SpanCost, len(costs))
		for _, c := range costs {
			costMap[c.SpanRowID] = c
		}

		// Results must line up with keys; spans without a cost row get nil
		results := make([]*dataloader.Result, len(keys))
		for i, id := range ids {
			if c, ok := costMap[id]; ok {
				cost := c
				results[i] = &dataloader.Result{Data: &cost}
			} else {
				results[i] = &dataloader.Result{Data: (*domain.SpanCost)(nil)}
			}
		}
		return results
	}

	loader := dataloader.NewBatchedLoader(batchFn, dataloader.WithWait(2*time.Millisecond))

	return &CostLoader{Loader: loader}
}

func errorResults(n int, err error) []*dataloader.Result {
	results := make([]*dataloader.Result, n)
	for i := range results {
		results[i] = &dataloader.Result{Error: err}
	}
	return results
}

func key(spanRowID int64) dataloader.Key {
	return dataloader.StringKey(strconv.FormatInt(spanRowID, 10))
}

// LoadMany resolves the costs of several spans in one batch. The result is
// keyed by span row id and omits spans without costs.
func (l *CostLoader) LoadMany(ctx context.Context, spanRowIDs []int64) (map[int64]domain.SpanCost, error) {
	keys := make(dataloader.Keys, len(spanRowIDs))
	for i, id := range spanRowIDs {
		keys[i] = key(id)
	}

	data, errs := l.Loader.LoadMany(ctx, keys)()
	out := make(map[int64]domain.SpanCost, len(spanRowIDs))
	for i, d := range data {
		if i < len(errs) && errs[i] != nil {
			return nil, errs[i]
		}
		if cost, ok := d.(*domain.SpanCost); ok && cost != nil {
			out[spanRowIDs[i]] = *cost
		}
	}
	return out, nil
}

// NewContext stores a loader on the request context
func NewContext(ctx context.Context, l *CostLoader) context.Context {
	return context.WithValue(ctx, costLoaderKey, l)
}

// FromContext retrieves the request's loader, or nil outside a request
func FromContext(ctx context.Context) *CostLoader {
	if l, ok := ctx.Value(costLoaderKey).(*CostLoader); ok {
		return l
	}
	return nil
}
