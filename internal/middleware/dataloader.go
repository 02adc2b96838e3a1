package middleware

import (
	"net/http"

	"github.com/rpattn/spanql/internal/repository"
	"github.com/rpattn/spanql/internal/spanloader"
)

// DataLoaderMiddleware attaches a fresh cost loader to every request so batches
// and caches never outlive it.
func DataLoaderMiddleware(repo repository.SpanCostRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			loader := spanloader.NewCostLoader(repo)
			ctx := spanloader.NewContext(r.Context(), loader)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
