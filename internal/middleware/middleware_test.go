package middleware

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/spanloader"
)

func TestLoggingMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	var seen string
	handler := LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects/1/spans", nil))

	if seen == "" || rec.Header().Get(RequestIDHeader) != seen {
		t.Fatalf("expected request id header %q to match context %q", rec.Header().Get(RequestIDHeader), seen)
	}
	out := buf.String()
	if !strings.Contains(out, "status=418") || !strings.Contains(out, "request_id="+seen) {
		t.Fatalf("unexpected log line: %s", out)
	}
}

func TestLoggingMiddlewareKeepsValidIncomingID(t *testing.T) {
	const id = "4f1c7a56-8a2e-4f0e-9d4b-1b8f3c9a2e71"
	handler := LoggingMiddleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if got := rec.Header().Get(RequestIDHeader); got != id {
		t.Fatalf("expected %s, got %s", id, got)
	}
}

type noCosts struct{}

func (noCosts) GetBySpanIDs(ctx context.Context, ids []int64) ([]domain.SpanCost, error) {
	return nil, nil
}

func TestDataLoaderMiddlewareCreatesLoaderPerRequest(t *testing.T) {
	var loaders []*spanloader.CostLoader
	handler := DataLoaderMiddleware(noCosts{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		loaders = append(loaders, spanloader.FromContext(r.Context()))
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	if len(loaders) != 2 || loaders[0] == nil || loaders[1] == nil || loaders[0] == loaders[1] {
		t.Fatalf("expected two distinct loaders, got %v", loaders)
	}
}

func TestRequestIDFromContextIgnoresForeignKeys(t *testing.T) {
	ctx := context.WithValue(context.Background(), "requestID", "spoofed")
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("expected no request id, got %q", got)
	}
	ctx = context.WithValue(ctx, requestIDKey, "abc")
	if got := RequestIDFromContext(ctx); got != "abc" {
		t.Fatalf("expected abc, got %q", got)
	}
}

func TestLoggingMiddlewareExposesResponseController(t *testing.T) {
	var flushErr error
	handler := LoggingMiddleware(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flushErr = http.NewResponseController(w).Flush()
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/projects/1/spans/export", nil))

	if flushErr != nil {
		t.Fatalf("expected flush to reach the recorder, got %v", flushErr)
	}
	if !rec.Flushed {
		t.Fatalf("expected recorder to be flushed")
	}
}
