// Package httpapi exposes span listings over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/export"
	"github.com/rpattn/spanql/internal/graphql"
	"github.com/rpattn/spanql/internal/middleware"
	"github.com/rpattn/spanql/internal/spans"
)

// SpanLister is the listing operation the handler serves.
type SpanLister interface {
	ListSpans(ctx context.Context, input spans.ListSpansInput) (spans.SpanConnection, error)
}

// Handler serves the span listing routes.
type Handler struct {
	spans         SpanLister
	exporter      *export.Service
	exportTimeout time.Duration
}

func NewHandler(lister SpanLister, opts ...export.Option) *Handler {
	return &Handler{spans: lister, exporter: export.NewService(lister, opts...)}
}

// WithExportTimeout gives export downloads their own write deadline instead of
// the server's WriteTimeout. Zero keeps the server deadline.
func (h *Handler) WithExportTimeout(d time.Duration) *Handler {
	h.exportTimeout = d
	return h
}

// Routes registers the handler's endpoints on a new mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("GET /v1/projects/{projectID}/spans", h.listSpans)
	mux.HandleFunc("GET /v1/projects/{projectID}/spans/export", h.exportSpans)
	return mux
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) listSpans(w http.ResponseWriter, r *http.Request) {
	input, err := parseListSpansInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	conn, err := h.spans.ListSpans(r.Context(), input)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, conn)
}

// exportSpans streams every page of the listing as a file. Errors found before
// the first byte is written get the usual error envelope.
func (h *Handler) exportSpans(w http.ResponseWriter, r *http.Request) {
	input, err := parseListSpansInput(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	// Validate the sort and cursor up front so bad requests never start a download
	if _, _, err := spans.BuildPlan(input, 1); err != nil {
		h.writeError(w, r, err)
		return
	}

	if h.exportTimeout > 0 {
		rc := http.NewResponseController(w)
		if err := rc.SetWriteDeadline(time.Now().Add(h.exportTimeout)); err != nil {
			slog.WarnContext(r.Context(), "could not extend export write deadline", "error", err)
		}
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="spans-%d.%s"`, input.ProjectID, format))
	if _, err := h.exporter.Export(r.Context(), input, format, w); err != nil {
		slog.ErrorContext(r.Context(), "span export failed",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err)
	}
}

// parseListSpansInput reads the project id from the path and the sort and page
// from the query string. Without col or evalName the default sort applies.
func parseListSpansInput(r *http.Request) (spans.ListSpansInput, error) {
	projectID, err := strconv.ParseInt(r.PathValue("projectID"), 10, 64)
	if err != nil {
		return spans.ListSpansInput{}, &domain.InvalidInputError{Field: "projectID", Reason: "must be an integer"}
	}

	q := r.URL.Query()
	input := spans.ListSpansInput{ProjectID: projectID, After: q.Get("after")}

	if raw := q.Get("first"); raw != "" {
		first, err := strconv.Atoi(raw)
		if err != nil {
			return spans.ListSpansInput{}, &domain.InvalidInputError{Field: "first", Reason: "must be an integer"}
		}
		input.First = first
	}

	col, evalName, evalAttr := q.Get("col"), q.Get("evalName"), q.Get("evalAttr")
	if col == "" && evalName == "" && evalAttr == "" {
		return input, nil
	}

	sort, err := domain.ParseSpanSort(col, evalName, evalAttr, q.Get("dir"))
	if err != nil {
		return spans.ListSpansInput{}, err
	}
	input.Sort = &sort
	return input, nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code, status := graphql.Classify(err)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "list spans failed",
			"request_id", middleware.RequestIDFromContext(r.Context()),
			"error", err)
	} else {
		slog.DebugContext(r.Context(), "rejected span listing request", "code", code, "error", err)
	}
	writeJSON(w, status, graphql.ErrorResponse(r.Context(), err))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
