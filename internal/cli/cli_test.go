package cli

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpattn/spanql/internal/config"
	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/httpapi"
	"github.com/rpattn/spanql/internal/middleware"
	"github.com/rpattn/spanql/internal/pagination"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "spanql", cmd.Use)

	for _, name := range []string{"serve", "explain", "columns"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err, "command %s should exist", name)
		assert.Equal(t, name, sub.Name())
	}

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, ".", configFlag.DefValue)
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExplainPrintsCompiledStatement(t *testing.T) {
	out, err := runCommand(t, "explain", "--col", "latencyMs", "--dir", "desc", "--dialect", "sqlite", "--first", "10", "--json")
	require.NoError(t, err)

	var result ExplainResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "latencyMs_span_sort_column", result.SortColumn)
	assert.Equal(t, "FLOAT", result.DataType)
	assert.Equal(t, "Latency (ms)", result.DisplayName)
	assert.Contains(t, result.SQL, `spans.latency_ms AS "latencyMs_span_sort_column"`)
	assert.Contains(t, result.SQL, "ORDER BY spans.latency_ms DESC NULLS LAST, spans.id ASC LIMIT ?2")
	assert.Equal(t, []any{float64(1), float64(11)}, result.Args)
}

func TestExplainWithEvalKeyAndCursor(t *testing.T) {
	after, err := pagination.Encode(3, 0.5, domain.CursorSortColumnDataTypeFloat)
	require.NoError(t, err)

	out, err := runCommand(t, "explain", "--eval-name", "accuracy", "--eval-attr", "score", "--dir", "asc", "--after", after)
	require.NoError(t, err)
	assert.Contains(t, out, "-- sort by accuracy score")
	assert.Contains(t, out, "-- sort column score_eval_sort_column (FLOAT)")
	assert.Contains(t, out, "span_annotations.name = $1")
	assert.Contains(t, out, "span_annotations.score > $3")
	assert.Contains(t, out, "1=accuracy")
}

func TestExplainRejectsBadInput(t *testing.T) {
	_, err := runCommand(t, "explain", "--col", "bogus")
	var unknown *domain.UnknownSortKeyError
	require.ErrorAs(t, err, &unknown)

	_, err = runCommand(t, "explain", "--eval-name", "accuracy", "--eval-attr", "explanation")
	require.ErrorAs(t, err, &unknown)

	_, err = runCommand(t, "explain", "--col", "latencyMs", "--dir", "DESC")
	var invalid *domain.SortValidationError
	require.ErrorAs(t, err, &invalid)

	_, err = runCommand(t, "explain", "--col", "latencyMs", "--dialect", "oracle")
	require.Error(t, err)

	after, err := pagination.Encode(3, 0.5, domain.CursorSortColumnDataTypeFloat)
	require.NoError(t, err)
	_, err = runCommand(t, "explain", "--col", "startTime", "--after", after)
	var decodeErr *domain.CursorDecodeError
	require.ErrorAs(t, err, &decodeErr)
}

func TestColumnsListsEverySortableColumn(t *testing.T) {
	out, err := runCommand(t, "columns", "--json")
	require.NoError(t, err)

	var infos []ColumnInfo
	require.NoError(t, json.Unmarshal([]byte(out), &infos))
	require.Len(t, infos, len(domain.AllSpanColumns))
	assert.Equal(t, ColumnInfo{
		Key:         "startTime",
		DisplayName: "Start time",
		SortColumn:  "startTime_span_sort_column",
		DataType:    "DATETIME",
	}, infos[0])
	assert.Equal(t, "tokenCostTotal", infos[len(infos)-1].Key)

	out, err = runCommand(t, "columns")
	require.NoError(t, err)
	assert.Contains(t, out, "KEY")
	assert.Contains(t, out, "cumulativeTokenCountTotal")
	assert.Contains(t, out, "Cumulative total tokens")
}

func TestHTTPHandlerAppliesCORSAndRequestID(t *testing.T) {
	cfg := config.Default().Server
	handler := newHTTPHandler(cfg, httpapi.NewHandler(nil), nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(middleware.RequestIDHeader))
}

func TestNewLogger(t *testing.T) {
	_, err := newLogger(config.LogConfig{Level: "info", Format: "json"}, false)
	require.NoError(t, err)

	_, err = newLogger(config.LogConfig{Level: "info", Format: "xml"}, false)
	require.Error(t, err)
}
