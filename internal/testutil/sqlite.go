// Package testutil provides a throwaway SQLite database with the span schema
// for tests that need a real SQL engine.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE projects (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,
	`CREATE TABLE traces (
		id INTEGER PRIMARY KEY,
		project_rowid INTEGER NOT NULL REFERENCES projects(id),
		trace_id TEXT NOT NULL UNIQUE,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL
	)`,
	`CREATE TABLE spans (
		id INTEGER PRIMARY KEY,
		trace_rowid INTEGER NOT NULL REFERENCES traces(id),
		span_id TEXT NOT NULL UNIQUE,
		parent_id TEXT,
		name TEXT NOT NULL,
		span_kind TEXT NOT NULL DEFAULT 'UNKNOWN',
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		latency_ms REAL,
		llm_token_count_prompt INTEGER,
		llm_token_count_completion INTEGER,
		llm_token_count_total INTEGER,
		cumulative_llm_token_count_prompt INTEGER NOT NULL DEFAULT 0,
		cumulative_llm_token_count_completion INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE span_costs (
		id INTEGER PRIMARY KEY,
		span_rowid INTEGER NOT NULL UNIQUE REFERENCES spans(id),
		trace_rowid INTEGER NOT NULL REFERENCES traces(id),
		prompt_cost REAL,
		completion_cost REAL,
		total_cost REAL
	)`,
	`CREATE TABLE span_annotations (
		id INTEGER PRIMARY KEY,
		span_rowid INTEGER NOT NULL REFERENCES spans(id),
		name TEXT NOT NULL,
		label TEXT,
		score REAL,
		explanation TEXT,
		annotator_kind TEXT NOT NULL DEFAULT 'HUMAN',
		UNIQUE (span_rowid, name)
	)`,
}

// BaseTime is the start time of the first seeded span.
var BaseTime = time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC)

// OpenSQLite creates a file-backed SQLite database in a temp dir with the span
// schema applied. It is closed when the test ends.
func OpenSQLite(t testing.TB) *sql.DB {
	t.Helper()

	conn, err := sql.Open("sqlite", "file:"+filepath.Join(t.TempDir(), "spans.db")+"?_time_format=sqlite")
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	for _, stmt := range sqliteSchema {
		if _, err := conn.ExecContext(context.Background(), stmt); err != nil {
			t.Fatalf("failed to apply schema: %v", err)
		}
	}
	return conn
}

// SpanSeed describes one span row. Zero StartTime defaults to BaseTime plus
// ID minutes.
type SpanSeed struct {
	ID                   int64
	TraceRowID           int64
	Name                 string
	StartTime            time.Time
	LatencyMs            *float64
	TokenCountPrompt     *int64
	TokenCountCompletion *int64
	CumulativePrompt     int64
	CumulativeCompletion int64
}

func mustExec(t testing.TB, conn *sql.DB, stmt string, args ...any) {
	t.Helper()
	if _, err := conn.ExecContext(context.Background(), stmt, args...); err != nil {
		t.Fatalf("seed failed: %v\n%s", err, stmt)
	}
}

// InsertProject adds a project with a single trace whose id equals the project id.
func InsertProject(t testing.TB, conn *sql.DB, id int64, name string) {
	t.Helper()
	mustExec(t, conn, `INSERT INTO projects (id, name) VALUES (?, ?)`, id, name)
	InsertTrace(t, conn, id, id)
}

// InsertTrace adds a trace to a project.
func InsertTrace(t testing.TB, conn *sql.DB, id, projectID int64) {
	t.Helper()
	mustExec(t, conn,
		`INSERT INTO traces (id, project_rowid, trace_id, start_time, end_time) VALUES (?, ?, ?, ?, ?)`,
		id, projectID, "trace-"+itoa(id), BaseTime, BaseTime.Add(time.Hour))
}

// InsertSpan adds a span row.
func InsertSpan(t testing.TB, conn *sql.DB, s SpanSeed) {
	t.Helper()
	start := s.StartTime
	if start.IsZero() {
		start = BaseTime.Add(time.Duration(s.ID) * time.Minute)
	}
	end := start
	if s.LatencyMs != nil {
		end = start.Add(time.Duration(*s.LatencyMs * float64(time.Millisecond)))
	}
	name := s.Name
	if name == "" {
		name = "span-" + itoa(s.ID)
	}

	var total *int64
	if s.TokenCountPrompt != nil && s.TokenCountCompletion != nil {
		total = Int(*s.TokenCountPrompt + *s.TokenCountCompletion)
	}

	mustExec(t, conn, `INSERT INTO spans (
		id, trace_rowid, span_id, name, start_time, end_time, latency_ms,
		llm_token_count_prompt, llm_token_count_completion, llm_token_count_total,
		cumulative_llm_token_count_prompt, cumulative_llm_token_count_completion
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.TraceRowID, "span-"+itoa(s.ID), name, start, end, nullable(s.LatencyMs),
		nullable(s.TokenCountPrompt), nullable(s.TokenCountCompletion), nullable(total),
		s.CumulativePrompt, s.CumulativeCompletion)
}

// InsertCost adds the cost row of a span.
func InsertCost(t testing.TB, conn *sql.DB, spanID, traceID int64, totalCost *float64) {
	t.Helper()
	mustExec(t, conn,
		`INSERT INTO span_costs (span_rowid, trace_rowid, total_cost) VALUES (?, ?, ?)`,
		spanID, traceID, nullable(totalCost))
}

// InsertAnnotation adds a named annotation to a span.
func InsertAnnotation(t testing.TB, conn *sql.DB, spanID int64, name string, score *float64, label *string) {
	t.Helper()
	mustExec(t, conn,
		`INSERT INTO span_annotations (span_rowid, name, score, label) VALUES (?, ?, ?, ?)`,
		spanID, name, nullable(score), nullable(label))
}

func Float(v float64) *float64 { return &v }
func Int(v int64) *int64       { return &v }
func String(v string) *string  { return &v }

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}

func nullable[T any](p *T) any {
	if p == nil {
		return nil
	}
	return *p
}
