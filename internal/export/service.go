// Package export streams a complete sorted span listing into a CSV or XLSX
// file by walking its cursor pages.
package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/spanql/internal/domain"
	"github.com/rpattn/spanql/internal/spans"
)

// Format is an export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat accepts csv or xlsx; empty means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", &domain.InvalidInputError{Field: "format", Reason: fmt.Sprintf("unsupported export format %q", s)}
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// SpanLister returns one page of a span listing.
type SpanLister interface {
	ListSpans(ctx context.Context, input spans.ListSpansInput) (spans.SpanConnection, error)
}

// Service walks every page of a listing into a file.
type Service struct {
	spans    SpanLister
	pageSize int
	maxRows  int
}

type Option func(*Service)

// WithPageSize sets how many spans are fetched per page.
func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithMaxRows caps the number of exported spans.
func WithMaxRows(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxRows = n
		}
	}
}

func NewService(lister SpanLister, opts ...Option) *Service {
	s := &Service{spans: lister, pageSize: 500, maxRows: 100000}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Header lists the exported columns in order.
var Header = []string{
	"id", "span_id", "trace_rowid", "parent_id", "name", "span_kind",
	"start_time", "end_time", "latency_ms",
	"token_count_prompt", "token_count_completion", "token_count_total",
	"cumulative_token_count_total", "token_cost_total",
}

// rowWriter encodes rows into one export file. Close finishes the file; Abort
// releases its resources without writing anything further.
type rowWriter interface {
	Write(row []any) error
	Close() error
	Abort()
}

var newRowWriter = func(format Format, w io.Writer) (rowWriter, error) {
	switch format {
	case FormatCSV:
		return &csvRowWriter{csv: csv.NewWriter(w)}, nil
	case FormatXLSX:
		return newXLSXRowWriter(w)
	}
	return nil, &domain.InvalidInputError{Field: "format", Reason: fmt.Sprintf("unsupported export format %q", format)}
}

// Result summarises a finished export.
type Result struct {
	Rows      int
	Bytes     int64
	Truncated bool
}

// Export writes the listing described by input to w, starting from input.After
// and following cursors until the last page or the row cap.
func (s *Service) Export(ctx context.Context, input spans.ListSpansInput, format Format, w io.Writer) (Result, error) {
	buffered := bufio.NewWriterSize(w, 1<<16)
	counter := &countingWriter{writer: buffered}

	out, err := newRowWriter(format, counter)
	if err != nil {
		return Result{}, err
	}
	closed := false
	defer func() {
		if !closed {
			out.Abort()
		}
	}()

	header := make([]any, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := out.Write(header); err != nil {
		return Result{}, fmt.Errorf("write header: %w", err)
	}

	start := time.Now()
	result := Result{}
	input.First = s.pageSize
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		page, err := s.spans.ListSpans(ctx, input)
		if err != nil {
			return result, err
		}
		for _, edge := range page.Edges {
			if result.Rows >= s.maxRows {
				result.Truncated = true
				break
			}
			if err := out.Write(spanRow(edge.Node)); err != nil {
				return result, fmt.Errorf("write span row: %w", err)
			}
			result.Rows++
		}
		if result.Truncated || !page.PageInfo.HasNextPage {
			break
		}
		input.After = page.PageInfo.EndCursor
	}

	closed = true
	if err := out.Close(); err != nil {
		return result, fmt.Errorf("finish %s export: %w", format, err)
	}
	if err := buffered.Flush(); err != nil {
		return result, fmt.Errorf("flush export: %w", err)
	}
	result.Bytes = counter.count

	slog.Info("exported spans",
		"project_id", input.ProjectID,
		"format", format,
		"rows", result.Rows,
		"bytes", result.Bytes,
		"truncated", result.Truncated,
		"duration", time.Since(start))
	return result, nil
}

func spanRow(n spans.SpanNode) []any {
	return []any{
		n.ID, n.SpanID, n.TraceRowID, deref(n.ParentID), n.Name, n.SpanKind,
		n.StartTime.UTC().Format(time.RFC3339Nano), n.EndTime.UTC().Format(time.RFC3339Nano),
		deref(n.LatencyMs),
		deref(n.TokenCountPrompt), deref(n.TokenCountCompletion), deref(n.TokenCountTotal),
		n.CumulativeTokenCountTotal, deref(n.TokenCostTotal),
	}
}

// deref turns a missing value into an empty cell.
func deref[T any](p *T) any {
	if p == nil {
		return ""
	}
	return *p
}

type csvRowWriter struct {
	csv    *csv.Writer
	record []string
}

func (c *csvRowWriter) Write(row []any) error {
	c.record = c.record[:0]
	for _, v := range row {
		c.record = append(c.record, formatValue(v))
	}
	return c.csv.Write(c.record)
}

func (c *csvRowWriter) Close() error {
	c.csv.Flush()
	return c.csv.Error()
}

func (c *csvRowWriter) Abort() {}

func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	default:
		return fmt.Sprint(val)
	}
}

const sheetName = "Spans"

type xlsxRowWriter struct {
	file   *excelize.File
	stream *excelize.StreamWriter
	dst    io.Writer
	row    int
}

func newXLSXRowWriter(dst io.Writer) (*xlsxRowWriter, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open xlsx stream: %w", err)
	}
	return &xlsxRowWriter{file: f, stream: sw, dst: dst}, nil
}

func (x *xlsxRowWriter) Write(row []any) error {
	x.row++
	cell, err := excelize.CoordinatesToCellName(1, x.row)
	if err != nil {
		return err
	}
	return x.stream.SetRow(cell, row)
}

func (x *xlsxRowWriter) Close() error {
	defer func() { _ = x.file.Close() }()
	if err := x.stream.Flush(); err != nil {
		return err
	}
	return x.file.Write(x.dst)
}

// Abort drops the workbook and any temporary files the stream spilled to.
func (x *xlsxRowWriter) Abort() {
	_ = x.file.Close()
}

type countingWriter struct {
	writer io.Writer
	count  int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.writer.Write(p)
	c.count += int64(n)
	return n, err
}
