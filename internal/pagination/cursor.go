// Package pagination encodes and decodes the opaque cursors handed to clients
// for keyset pagination over a sorted span listing.
package pagination

import (
	"encoding/base64"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rpattn/spanql/internal/domain"
)

const (
	cursorVersion   = "v1"
	cursorSeparator = ":"
)

// Representable DATETIME range. RFC 3339 has four-digit years.
var (
	MinCursorTime = time.Date(1, time.January, 1, 0, 0, 0, 0, time.UTC)
	MaxCursorTime = time.Date(9999, time.December, 31, 23, 59, 59, 999999999, time.UTC)
)

// CursorSortColumn is the typed sort value of the row a cursor points at.
// Value is nil, int64, float64, string or time.Time according to Type.
type CursorSortColumn struct {
	Type  domain.CursorSortColumnDataType
	Value any
}

// Cursor identifies a row position in a sorted listing. RowID is the unique
// tie-break key, so two distinct rows never share a cursor.
type Cursor struct {
	RowID      int64
	SortColumn CursorSortColumn
}

// NewCursor validates and normalises value for dataType.
func NewCursor(rowID int64, value any, dataType domain.CursorSortColumnDataType) (Cursor, error) {
	v, err := normalize(value, dataType)
	if err != nil {
		return Cursor{}, err
	}
	return Cursor{RowID: rowID, SortColumn: CursorSortColumn{Type: dataType, Value: v}}, nil
}

// Encode builds the opaque token for a boundary row.
func Encode(rowID int64, value any, dataType domain.CursorSortColumnDataType) (string, error) {
	c, err := NewCursor(rowID, value, dataType)
	if err != nil {
		return "", err
	}
	return c.String(), nil
}

// String renders the token. The layout is version:type:rowid[:value]; the value
// segment is absent for a NULL sort value and may itself contain separators.
func (c Cursor) String() string {
	parts := []string{cursorVersion, string(c.SortColumn.Type), strconv.FormatInt(c.RowID, 10)}
	if c.SortColumn.Value != nil {
		parts = append(parts, formatValue(c.SortColumn.Value))
	}
	raw := strings.Join(parts, cursorSeparator)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// Decode parses token and checks that it was issued for dataType.
func Decode(token string, dataType domain.CursorSortColumnDataType) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, &domain.CursorDecodeError{Reason: "empty cursor"}
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, &domain.CursorDecodeError{Reason: "malformed encoding", Err: err}
	}

	parts := strings.SplitN(string(decoded), cursorSeparator, 4)
	if len(parts) < 3 {
		return Cursor{}, &domain.CursorDecodeError{Reason: "malformed cursor layout"}
	}
	if parts[0] != cursorVersion {
		return Cursor{}, &domain.CursorDecodeError{Reason: fmt.Sprintf("unsupported cursor version %q", parts[0])}
	}

	tag := domain.CursorSortColumnDataType(parts[1])
	if !tag.IsValid() {
		return Cursor{}, &domain.CursorDecodeError{Reason: fmt.Sprintf("unknown sort column type %q", parts[1])}
	}
	if tag != dataType {
		return Cursor{}, &domain.CursorDecodeError{
			Reason: fmt.Sprintf("cursor was issued for a %s sort column but the requested sort column is %s", tag, dataType),
		}
	}

	rowID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return Cursor{}, &domain.CursorDecodeError{Reason: "invalid row id", Err: err}
	}

	var value any
	if len(parts) == 4 {
		value, err = parseValue(parts[3], tag)
		if err != nil {
			return Cursor{}, &domain.CursorDecodeError{Reason: fmt.Sprintf("invalid %s value", tag), Err: err}
		}
	}

	return Cursor{RowID: rowID, SortColumn: CursorSortColumn{Type: tag, Value: value}}, nil
}

func normalize(value any, dataType domain.CursorSortColumnDataType) (any, error) {
	if value == nil {
		if !dataType.IsValid() {
			return nil, fmt.Errorf("unknown sort column type %q", dataType)
		}
		return nil, nil
	}

	switch dataType {
	case domain.CursorSortColumnDataTypeInt:
		switch v := value.(type) {
		case int:
			return int64(v), nil
		case int32:
			return int64(v), nil
		case int64:
			return v, nil
		}
	case domain.CursorSortColumnDataTypeFloat:
		var f float64
		switch v := value.(type) {
		case float32:
			f = float64(v)
		case float64:
			f = v
		default:
			return nil, fmt.Errorf("cannot encode %T as a %s sort value", value, dataType)
		}
		if math.IsNaN(f) {
			return nil, fmt.Errorf("NaN is not an orderable value")
		}
		return f, nil
	case domain.CursorSortColumnDataTypeString:
		if v, ok := value.(string); ok {
			return v, nil
		}
	case domain.CursorSortColumnDataTypeDatetime:
		if v, ok := value.(time.Time); ok {
			v = v.UTC()
			if v.Before(MinCursorTime) || v.After(MaxCursorTime) {
				return nil, fmt.Errorf("datetime %s outside representable cursor range", v.Format(time.RFC3339Nano))
			}
			return v, nil
		}
	default:
		return nil, fmt.Errorf("unknown sort column type %q", dataType)
	}
	return nil, fmt.Errorf("cannot encode %T as a %s sort value", value, dataType)
}

func formatValue(value any) string {
	switch v := value.(type) {
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'g', -1, 64)
	case string:
		return v
	case time.Time:
		return v.UTC().Format(time.RFC3339Nano)
	}
	panic(fmt.Sprintf("pagination: unnormalised cursor value %T", value))
}

func parseValue(raw string, dataType domain.CursorSortColumnDataType) (any, error) {
	switch dataType {
	case domain.CursorSortColumnDataTypeInt:
		return strconv.ParseInt(raw, 10, 64)
	case domain.CursorSortColumnDataTypeFloat:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(f) {
			return nil, fmt.Errorf("NaN is not an orderable value")
		}
		return f, nil
	case domain.CursorSortColumnDataTypeString:
		return raw, nil
	case domain.CursorSortColumnDataTypeDatetime:
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return nil, err
		}
		return t.UTC(), nil
	}
	return nil, fmt.Errorf("unknown sort column type %q", dataType)
}
