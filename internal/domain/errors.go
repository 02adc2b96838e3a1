package domain

import "fmt"

// CursorSortColumnDataType is the logical type of a sort column. It drives
// cursor encoding and comparison independently of the storage representation.
type CursorSortColumnDataType string

const (
	CursorSortColumnDataTypeInt      CursorSortColumnDataType = "INT"
	CursorSortColumnDataTypeFloat    CursorSortColumnDataType = "FLOAT"
	CursorSortColumnDataTypeString   CursorSortColumnDataType = "STRING"
	CursorSortColumnDataTypeDatetime CursorSortColumnDataType = "DATETIME"
)

func (t CursorSortColumnDataType) IsValid() bool {
	switch t {
	case CursorSortColumnDataTypeInt,
		CursorSortColumnDataTypeFloat,
		CursorSortColumnDataTypeString,
		CursorSortColumnDataTypeDatetime:
		return true
	}
	return false
}

// SortValidationError reports a sort specification with zero or both key kinds,
// or another structural problem.
type SortValidationError struct {
	Reason string
}

func (e *SortValidationError) Error() string {
	return "invalid span sort: " + e.Reason
}

// UnknownSortKeyError reports a sort key outside the catalog.
type UnknownSortKeyError struct {
	Key string
}

func (e *UnknownSortKeyError) Error() string {
	return fmt.Sprintf("unknown sort key %q", e.Key)
}

// CursorDecodeError reports a pagination cursor that cannot be used with the
// current request. Clients must restart from the first page.
type CursorDecodeError struct {
	Reason string
	Err    error
}

func (e *CursorDecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid pagination cursor: %s: %v", e.Reason, e.Err)
	}
	return "invalid pagination cursor: " + e.Reason
}

func (e *CursorDecodeError) Unwrap() error {
	return e.Err
}

// InvalidInputError reports a request parameter outside its accepted range.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
