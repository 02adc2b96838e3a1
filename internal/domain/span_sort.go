package domain

import (
	"fmt"
	"strings"
)

// SortDir represents ordering direction for sortable fields.
type SortDir string

const (
	SortDirAsc  SortDir = "asc"
	SortDirDesc SortDir = "desc"
)

func (d SortDir) IsValid() bool {
	switch d {
	case SortDirAsc, SortDirDesc:
		return true
	}
	return false
}

func (d SortDir) String() string {
	return string(d)
}

func (d *SortDir) UnmarshalGQL(v interface{}) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("enums must be strings")
	}
	*d = SortDir(str)
	if !d.IsValid() {
		return fmt.Errorf("%s is not a valid SortDir", str)
	}
	return nil
}

// SpanColumn enumerates the structural span columns a listing can be sorted by.
type SpanColumn string

const (
	SpanColumnStartTime                      SpanColumn = "startTime"
	SpanColumnEndTime                        SpanColumn = "endTime"
	SpanColumnLatencyMs                      SpanColumn = "latencyMs"
	SpanColumnTokenCountTotal                SpanColumn = "tokenCountTotal"
	SpanColumnTokenCountPrompt               SpanColumn = "tokenCountPrompt"
	SpanColumnTokenCountCompletion           SpanColumn = "tokenCountCompletion"
	SpanColumnCumulativeTokenCountTotal      SpanColumn = "cumulativeTokenCountTotal"
	SpanColumnCumulativeTokenCountPrompt     SpanColumn = "cumulativeTokenCountPrompt"
	SpanColumnCumulativeTokenCountCompletion SpanColumn = "cumulativeTokenCountCompletion"
	SpanColumnCumulativeTokenCostTotal       SpanColumn = "cumulativeTokenCostTotal"
	SpanColumnTokenCostTotal                 SpanColumn = "tokenCostTotal"
)

// AllSpanColumns lists every SpanColumn in declaration order.
var AllSpanColumns = []SpanColumn{
	SpanColumnStartTime,
	SpanColumnEndTime,
	SpanColumnLatencyMs,
	SpanColumnTokenCountTotal,
	SpanColumnTokenCountPrompt,
	SpanColumnTokenCountCompletion,
	SpanColumnCumulativeTokenCountTotal,
	SpanColumnCumulativeTokenCountPrompt,
	SpanColumnCumulativeTokenCountCompletion,
	SpanColumnCumulativeTokenCostTotal,
	SpanColumnTokenCostTotal,
}

func (c SpanColumn) IsValid() bool {
	for _, col := range AllSpanColumns {
		if c == col {
			return true
		}
	}
	return false
}

func (c SpanColumn) String() string {
	return string(c)
}

// ColumnName is the label the sort value is projected under.
func (c SpanColumn) ColumnName() string {
	return string(c) + "_span_sort_column"
}

func (c *SpanColumn) UnmarshalGQL(v interface{}) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("enums must be strings")
	}
	*c = SpanColumn(str)
	if !c.IsValid() {
		return fmt.Errorf("%s is not a valid SpanColumn", str)
	}
	return nil
}

// EvalAttr selects which value of a span annotation is used for sorting.
type EvalAttr string

const (
	EvalAttrScore EvalAttr = "score"
	EvalAttrLabel EvalAttr = "label"
)

func (a EvalAttr) IsValid() bool {
	switch a {
	case EvalAttrScore, EvalAttrLabel:
		return true
	}
	return false
}

func (a EvalAttr) String() string {
	return string(a)
}

// ColumnName is the label the annotation value is projected under.
func (a EvalAttr) ColumnName() string {
	return string(a) + "_eval_sort_column"
}

func (a *EvalAttr) UnmarshalGQL(v interface{}) error {
	str, ok := v.(string)
	if !ok {
		return fmt.Errorf("enums must be strings")
	}
	*a = EvalAttr(str)
	if !a.IsValid() {
		return fmt.Errorf("%s is not a valid EvalAttr", str)
	}
	return nil
}

// EvalResultKey identifies a named annotation and the value to sort by.
type EvalResultKey struct {
	Name string
	Attr EvalAttr
}

// SpanSort is the sort key and direction for span listings. Exactly one of Col
// or EvalResultKey must be set.
type SpanSort struct {
	Col           *SpanColumn
	EvalResultKey *EvalResultKey
	Dir           SortDir
}

// DefaultSpanSort orders spans newest first.
func DefaultSpanSort() SpanSort {
	col := SpanColumnStartTime
	return SpanSort{Col: &col, Dir: SortDirDesc}
}

// Validate checks the structural shape of the sort. Enum values are checked when
// the key is resolved.
func (s SpanSort) Validate() error {
	switch {
	case s.Col != nil && s.EvalResultKey != nil:
		return &SortValidationError{Reason: "exactly one of col or evalResultKey must be specified, got both"}
	case s.Col == nil && s.EvalResultKey == nil:
		return &SortValidationError{Reason: "exactly one of col or evalResultKey must be specified, got neither"}
	}
	if s.EvalResultKey != nil && strings.TrimSpace(s.EvalResultKey.Name) == "" {
		return &SortValidationError{Reason: "evalResultKey.name must not be empty"}
	}
	if !s.Dir.IsValid() {
		return &SortValidationError{Reason: fmt.Sprintf("unsupported sort direction %q", s.Dir)}
	}
	return nil
}

// Key returns a stable human readable name of the sort key.
func (s SpanSort) Key() string {
	switch {
	case s.Col != nil:
		return s.Col.String()
	case s.EvalResultKey != nil:
		return fmt.Sprintf("eval(%s).%s", s.EvalResultKey.Name, s.EvalResultKey.Attr)
	}
	return ""
}

// ParseSpanSort builds a SpanSort from raw request values. An empty dir means
// descending. Unknown enum values are reported as UnknownSortKeyError and a bad
// direction as SortValidationError.
func ParseSpanSort(col, evalName, evalAttr, dir string) (SpanSort, error) {
	sort := SpanSort{Dir: SortDirDesc}
	if dir != "" {
		if err := sort.Dir.UnmarshalGQL(dir); err != nil {
			return SpanSort{}, &SortValidationError{Reason: err.Error()}
		}
	}
	if col != "" {
		var c SpanColumn
		if err := c.UnmarshalGQL(col); err != nil {
			return SpanSort{}, &UnknownSortKeyError{Key: col}
		}
		sort.Col = &c
	}
	if evalName != "" || evalAttr != "" {
		key := &EvalResultKey{Name: evalName}
		if err := key.Attr.UnmarshalGQL(evalAttr); err != nil {
			return SpanSort{}, &UnknownSortKeyError{Key: "evalResultKey.attr:" + evalAttr}
		}
		sort.EvalResultKey = key
	}
	if err := sort.Validate(); err != nil {
		return SpanSort{}, err
	}
	return sort, nil
}
