package pagination

import (
	"cmp"
	"strings"
	"time"
)

// compareSortValues orders two normalised sort values of the same type the way
// a compiled listing does before its tie-break: NULL sorts after every value.
// desc reverses non-NULL values only.
func compareSortValues(a, b any, desc bool) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}

	var c int
	switch av := a.(type) {
	case int64:
		c = cmp.Compare(av, b.(int64))
	case float64:
		c = cmp.Compare(av, b.(float64))
	case string:
		c = strings.Compare(av, b.(string))
	case time.Time:
		c = av.Compare(b.(time.Time))
	default:
		panic("pagination: unsupported sort value type")
	}
	if desc {
		return -c
	}
	return c
}

// compareCursors orders two cursors by sort value, then ascending row id.
func compareCursors(a, b Cursor, desc bool) int {
	if v := compareSortValues(a.SortColumn.Value, b.SortColumn.Value, desc); v != 0 {
		return v
	}
	return cmp.Compare(a.RowID, b.RowID)
}
