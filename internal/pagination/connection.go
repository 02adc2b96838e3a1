package pagination

// PageInfo reports the cursors of the first and last edge of a page.
type PageInfo struct {
	StartCursor     string `json:"startCursor,omitempty"`
	EndCursor       string `json:"endCursor,omitempty"`
	HasNextPage     bool   `json:"hasNextPage"`
	HasPreviousPage bool   `json:"hasPreviousPage"`
}

// Edge pairs a node with the cursor that resumes after it.
type Edge[T any] struct {
	Node   T      `json:"node"`
	Cursor string `json:"cursor"`
}

// Connection is one page of a cursor-paginated listing.
type Connection[T any] struct {
	Edges    []Edge[T] `json:"edges"`
	PageInfo PageInfo  `json:"pageInfo"`
}

// NewConnection builds a page from edges already trimmed to the page size.
func NewConnection[T any](edges []Edge[T], hasNext, hasPrevious bool) Connection[T] {
	if edges == nil {
		edges = []Edge[T]{}
	}
	info := PageInfo{HasNextPage: hasNext, HasPreviousPage: hasPrevious}
	if len(edges) > 0 {
		info.StartCursor = edges[0].Cursor
		info.EndCursor = edges[len(edges)-1].Cursor
	}
	return Connection[T]{Edges: edges, PageInfo: info}
}
