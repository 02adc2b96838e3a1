package db

import "github.com/rpattn/spanql/internal/query"

// Tables referenced by hand-built queries. Column names match migrations/.
var (
	Projects        = query.Table{Name: "projects"}
	Traces          = query.Table{Name: "traces"}
	Spans           = query.Table{Name: "spans"}
	SpanCosts       = query.Table{Name: "span_costs"}
	SpanAnnotations = query.Table{Name: "span_annotations"}
)
