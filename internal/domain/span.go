package domain

import "time"

// Span is a single operation recorded within a trace.
type Span struct {
	ID                                int64
	TraceRowID                        int64
	SpanID                            string
	ParentID                          *string
	Name                              string
	SpanKind                          string
	StartTime                         time.Time
	EndTime                           time.Time
	LatencyMs                         *float64
	LLMTokenCountPrompt               *int64
	LLMTokenCountCompletion           *int64
	LLMTokenCountTotal                *int64
	CumulativeLLMTokenCountPrompt     int64
	CumulativeLLMTokenCountCompletion int64
}

// CumulativeLLMTokenCountTotal is the sum of the cumulative prompt and completion counts.
func (s Span) CumulativeLLMTokenCountTotal() int64 {
	return s.CumulativeLLMTokenCountPrompt + s.CumulativeLLMTokenCountCompletion
}

// SpanCost holds the cost breakdown of a single span.
type SpanCost struct {
	ID             int64
	SpanRowID      int64
	TraceRowID     int64
	PromptCost     *float64
	CompletionCost *float64
	TotalCost      *float64
}

// SpanAnnotation is a named evaluation attached to a span.
type SpanAnnotation struct {
	ID            int64
	SpanRowID     int64
	Name          string
	Label         *string
	Score         *float64
	Explanation   *string
	AnnotatorKind string
}
