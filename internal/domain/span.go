package domain

// SpanCategory groups trace spans for timeline display
type SpanCategory string

const (
	CategoryMethod   SpanCategory = "METHOD"
	CategoryTrigger  SpanCategory = "TRIGGER"
	CategoryFlow     SpanCategory = "FLOW"
	CategoryCallout  SpanCategory = "CALLOUT"
	CategoryCodeUnit SpanCategory = "CODE_UNIT"
)

// TraceSpan is a reconstructed, timed unit of nested execution.
// Spans in a built forest are always complete (End >= Start).
type TraceSpan struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Category  SpanCategory `json:"category"`
	Start     Instant      `json:"start"`
	End       Instant      `json:"end"`
	Depth     int          `json:"depth"`
	StartLine int          `json:"start_line"`
	EndLine   int          `json:"end_line"`
	Children  []*TraceSpan `json:"children,omitempty"`
}

// Duration in milliseconds
func (s *TraceSpan) Duration() float64 {
	return float64(s.End - s.Start)
}

// SelfDuration is the duration not covered by direct children
func (s *TraceSpan) SelfDuration() float64 {
	self := s.Duration()
	for _, c := range s.Children {
		self -= c.Duration()
	}
	if self < 0 {
		return 0
	}
	return self
}

// Walk visits the span and its descendants depth-first, parents first
func (s *TraceSpan) Walk(fn func(*TraceSpan)) {
	fn(s)
	for _, c := range s.Children {
		c.Walk(fn)
	}
}
