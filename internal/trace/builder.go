package trace

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// Discrepancy kinds
const (
	// KeyMismatch: an exit closed a frame opened under a different key
	KeyMismatch = "key_mismatch"
	// UnmatchedExit: an exit arrived with nothing open
	UnmatchedExit = "unmatched_exit"
	// Unfinished: a span was still open at the end of the log
	Unfinished = "unfinished"
	// NegativeDuration: a span ended before it started
	NegativeDuration = "negative_duration"
)

// spanNamespace seeds deterministic span ids
var spanNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/SteelMorgan/apex-log-checker/span"))

// Discrepancy records a malformed-log condition found while building the tree
type Discrepancy struct {
	Kind     string `json:"kind"`
	Line     int    `json:"line"`
	Expected string `json:"expected,omitempty"`
	Got      string `json:"got,omitempty"`
}

func (d Discrepancy) String() string {
	switch d.Kind {
	case KeyMismatch:
		return fmt.Sprintf("line %d: expected exit of %q, got %q", d.Line, d.Expected, d.Got)
	case UnmatchedExit:
		return fmt.Sprintf("line %d: exit of %q with no open span", d.Line, d.Got)
	case Unfinished:
		return fmt.Sprintf("line %d: %q never finished", d.Line, d.Expected)
	case NegativeDuration:
		return fmt.Sprintf("line %d: %q ends before it starts", d.Line, d.Expected)
	}
	return fmt.Sprintf("line %d: %s", d.Line, d.Kind)
}

// Forest is the reconstructed call tree of one log.
// Every span in Roots is complete; TimeStart/TimeEnd bound all of them and
// are both zero when the forest is empty.
type Forest struct {
	Roots         []*domain.TraceSpan `json:"roots"`
	TimeStart     domain.Instant      `json:"time_start"`
	TimeEnd       domain.Instant      `json:"time_end"`
	Discrepancies []Discrepancy       `json:"discrepancies,omitempty"`
}

// Empty reports whether no span survived reconstruction
func (f *Forest) Empty() bool {
	return len(f.Roots) == 0
}

// Span returns the span with the given id
func (f *Forest) Span(id string) (*domain.TraceSpan, bool) {
	var found *domain.TraceSpan
	f.Walk(func(s *domain.TraceSpan) {
		if found == nil && s.ID == id {
			found = s
		}
	})
	return found, found != nil
}

// Walk visits every span depth-first, parents before children
func (f *Forest) Walk(fn func(*domain.TraceSpan)) {
	for _, r := range f.Roots {
		r.Walk(fn)
	}
}

// Spans returns every span in walk order
func (f *Forest) Spans() []*domain.TraceSpan {
	var out []*domain.TraceSpan
	f.Walk(func(s *domain.TraceSpan) {
		out = append(out, s)
	})
	return out
}

// node is a span under construction
type node struct {
	span     *domain.TraceSpan
	key      string
	ended    bool
	children []*node
}

// Build folds the classified stream into a span forest.
//
// Entry kinds push a span whose parent is the span on top of the stack
// before the push. Exit kinds always pop the top span, even when its key
// differs; the mismatch is recorded. Spans that never finish, or that end
// before they start, are left out of the result and their finished children
// take their place under the nearest kept ancestor.
func Build(lines []domain.ClassifiedLine) *Forest {
	forest := &Forest{}

	var roots []*node
	var stack []*node

	for _, line := range lines {
		if !line.Timed {
			continue
		}
		switch {
		case line.Kind.Opens():
			n := &node{
				span: &domain.TraceSpan{
					Name:      line.PrimaryText,
					Category:  categoryOf(line),
					Start:     line.Instant,
					StartLine: line.OriginalIndex,
				},
				key: line.Key,
			}
			n.span.ID = spanID(n.span)
			if len(stack) == 0 {
				roots = append(roots, n)
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, n)
			}
			stack = append(stack, n)

		case line.Kind.Closes():
			if len(stack) == 0 {
				forest.Discrepancies = append(forest.Discrepancies, Discrepancy{
					Kind: UnmatchedExit,
					Line: line.OriginalIndex,
					Got:  line.Key,
				})
				continue
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if top.key != line.Key {
				forest.Discrepancies = append(forest.Discrepancies, Discrepancy{
					Kind:     KeyMismatch,
					Line:     line.OriginalIndex,
					Expected: top.key,
					Got:      line.Key,
				})
			}
			top.ended = true
			top.span.End = line.Instant
			top.span.EndLine = line.OriginalIndex
		}
	}

	forest.Roots = forest.emit(roots, 0)
	forest.bounds()
	return forest
}

// emit converts finished nodes into spans, splicing the children of dropped
// nodes into their place
func (f *Forest) emit(nodes []*node, depth int) []*domain.TraceSpan {
	var out []*domain.TraceSpan
	for _, n := range nodes {
		switch {
		case !n.ended:
			f.Discrepancies = append(f.Discrepancies, Discrepancy{
				Kind:     Unfinished,
				Line:     n.span.StartLine,
				Expected: n.span.Name,
			})
			out = append(out, f.emit(n.children, depth)...)
		case n.span.End < n.span.Start:
			f.Discrepancies = append(f.Discrepancies, Discrepancy{
				Kind:     NegativeDuration,
				Line:     n.span.StartLine,
				Expected: n.span.Name,
			})
			out = append(out, f.emit(n.children, depth)...)
		default:
			n.span.Depth = depth
			n.span.Children = f.emit(n.children, depth+1)
			out = append(out, n.span)
		}
	}
	return out
}

func (f *Forest) bounds() {
	first := true
	f.Walk(func(s *domain.TraceSpan) {
		if first {
			f.TimeStart, f.TimeEnd = s.Start, s.End
			first = false
			return
		}
		if s.Start < f.TimeStart {
			f.TimeStart = s.Start
		}
		if s.End > f.TimeEnd {
			f.TimeEnd = s.End
		}
	})
}

func categoryOf(line domain.ClassifiedLine) domain.SpanCategory {
	switch line.Kind {
	case domain.KindCalloutRequest:
		return domain.CategoryCallout
	case domain.KindMethodEntry, domain.KindConstructorEntry:
		return domain.CategoryMethod
	}
	switch line.UnitType {
	case apexlog.UnitTypeTrigger:
		return domain.CategoryTrigger
	case apexlog.UnitTypeFlow:
		return domain.CategoryFlow
	}
	return domain.CategoryCodeUnit
}

// spanID is stable across rebuilds of the same log
func spanID(s *domain.TraceSpan) string {
	name := fmt.Sprintf("%d|%s|%s", s.StartLine, s.Category, s.Name)
	return uuid.NewSHA1(spanNamespace, []byte(name)).String()
}
