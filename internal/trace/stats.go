package trace

import (
	"sort"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// SpanStat aggregates all spans sharing a name and category
type SpanStat struct {
	Name     string              `json:"name"`
	Category domain.SpanCategory `json:"category"`
	Count    int                 `json:"count"`
	Total    float64             `json:"total_ms"`
	Self     float64             `json:"self_ms"`
	Max      float64             `json:"max_ms"`
}

// Stats returns per-name aggregates, largest total duration first.
// Nested calls of the same name count their time once per span, so Total
// may exceed the wall time of a recursive call chain; Self never does.
func Stats(f *Forest) []SpanStat {
	type statKey struct {
		name     string
		category domain.SpanCategory
	}

	index := make(map[statKey]int)
	var out []SpanStat

	f.Walk(func(s *domain.TraceSpan) {
		k := statKey{s.Name, s.Category}
		i, ok := index[k]
		if !ok {
			i = len(out)
			index[k] = i
			out = append(out, SpanStat{Name: s.Name, Category: s.Category})
		}
		d := s.Duration()
		st := &out[i]
		st.Count++
		st.Total += d
		st.Self += s.SelfDuration()
		if d > st.Max {
			st.Max = d
		}
	})

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Total > out[j].Total
	})
	return out
}
