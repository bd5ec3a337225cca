package trace

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

func build(lines ...string) *Forest {
	return Build(apexlog.Parse(strings.Join(lines, "\n")).Lines)
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name   string
		lines  []string
		checks func(t *testing.T, f *Forest)
	}{
		{
			name: "single method",
			lines: []string{
				"12:00:00.0|METHOD_ENTRY|foo",
				"12:00:00.5|METHOD_EXIT|foo",
			},
			checks: func(t *testing.T, f *Forest) {
				require.Len(t, f.Roots, 1)
				root := f.Roots[0]
				assert.Equal(t, "foo", root.Name)
				assert.Equal(t, domain.CategoryMethod, root.Category)
				assert.Equal(t, 500.0, root.Duration())
				assert.Equal(t, 0, root.Depth)
				assert.Equal(t, domain.Instant(43200000), f.TimeStart)
				assert.Equal(t, domain.Instant(43200500), f.TimeEnd)
				assert.Empty(t, f.Discrepancies)
			},
		},
		{
			name: "nested units",
			lines: []string{
				"12:00:00.000|CODE_UNIT_STARTED|[EXTERNAL]|execute_anonymous_apex",
				"12:00:00.010|METHOD_ENTRY|[1]|01p000000000001|Outer.run()",
				"12:00:00.020|METHOD_ENTRY|[4]|01p000000000001|Inner.a()",
				"12:00:00.030|METHOD_EXIT|[4]|01p000000000001|Inner.a()",
				"12:00:00.030|METHOD_ENTRY|[5]|01p000000000001|Inner.b()",
				"12:00:00.045|METHOD_EXIT|[5]|01p000000000001|Inner.b()",
				"12:00:00.050|METHOD_EXIT|[1]|01p000000000001|Outer.run()",
				"12:00:00.060|CODE_UNIT_FINISHED|execute_anonymous_apex",
			},
			checks: func(t *testing.T, f *Forest) {
				require.Len(t, f.Roots, 1)
				unit := f.Roots[0]
				assert.Equal(t, domain.CategoryCodeUnit, unit.Category)
				assert.Equal(t, 0, unit.StartLine)
				assert.Equal(t, 7, unit.EndLine)

				require.Len(t, unit.Children, 1)
				outer := unit.Children[0]
				assert.Equal(t, "Outer.run()", outer.Name)
				assert.Equal(t, 1, outer.Depth)

				require.Len(t, outer.Children, 2)
				assert.Equal(t, "Inner.a()", outer.Children[0].Name)
				assert.Equal(t, "Inner.b()", outer.Children[1].Name)
				assert.Equal(t, 2, outer.Children[1].Depth)
				assert.InDelta(t, 15.0, outer.Children[1].Duration(), 1e-9)
				assert.InDelta(t, 15.0, outer.SelfDuration(), 1e-9)

				assert.InDelta(t, 60.0, float64(f.TimeEnd-f.TimeStart), 1e-9)
				assert.Empty(t, f.Discrepancies)
			},
		},
		{
			name: "lone exit",
			lines: []string{
				"12:00:00.0|METHOD_EXIT|foo",
			},
			checks: func(t *testing.T, f *Forest) {
				assert.True(t, f.Empty())
				require.Len(t, f.Discrepancies, 1)
				assert.Equal(t, UnmatchedExit, f.Discrepancies[0].Kind)
				assert.Equal(t, domain.Instant(0), f.TimeStart)
				assert.Equal(t, domain.Instant(0), f.TimeEnd)
			},
		},
		{
			name: "unfinished parent promotes finished child",
			lines: []string{
				"12:00:00.000|METHOD_ENTRY|outer",
				"12:00:00.100|METHOD_ENTRY|inner",
				"12:00:00.200|METHOD_EXIT|inner",
			},
			checks: func(t *testing.T, f *Forest) {
				require.Len(t, f.Roots, 1)
				assert.Equal(t, "inner", f.Roots[0].Name)
				assert.Equal(t, 0, f.Roots[0].Depth)
				require.Len(t, f.Discrepancies, 1)
				assert.Equal(t, Unfinished, f.Discrepancies[0].Kind)
				assert.Equal(t, "outer", f.Discrepancies[0].Expected)
			},
		},
		{
			name: "mismatched exit still pops",
			lines: []string{
				"12:00:00.000|METHOD_ENTRY|a",
				"12:00:00.100|METHOD_ENTRY|b",
				"12:00:00.200|METHOD_EXIT|a",
			},
			checks: func(t *testing.T, f *Forest) {
				require.Len(t, f.Roots, 1)
				assert.Equal(t, "b", f.Roots[0].Name)
				assert.InDelta(t, 100.0, f.Roots[0].Duration(), 1e-9)

				require.Len(t, f.Discrepancies, 2)
				assert.Equal(t, KeyMismatch, f.Discrepancies[0].Kind)
				assert.Equal(t, "b", f.Discrepancies[0].Expected)
				assert.Equal(t, "a", f.Discrepancies[0].Got)
				assert.Equal(t, Unfinished, f.Discrepancies[1].Kind)
			},
		},
		{
			name: "negative duration is dropped",
			lines: []string{
				"12:00:01.000|METHOD_ENTRY|late",
				"12:00:00.000|METHOD_EXIT|late",
			},
			checks: func(t *testing.T, f *Forest) {
				assert.True(t, f.Empty())
				require.Len(t, f.Discrepancies, 1)
				assert.Equal(t, NegativeDuration, f.Discrepancies[0].Kind)
			},
		},
		{
			name: "identical starts keep push order",
			lines: []string{
				"12:00:00.000|METHOD_ENTRY|parent",
				"12:00:00.000|METHOD_ENTRY|z",
				"12:00:00.000|METHOD_EXIT|z",
				"12:00:00.000|METHOD_ENTRY|a",
				"12:00:00.000|METHOD_EXIT|a",
				"12:00:00.000|METHOD_EXIT|parent",
			},
			checks: func(t *testing.T, f *Forest) {
				require.Len(t, f.Roots, 1)
				require.Len(t, f.Roots[0].Children, 2)
				assert.Equal(t, "z", f.Roots[0].Children[0].Name)
				assert.Equal(t, "a", f.Roots[0].Children[1].Name)
				assert.Equal(t, 0.0, f.Roots[0].Duration())
			},
		},
		{
			name: "categories",
			lines: []string{
				"12:00:00.000|CODE_UNIT_STARTED|[EXTERNAL]|01q000000000001|AccountTrigger on Account trigger event BeforeInsert|__sfdc_trigger/AccountTrigger",
				"12:00:00.001|FLOW_START_INTERVIEW_BEGIN|3001a|Account_Flow",
				"12:00:00.002|CALLOUT_REQUEST|[3]|System.HttpRequest[Endpoint=https://example.com, Method=GET]",
				"12:00:00.003|CALLOUT_RESPONSE|[3]|System.HttpResponse[Status=OK, StatusCode=200]",
				"12:00:00.004|FLOW_START_INTERVIEW_END|3001a|Account_Flow",
				"12:00:00.005|CODE_UNIT_FINISHED|__sfdc_trigger/AccountTrigger",
			},
			checks: func(t *testing.T, f *Forest) {
				require.Len(t, f.Roots, 1)
				trigger := f.Roots[0]
				assert.Equal(t, domain.CategoryTrigger, trigger.Category)
				assert.Equal(t, "AccountTrigger", trigger.Name)

				require.Len(t, trigger.Children, 1)
				flow := trigger.Children[0]
				assert.Equal(t, domain.CategoryFlow, flow.Category)

				require.Len(t, flow.Children, 1)
				assert.Equal(t, domain.CategoryCallout, flow.Children[0].Category)
				assert.Empty(t, f.Discrepancies)
			},
		},
		{
			name: "malformed timestamps are ignored",
			lines: []string{
				"12:00:00.000|METHOD_ENTRY|foo",
				"12:00|METHOD_EXIT|foo",
				"12:00:00.300|METHOD_EXIT|foo",
			},
			checks: func(t *testing.T, f *Forest) {
				require.Len(t, f.Roots, 1)
				assert.Equal(t, 2, f.Roots[0].EndLine)
				assert.Empty(t, f.Discrepancies)
			},
		},
		{
			name:  "empty log",
			lines: nil,
			checks: func(t *testing.T, f *Forest) {
				assert.True(t, f.Empty())
				assert.Empty(t, f.Discrepancies)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := build(tt.lines...)
			tt.checks(t, f)

			// no emitted span is open or reversed
			f.Walk(func(s *domain.TraceSpan) {
				assert.GreaterOrEqual(t, float64(s.End), float64(s.Start))
				assert.NotEmpty(t, s.ID)
			})
		})
	}
}

func TestBuild_DeterministicIDs(t *testing.T) {
	lines := []string{
		"12:00:00.000|METHOD_ENTRY|foo",
		"12:00:00.100|METHOD_ENTRY|foo",
		"12:00:00.200|METHOD_EXIT|foo",
		"12:00:00.300|METHOD_EXIT|foo",
	}

	first := build(lines...)
	second := build(lines...)

	assert.Equal(t, first.Roots[0].ID, second.Roots[0].ID)
	assert.Equal(t, first.Roots[0].Children[0].ID, second.Roots[0].Children[0].ID)
	assert.NotEqual(t, first.Roots[0].ID, first.Roots[0].Children[0].ID)

	s, ok := first.Span(first.Roots[0].Children[0].ID)
	require.True(t, ok)
	assert.Equal(t, 1, s.StartLine)

	_, ok = first.Span("missing")
	assert.False(t, ok)
	assert.Len(t, first.Spans(), 2)
}

func TestDiscrepancy_String(t *testing.T) {
	d := Discrepancy{Kind: KeyMismatch, Line: 3, Expected: "a", Got: "b"}
	assert.Equal(t, `line 3: expected exit of "a", got "b"`, d.String())
}

func TestStats(t *testing.T) {
	f := build(
		"12:00:00.000|METHOD_ENTRY|run",
		"12:00:00.010|METHOD_ENTRY|query",
		"12:00:00.030|METHOD_EXIT|query",
		"12:00:00.040|METHOD_ENTRY|query",
		"12:00:00.050|METHOD_EXIT|query",
		"12:00:00.100|METHOD_EXIT|run",
	)

	stats := Stats(f)
	require.Len(t, stats, 2)

	assert.Equal(t, "run", stats[0].Name)
	assert.Equal(t, 1, stats[0].Count)
	assert.InDelta(t, 100.0, stats[0].Total, 1e-9)
	assert.InDelta(t, 70.0, stats[0].Self, 1e-9)

	assert.Equal(t, "query", stats[1].Name)
	assert.Equal(t, 2, stats[1].Count)
	assert.InDelta(t, 30.0, stats[1].Total, 1e-9)
	assert.InDelta(t, 20.0, stats[1].Max, 1e-9)
}
