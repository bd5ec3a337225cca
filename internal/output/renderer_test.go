package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
	"github.com/SteelMorgan/apex-log-checker/internal/replay"
	"github.com/SteelMorgan/apex-log-checker/internal/trace"
)

const testLog = `12:00:00.000 (100)|CODE_UNIT_STARTED|[EXTERNAL]|execute_anonymous_apex
12:00:00.010 (200)|METHOD_ENTRY|[3]|01p|Outer.run()
12:00:00.020 (300)|SOQL_EXECUTE_BEGIN|[4]|Aggregations:0|SELECT Id FROM Account WHERE Name = 'Acme'
12:00:00.030 (400)|SOQL_EXECUTE_END|[4]|Rows:2
12:00:00.040 (500)|VARIABLE_ASSIGNMENT|[5]|count|2
12:00:00.050 (600)|METHOD_EXIT|[3]|01p|Outer.run()
12:00:00.060 (700)|CUMULATIVE_LIMIT_USAGE
12:00:00.060 (700)|LIMIT_USAGE_FOR_NS|(default)|
  Number of SOQL queries: 1 out of 100
  Number of DML statements: 0 out of 150
12:00:00.060 (700)|CUMULATIVE_LIMIT_USAGE_END
12:00:00.070 (800)|CODE_UNIT_FINISHED|execute_anonymous_apex`

func TestTextRenderer_Lines(t *testing.T) {
	var buf bytes.Buffer
	log := apexlog.Parse(testLog)

	require.NoError(t, NewTextRenderer(&buf).Lines(log.Lines))

	out := buf.String()
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.Len(t, lines, len(log.Lines))
	assert.Contains(t, lines[1], "METHOD_ENTRY")
	assert.Contains(t, lines[1], "12:00:00.010")
	assert.Contains(t, lines[2], "(2 rows)")
	assert.Contains(t, lines[8], "SOQL queries")
}

func TestTextRenderer_Tree(t *testing.T) {
	tests := []struct {
		name   string
		log    string
		checks func(t *testing.T, out string)
	}{
		{
			name: "nested spans are indented",
			log:  testLog,
			checks: func(t *testing.T, out string) {
				assert.Contains(t, out, "Timeline")
				assert.Contains(t, out, "execute_anonymous_apex")
				assert.Contains(t, out, "  ")
				assert.Contains(t, out, "40.000 ms")
				assert.NotContains(t, out, "discrepancies")
			},
		},
		{
			name: "discrepancies are listed",
			log: "12:00:00.000|METHOD_ENTRY|[1]|01p|A.run()\n" +
				"12:00:00.010|METHOD_EXIT|[1]|01p|B.run()\n",
			checks: func(t *testing.T, out string) {
				assert.Contains(t, out, "1 discrepancies")
				assert.Contains(t, out, "key_mismatch")
			},
		},
		{
			name: "empty forest",
			log:  "not a log",
			checks: func(t *testing.T, out string) {
				assert.Contains(t, out, "no complete spans")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			forest := trace.Build(apexlog.Parse(tt.log).Lines)
			require.NoError(t, NewTextRenderer(&buf).Tree(forest))
			tt.checks(t, buf.String())
		})
	}
}

func TestTextRenderer_LimitsAndSOQL(t *testing.T) {
	var buf bytes.Buffer
	log := apexlog.Parse(testLog)
	r := NewTextRenderer(&buf)

	require.NoError(t, r.Limits(log.Limits()))
	require.NoError(t, r.SOQL(apexlog.SummarizeSOQL(log.Lines)))
	require.NoError(t, r.Stats(trace.Stats(trace.Build(log.Lines))))

	out := buf.String()
	assert.Contains(t, out, "(default)")
	assert.Contains(t, out, "1/100")
	assert.Contains(t, out, "0/150")
	assert.Contains(t, out, "Name = ?")
	assert.Contains(t, out, "Outer.run()")

	buf.Reset()
	require.NoError(t, r.Limits(nil))
	require.NoError(t, r.SOQL(nil))
	assert.Contains(t, buf.String(), "No limit usage reported")
	assert.Contains(t, buf.String(), "no SOQL queries")
}

func TestTextRenderer_Frame(t *testing.T) {
	var buf bytes.Buffer
	log := apexlog.Parse(testLog)
	state, jump, err := replay.Seek(log.Lines, 5)
	require.NoError(t, err)

	frame := replay.Frame{State: state, Jump: jump, Total: len(log.Lines)}
	require.NoError(t, NewTextRenderer(&buf).Frame(frame, &log.Lines[4]))

	out := buf.String()
	assert.Contains(t, out, "cursor 5/12")
	assert.Contains(t, out, "Outer.run()")
	assert.Contains(t, out, "count = 2")
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	log := apexlog.Parse(testLog)
	r := New("json", &buf)

	require.NoError(t, r.Lines(log.Lines[:2]))
	dec := json.NewDecoder(&buf)

	var got domain.ClassifiedLine
	require.NoError(t, dec.Decode(&got))
	assert.Equal(t, domain.KindCodeUnitStarted, got.Kind)
	require.NoError(t, dec.Decode(&got))
	assert.Equal(t, domain.KindMethodEntry, got.Kind)
	assert.Equal(t, "Outer.run()", got.Key)

	buf.Reset()
	state, _, err := replay.Seek(log.Lines, 2)
	require.NoError(t, err)
	require.NoError(t, r.Frame(replay.Frame{State: state, Total: len(log.Lines)}, nil))

	var frame struct {
		State domain.ReplayState `json:"state"`
		Total int                `json:"total"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &frame))
	assert.Equal(t, 2, frame.State.Cursor)
	assert.Equal(t, 12, frame.Total)
	assert.Len(t, frame.State.CallStack, 2)
}

func TestNew(t *testing.T) {
	assert.IsType(t, &JSONRenderer{}, New("JSON", &bytes.Buffer{}))
	assert.IsType(t, &TextRenderer{}, New("text", &bytes.Buffer{}))
	assert.IsType(t, &TextRenderer{}, New("", &bytes.Buffer{}))
}
