package apexlog

import (
	"strings"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// Classifier turns raw Apex debug log lines into classified lines.
// The marker table is fixed once the classifier is in use; register custom
// markers right after NewClassifier.
type Classifier struct {
	markers map[string]MarkerSpec
}

// NewClassifier creates a classifier with the standard marker vocabulary
func NewClassifier() *Classifier {
	return &Classifier{markers: defaultMarkers()}
}

// Register adds or replaces the parser for a marker token
func (c *Classifier) Register(marker string, spec MarkerSpec) {
	c.markers[marker] = spec
}

// Lookup returns the spec for a marker token
func (c *Classifier) Lookup(marker string) (MarkerSpec, bool) {
	spec, ok := c.markers[marker]
	return spec, ok
}

// ClassifyLine classifies lines[i]. It is a pure function of the line,
// except that a SOQL begin line reads lines[i+1] for its row count.
// It never fails: anything unrecognized is UNCLASSIFIED with the raw text.
func (c *Classifier) ClassifyLine(lines []string, i int) domain.ClassifiedLine {
	raw := lines[i]
	line := domain.ClassifiedLine{
		OriginalIndex: i,
		Kind:          domain.KindUnclassified,
		PrimaryText:   raw,
		Raw:           raw,
	}

	// Format: <timestamp>|<MARKER>|<field>|<field>...
	fields := strings.Split(raw, "|")
	if len(fields) < 2 {
		return line
	}

	instant, err := ParseTimestamp(fields[0])
	if err != nil {
		return line
	}
	line.Instant = instant
	line.Timed = true

	marker := strings.TrimSpace(fields[1])
	spec, ok := c.markers[marker]
	if !ok {
		return line
	}

	next := ""
	if i+1 < len(lines) {
		next = lines[i+1]
	}

	line.Kind = spec.Kind
	line.Marker = marker
	if spec.Parse == nil {
		line.PrimaryText = strings.Join(fields[2:], "|")
		return line
	}
	line.PrimaryText = ""
	spec.Parse(&line, fields[2:], next)
	return line
}

// Log is the flat, classified view of one raw log
type Log struct {
	Raw    []string                `json:"-"`
	Lines  []domain.ClassifiedLine `json:"lines"`
	Header *domain.LogHeader       `json:"header,omitempty"`
	// Index maps raw line content to the indices where it occurs
	Index map[string][]int `json:"-"`
	// LimitBlocks holds the index of every line carrying limit records
	LimitBlocks []int `json:"limit_blocks,omitempty"`
	// SkippedLimitRows counts malformed rows dropped inside limit blocks
	SkippedLimitRows int `json:"skipped_limit_rows,omitempty"`
}

// SplitLines splits log text into lines. A trailing newline terminates the
// last line rather than starting an empty one; CRLF endings are accepted.
func SplitLines(text string) []string {
	if text == "" {
		return nil
	}
	text = strings.TrimSuffix(text, "\n")
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// Parse classifies a whole log with the standard vocabulary
func Parse(text string) *Log {
	return NewClassifier().ParseLines(SplitLines(text))
}

// ParseLines classifies every line in one sequential pass. Limit usage
// blocks are aggregated along the way and their summary is attached to the
// CUMULATIVE_LIMIT_USAGE_END line. The output has exactly one entry per input
// line.
func (c *Classifier) ParseLines(lines []string) *Log {
	log := &Log{
		Raw:   lines,
		Lines: make([]domain.ClassifiedLine, len(lines)),
		Index: make(map[string][]int, len(lines)),
	}

	log.Header = findHeader(lines)

	agg := NewLimitAggregator()
	for i := range lines {
		line := c.ClassifyLine(lines, i)

		if log.Header != nil && i == log.Header.LineIndex {
			line.SecondaryDetail = describeHeader(log.Header, lines[i])
		}

		switch line.Marker {
		case MarkerCumulativeLimitUsage:
			agg.Begin()
		case MarkerLimitUsageForNS:
			agg.Namespace(line.Key)
		case MarkerCumulativeLimitEnd:
			if agg.Active() {
				log.SkippedLimitRows += agg.Skipped()
				line.Limits = agg.End()
				line.PrimaryText = LimitSummary(line.Limits)
				log.LimitBlocks = append(log.LimitBlocks, i)
			}
		default:
			// metric rows carry no timestamp
			if agg.Active() && !line.Timed && strings.TrimSpace(lines[i]) != "" {
				agg.Row(lines[i])
			}
		}

		log.Lines[i] = line
		log.Index[lines[i]] = append(log.Index[lines[i]], i)
	}
	return log
}

// Lookup returns the indices of lines whose raw content equals text
func (l *Log) Lookup(text string) []int {
	return l.Index[text]
}

// Limits returns all limit usage records in log order
func (l *Log) Limits() []domain.LimitUsageRecord {
	var out []domain.LimitUsageRecord
	for _, i := range l.LimitBlocks {
		out = append(out, l.Lines[i].Limits...)
	}
	return out
}
