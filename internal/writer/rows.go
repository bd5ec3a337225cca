package writer

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
	"github.com/SteelMorgan/apex-log-checker/internal/trace"
)

// ClickHouse DateTime64 valid range: 1925-01-01 to 2283-11-11
var (
	minClickHouseDateTime = time.Date(1925, 1, 1, 0, 0, 0, 0, time.UTC)
	maxClickHouseDateTime = time.Date(2283, 11, 11, 23, 59, 59, 999999999, time.UTC)
)

// ensureValidDateTime returns minClickHouseDateTime for zero or out of
// range values
func ensureValidDateTime(t time.Time) time.Time {
	if t.IsZero() || t.Before(minClickHouseDateTime) || t.After(maxClickHouseDateTime) {
		return minClickHouseDateTime
	}
	return t
}

// LineRow is one row of <db>.lines
type LineRow struct {
	LogID      string
	LineIndex  uint32
	InstantMs  float64
	EventTime  time.Time
	Timed      uint8
	Kind       string
	Marker     string
	Text       string
	Detail     string
	Structured uint8
	SourceLine uint32
	RowCount   *int32
	LineHash   string
	Raw        string
}

func (r LineRow) values() []interface{} {
	return []interface{}{
		r.LogID, r.LineIndex, r.InstantMs, r.EventTime, r.Timed, r.Kind, r.Marker,
		r.Text, r.Detail, r.Structured, r.SourceLine, r.RowCount, r.LineHash, r.Raw,
	}
}

// SpanRow is one row of <db>.spans
type SpanRow struct {
	LogID      string
	SpanID     string
	ParentID   string
	Name       string
	Category   string
	Depth      uint16
	StartMs    float64
	EndMs      float64
	DurationMs float64
	SelfMs     float64
	StartTime  time.Time
	EndTime    time.Time
	StartLine  uint32
	EndLine    uint32
}

func (r SpanRow) values() []interface{} {
	return []interface{}{
		r.LogID, r.SpanID, r.ParentID, r.Name, r.Category, r.Depth, r.StartMs, r.EndMs,
		r.DurationMs, r.SelfMs, r.StartTime, r.EndTime, r.StartLine, r.EndLine,
	}
}

// LimitRow is one metric of one namespace in <db>.limits
type LimitRow struct {
	LogID     string
	LineIndex uint32
	EventTime time.Time
	Namespace string
	Metric    string
	Used      uint32
	Total     uint32
	Seen      uint32
}

func (r LimitRow) values() []interface{} {
	return []interface{}{
		r.LogID, r.LineIndex, r.EventTime, r.Namespace, r.Metric, r.Used, r.Total, r.Seen,
	}
}

// BuildLineRows maps every classified line to a row
func BuildLineRows(logID string, day time.Time, lines []domain.ClassifiedLine) []LineRow {
	// untimed lines are stored at the start of the day
	midnight := ensureValidDateTime(domain.Instant(0).Time(day))

	rows := make([]LineRow, 0, len(lines))
	for _, l := range lines {
		row := LineRow{
			LogID:      logID,
			LineIndex:  uint32(l.OriginalIndex),
			InstantMs:  float64(l.Instant),
			EventTime:  midnight,
			Kind:       l.Kind.String(),
			Marker:     l.Marker,
			Text:       l.PrimaryText,
			Detail:     l.SecondaryDetail,
			SourceLine: uint32(l.SourceLine),
			LineHash:   lineHash(l.Raw),
			Raw:        l.Raw,
		}
		if l.Timed {
			row.Timed = 1
			row.EventTime = ensureValidDateTime(l.Instant.Time(day))
		}
		if l.IsStructuredPayload {
			row.Structured = 1
		}
		if l.RowCount != nil {
			n := int32(*l.RowCount)
			row.RowCount = &n
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildSpanRows flattens the forest, parents before children
func BuildSpanRows(logID string, day time.Time, f *trace.Forest) []SpanRow {
	var rows []SpanRow
	var walk func(parentID string, spans []*domain.TraceSpan)
	walk = func(parentID string, spans []*domain.TraceSpan) {
		for _, s := range spans {
			rows = append(rows, SpanRow{
				LogID:      logID,
				SpanID:     s.ID,
				ParentID:   parentID,
				Name:       s.Name,
				Category:   string(s.Category),
				Depth:      uint16(s.Depth),
				StartMs:    float64(s.Start),
				EndMs:      float64(s.End),
				DurationMs: s.Duration(),
				SelfMs:     s.SelfDuration(),
				StartTime:  ensureValidDateTime(s.Start.Time(day)),
				EndTime:    ensureValidDateTime(s.End.Time(day)),
				StartLine:  uint32(s.StartLine),
				EndLine:    uint32(s.EndLine),
			})
			walk(s.ID, s.Children)
		}
	}
	if f != nil {
		walk("", f.Roots)
	}
	return rows
}

// BuildLimitRows emits every collected metric, including zero usage
func BuildLimitRows(logID string, day time.Time, log *apexlog.Log) []LimitRow {
	var rows []LimitRow
	for _, i := range log.LimitBlocks {
		line := log.Lines[i]
		eventTime := ensureValidDateTime(domain.Instant(0).Time(day))
		if line.Timed {
			eventTime = ensureValidDateTime(line.Instant.Time(day))
		}
		for _, rec := range line.Limits {
			for _, metric := range rec.Order {
				m := rec.Metrics[metric]
				rows = append(rows, LimitRow{
					LogID:     logID,
					LineIndex: uint32(i),
					EventTime: eventTime,
					Namespace: rec.Namespace,
					Metric:    metric,
					Used:      uint32(m.Used),
					Total:     uint32(m.Total),
					Seen:      uint32(m.Seen),
				})
			}
		}
	}
	return rows
}

// lineHash identifies identical raw lines across logs
func lineHash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
