package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
	"github.com/SteelMorgan/apex-log-checker/internal/replay"
	"github.com/SteelMorgan/apex-log-checker/internal/trace"
)

// Renderer writes the three log views to an output stream
type Renderer interface {
	Lines(lines []domain.ClassifiedLine) error
	Tree(f *trace.Forest) error
	Stats(stats []trace.SpanStat) error
	Limits(records []domain.LimitUsageRecord) error
	SOQL(groups []apexlog.SOQLGroup) error
	Frame(frame replay.Frame, line *domain.ClassifiedLine) error
}

// New returns the renderer for a format name: "json" or anything else for text
func New(format string, w io.Writer) Renderer {
	if strings.EqualFold(format, "json") {
		return NewJSONRenderer(w)
	}
	return NewTextRenderer(w)
}

// ---------------------------------------------------------------------------
// Text Renderer (colorized terminal output)
// ---------------------------------------------------------------------------

var (
	styleFaint   = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Faint(true)
	styleUnit    = lipgloss.NewStyle().Foreground(lipgloss.Color("141")).Bold(true) // purple
	styleMethod  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))             // cyan
	styleQuery   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))            // orange
	styleDebug   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))             // green
	styleLimits  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))            // yellow
	styleError   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true) // red bold
	styleVar     = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	styleHeading = lipgloss.NewStyle().Bold(true).Underline(true)
	styleCursor  = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Background(lipgloss.Color("25")).
			Bold(true) // white on blue
)

// kindWidth pads kind tags so text columns line up
const kindWidth = 19

// TextRenderer prints views to the terminal with kind-based colors
type TextRenderer struct {
	w io.Writer
}

// NewTextRenderer returns a Renderer that writes colorized text to w
func NewTextRenderer(w io.Writer) *TextRenderer {
	return &TextRenderer{w: w}
}

func (r *TextRenderer) Lines(lines []domain.ClassifiedLine) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(r.w, formatLine(l)); err != nil {
			return err
		}
	}
	return nil
}

func formatLine(l domain.ClassifiedLine) string {
	idx := styleFaint.Render(fmt.Sprintf("%5d", l.OriginalIndex))
	ts := styleFaint.Render(formatInstant(l))
	tag := styleKind(l.Kind).Render(fmt.Sprintf("%-*s", kindWidth, l.Kind.String()))

	text := l.PrimaryText
	if l.SecondaryDetail != "" {
		text += " " + styleFaint.Render(l.SecondaryDetail)
	}
	if l.RowCount != nil {
		text += styleFaint.Render(fmt.Sprintf(" (%d rows)", *l.RowCount))
	}
	return fmt.Sprintf("%s %s %s %s", idx, ts, tag, text)
}

func formatInstant(l domain.ClassifiedLine) string {
	if !l.Timed {
		return strings.Repeat(" ", 12)
	}
	ms := float64(l.Instant)
	h := int(ms / 3600000)
	m := int(ms/60000) % 60
	s := int(ms/1000) % 60
	frac := int(ms) % 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, frac)
}

func styleKind(k domain.EventKind) lipgloss.Style {
	switch k {
	case domain.KindCodeUnitStarted, domain.KindCodeUnitFinished,
		domain.KindExecutionStarted, domain.KindExecutionFinished:
		return styleUnit
	case domain.KindMethodEntry, domain.KindMethodExit,
		domain.KindConstructorEntry, domain.KindConstructorExit,
		domain.KindCalloutRequest, domain.KindCalloutResponse:
		return styleMethod
	case domain.KindSOQLBegin, domain.KindSOQLEnd, domain.KindDMLBegin, domain.KindDMLEnd:
		return styleQuery
	case domain.KindUserDebug, domain.KindCheckpoint:
		return styleDebug
	case domain.KindLimitUsageBlock, domain.KindValidationRule:
		return styleLimits
	case domain.KindExceptionThrown, domain.KindFatalError:
		return styleError
	case domain.KindVariableAssignment:
		return styleVar
	default:
		return styleFaint
	}
}

func (r *TextRenderer) Tree(f *trace.Forest) error {
	if f == nil || f.Empty() {
		_, err := fmt.Fprintln(r.w, styleFaint.Render("no complete spans"))
		return err
	}

	fmt.Fprintf(r.w, "%s %.3f ms\n", styleHeading.Render("Timeline"), float64(f.TimeEnd-f.TimeStart))
	var err error
	f.Walk(func(s *domain.TraceSpan) {
		if err != nil {
			return
		}
		indent := strings.Repeat("  ", s.Depth)
		_, err = fmt.Fprintf(r.w, "%s%s %s %s\n",
			indent,
			styleCategory(s.Category).Render(s.Name),
			fmt.Sprintf("%.3f ms", s.Duration()),
			styleFaint.Render(fmt.Sprintf("self %.3f ms, lines %d-%d", s.SelfDuration(), s.StartLine, s.EndLine)),
		)
	})
	if err != nil {
		return err
	}

	if len(f.Discrepancies) > 0 {
		fmt.Fprintln(r.w)
		fmt.Fprintln(r.w, styleLimits.Render(fmt.Sprintf("%d discrepancies", len(f.Discrepancies))))
		for _, d := range f.Discrepancies {
			if _, err := fmt.Fprintf(r.w, "  %s\n", d.String()); err != nil {
				return err
			}
		}
	}
	return nil
}

func styleCategory(c domain.SpanCategory) lipgloss.Style {
	switch c {
	case domain.CategoryTrigger, domain.CategoryFlow:
		return styleLimits
	case domain.CategoryCallout:
		return styleQuery
	case domain.CategoryCodeUnit:
		return styleUnit
	default:
		return styleMethod
	}
}

func (r *TextRenderer) Stats(stats []trace.SpanStat) error {
	fmt.Fprintf(r.w, "%s\n", styleHeading.Render("Span statistics"))
	for _, s := range stats {
		_, err := fmt.Fprintf(r.w, "%6d  %10.3f  %10.3f  %10.3f  %s\n",
			s.Count, s.Total, s.Self, s.Max, styleCategory(s.Category).Render(s.Name))
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *TextRenderer) Limits(records []domain.LimitUsageRecord) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(r.w, styleFaint.Render(apexlog.LimitSummary(nil)))
		return err
	}
	for _, rec := range records {
		fmt.Fprintln(r.w, styleHeading.Render(rec.Namespace))
		for _, name := range rec.Order {
			m := rec.Metrics[name]
			style := styleFaint
			switch {
			case m.Total > 0 && m.Used*10 >= m.Total*9:
				style = styleError
			case m.Used > 0:
				style = styleLimits
			}
			_, err := fmt.Fprintf(r.w, "  %-40s %s\n", name, style.Render(fmt.Sprintf("%d/%d", m.Used, m.Total)))
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *TextRenderer) SOQL(groups []apexlog.SOQLGroup) error {
	if len(groups) == 0 {
		_, err := fmt.Fprintln(r.w, styleFaint.Render("no SOQL queries"))
		return err
	}
	fmt.Fprintf(r.w, "%s\n", styleHeading.Render("SOQL"))
	for _, g := range groups {
		_, err := fmt.Fprintf(r.w, "%4dx %6d rows  line %-6d %s\n",
			g.Count, g.Rows, g.FirstLine, styleQuery.Render(g.Query))
		if err != nil {
			return err
		}
	}
	return nil
}

// Frame prints the replay position, the call stack innermost last and the
// variables in name order. line is the last applied line, if any.
func (r *TextRenderer) Frame(frame replay.Frame, line *domain.ClassifiedLine) error {
	fmt.Fprintln(r.w, styleCursor.Render(fmt.Sprintf(" cursor %d/%d ", frame.State.Cursor, frame.Total)))
	if line != nil {
		fmt.Fprintln(r.w, formatLine(*line))
	}
	if frame.Jump != nil {
		fmt.Fprintln(r.w, styleDebug.Render(fmt.Sprintf("-> source line %d", frame.Jump.SourceLine)))
	}

	fmt.Fprintln(r.w, styleHeading.Render("Call stack"))
	for i, f := range frame.State.CallStack {
		fmt.Fprintf(r.w, "%s%s\n", strings.Repeat("  ", i+1), styleMethod.Render(f))
	}

	fmt.Fprintln(r.w, styleHeading.Render("Variables"))
	for _, name := range sortedKeys(frame.State.Variables) {
		if _, err := fmt.Fprintf(r.w, "  %s = %s\n", name, styleVar.Render(frame.State.Variables[name])); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---------------------------------------------------------------------------
// JSON Renderer (structured output for piping)
// ---------------------------------------------------------------------------

// JSONRenderer prints each view as one JSON document per call
type JSONRenderer struct {
	enc *json.Encoder
}

// NewJSONRenderer returns a Renderer that writes JSON to w
func NewJSONRenderer(w io.Writer) *JSONRenderer {
	return &JSONRenderer{enc: json.NewEncoder(w)}
}

func (r *JSONRenderer) Lines(lines []domain.ClassifiedLine) error {
	for _, l := range lines {
		if err := r.enc.Encode(l); err != nil {
			return err
		}
	}
	return nil
}

func (r *JSONRenderer) Tree(f *trace.Forest) error {
	return r.enc.Encode(f)
}

func (r *JSONRenderer) Stats(stats []trace.SpanStat) error {
	return r.enc.Encode(stats)
}

func (r *JSONRenderer) Limits(records []domain.LimitUsageRecord) error {
	return r.enc.Encode(records)
}

func (r *JSONRenderer) SOQL(groups []apexlog.SOQLGroup) error {
	return r.enc.Encode(groups)
}

func (r *JSONRenderer) Frame(frame replay.Frame, line *domain.ClassifiedLine) error {
	return r.enc.Encode(struct {
		replay.Frame
		Line *domain.ClassifiedLine `json:"line,omitempty"`
	}{frame, line})
}
