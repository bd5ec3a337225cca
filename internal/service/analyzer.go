package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
	"github.com/SteelMorgan/apex-log-checker/internal/observability"
	"github.com/SteelMorgan/apex-log-checker/internal/replay"
	"github.com/SteelMorgan/apex-log-checker/internal/trace"
	"github.com/SteelMorgan/apex-log-checker/internal/writer"
)

var logNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/SteelMorgan/apex-log-checker/log"))

// LogID derives a stable id from the raw log content
func LogID(text string) string {
	return uuid.NewSHA1(logNamespace, []byte(text)).String()
}

// Analysis holds every view of one log
type Analysis struct {
	ID     string
	Log    *apexlog.Log
	Forest *trace.Forest
}

// Analyzer runs the classifier and the trace builder and hands results to an
// optional sink
type Analyzer struct {
	classifier *apexlog.Classifier
	sink       writer.Sink
	now        func() time.Time
}

// AnalyzerOption configures an Analyzer
type AnalyzerOption func(*Analyzer)

// WithSink stores every analyzed log
func WithSink(sink writer.Sink) AnalyzerOption {
	return func(a *Analyzer) {
		a.sink = sink
	}
}

// WithClassifier replaces the standard marker vocabulary
func WithClassifier(c *apexlog.Classifier) AnalyzerOption {
	return func(a *Analyzer) {
		a.classifier = c
	}
}

// WithNow sets the clock used to pick the calendar day for exported rows
func WithNow(now func() time.Time) AnalyzerOption {
	return func(a *Analyzer) {
		a.now = now
	}
}

// NewAnalyzer creates an analyzer
func NewAnalyzer(opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		classifier: apexlog.NewClassifier(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Classify builds the flat view only
func (a *Analyzer) Classify(ctx context.Context, text string) *apexlog.Log {
	_, span := observability.StartSpan(ctx, "apexlog.classify")
	parsed := a.classifier.ParseLines(apexlog.SplitLines(text))
	span.SetAttributes(attribute.Int("lines", len(parsed.Lines)))
	observability.EndSpan(span, nil, "classified")

	log.Debug().
		Int("lines", len(parsed.Lines)).
		Int("limit_blocks", len(parsed.LimitBlocks)).
		Int("skipped_limit_rows", parsed.SkippedLimitRows).
		Msg("Log classified")
	return parsed
}

// Analyze builds the flat view and the span forest. Content problems never
// fail; the only errors come from the sink or a cancelled context.
func (a *Analyzer) Analyze(ctx context.Context, text string) (*Analysis, error) {
	ctx, span := observability.StartSpan(ctx, "apexlog.analyze")

	res := &Analysis{ID: LogID(text)}
	res.Log = a.Classify(ctx, text)
	res.Forest = a.buildTrace(ctx, res.Log.Lines)

	span.SetAttributes(
		attribute.String("log_id", res.ID),
		attribute.Int("spans", len(res.Forest.Spans())),
	)

	if err := ctx.Err(); err != nil {
		observability.EndSpan(span, err, "analyze cancelled")
		return nil, err
	}

	if a.sink != nil {
		rec := writer.LogRecord{ID: res.ID, Day: a.now(), Log: res.Log, Forest: res.Forest}
		if err := a.sink.WriteLog(ctx, rec); err != nil {
			err = fmt.Errorf("failed to store log %s: %w", res.ID, err)
			observability.EndSpan(span, err, "store failed")
			return nil, err
		}
	}

	observability.EndSpan(span, nil, "analyzed")
	return res, nil
}

func (a *Analyzer) buildTrace(ctx context.Context, lines []domain.ClassifiedLine) *trace.Forest {
	_, span := observability.StartSpan(ctx, "trace.build")
	forest := trace.Build(lines)
	span.SetAttributes(attribute.Int("discrepancies", len(forest.Discrepancies)))
	observability.EndSpan(span, nil, "built")

	log.Debug().
		Int("roots", len(forest.Roots)).
		Int("discrepancies", len(forest.Discrepancies)).
		Msg("Trace built")
	return forest
}

// Replay reconstructs the frame at cursor k for a classified stream.
// The returned line is the last applied one, nil at cursor 0.
func (a *Analyzer) Replay(ctx context.Context, lines []domain.ClassifiedLine, k int) (replay.Frame, *domain.ClassifiedLine, error) {
	_, span := observability.StartSpan(ctx, "replay.seek", attribute.Int("cursor", k))

	state, jump, err := replay.Seek(lines, k)
	if err != nil {
		observability.EndSpan(span, err, "seek failed")
		return replay.Frame{}, nil, err
	}
	observability.EndSpan(span, nil, "seek")

	frame := replay.Frame{State: state, Jump: jump, Total: len(lines)}
	if k == 0 {
		return frame, nil, nil
	}
	last := lines[k-1]
	return frame, &last, nil
}

// Close closes the sink, if any
func (a *Analyzer) Close() error {
	if a.sink == nil {
		return nil
	}
	return a.sink.Close()
}
