package export

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
	"github.com/SteelMorgan/apex-log-checker/internal/observability"
	tracepkg "github.com/SteelMorgan/apex-log-checker/internal/trace"
)

const instrumentationName = "apex-log-checker/export"

// Span attribute keys
const (
	AttrLogID     = attribute.Key("apex.log_id")
	AttrCategory  = attribute.Key("apex.category")
	AttrDepth     = attribute.Key("apex.depth")
	AttrStartLine = attribute.Key("apex.line")
	AttrEndLine   = attribute.Key("apex.end_line")
	AttrSelfMs    = attribute.Key("apex.self_ms")
)

// SpanExporter replays a reconstructed call tree as OpenTelemetry spans with
// the log's own timestamps
type SpanExporter struct {
	tracer trace.Tracer
}

// NewSpanExporter creates an exporter on the given provider
func NewSpanExporter(tp trace.TracerProvider) *SpanExporter {
	return &SpanExporter{tracer: tp.Tracer(instrumentationName)}
}

// Export emits one root span per log covering the forest bounds, with every
// TraceSpan below it. day anchors the log's clock times.
// Returns the number of spans emitted, the root included.
func (e *SpanExporter) Export(ctx context.Context, logID string, day time.Time, f *tracepkg.Forest) (int, error) {
	if f == nil || f.Empty() {
		return 0, fmt.Errorf("log %s has no complete spans to export", logID)
	}

	ctx, root := e.tracer.Start(ctx, "apex log "+logID,
		trace.WithTimestamp(f.TimeStart.Time(day)),
		trace.WithAttributes(
			AttrLogID.String(logID),
			attribute.Int("apex.discrepancies", len(f.Discrepancies)),
		),
	)

	count := 1
	for _, s := range f.Roots {
		count += e.emit(ctx, logID, day, s)
	}

	root.End(trace.WithTimestamp(f.TimeEnd.Time(day)))
	return count, nil
}

func (e *SpanExporter) emit(ctx context.Context, logID string, day time.Time, s *domain.TraceSpan) int {
	ctx, span := e.tracer.Start(ctx, s.Name,
		trace.WithTimestamp(s.Start.Time(day)),
		trace.WithAttributes(
			AttrLogID.String(logID),
			AttrCategory.String(string(s.Category)),
			AttrDepth.Int(s.Depth),
			AttrStartLine.Int(s.StartLine),
			AttrEndLine.Int(s.EndLine),
			AttrSelfMs.Float64(s.SelfDuration()),
		),
	)

	count := 1
	for _, c := range s.Children {
		count += e.emit(ctx, logID, day, c)
	}

	span.End(trace.WithTimestamp(s.End.Time(day)))
	return count
}

// NewOTLPProvider builds a provider that ships exported spans to an OTLP
// collector. Shutdown flushes them.
func NewOTLPProvider(ctx context.Context, cfg observability.TracerConfig) (*sdktrace.TracerProvider, error) {
	res, err := observability.NewResource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	exporter, err := observability.NewExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithMaxExportBatchSize(512)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	), nil
}
