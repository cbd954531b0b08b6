package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/steveyegge/strata/internal/tracker"
)

const trackerScopeName = "github.com/steveyegge/strata/tracker"

// InstrumentedTracker wraps tracker.Client with OTel tracing and metrics.
// Every call gets a span and is counted in strata.tracker.* metrics.
type InstrumentedTracker struct {
	inner  tracker.Client
	tracer trace.Tracer
	ops    metric.Int64Counter
	dur    metric.Float64Histogram
	errs   metric.Int64Counter
}

// WrapTracker returns c decorated with OTel instrumentation.
// When telemetry is disabled, c is returned as-is.
func WrapTracker(c tracker.Client) tracker.Client {
	if !Enabled() || c == nil {
		return c
	}
	return newInstrumentedTracker(c, Meter(trackerScopeName), Tracer(trackerScopeName))
}

func newInstrumentedTracker(c tracker.Client, m metric.Meter, tr trace.Tracer) *InstrumentedTracker {
	ops, _ := m.Int64Counter("strata.tracker.operations",
		metric.WithDescription("Total tracker API operations"),
	)
	dur, _ := m.Float64Histogram("strata.tracker.operation.duration",
		metric.WithDescription("Tracker operation duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	errs, _ := m.Int64Counter("strata.tracker.errors",
		metric.WithDescription("Total tracker operation errors"),
	)
	return &InstrumentedTracker{inner: c, tracer: tr, ops: ops, dur: dur, errs: errs}
}

func (t *InstrumentedTracker) op(ctx context.Context, name, issueID string) (context.Context, trace.Span, time.Time, []attribute.KeyValue) {
	attrs := []attribute.KeyValue{
		attribute.String("strata.tracker", t.inner.Name()),
		attribute.String("strata.tracker.operation", name),
	}
	ctx, span := t.tracer.Start(ctx, "tracker."+name,
		trace.WithAttributes(append(attrs, attribute.String("strata.issue.id", issueID))...),
		trace.WithSpanKind(trace.SpanKindClient),
	)
	t.ops.Add(ctx, 1, metric.WithAttributes(attrs...))
	return ctx, span, time.Now(), attrs
}

func (t *InstrumentedTracker) done(ctx context.Context, span trace.Span, start time.Time, err error, attrs []attribute.KeyValue) {
	ms := float64(time.Since(start).Milliseconds())
	t.dur.Record(ctx, ms, metric.WithAttributes(attrs...))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		t.errs.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
	span.End()
}

func (t *InstrumentedTracker) Name() string { return t.inner.Name() }

func (t *InstrumentedTracker) FetchIssueState(ctx context.Context, issueID string) (*tracker.IssueState, error) {
	ctx, span, start, attrs := t.op(ctx, "FetchIssueState", issueID)
	v, err := t.inner.FetchIssueState(ctx, issueID)
	t.done(ctx, span, start, err, attrs)
	return v, err
}

func (t *InstrumentedTracker) PostComment(ctx context.Context, issueID, text string) error {
	ctx, span, start, attrs := t.op(ctx, "PostComment", issueID)
	err := t.inner.PostComment(ctx, issueID, text)
	t.done(ctx, span, start, err, attrs)
	return err
}

func (t *InstrumentedTracker) UpdateBody(ctx context.Context, issueID, body string) error {
	ctx, span, start, attrs := t.op(ctx, "UpdateBody", issueID)
	err := t.inner.UpdateBody(ctx, issueID, body)
	t.done(ctx, span, start, err, attrs)
	return err
}

func (t *InstrumentedTracker) UpdateStatus(ctx context.Context, issueID, status string) error {
	ctx, span, start, attrs := t.op(ctx, "UpdateStatus", issueID)
	err := t.inner.UpdateStatus(ctx, issueID, status)
	t.done(ctx, span, start, err, attrs)
	return err
}
