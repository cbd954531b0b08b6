package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/steveyegge/strata/internal/docstore"
	"github.com/steveyegge/strata/internal/tracker/trackertest"
)

func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: unexpected data type %T", name, m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestWrapTrackerDisabled(t *testing.T) {
	t.Setenv("STRATA_OTEL_ENABLED", "")
	fake := trackertest.New()
	if got := WrapTracker(fake); got != fake {
		t.Errorf("WrapTracker returned %T, want the original client", got)
	}
	mem := docstore.NewMemory(nil)
	if got := WrapStore(mem); got != mem {
		t.Errorf("WrapStore returned %T, want the original store", got)
	}
}

func TestInstrumentedTracker(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))

	fake := trackertest.New()
	fake.SetIssue("42", "- [x] AC-US1-01: Login", "open")
	fake.CommentErr = errors.New("boom")

	it := newInstrumentedTracker(fake, mp.Meter("test"), tp.Tracer("test"))
	ctx := context.Background()

	if _, err := it.FetchIssueState(ctx, "42"); err != nil {
		t.Fatalf("FetchIssueState: %v", err)
	}
	if err := it.PostComment(ctx, "42", "hi"); err == nil {
		t.Fatal("PostComment: expected injected error")
	}

	if got := counterTotal(t, reader, "strata.tracker.operations"); got != 2 {
		t.Errorf("operations = %d, want 2", got)
	}
	if got := counterTotal(t, reader, "strata.tracker.errors"); got != 1 {
		t.Errorf("errors = %d, want 1", got)
	}

	ended := spans.Ended()
	if len(ended) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(ended))
	}
	if ended[0].Name() != "tracker.FetchIssueState" {
		t.Errorf("span[0] = %q", ended[0].Name())
	}
	if ended[1].Status().Code != codes.Error {
		t.Errorf("span[1] status = %v, want Error", ended[1].Status().Code)
	}
}

func TestInstrumentedStore(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	s := newInstrumentedStore(docstore.NewMemory(map[string]string{"a.md": "hello"}), mp.Meter("test"))
	if _, err := s.ReadText("a.md"); err != nil {
		t.Fatal(err)
	}
	if err := s.WriteText("b.md", "abc"); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("b.md") {
		t.Error("Exists(b.md) = false after write")
	}

	if got := counterTotal(t, reader, "strata.docstore.operations"); got != 2 {
		t.Errorf("operations = %d, want 2", got)
	}
	if got := counterTotal(t, reader, "strata.docstore.bytes"); got != 8 {
		t.Errorf("bytes = %d, want 8", got)
	}
}

func TestInitDisabledIsNoop(t *testing.T) {
	t.Setenv("STRATA_OTEL_ENABLED", "false")
	if err := Init(context.Background(), "strata", "test"); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Shutdown(context.Background())
}
