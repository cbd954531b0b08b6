package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/steveyegge/strata/internal/docstore"
)

const docstoreScopeName = "github.com/steveyegge/strata/docstore"

// InstrumentedStore counts document reads and writes.
type InstrumentedStore struct {
	inner docstore.Store
	ops   metric.Int64Counter
	bytes metric.Int64Counter
}

// WrapStore returns s decorated with OTel metrics, or s itself when
// telemetry is disabled.
func WrapStore(s docstore.Store) docstore.Store {
	if !Enabled() || s == nil {
		return s
	}
	return newInstrumentedStore(s, Meter(docstoreScopeName))
}

func newInstrumentedStore(s docstore.Store, m metric.Meter) *InstrumentedStore {
	ops, _ := m.Int64Counter("strata.docstore.operations",
		metric.WithDescription("Document reads and writes"),
	)
	bytes, _ := m.Int64Counter("strata.docstore.bytes",
		metric.WithDescription("Bytes read and written"),
		metric.WithUnit("By"),
	)
	return &InstrumentedStore{inner: s, ops: ops, bytes: bytes}
}

func (s *InstrumentedStore) record(op string, n int) {
	attrs := metric.WithAttributes(attribute.String("strata.docstore.operation", op))
	ctx := context.Background()
	s.ops.Add(ctx, 1, attrs)
	s.bytes.Add(ctx, int64(n), attrs)
}

func (s *InstrumentedStore) ReadText(path string) (string, error) {
	text, err := s.inner.ReadText(path)
	s.record("read", len(text))
	return text, err
}

func (s *InstrumentedStore) WriteText(path, text string) error {
	err := s.inner.WriteText(path, text)
	s.record("write", len(text))
	return err
}

func (s *InstrumentedStore) Exists(path string) bool {
	return s.inner.Exists(path)
}
