package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/planmatch/internal/services/compare/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeAnalyticsStore struct {
	mu      sync.Mutex
	events  []storage.AnalyticsEvent
	err     error
	release chan struct{}
}

func (s *fakeAnalyticsStore) AppendAnalyticsEvent(ctx context.Context, evt storage.AnalyticsEvent) error {
	if s.release != nil {
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
	return nil
}

func (s *fakeAnalyticsStore) ListAnalyticsEvents(_ context.Context, planID string) ([]storage.AnalyticsEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []storage.AnalyticsEvent
	for _, evt := range s.events {
		if evt.PlanID == planID {
			out = append(out, evt)
		}
	}
	return out, nil
}

func TestRecordPersistsEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &fakeAnalyticsStore{}
	sink := NewSink(store, nil)
	fixed := time.Date(2026, time.April, 2, 9, 0, 0, 0, time.UTC)
	sink.clock = func() time.Time { return fixed }

	sink.Record(context.Background(), KindView, " plan-1 ", "session:s1")
	sink.RecordAll(context.Background(), KindComparison, []string{"plan-1", "plan-2"}, "session:s1")
	sink.Record(context.Background(), KindView, "", "session:s1")
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	events, _ := store.ListAnalyticsEvents(context.Background(), "plan-1")
	if len(events) != 2 {
		t.Fatalf("plan-1 events = %d, want 2", len(events))
	}
	kinds := map[string]bool{}
	for _, evt := range events {
		kinds[evt.Kind] = true
		if !evt.OccurredAt.Equal(fixed) {
			t.Fatalf("occurred_at = %v, want %v", evt.OccurredAt, fixed)
		}
		if evt.Scope != "session:s1" {
			t.Fatalf("scope = %q, want session:s1", evt.Scope)
		}
	}
	if !kinds["view"] || !kinds["comparison"] {
		t.Fatalf("kinds = %v, want view and comparison", kinds)
	}
}

func TestRecordSurvivesCanceledRequest(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &fakeAnalyticsStore{}
	sink := NewSink(store, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sink.Record(ctx, KindConversion, "plan-1", "user:u1")
	cancel()
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	events, _ := store.ListAnalyticsEvents(context.Background(), "plan-1")
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
}

func TestRecordLogsAndSwallowsFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	core, logs := observer.New(zapcore.WarnLevel)
	sink := NewSink(&fakeAnalyticsStore{err: errors.New("disk full")}, zap.New(core))

	sink.Record(context.Background(), KindView, "plan-1", "user:u1")
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := logs.FilterMessage("record analytics event").Len(); got != 1 {
		t.Fatalf("warn logs = %d, want 1", got)
	}
}

func TestRecordTimesOut(t *testing.T) {
	defer goleak.VerifyNone(t)

	core, logs := observer.New(zapcore.WarnLevel)
	store := &fakeAnalyticsStore{release: make(chan struct{})}
	sink := NewSink(store, zap.New(core))
	sink.timeout = 10 * time.Millisecond

	sink.Record(context.Background(), KindView, "plan-1", "user:u1")
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	entries := logs.FilterMessage("record analytics event").All()
	if len(entries) != 1 {
		t.Fatalf("warn logs = %d, want 1", len(entries))
	}
	if errVal, ok := entries[0].ContextMap()["error"].(string); !ok || errVal != context.DeadlineExceeded.Error() {
		t.Fatalf("error field = %v, want deadline exceeded", entries[0].ContextMap()["error"])
	}
}

func TestCloseWaitsUntilContextDone(t *testing.T) {
	store := &fakeAnalyticsStore{release: make(chan struct{})}
	sink := NewSink(store, nil)
	sink.timeout = time.Minute

	sink.Record(context.Background(), KindView, "plan-1", "user:u1")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := sink.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("close err = %v, want deadline exceeded", err)
	}

	close(store.release)
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("second close: %v", err)
	}
	goleak.VerifyNone(t)
}

func TestRecordAfterCloseIsDropped(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &fakeAnalyticsStore{}
	sink := NewSink(store, nil)
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}
	sink.Record(context.Background(), KindView, "plan-1", "user:u1")
	if events, _ := store.ListAnalyticsEvents(context.Background(), "plan-1"); len(events) != 0 {
		t.Fatalf("events = %d, want 0", len(events))
	}
}

func TestRecordAddsSpanEvent(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	ctx, span := provider.Tracer("test").Start(context.Background(), "request")
	sink := NewSink(nil, nil)
	sink.Record(ctx, KindComparison, "plan-9", "user:u1")
	span.End()

	ended := recorder.Ended()
	if len(ended) != 1 {
		t.Fatalf("ended spans = %d, want 1", len(ended))
	}
	events := ended[0].Events()
	if len(events) != 1 || events[0].Name != "analytics.comparison" {
		t.Fatalf("span events = %+v, want analytics.comparison", events)
	}
}
