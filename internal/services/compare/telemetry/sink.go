// Package telemetry records plan analytics events without blocking the
// request that produced them.
package telemetry

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/planmatch/internal/platform/timeouts"
	"github.com/louisbranch/planmatch/internal/services/compare/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Kind names an analytics event.
type Kind string

const (
	KindView       Kind = "view"
	KindComparison Kind = "comparison"
	KindConversion Kind = "conversion"
)

// Sink persists analytics events in the background. Failures are logged and
// never reach the caller.
type Sink struct {
	store   storage.AnalyticsStore
	logger  *zap.Logger
	timeout time.Duration
	clock   func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewSink creates a sink. A nil store makes Record a span-only no-op.
func NewSink(store storage.AnalyticsStore, logger *zap.Logger) *Sink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sink{
		store:   store,
		logger:  logger,
		timeout: timeouts.AnalyticsRecord,
		clock:   time.Now,
	}
}

// Record notes one event for planID on the current span and stores it
// asynchronously. Records after Close are dropped.
func (s *Sink) Record(ctx context.Context, kind Kind, planID, scope string) {
	if s == nil {
		return
	}
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return
	}
	trace.SpanFromContext(ctx).AddEvent("analytics."+string(kind), trace.WithAttributes(
		attribute.String("plan.id", planID),
		attribute.String("client.scope", scope),
	))
	if s.store == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Debug("drop analytics event after close", zap.String("kind", string(kind)), zap.String("plan_id", planID))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	evt := storage.AnalyticsEvent{
		Kind:       string(kind),
		PlanID:     planID,
		Scope:      scope,
		OccurredAt: s.clock().UTC(),
	}
	recordCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()
		recordCtx, cancel := context.WithTimeout(recordCtx, s.timeout)
		defer cancel()
		if err := s.store.AppendAnalyticsEvent(recordCtx, evt); err != nil {
			s.logger.Warn("record analytics event",
				zap.String("kind", evt.Kind),
				zap.String("plan_id", evt.PlanID),
				zap.Error(err),
			)
		}
	}()
}

// RecordAll records the same kind of event for each plan ID.
func (s *Sink) RecordAll(ctx context.Context, kind Kind, planIDs []string, scope string) {
	for _, planID := range planIDs {
		s.Record(ctx, kind, planID, scope)
	}
}

// Close stops accepting events and waits for in-flight records or ctx.
func (s *Sink) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
