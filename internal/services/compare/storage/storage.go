// Package storage defines persistence contracts for the compare service.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// KVStore is durable client storage: string values keyed by client scope and key.
type KVStore interface {
	Get(ctx context.Context, scope, key string) (string, bool, error)
	Set(ctx context.Context, scope, key, value string) error
}

// ScopedKV binds a KVStore to one client scope.
type ScopedKV struct {
	store KVStore
	scope string
}

// NewScopedKV returns the settings view of store for scope.
func NewScopedKV(store KVStore, scope string) ScopedKV {
	return ScopedKV{store: store, scope: strings.TrimSpace(scope)}
}

// Scope returns the bound client scope.
func (s ScopedKV) Scope() string {
	return s.scope
}

// Get reads key from the bound scope.
func (s ScopedKV) Get(ctx context.Context, key string) (string, bool, error) {
	if s.store == nil {
		return "", false, errors.New("client storage is not configured")
	}
	return s.store.Get(ctx, s.scope, key)
}

// Set writes key in the bound scope.
func (s ScopedKV) Set(ctx context.Context, key, value string) error {
	if s.store == nil {
		return errors.New("client storage is not configured")
	}
	return s.store.Set(ctx, s.scope, key, value)
}

// UserScope returns the storage scope for an authenticated user.
func UserScope(userID string) string {
	return "user:" + strings.TrimSpace(userID)
}

// SessionScope returns the storage scope for an anonymous browser session.
func SessionScope(sessionID string) string {
	return "session:" + strings.TrimSpace(sessionID)
}

// PlanQuery selects one page of real catalog plans.
type PlanQuery struct {
	// Category restricts results when set.
	Category plan.Category
	// Where is an optional SQL condition over plan columns, with Args bound
	// positionally.
	Where     string
	Args      []any
	PageSize  int
	PageToken string
}

// PlanPage stores one page of plan records.
type PlanPage struct {
	Plans         []plan.Plan
	NextPageToken string
}

// PlanStore persists the real plan catalog.
type PlanStore interface {
	PutPlan(ctx context.Context, p plan.Plan) error
	GetPlan(ctx context.Context, planID string) (plan.Plan, error)
	ListPlans(ctx context.Context, query PlanQuery) (PlanPage, error)
}

// AnalyticsEvent is one recorded analytics event.
type AnalyticsEvent struct {
	Kind       string
	PlanID     string
	Scope      string
	OccurredAt time.Time
}

// AnalyticsStore persists analytics events.
type AnalyticsStore interface {
	AppendAnalyticsEvent(ctx context.Context, evt AnalyticsEvent) error
	ListAnalyticsEvents(ctx context.Context, planID string) ([]AnalyticsEvent, error)
}
