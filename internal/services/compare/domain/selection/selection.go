// Package selection tracks the plans a client has flagged for side-by-side
// comparison.
//
// The selection is an ordered set keyed by plan ID: adding a present plan is
// a no-op and insertion order is kept for stable rendering. Plans from
// different categories may be compared together. The selection moves through
// three states by size:
//
//	Empty (0) -> Insufficient (1) -> Ready (>= 2)
//
// Readiness is the only gate for the comparison view.
package selection

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/louisbranch/planmatch/internal/platform/logging"
	"github.com/louisbranch/planmatch/internal/platform/timeouts"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"go.uber.org/zap"
)

// State is the comparison session state derived from the selection size.
type State string

const (
	StateEmpty        State = "empty"
	StateInsufficient State = "insufficient"
	StateReady        State = "ready"
)

// CrossCategoryLabel marks a selection spanning more than one category.
const CrossCategoryLabel = "cross-category"

// KeySelectedPlans is the client setting key holding the persisted selection.
const KeySelectedPlans = "planmatch.selectedPlans"

// MinComparable is the selection size at which comparison becomes available.
const MinComparable = 2

// StateFor returns the state for a selection of n plans.
func StateFor(n int) State {
	switch {
	case n <= 0:
		return StateEmpty
	case n < MinComparable:
		return StateInsufficient
	default:
		return StateReady
	}
}

// Storage is the durable client storage the selection is persisted to.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Change describes one selection mutation.
type Change struct {
	Previous State
	Current  State
	Plans    []plan.Plan
}

// ReadyChanged reports whether the mutation moved into or out of Ready.
func (c Change) ReadyChanged() bool {
	return (c.Previous == StateReady) != (c.Current == StateReady)
}

// Store owns one client's comparison selection. All mutations go through its
// methods; subscribers are called synchronously before the mutating call
// returns.
type Store struct {
	mu      sync.RWMutex
	plans   []plan.Plan
	storage Storage
	logger  *zap.Logger

	subscribers      []subscriber[Change]
	readySubscribers []subscriber[bool]
	nextSubID        int
}

// NewStore returns an empty selection. When storage is nil the selection
// lives only for the session.
func NewStore(storage Storage, logger *zap.Logger) *Store {
	return &Store{
		storage:          storage,
		logger:           logging.OrNop(logger),
	}
}

// AddPlan appends p unless a plan with the same ID is already selected.
func (s *Store) AddPlan(ctx context.Context, p plan.Plan) {
	s.mutate(ctx, func(plans []plan.Plan) ([]plan.Plan, bool) {
		if indexOf(plans, p.ID) >= 0 {
			return plans, false
		}
		return append(plans, p), true
	})
}

// RemovePlan removes the plan with planID if present.
func (s *Store) RemovePlan(ctx context.Context, planID string) {
	s.mutate(ctx, func(plans []plan.Plan) ([]plan.Plan, bool) {
		idx := indexOf(plans, planID)
		if idx < 0 {
			return plans, false
		}
		return append(plans[:idx:idx], plans[idx+1:]...), true
	})
}

// TogglePlan removes p when selected and adds it otherwise.
func (s *Store) TogglePlan(ctx context.Context, p plan.Plan) {
	s.mutate(ctx, func(plans []plan.Plan) ([]plan.Plan, bool) {
		if idx := indexOf(plans, p.ID); idx >= 0 {
			return append(plans[:idx:idx], plans[idx+1:]...), true
		}
		return append(plans, p), true
	})
}

// ClearSelection empties the selection.
func (s *Store) ClearSelection(ctx context.Context) {
	s.mutate(ctx, func(plans []plan.Plan) ([]plan.Plan, bool) {
		return nil, len(plans) > 0
	})
}

// SelectedPlans returns a copy of the selection in insertion order.
func (s *Store) SelectedPlans() []plan.Plan {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clonePlans(s.plans)
}

// SelectedIDs returns the selected plan IDs in insertion order.
func (s *Store) SelectedIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, len(s.plans))
	for i, p := range s.plans {
		ids[i] = p.ID
	}
	return ids
}

// Contains reports whether planID is selected.
func (s *Store) Contains(planID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return indexOf(s.plans, planID) >= 0
}

// Len returns the number of selected plans.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.plans)
}

// State returns the current comparison state.
func (s *Store) State() State {
	return StateFor(s.Len())
}

// ComparisonReady reports whether at least two plans are selected. Plans of
// the same category are comparable.
func (s *Store) ComparisonReady() bool {
	return s.Len() >= MinComparable
}

// UniqueCategoryCount returns the number of distinct selected categories.
func (s *Store) UniqueCategoryCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(plan.UniqueCategories(s.plans))
}

// UniqueCategoryLabel returns CrossCategoryLabel when the selection spans more
// than one category. It is a display hint, not a gate.
func (s *Store) UniqueCategoryLabel() (string, bool) {
	if s.UniqueCategoryCount() > 1 {
		return CrossCategoryLabel, true
	}
	return "", false
}

// Subscribe registers fn for every selection change. Subscribers run in
// registration order.
func (s *Store) Subscribe(fn func(Change)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers = append(s.subscribers, subscriber[Change]{id: id, fn: fn})
	s.mu.Unlock()
	return s.unsubscriber(func() { s.subscribers = removeSubscriber(s.subscribers, id) })
}

// OnReadyChange registers fn for transitions into (true) and out of (false)
// the Ready state.
func (s *Store) OnReadyChange(fn func(ready bool)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.readySubscribers = append(s.readySubscribers, subscriber[bool]{id: id, fn: fn})
	s.mu.Unlock()
	return s.unsubscriber(func() { s.readySubscribers = removeSubscriber(s.readySubscribers, id) })
}

// Restore replaces the selection with the persisted one. Invalid records and
// repeated IDs are dropped so the restored selection keeps the store's
// invariants. It returns the number of restored plans.
func (s *Store) Restore(ctx context.Context) int {
	if s.storage == nil {
		return 0
	}
	raw, found, err := s.storage.Get(ctx, KeySelectedPlans)
	if err != nil {
		s.logger.Warn("read persisted selection", zap.Error(err))
		return 0
	}
	if !found || raw == "" {
		return 0
	}
	var stored []plan.Plan
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn("decode persisted selection", zap.Error(err))
		return 0
	}

	restored := make([]plan.Plan, 0, len(stored))
	for _, p := range stored {
		p = plan.Normalize(p)
		if err := plan.Validate(p); err != nil {
			s.logger.Warn("drop persisted plan", zap.String("plan_id", p.ID), zap.Error(err))
			continue
		}
		if indexOf(restored, p.ID) >= 0 {
			continue
		}
		restored = append(restored, p)
	}

	s.apply(ctx, func(current []plan.Plan) ([]plan.Plan, bool) {
		return restored, len(current) > 0 || len(restored) > 0
	}, false)
	return len(restored)
}

func (s *Store) mutate(ctx context.Context, fn func([]plan.Plan) ([]plan.Plan, bool)) {
	s.apply(ctx, fn, true)
}

func (s *Store) apply(ctx context.Context, fn func([]plan.Plan) ([]plan.Plan, bool), persist bool) {
	s.mu.Lock()
	previous := StateFor(len(s.plans))
	next, changed := fn(s.plans)
	if !changed {
		s.mu.Unlock()
		return
	}
	s.plans = next
	snapshot := clonePlans(s.plans)
	subscribers := slices.Clone(s.subscribers)
	readySubscribers := slices.Clone(s.readySubscribers)
	s.mu.Unlock()

	if persist {
		s.persist(ctx, snapshot)
	}

	change := Change{Previous: previous, Current: StateFor(len(snapshot)), Plans: snapshot}
	for _, sub := range subscribers {
		sub.fn(change)
	}
	if change.ReadyChanged() {
		ready := change.Current == StateReady
		for _, sub := range readySubscribers {
			sub.fn(ready)
		}
	}
}

// persist is best-effort: a failed write never rolls back the mutation.
func (s *Store) persist(ctx context.Context, plans []plan.Plan) {
	if s.storage == nil {
		return
	}
	if plans == nil {
		plans = []plan.Plan{}
	}
	payload, err := json.Marshal(plans)
	if err != nil {
		s.logger.Warn("encode selection", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.SettingsWrite)
	defer cancel()
	if err := s.storage.Set(ctx, KeySelectedPlans, string(payload)); err != nil {
		s.logger.Warn("persist selection", zap.Error(err))
	}
}

func (s *Store) unsubscriber(remove func()) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			remove()
			s.mu.Unlock()
		})
	}
}

// subscriber is kept in registration order.
type subscriber[T any] struct {
	id int
	fn func(T)
}

func removeSubscriber[T any](subs []subscriber[T], id int) []subscriber[T] {
	return slices.DeleteFunc(subs, func(sub subscriber[T]) bool { return sub.id == id })
}

func indexOf(plans []plan.Plan, planID string) int {
	for i, p := range plans {
		if p.ID == planID {
			return i
		}
	}
	return -1
}

func clonePlans(plans []plan.Plan) []plan.Plan {
	if len(plans) == 0 {
		return []plan.Plan{}
	}
	out := make([]plan.Plan, len(plans))
	copy(out, plans)
	return out
}
