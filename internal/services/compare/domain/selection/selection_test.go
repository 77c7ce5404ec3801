package selection

import (
	"context"
	"errors"
	"math/rand/v2"
	"strconv"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/louisbranch/planmatch/internal/platform/timeouts"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"github.com/louisbranch/planmatch/internal/services/compare/storage"
	"github.com/louisbranch/planmatch/internal/services/compare/storage/memory"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testScope = "session:test"

func travel(id string) plan.Plan {
	return plan.Plan{ID: id, Category: plan.CategoryTravel, Source: plan.SourceReal}
}

func auto(id string) plan.Plan {
	return plan.Plan{ID: id, Category: plan.CategoryAuto, Source: plan.SourceReal}
}

func TestAddPlanIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)

	s.AddPlan(ctx, travel("1"))
	s.AddPlan(ctx, travel("1"))

	if got := s.SelectedIDs(); !cmp.Equal(got, []string{"1"}) {
		t.Fatalf("selected = %v, want [1]", got)
	}
	if s.State() != StateInsufficient {
		t.Fatalf("state = %q, want insufficient", s.State())
	}
}

func TestAddPlanKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	for _, id := range []string{"c", "a", "b"} {
		s.AddPlan(ctx, travel(id))
	}
	if diff := cmp.Diff([]string{"c", "a", "b"}, s.SelectedIDs()); diff != "" {
		t.Fatalf("selected ids mismatch (-want +got):\n%s", diff)
	}
}

func TestCrossCategoryScenario(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)

	s.AddPlan(ctx, travel("1"))
	s.AddPlan(ctx, auto("2"))

	if !s.ComparisonReady() {
		t.Fatal("expected comparison to be ready with two plans")
	}
	label, ok := s.UniqueCategoryLabel()
	if !ok || label != CrossCategoryLabel {
		t.Fatalf("label = %q, %v; want %q", label, ok, CrossCategoryLabel)
	}
	if s.UniqueCategoryCount() != 2 {
		t.Fatalf("unique categories = %d, want 2", s.UniqueCategoryCount())
	}

	s.RemovePlan(ctx, "2")

	if s.ComparisonReady() {
		t.Fatal("expected comparison not ready after removal")
	}
	if label, ok := s.UniqueCategoryLabel(); ok {
		t.Fatalf("expected no label, got %q", label)
	}
}

func TestSameCategoryComparisonIsReady(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	s.AddPlan(ctx, travel("1"))
	s.AddPlan(ctx, travel("2"))

	if !s.ComparisonReady() {
		t.Fatal("same-category comparison should be ready")
	}
	if _, ok := s.UniqueCategoryLabel(); ok {
		t.Fatal("single category selection must not carry the cross-category label")
	}
}

func TestRemovePlanMissingIsNoop(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	calls := 0
	s.Subscribe(func(Change) { calls++ })

	s.RemovePlan(ctx, "missing")
	s.AddPlan(ctx, travel("1"))
	s.RemovePlan(ctx, "missing")

	if calls != 1 {
		t.Fatalf("expected only the add to notify, got %d", calls)
	}
}

func TestClearSelectionEmptiesFromAnyState(t *testing.T) {
	ctx := context.Background()
	for n := 0; n <= 4; n++ {
		s := NewStore(nil, nil)
		for i := 0; i < n; i++ {
			s.AddPlan(ctx, travel(strconv.Itoa(i)))
		}
		s.ClearSelection(ctx)
		if got := s.SelectedPlans(); len(got) != 0 {
			t.Fatalf("n=%d: selection after clear = %v", n, got)
		}
		if s.State() != StateEmpty {
			t.Fatalf("n=%d: state = %q, want empty", n, s.State())
		}
	}
}

func TestTogglePlanIsAnInvolution(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	s.AddPlan(ctx, travel("1"))
	s.AddPlan(ctx, auto("2"))
	before := s.SelectedIDs()

	for _, p := range []plan.Plan{travel("3"), auto("2")} {
		s.TogglePlan(ctx, p)
		s.TogglePlan(ctx, p)
		if got := s.SelectedPlans(); len(got) != len(before) {
			t.Fatalf("toggle twice of %s changed size: %v", p.ID, got)
		}
	}
	// Toggling a present plan off and on moves it to the end.
	if diff := cmp.Diff([]string{"1", "2"}, s.SelectedIDs()); diff != "" {
		t.Fatalf("selected ids mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(before, []string{"1", "2"}); diff != "" {
		t.Fatalf("unexpected baseline (-want +got):\n%s", diff)
	}
}

func TestRandomSequencesKeepInvariants(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewPCG(7, 11))
	categories := plan.Categories

	for round := 0; round < 50; round++ {
		s := NewStore(memoryStorage(), nil)
		for step := 0; step < 200; step++ {
			p := plan.Plan{
				ID:       strconv.Itoa(rng.IntN(8)),
				Category: categories[rng.IntN(len(categories))],
				Source:   plan.SourceReal,
			}
			switch rng.IntN(4) {
			case 0:
				s.AddPlan(ctx, p)
			case 1:
				s.RemovePlan(ctx, p.ID)
			case 2:
				s.TogglePlan(ctx, p)
			default:
				if rng.IntN(10) == 0 {
					s.ClearSelection(ctx)
				}
			}

			ids := s.SelectedIDs()
			seen := make(map[string]struct{}, len(ids))
			for _, id := range ids {
				if _, dup := seen[id]; dup {
					t.Fatalf("round %d step %d: duplicate id %q in %v", round, step, id, ids)
				}
				seen[id] = struct{}{}
			}
			if s.ComparisonReady() != (len(ids) >= 2) {
				t.Fatalf("round %d step %d: ready=%v with %d plans", round, step, s.ComparisonReady(), len(ids))
			}
			if s.State() != StateFor(len(ids)) {
				t.Fatalf("round %d step %d: state %q with %d plans", round, step, s.State(), len(ids))
			}
		}
	}
}

func TestReadySubscribersFireOnlyOnTransitions(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	var transitions []bool
	s.OnReadyChange(func(ready bool) {
		if s.ComparisonReady() != ready {
			t.Errorf("notification %v disagrees with store state", ready)
		}
		transitions = append(transitions, ready)
	})

	s.AddPlan(ctx, travel("1")) // empty -> insufficient
	s.AddPlan(ctx, travel("2")) // -> ready
	s.AddPlan(ctx, travel("3")) // ready -> ready
	s.RemovePlan(ctx, "3")      // ready -> ready
	s.RemovePlan(ctx, "2")      // -> insufficient
	s.TogglePlan(ctx, auto("4"))
	s.ClearSelection(ctx) // ready -> empty

	if diff := cmp.Diff([]bool{true, false, true, false}, transitions); diff != "" {
		t.Fatalf("transitions mismatch (-want +got):\n%s", diff)
	}
}

func TestSubscribeReportsStates(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	var changes []Change
	unsubscribe := s.Subscribe(func(c Change) { changes = append(changes, c) })

	s.AddPlan(ctx, travel("1"))
	s.AddPlan(ctx, auto("2"))

	if len(changes) != 2 {
		t.Fatalf("changes = %d, want 2", len(changes))
	}
	if changes[0].Previous != StateEmpty || changes[0].Current != StateInsufficient {
		t.Fatalf("first change = %+v", changes[0])
	}
	if !changes[1].ReadyChanged() || len(changes[1].Plans) != 2 {
		t.Fatalf("second change = %+v", changes[1])
	}

	unsubscribe()
	s.ClearSelection(ctx)
	if len(changes) != 2 {
		t.Fatalf("unsubscribed callback still notified")
	}
}

func TestSelectedPlansReturnsCopy(t *testing.T) {
	ctx := context.Background()
	s := NewStore(nil, nil)
	s.AddPlan(ctx, travel("1"))

	got := s.SelectedPlans()
	got[0].ID = "mutated"

	if !s.Contains("1") || s.Contains("mutated") {
		t.Fatal("caller mutation leaked into the store")
	}
}

func TestPersistAndRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	settings := memoryStorage()
	s := NewStore(settings, nil)
	s.AddPlan(ctx, travel("1"))
	s.AddPlan(ctx, auto("2"))
	s.AddPlan(ctx, plan.Plan{ID: "3", Category: plan.CategoryPet, Source: plan.SourceMock, Name: "Pawsome"})

	restored := NewStore(settings, nil)
	if n := restored.Restore(ctx); n != 3 {
		t.Fatalf("restored %d plans, want 3", n)
	}
	if diff := cmp.Diff(s.SelectedPlans(), restored.SelectedPlans()); diff != "" {
		t.Fatalf("restored selection mismatch (-want +got):\n%s", diff)
	}
}

func TestRestoreDropsInvalidAndDuplicatePlans(t *testing.T) {
	ctx := context.Background()
	settings := memoryStorage()
	raw := `[
		{"id":"1","category":"travel","source":"real"},
		{"id":"","category":"auto","source":"real"},
		{"id":"2","category":"boat","source":"real"},
		{"id":"1","category":"auto","source":"real"},
		{"id":"3","category":"Health","source":"mock"}
	]`
	if err := settings.Set(ctx, KeySelectedPlans, raw); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := NewStore(settings, nil)
	s.Restore(ctx)

	if diff := cmp.Diff([]string{"1", "3"}, s.SelectedIDs()); diff != "" {
		t.Fatalf("restored ids mismatch (-want +got):\n%s", diff)
	}
	if s.SelectedPlans()[0].Category != plan.CategoryTravel {
		t.Fatal("first occurrence of a duplicate id should win")
	}
}

func TestRestoreIgnoresCorruptPayload(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	settings := memoryStorage()
	if err := settings.Set(ctx, KeySelectedPlans, "{not json"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	s := NewStore(settings, zap.New(core))
	if n := s.Restore(ctx); n != 0 {
		t.Fatalf("restored %d plans from corrupt payload", n)
	}
	if logs.FilterMessage("decode persisted selection").Len() != 1 {
		t.Fatal("expected decode failure to be logged")
	}
}

func TestPersistFailureKeepsMutation(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.WarnLevel)
	kv := &memory.KV{FailWith: errors.New("storage unavailable")}
	s := NewStore(storage.NewScopedKV(kv, testScope), zap.New(core))

	s.AddPlan(ctx, travel("1"))
	s.AddPlan(ctx, travel("2"))

	if !s.ComparisonReady() {
		t.Fatal("expected in-memory selection to survive failed writes")
	}
	if logs.FilterMessage("persist selection").Len() != 2 {
		t.Fatalf("expected two persistence warnings, got %d", logs.Len())
	}
	if s.Restore(ctx) != 0 {
		t.Fatal("restore from failing storage should restore nothing")
	}
}

func TestStateFor(t *testing.T) {
	tests := map[int]State{-1: StateEmpty, 0: StateEmpty, 1: StateInsufficient, 2: StateReady, 9: StateReady}
	for n, want := range tests {
		if got := StateFor(n); got != want {
			t.Fatalf("StateFor(%d) = %q, want %q", n, got, want)
		}
	}
}

func memoryStorage() storage.ScopedKV {
	return storage.NewScopedKV(memory.NewKV(), testScope)
}

type deadlineStorage struct {
	deadlines []time.Duration
}

func (s *deadlineStorage) Get(context.Context, string) (string, bool, error) {
	return "", false, nil
}

func (s *deadlineStorage) Set(ctx context.Context, _, _ string) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		s.deadlines = append(s.deadlines, 0)
		return nil
	}
	s.deadlines = append(s.deadlines, time.Until(deadline))
	return nil
}

func TestPersistBoundsEachWrite(t *testing.T) {
	store := &deadlineStorage{}
	s := NewStore(store, nil)

	s.AddPlan(context.Background(), travel("1"))

	if len(store.deadlines) != 1 {
		t.Fatalf("writes = %d, want 1", len(store.deadlines))
	}
	if remaining := store.deadlines[0]; remaining <= 0 || remaining > timeouts.SettingsWrite {
		t.Fatalf("write deadline in %v, want within %v", remaining, timeouts.SettingsWrite)
	}
}

func TestSubscribersRunInRegistrationOrder(t *testing.T) {
	s := NewStore(nil, nil)

	var order []string
	for i := range 8 {
		name := strconv.Itoa(i)
		s.Subscribe(func(Change) { order = append(order, "change-"+name) })
		s.OnReadyChange(func(bool) { order = append(order, "ready-"+name) })
	}
	removeLast := s.Subscribe(func(Change) { order = append(order, "removed") })
	removeLast()

	ctx := context.Background()
	s.AddPlan(ctx, travel("1"))
	s.AddPlan(ctx, auto("2"))

	var want []string
	for i := range 8 {
		want = append(want, "change-"+strconv.Itoa(i))
	}
	for i := range 8 {
		want = append(want, "change-"+strconv.Itoa(i))
	}
	for i := range 8 {
		want = append(want, "ready-"+strconv.Itoa(i))
	}
	if diff := cmp.Diff(want, order); diff != "" {
		t.Fatalf("notification order mismatch (-want +got):\n%s", diff)
	}
}
