package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/source"
	"github.com/louisbranch/planmatch/internal/services/compare/storage/memory"
)

func TestGetReturnsSameSessionPerScope(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(source.Config{}, memory.NewKV(), nil, Limits{})
	ctx := context.Background()

	a := registry.Get(ctx, "session:a")
	if again := registry.Get(ctx, " session:a "); again != a {
		t.Fatal("expected the same session for the same scope")
	}
	if other := registry.Get(ctx, "session:b"); other == a {
		t.Fatal("expected distinct sessions per scope")
	}
	if registry.Len() != 2 {
		t.Fatalf("sessions = %d, want 2", registry.Len())
	}
}

func TestResetRehydratesFromStore(t *testing.T) {
	t.Parallel()

	kv := memory.NewKV()
	registry := NewRegistry(source.Config{}, kv, nil, Limits{})
	ctx := context.Background()

	sess := registry.Get(ctx, "user:u1")
	sess.Update(func() {
		sess.Resolver.ToggleMockPlans(ctx)
		sess.Selection.AddPlan(ctx, plan.Plan{ID: "p1", Category: plan.CategoryAuto, Source: plan.SourceMock})
		sess.Selection.AddPlan(ctx, plan.Plan{ID: "p2", Category: plan.CategoryPet, Source: plan.SourceMock})
	})

	registry.Reset("user:u1")
	if registry.Len() != 0 {
		t.Fatalf("sessions = %d, want 0", registry.Len())
	}

	restored := registry.Get(ctx, "user:u1")
	if restored == sess {
		t.Fatal("expected a fresh session after reset")
	}
	if restored.Resolver.EffectiveMode() != source.ModeMock {
		t.Fatalf("mode = %s, want mock", restored.Resolver.EffectiveMode())
	}
	if !restored.Selection.ComparisonReady() {
		t.Fatal("expected restored selection to be ready")
	}

	other := registry.Get(ctx, "user:u2")
	if other.Resolver.EffectiveMode() != source.ModeReal {
		t.Fatalf("other scope mode = %s, want real", other.Resolver.EffectiveMode())
	}
}

func TestRegistryWithoutStore(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(source.Config{UseMockPlans: true}, nil, nil, Limits{})
	sess := registry.Get(context.Background(), "session:x")
	if sess.Resolver.EffectiveMode() != source.ModeMock {
		t.Fatalf("mode = %s, want mock", sess.Resolver.EffectiveMode())
	}
	if sess.Selection.Len() != 0 {
		t.Fatalf("selection = %d, want empty", sess.Selection.Len())
	}
}

func TestUpdateSerializesConcurrentMutations(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(source.Config{}, memory.NewKV(), nil, Limits{})
	ctx := context.Background()
	sess := registry.Get(ctx, "session:c")
	p := plan.Plan{ID: "p1", Category: plan.CategoryTravel, Source: plan.SourceReal}

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess.Update(func() { sess.Selection.AddPlan(ctx, p) })
		}()
	}
	wg.Wait()
	if sess.Selection.Len() != 1 {
		t.Fatalf("selection = %d, want 1", sess.Selection.Len())
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestIdleSessionsAreEvictedAndRehydrated(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	kv := memory.NewKV()
	registry := NewRegistry(source.Config{}, kv, nil, Limits{IdleTTL: time.Minute, Now: clock.Now})
	ctx := context.Background()

	idle := registry.Get(ctx, "session:idle")
	idle.Update(func() { idle.Resolver.ToggleMockPlans(ctx) })

	clock.Advance(30 * time.Second)
	active := registry.Get(ctx, "session:active")

	clock.Advance(45 * time.Second)
	if again := registry.Get(ctx, "session:active"); again != active {
		t.Fatal("expected active session to be kept")
	}
	if registry.Len() != 1 {
		t.Fatalf("sessions = %d, want 1 after idle eviction", registry.Len())
	}

	rehydrated := registry.Get(ctx, "session:idle")
	if rehydrated == idle {
		t.Fatal("expected a rebuilt session after eviction")
	}
	if !rehydrated.Resolver.Config().UseMockPlans {
		t.Fatal("expected persisted override to survive eviction")
	}
}

func TestLeastRecentlyUsedSessionIsEvictedOverCap(t *testing.T) {
	t.Parallel()

	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	registry := NewRegistry(source.Config{}, memory.NewKV(), nil, Limits{MaxSessions: 2, Now: clock.Now})
	ctx := context.Background()

	a := registry.Get(ctx, "session:a")
	clock.Advance(time.Second)
	registry.Get(ctx, "session:b")
	clock.Advance(time.Second)
	if registry.Get(ctx, "session:a") != a {
		t.Fatal("expected session a to be cached")
	}
	clock.Advance(time.Second)
	registry.Get(ctx, "session:c")

	if registry.Len() != 2 {
		t.Fatalf("sessions = %d, want 2", registry.Len())
	}
	if registry.Get(ctx, "session:a") != a {
		t.Fatal("expected recently used session a to survive")
	}
}

func TestResetDropsCachedSession(t *testing.T) {
	t.Parallel()

	registry := NewRegistry(source.Config{}, memory.NewKV(), nil, Limits{})
	ctx := context.Background()
	first := registry.Get(ctx, "session:r")
	registry.Reset(" session:r ")
	if registry.Len() != 0 {
		t.Fatalf("sessions = %d, want 0", registry.Len())
	}
	if registry.Get(ctx, "session:r") == first {
		t.Fatal("expected a new session after reset")
	}
}
