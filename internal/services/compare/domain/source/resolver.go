package source

import (
	"context"
	"slices"
	"strconv"
	"sync"

	"github.com/louisbranch/planmatch/internal/platform/config"
	"github.com/louisbranch/planmatch/internal/platform/logging"
	"github.com/louisbranch/planmatch/internal/platform/timeouts"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"go.uber.org/zap"
)

// Storage is the durable client storage the resolver persists overrides to.
type Storage interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
}

// Change is delivered to subscribers after every resolver mutation.
type Change struct {
	Previous Mode
	Current  Mode
	Config   Config
}

// subscriber is kept in registration order.
type subscriber struct {
	id int
	fn func(Change)
}

// Resolver owns one client's plan source configuration. Reads are safe from
// any goroutine; subscribers run synchronously on the mutating goroutine.
type Resolver struct {
	mu          sync.RWMutex
	cfg         Config
	storage     Storage
	logger      *zap.Logger
	subscribers []subscriber
	nextSubID   int
}

// NewResolver builds a resolver from the build-time defaults, then applies
// any overrides persisted in storage. Storage failures and unparseable values
// are logged and ignored, so construction never fails.
func NewResolver(ctx context.Context, defaults Config, storage Storage, logger *zap.Logger) *Resolver {
	r := &Resolver{
		cfg:         defaults,
		storage:     storage,
		logger:      logging.OrNop(logger),
	}
	if value, ok := r.readOverride(ctx, KeyUseMockPlans); ok {
		r.cfg.UseMockPlans = value
	}
	if value, ok := r.readOverride(ctx, KeyEnableMixedMode); ok {
		r.cfg.EnableMixedMode = value
	}
	return r
}

// Config returns the current flag pair.
func (r *Resolver) Config() Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// EffectiveMode returns the current mode.
func (r *Resolver) EffectiveMode() Mode {
	return r.Config().EffectiveMode()
}

// ShouldShowMockPlans reports whether mock plans are visible.
func (r *Resolver) ShouldShowMockPlans() bool {
	return r.Config().ShowMock()
}

// ShouldShowRealPlans reports whether real plans are visible.
func (r *Resolver) ShouldShowRealPlans() bool {
	return r.Config().ShowReal()
}

// Visible reports whether p belongs to a visible catalog.
func (r *Resolver) Visible(p plan.Plan) bool {
	return r.Config().Visible(p)
}

// ToggleMockPlans flips UseMockPlans, persists the new value and notifies
// subscribers. EnableMixedMode is left untouched.
func (r *Resolver) ToggleMockPlans(ctx context.Context) {
	r.mu.Lock()
	previous := r.cfg
	r.cfg.UseMockPlans = !r.cfg.UseMockPlans
	current := r.cfg
	r.mu.Unlock()

	r.persist(ctx, KeyUseMockPlans, current.UseMockPlans)
	r.notify(previous, current)
}

// SetMixedMode sets EnableMixedMode, persists it under its own key and
// notifies subscribers. Setting the current value is a no-op.
func (r *Resolver) SetMixedMode(ctx context.Context, enabled bool) {
	r.mu.Lock()
	previous := r.cfg
	if previous.EnableMixedMode == enabled {
		r.mu.Unlock()
		return
	}
	r.cfg.EnableMixedMode = enabled
	current := r.cfg
	r.mu.Unlock()

	r.persist(ctx, KeyEnableMixedMode, enabled)
	r.notify(previous, current)
}

// Subscribe registers fn for mode-change notifications and returns a function
// that removes it. Subscribers run in registration order.
func (r *Resolver) Subscribe(fn func(Change)) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	r.mu.Lock()
	id := r.nextSubID
	r.nextSubID++
	r.subscribers = append(r.subscribers, subscriber{id: id, fn: fn})
	r.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			r.subscribers = slices.DeleteFunc(r.subscribers, func(sub subscriber) bool { return sub.id == id })
			r.mu.Unlock()
		})
	}
}

func (r *Resolver) readOverride(ctx context.Context, key string) (bool, bool) {
	if r.storage == nil {
		return false, false
	}
	raw, found, err := r.storage.Get(ctx, key)
	if err != nil {
		r.logger.Warn("read plan source override", zap.String("key", key), zap.Error(err))
		return false, false
	}
	if !found {
		return false, false
	}
	value, ok := config.ParseBool(raw)
	if !ok {
		r.logger.Warn("ignore unparseable plan source override", zap.String("key", key), zap.String("value", raw))
		return false, false
	}
	return value, true
}

// persist is best-effort: the in-memory value stays even when the write fails.
func (r *Resolver) persist(ctx context.Context, key string, value bool) {
	if r.storage == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.SettingsWrite)
	defer cancel()
	if err := r.storage.Set(ctx, key, strconv.FormatBool(value)); err != nil {
		r.logger.Warn("persist plan source override", zap.String("key", key), zap.Error(err))
	}
}

func (r *Resolver) notify(previous, current Config) {
	r.mu.RLock()
	subscribers := slices.Clone(r.subscribers)
	r.mu.RUnlock()

	change := Change{
		Previous: previous.EffectiveMode(),
		Current:  current.EffectiveMode(),
		Config:   current,
	}
	for _, sub := range subscribers {
		sub.fn(change)
	}
}
