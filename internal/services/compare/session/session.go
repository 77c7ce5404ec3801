// Package session keeps one source resolver and comparison selection per
// active client scope.
package session

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/louisbranch/planmatch/internal/platform/logging"
	"github.com/louisbranch/planmatch/internal/platform/timeouts"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/selection"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/source"
	"github.com/louisbranch/planmatch/internal/services/compare/storage"
	"go.uber.org/zap"
)

// Session is one client's comparison state.
type Session struct {
	mu        sync.Mutex
	Scope     string
	Resolver  *source.Resolver
	Selection *selection.Store
}

// Update runs fn while holding the session's writer lock. Concurrent
// requests for the same client apply their mutations one at a time.
func (s *Session) Update(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn()
}

// DefaultMaxSessions caps the in-memory sessions a registry keeps.
const DefaultMaxSessions = 10000

// Limits bounds how many sessions a registry keeps in memory and for how
// long. Zero values take the defaults.
type Limits struct {
	IdleTTL     time.Duration
	MaxSessions int
	// Now replaces time.Now in tests.
	Now func() time.Time
}

type entry struct {
	scope    string
	session  *Session
	lastUsed time.Time
}

// Registry lazily builds sessions keyed by client scope. Sessions unused for
// longer than the idle TTL, or least recently used beyond the cap, are
// dropped; their persisted state is read again by the next Get.
type Registry struct {
	defaults source.Config
	store    storage.KVStore
	logger   *zap.Logger
	idleTTL  time.Duration
	max      int
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*list.Element
	recent   *list.List
}

// NewRegistry returns a registry that persists client state to store. A nil
// store keeps state in memory only, so an evicted session starts over.
func NewRegistry(defaults source.Config, store storage.KVStore, logger *zap.Logger, limits Limits) *Registry {
	if limits.IdleTTL <= 0 {
		limits.IdleTTL = timeouts.SessionIdle
	}
	if limits.MaxSessions <= 0 {
		limits.MaxSessions = DefaultMaxSessions
	}
	if limits.Now == nil {
		limits.Now = time.Now
	}
	return &Registry{
		defaults: defaults,
		store:    store,
		logger:   logging.OrNop(logger),
		idleTTL:  limits.IdleTTL,
		max:      limits.MaxSessions,
		now:      limits.Now,
		sessions: make(map[string]*list.Element),
		recent:   list.New(),
	}
}

// Get returns the session for scope, creating and rehydrating it on first
// use or after eviction.
func (r *Registry) Get(ctx context.Context, scope string) *Session {
	scope = strings.TrimSpace(scope)
	if sess, ok := r.lookup(scope); ok {
		return sess
	}

	built := r.build(ctx, scope)

	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	if elem, ok := r.sessions[scope]; ok {
		// Another request rehydrated the same scope first.
		r.touch(elem, now)
		return elem.Value.(*entry).session
	}
	r.sessions[scope] = r.recent.PushFront(&entry{scope: scope, session: built, lastUsed: now})
	r.evict(now)
	return built
}

func (r *Registry) lookup(scope string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	elem, ok := r.sessions[scope]
	if !ok {
		return nil, false
	}
	now := r.now()
	if r.expired(elem.Value.(*entry), now) {
		r.remove(elem)
		return nil, false
	}
	r.touch(elem, now)
	r.evict(now)
	return elem.Value.(*entry).session, true
}

// build rehydrates a session from storage without holding the registry lock.
func (r *Registry) build(ctx context.Context, scope string) *Session {
	logger := r.logger.With(zap.String("scope", scope))
	var (
		resolverStorage  source.Storage
		selectionStorage selection.Storage
	)
	if r.store != nil {
		kv := storage.NewScopedKV(r.store, scope)
		resolverStorage = kv
		selectionStorage = kv
	}
	sess := &Session{
		Scope:     scope,
		Resolver:  source.NewResolver(ctx, r.defaults, resolverStorage, logger),
		Selection: selection.NewStore(selectionStorage, logger),
	}
	if restored := sess.Selection.Restore(ctx); restored > 0 {
		logger.Debug("restored selection", zap.Int("plans", restored))
	}
	return sess
}

func (r *Registry) touch(elem *list.Element, now time.Time) {
	elem.Value.(*entry).lastUsed = now
	r.recent.MoveToFront(elem)
}

func (r *Registry) expired(e *entry, now time.Time) bool {
	return now.Sub(e.lastUsed) > r.idleTTL
}

// evict drops idle sessions and the least recently used ones over the cap.
// Callers hold r.mu.
func (r *Registry) evict(now time.Time) {
	for elem := r.recent.Back(); elem != nil; elem = r.recent.Back() {
		if r.recent.Len() <= r.max && !r.expired(elem.Value.(*entry), now) {
			return
		}
		r.remove(elem)
	}
}

func (r *Registry) remove(elem *list.Element) {
	e := r.recent.Remove(elem).(*entry)
	delete(r.sessions, e.scope)
}

// Reset drops the in-memory session for scope. Persisted settings remain and
// are read again by the next Get.
func (r *Registry) Reset(scope string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if elem, ok := r.sessions[strings.TrimSpace(scope)]; ok {
		r.remove(elem)
	}
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
