// Package compare exposes plan source settings, the plan catalog, and the
// comparison selection over HTTP.
package compare

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/louisbranch/planmatch/internal/platform/httpx"
	"github.com/louisbranch/planmatch/internal/platform/id"
	"github.com/louisbranch/planmatch/internal/platform/logging"
	"github.com/louisbranch/planmatch/internal/platform/requestctx"
	"github.com/louisbranch/planmatch/internal/services/compare/catalog"
	"github.com/louisbranch/planmatch/internal/services/compare/identity"
	"github.com/louisbranch/planmatch/internal/services/compare/routepath"
	"github.com/louisbranch/planmatch/internal/services/compare/session"
	"github.com/louisbranch/planmatch/internal/services/compare/storage"
	"github.com/louisbranch/planmatch/internal/services/compare/telemetry"
	"go.uber.org/zap"
)

// SessionCookieName names the anonymous client session cookie.
const SessionCookieName = "planmatch_session"

// Dependencies are the collaborators the HTTP API needs.
type Dependencies struct {
	Catalog  *catalog.Provider
	Sessions *session.Registry
	Sink     *telemetry.Sink
	// Identity is optional. Without it every client is an anonymous session.
	Identity identity.Provider
	Logger   *zap.Logger
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool
}

// Handler serves the compare HTTP API.
type Handler struct {
	catalog       *catalog.Provider
	sessions      *session.Registry
	sink          *telemetry.Sink
	identity      identity.Provider
	logger        *zap.Logger
	secureCookies bool
}

// NewHandler validates deps and returns a handler.
func NewHandler(deps Dependencies) (*Handler, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog is required")
	}
	if deps.Sessions == nil {
		return nil, errors.New("session registry is required")
	}
	return &Handler{
		catalog:       deps.Catalog,
		sessions:      deps.Sessions,
		sink:          deps.Sink,
		identity:      deps.Identity,
		logger:        logging.OrNop(deps.Logger),
		secureCookies: deps.SecureCookies,
	}, nil
}

// Routes returns the routed handler wrapped in the shared middleware chain.
func (h *Handler) Routes(service string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(http.MethodGet+" "+routepath.Health, h.handleHealth)

	api := http.NewServeMux()
	api.HandleFunc(http.MethodGet+" "+routepath.Source, h.handleGetSource)
	api.HandleFunc(http.MethodPost+" "+routepath.SourceToggleMock, h.handleToggleMock)
	api.HandleFunc(http.MethodPut+" "+routepath.SourceMixed, h.handleSetMixed)
	api.HandleFunc(http.MethodGet+" "+routepath.Plans, h.handleListPlans)
	api.HandleFunc(http.MethodGet+" "+routepath.PlanPattern, h.handleGetPlan)
	api.HandleFunc(http.MethodPost+" "+routepath.PlanConvertPattern, h.handleConvertPlan)
	api.HandleFunc(http.MethodGet+" "+routepath.Compare, h.handleGetComparison)
	api.HandleFunc(http.MethodDelete+" "+routepath.Compare, h.handleClearComparison)
	api.HandleFunc(http.MethodPost+" "+routepath.ComparePlanPattern, h.handleAddPlan)
	api.HandleFunc(http.MethodDelete+" "+routepath.ComparePlanPattern, h.handleRemovePlan)
	api.HandleFunc(http.MethodPost+" "+routepath.CompareTogglePattern, h.handleTogglePlan)
	api.HandleFunc(http.MethodGet+" "+routepath.ComparePlans, h.handleComparePlans)

	mux.Handle("/", h.withClient(api))

	return httpx.Chain(mux,
		httpx.RequestID(),
		httpx.Trace(service),
		httpx.RequestLogger(h.logger),
		httpx.RecoverPanic(h.logger),
	)
}

// withClient resolves the client scope. A bearer token selects the user
// scope; otherwise the anonymous session cookie does. A missing or malformed
// cookie is replaced with a freshly minted one.
func (h *Handler) withClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if token, ok := bearerToken(r); ok && h.identity != nil {
			principal, err := h.identity.Authenticate(ctx, token)
			if err != nil {
				h.logger.Debug("reject bearer token", zap.Error(err))
				httpx.WriteError(w, err)
				return
			}
			ctx = requestctx.WithUserID(ctx, principal.UserID)
			ctx = requestctx.WithScope(ctx, storage.UserScope(principal.UserID))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		sessionID := readSessionCookie(r)
		if !id.Valid(sessionID) {
			generated, err := id.NewID()
			if err != nil {
				httpx.WriteError(w, err)
				return
			}
			sessionID = generated
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookieName,
				Value:    sessionID,
				Path:     "/",
				HttpOnly: true,
				Secure:   h.secureCookies,
				SameSite: http.SameSiteLaxMode,
			})
		}
		ctx = requestctx.WithScope(ctx, storage.SessionScope(sessionID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// session returns the session for the request's client scope.
func (h *Handler) session(ctx context.Context) *session.Session {
	return h.sessions.Get(ctx, requestctx.ScopeFromContext(ctx))
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func bearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func readSessionCookie(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil || cookie == nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}
