package compare

import (
	"net/http"

	"github.com/louisbranch/planmatch/internal/platform/httpx"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/source"
)

type sourceResponse struct {
	Mode            source.Mode `json:"mode"`
	ShowMock        bool        `json:"show_mock"`
	ShowReal        bool        `json:"show_real"`
	UseMockPlans    bool        `json:"use_mock_plans"`
	EnableMixedMode bool        `json:"enable_mixed_mode"`
}

type setMixedRequest struct {
	Enabled *bool `json:"enabled"`
}

func newSourceResponse(cfg source.Config) sourceResponse {
	return sourceResponse{
		Mode:            cfg.EffectiveMode(),
		ShowMock:        cfg.ShowMock(),
		ShowReal:        cfg.ShowReal(),
		UseMockPlans:    cfg.UseMockPlans,
		EnableMixedMode: cfg.EnableMixedMode,
	}
}

func (h *Handler) handleGetSource(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r.Context())
	_ = httpx.WriteJSON(w, http.StatusOK, newSourceResponse(sess.Resolver.Config()))
}

func (h *Handler) handleToggleMock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(ctx)
	var cfg source.Config
	sess.Update(func() {
		sess.Resolver.ToggleMockPlans(ctx)
		cfg = sess.Resolver.Config()
	})
	_ = httpx.WriteJSON(w, http.StatusOK, newSourceResponse(cfg))
}

func (h *Handler) handleSetMixed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req setMixedRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, err)
		return
	}
	if req.Enabled == nil {
		httpx.WriteError(w, invalidRequest("enabled is required"))
		return
	}
	sess := h.session(ctx)
	var cfg source.Config
	sess.Update(func() {
		sess.Resolver.SetMixedMode(ctx, *req.Enabled)
		cfg = sess.Resolver.Config()
	})
	_ = httpx.WriteJSON(w, http.StatusOK, newSourceResponse(cfg))
}
