package compare

import (
	"net/http"
	"strconv"
	"strings"

	apperrors "github.com/louisbranch/planmatch/internal/platform/errors"
	"github.com/louisbranch/planmatch/internal/platform/httpx"
	"github.com/louisbranch/planmatch/internal/platform/requestctx"
	"github.com/louisbranch/planmatch/internal/services/compare/catalog"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/source"
	"github.com/louisbranch/planmatch/internal/services/compare/telemetry"
)

type planListResponse struct {
	Mode          source.Mode `json:"mode"`
	Plans         []plan.Plan `json:"plans"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

type planResponse struct {
	Plan     plan.Plan `json:"plan"`
	Selected bool      `json:"selected"`
}

type conversionResponse struct {
	PlanID string `json:"plan_id"`
}

func (h *Handler) handleListPlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()
	req := catalog.FetchRequest{
		Category:  plan.Category(query.Get("category")),
		Filter:    query.Get("filter"),
		PageToken: query.Get("page_token"),
	}
	if raw := strings.TrimSpace(query.Get("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			httpx.WriteError(w, invalidRequest("page_size must be an integer"))
			return
		}
		req.PageSize = size
	}

	sess := h.session(ctx)
	result, err := h.catalog.FetchPlans(ctx, sess.Resolver, req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	_ = httpx.WriteJSON(w, http.StatusOK, planListResponse{
		Mode:          sess.Resolver.EffectiveMode(),
		Plans:         result.Plans,
		NextPageToken: result.NextPageToken,
	})
}

func (h *Handler) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(ctx)
	p, err := h.catalog.GetPlan(ctx, sess.Resolver, r.PathValue("planID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sink.Record(ctx, telemetry.KindView, p.ID, requestctx.ScopeFromContext(ctx))
	_ = httpx.WriteJSON(w, http.StatusOK, planResponse{Plan: p, Selected: sess.Selection.Contains(p.ID)})
}

func (h *Handler) handleConvertPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(ctx)
	p, err := h.catalog.GetPlan(ctx, sess.Resolver, r.PathValue("planID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.sink.Record(ctx, telemetry.KindConversion, p.ID, requestctx.ScopeFromContext(ctx))
	_ = httpx.WriteJSON(w, http.StatusAccepted, conversionResponse{PlanID: p.ID})
}

func invalidRequest(message string) error {
	return apperrors.New(apperrors.CodeInvalidRequest, message)
}
