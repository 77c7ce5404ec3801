package compare

import (
	"net/http"

	apperrors "github.com/louisbranch/planmatch/internal/platform/errors"
	"github.com/louisbranch/planmatch/internal/platform/httpx"
	"github.com/louisbranch/planmatch/internal/platform/requestctx"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/selection"
	"github.com/louisbranch/planmatch/internal/services/compare/telemetry"
	"go.uber.org/zap"
	"golang.org/x/text/language"
)

type comparisonResponse struct {
	Plans               []plan.Plan     `json:"plans"`
	Ready               bool            `json:"ready"`
	State               selection.State `json:"state"`
	CrossCategoryLabel  string          `json:"cross_category_label,omitempty"`
	CategoryName        string          `json:"category_name,omitempty"`
	UniqueCategoryCount int             `json:"unique_category_count"`
}

type comparePlansResponse struct {
	PlanIDs             []string    `json:"plan_ids"`
	Plans               []plan.Plan `json:"plans"`
	CrossCategoryLabel  string      `json:"cross_category_label,omitempty"`
	CategoryName        string      `json:"category_name,omitempty"`
	UniqueCategoryCount int         `json:"unique_category_count"`
}

// comparisonSnapshot is read under the session lock so every field describes
// the same selection.
type comparisonSnapshot struct {
	plans        []plan.Plan
	state        selection.State
	crossLabel   string
	categoryName string
	count        int
}

func (h *Handler) handleGetComparison(w http.ResponseWriter, r *http.Request) {
	sess := h.session(r.Context())
	var snap comparisonSnapshot
	sess.Update(func() { snap = takeSnapshot(sess.Selection, requestLanguage(r)) })
	h.writeComparison(w, snap)
}

func (h *Handler) handleAddPlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(ctx)
	p, err := h.catalog.GetPlan(ctx, sess.Resolver, r.PathValue("planID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var snap comparisonSnapshot
	sess.Update(func() {
		sess.Selection.AddPlan(ctx, p)
		snap = takeSnapshot(sess.Selection, requestLanguage(r))
	})
	h.writeComparison(w, snap)
}

func (h *Handler) handleRemovePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(ctx)
	planID := r.PathValue("planID")
	var snap comparisonSnapshot
	sess.Update(func() {
		sess.Selection.RemovePlan(ctx, planID)
		snap = takeSnapshot(sess.Selection, requestLanguage(r))
	})
	h.writeComparison(w, snap)
}

// handleTogglePlan deselects without a catalog lookup so a plan hidden by a
// later source change can still be removed.
func (h *Handler) handleTogglePlan(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(ctx)
	planID := r.PathValue("planID")

	var (
		snap    comparisonSnapshot
		removed bool
	)
	sess.Update(func() {
		if sess.Selection.Contains(planID) {
			sess.Selection.RemovePlan(ctx, planID)
			snap = takeSnapshot(sess.Selection, requestLanguage(r))
			removed = true
		}
	})
	if removed {
		h.writeComparison(w, snap)
		return
	}

	p, err := h.catalog.GetPlan(ctx, sess.Resolver, planID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess.Update(func() {
		sess.Selection.TogglePlan(ctx, p)
		snap = takeSnapshot(sess.Selection, requestLanguage(r))
	})
	h.writeComparison(w, snap)
}

func (h *Handler) handleClearComparison(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(ctx)
	var snap comparisonSnapshot
	sess.Update(func() {
		sess.Selection.ClearSelection(ctx)
		snap = takeSnapshot(sess.Selection, requestLanguage(r))
	})
	h.writeComparison(w, snap)
}

// handleComparePlans is the navigation target of the comparison trigger. It
// only serves a ready selection.
func (h *Handler) handleComparePlans(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.session(ctx)
	var snap comparisonSnapshot
	sess.Update(func() { snap = takeSnapshot(sess.Selection, requestLanguage(r)) })
	if snap.state != selection.StateReady {
		h.writeError(w, r, apperrors.WithMetadata(apperrors.CodeComparisonNotReady,
			"select at least two plans to compare",
			map[string]string{"State": string(snap.state)}))
		return
	}

	ids := make([]string, 0, len(snap.plans))
	for _, p := range snap.plans {
		ids = append(ids, p.ID)
	}
	h.sink.RecordAll(ctx, telemetry.KindComparison, ids, requestctx.ScopeFromContext(ctx))
	_ = httpx.WriteJSON(w, http.StatusOK, comparePlansResponse{
		PlanIDs:             ids,
		Plans:               snap.plans,
		CrossCategoryLabel:  snap.crossLabel,
		CategoryName:        snap.categoryName,
		UniqueCategoryCount: snap.count,
	})
}

func (h *Handler) writeComparison(w http.ResponseWriter, snap comparisonSnapshot) {
	plans := snap.plans
	if plans == nil {
		plans = []plan.Plan{}
	}
	_ = httpx.WriteJSON(w, http.StatusOK, comparisonResponse{
		Plans:               plans,
		Ready:               snap.state == selection.StateReady,
		State:               snap.state,
		CrossCategoryLabel:  snap.crossLabel,
		CategoryName:        snap.categoryName,
		UniqueCategoryCount: snap.count,
	})
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if apperrors.HTTPStatus(err) >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	}
	httpx.WriteError(w, err)
}

func takeSnapshot(store *selection.Store, tag language.Tag) comparisonSnapshot {
	plans := store.SelectedPlans()
	snap := comparisonSnapshot{
		plans: plans,
		state: store.State(),
		count: store.UniqueCategoryCount(),
	}
	if label, ok := store.UniqueCategoryLabel(); ok {
		snap.crossLabel = label
	} else if len(plans) > 0 {
		snap.categoryName = plans[0].Category.Label(tag)
	}
	return snap
}

// requestLanguage picks the first Accept-Language tag, defaulting to English.
func requestLanguage(r *http.Request) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(r.Header.Get("Accept-Language"))
	if err != nil || len(tags) == 0 {
		return language.English
	}
	return tags[0]
}
