// Package catalog assembles the plan pool a client may browse from the real
// plan store and the mock fixture, according to the client's source mode.
package catalog

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/louisbranch/planmatch/internal/platform/errors"
	"github.com/louisbranch/planmatch/internal/services/compare/catalog/filter"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"github.com/louisbranch/planmatch/internal/services/compare/storage"
	"go.uber.org/zap"
)

const (
	// DefaultPageSize applies when a request leaves the page size unset.
	DefaultPageSize = 25
	// MaxPageSize caps one page of plans.
	MaxPageSize = 100

	realCursorPrefix = "real:"
	mockCursorPrefix = "mock:"
)

// Visibility reports which catalogs a client currently sees.
type Visibility interface {
	ShouldShowMockPlans() bool
	ShouldShowRealPlans() bool
}

// FetchRequest selects one page of the visible plan pool.
type FetchRequest struct {
	Category  plan.Category
	Filter    string
	PageSize  int
	PageToken string
}

// FetchResult is one page of visible plans. Real plans precede mock plans.
type FetchResult struct {
	Plans         []plan.Plan `json:"plans"`
	NextPageToken string      `json:"next_page_token,omitempty"`
}

// Provider serves plans from the real store and the mock catalog.
type Provider struct {
	real   storage.PlanStore
	mock   *MockCatalog
	logger *zap.Logger
}

// NewProvider builds a provider. A nil store yields an empty real catalog.
func NewProvider(real storage.PlanStore, mock *MockCatalog, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{real: real, mock: mock, logger: logger}
}

// FetchPlans returns one page of the plans visible under v. In mixed mode the
// real catalog is exhausted before mock plans are listed, and a mock plan
// whose ID also exists in the real catalog is skipped.
func (p *Provider) FetchPlans(ctx context.Context, v Visibility, req FetchRequest) (FetchResult, error) {
	if v == nil {
		return FetchResult{}, fmt.Errorf("visibility is required")
	}
	pageSize := req.PageSize
	switch {
	case pageSize < 0:
		return FetchResult{}, apperrors.New(apperrors.CodeInvalidRequest, "page size must not be negative")
	case pageSize == 0:
		pageSize = DefaultPageSize
	case pageSize > MaxPageSize:
		pageSize = MaxPageSize
	}
	category := plan.Category("")
	if raw := strings.TrimSpace(string(req.Category)); raw != "" {
		parsed, ok := plan.ParseCategory(raw)
		if !ok {
			return FetchResult{}, apperrors.WithMetadata(apperrors.CodePlanInvalidCategory, "plan category is invalid",
				map[string]string{"Category": raw})
		}
		category = parsed
	}
	f, err := filter.Parse(req.Filter)
	if err != nil {
		return FetchResult{}, err
	}
	phase, cursor, err := decodeCursor(req.PageToken)
	if err != nil {
		return FetchResult{}, err
	}

	showReal := v.ShouldShowRealPlans() && p.real != nil
	showMock := v.ShouldShowMockPlans()
	result := FetchResult{Plans: make([]plan.Plan, 0, pageSize)}

	if phase == realCursorPrefix && showReal {
		where, args := f.SQL()
		page, err := p.real.ListPlans(ctx, storage.PlanQuery{
			Category:  category,
			Where:     where,
			Args:      args,
			PageSize:  pageSize,
			PageToken: cursor,
		})
		if err != nil {
			return FetchResult{}, fmt.Errorf("list real plans: %w", err)
		}
		result.Plans = append(result.Plans, page.Plans...)
		if page.NextPageToken != "" {
			result.NextPageToken = encodeCursor(realCursorPrefix, page.NextPageToken)
			return result, nil
		}
	}
	if !showMock {
		return result, nil
	}

	after := ""
	if phase == mockCursorPrefix {
		after = cursor
	}
	for len(result.Plans) < pageSize {
		remaining := pageSize - len(result.Plans)
		batch := p.mock.List(category, f, after, remaining)
		for _, candidate := range batch {
			after = candidate.ID
			if showReal {
				shadowed, err := p.realExists(ctx, candidate.ID)
				if err != nil {
					return FetchResult{}, err
				}
				if shadowed {
					continue
				}
			}
			result.Plans = append(result.Plans, candidate)
		}
		if len(batch) < remaining {
			return result, nil
		}
	}
	if len(p.mock.List(category, f, after, 1)) > 0 {
		result.NextPageToken = encodeCursor(mockCursorPrefix, after)
	}
	return result, nil
}

// GetPlan returns one plan visible under v. A plan that exists only in a
// hidden catalog reports CodePlanNotVisible.
func (p *Provider) GetPlan(ctx context.Context, v Visibility, planID string) (plan.Plan, error) {
	if v == nil {
		return plan.Plan{}, fmt.Errorf("visibility is required")
	}
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return plan.Plan{}, plan.ErrMissingID
	}

	hidden := false
	if p.real != nil {
		found, err := p.real.GetPlan(ctx, planID)
		switch {
		case err == nil:
			if v.ShouldShowRealPlans() {
				return found, nil
			}
			hidden = true
		case !errors.Is(err, storage.ErrNotFound):
			return plan.Plan{}, fmt.Errorf("get real plan: %w", err)
		}
	}
	if found, ok := p.mock.Get(planID); ok {
		if v.ShouldShowMockPlans() {
			return found, nil
		}
		hidden = true
	}
	if hidden {
		p.logger.Debug("plan hidden by source mode", zap.String("plan_id", planID))
		return plan.Plan{}, apperrors.WithMetadata(apperrors.CodePlanNotVisible, "plan is not visible in the current source mode",
			map[string]string{"PlanID": planID})
	}
	return plan.Plan{}, apperrors.WithMetadata(apperrors.CodeNotFound, "plan not found",
		map[string]string{"PlanID": planID})
}

func (p *Provider) realExists(ctx context.Context, planID string) (bool, error) {
	_, err := p.real.GetPlan(ctx, planID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("check real plan %s: %w", planID, err)
}

func encodeCursor(phase, planID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(phase + planID))
}

// decodeCursor splits a page token into its catalog phase and last-seen plan
// ID. The empty token starts at the real catalog.
func decodeCursor(token string) (string, string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return realCursorPrefix, "", nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return "", "", apperrors.Wrap(apperrors.CodeCatalogInvalidPageToken, "page token is invalid", err)
	}
	value := string(raw)
	for _, phase := range []string{realCursorPrefix, mockCursorPrefix} {
		if cursor, ok := strings.CutPrefix(value, phase); ok {
			return phase, cursor, nil
		}
	}
	return "", "", apperrors.New(apperrors.CodeCatalogInvalidPageToken, "page token is invalid")
}
