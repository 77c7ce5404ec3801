// Package routepath stores canonical HTTP paths for the compare service.
package routepath

import "net/url"

const (
	Health = "/up"

	Source           = "/api/source"
	SourceToggleMock = "/api/source/toggle-mock"
	SourceMixed      = "/api/source/mixed"

	Plans              = "/api/plans"
	PlansPrefix        = "/api/plans/"
	PlanPattern        = PlansPrefix + "{planID}"
	PlanConvertPattern = PlansPrefix + "{planID}/convert"

	Compare              = "/api/compare"
	ComparePrefix        = "/api/compare/"
	ComparePlanPattern   = ComparePrefix + "{planID}"
	CompareTogglePattern = ComparePrefix + "{planID}/toggle"

	ComparePlans = "/compare-plans"
)

// Plan returns the detail path for one plan.
func Plan(planID string) string {
	return PlansPrefix + url.PathEscape(planID)
}

// PlanConvert returns the conversion path for one plan.
func PlanConvert(planID string) string {
	return Plan(planID) + "/convert"
}

// ComparePlan returns the selection path for one plan.
func ComparePlan(planID string) string {
	return ComparePrefix + url.PathEscape(planID)
}

// CompareToggle returns the toggle path for one plan.
func CompareToggle(planID string) string {
	return ComparePlan(planID) + "/toggle"
}
