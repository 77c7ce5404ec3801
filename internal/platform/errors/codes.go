package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Plan errors
	CodePlanMissingID       Code = "PLAN_MISSING_ID"
	CodePlanInvalidCategory Code = "PLAN_INVALID_CATEGORY"
	CodePlanInvalidSource   Code = "PLAN_INVALID_SOURCE"
	CodePlanNotVisible      Code = "PLAN_NOT_VISIBLE"

	// Comparison errors
	CodeComparisonNotReady Code = "COMPARISON_NOT_READY"

	// Catalog errors
	CodeCatalogInvalidFilter    Code = "CATALOG_INVALID_FILTER"
	CodeCatalogInvalidPageToken Code = "CATALOG_INVALID_PAGE_TOKEN"

	// Identity errors
	CodeIdentityTokenInvalid  Code = "IDENTITY_TOKEN_INVALID"
	CodeIdentityTokenExpired  Code = "IDENTITY_TOKEN_EXPIRED"
	CodeIdentityTokenMismatch Code = "IDENTITY_TOKEN_MISMATCH"

	// Request errors
	CodeInvalidRequest Code = "INVALID_REQUEST"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	case CodePlanMissingID,
		CodePlanInvalidCategory,
		CodePlanInvalidSource,
		CodeCatalogInvalidFilter,
		CodeCatalogInvalidPageToken,
		CodeInvalidRequest:
		return http.StatusBadRequest

	case CodeIdentityTokenInvalid,
		CodeIdentityTokenExpired,
		CodeIdentityTokenMismatch:
		return http.StatusUnauthorized

	case CodeComparisonNotReady:
		return http.StatusConflict

	case CodeNotFound,
		CodePlanNotVisible:
		return http.StatusNotFound

	default:
		return http.StatusInternalServerError
	}
}
