// Package plan defines the insurance plan records that the comparison engine
// reads. The engine only relies on ID and Category; the remaining fields are
// display data owned by the catalog.
package plan

import (
	"strings"

	apperrors "github.com/louisbranch/planmatch/internal/platform/errors"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Category is the insurance line a plan belongs to.
type Category string

const (
	CategoryTravel Category = "travel"
	CategoryAuto   Category = "auto"
	CategoryPet    Category = "pet"
	CategoryHealth Category = "health"
)

// Categories lists every supported category in display order.
var Categories = []Category{CategoryTravel, CategoryAuto, CategoryPet, CategoryHealth}

// Source names the catalog a plan record came from.
type Source string

const (
	SourceMock Source = "mock"
	SourceReal Source = "real"
)

var (
	// ErrMissingID indicates a plan without an identifier.
	ErrMissingID = apperrors.New(apperrors.CodePlanMissingID, "plan id is required")
	// ErrInvalidCategory indicates a plan outside the supported categories.
	ErrInvalidCategory = apperrors.New(apperrors.CodePlanInvalidCategory, "plan category is invalid")
	// ErrInvalidSource indicates a plan with an unknown catalog source.
	ErrInvalidSource = apperrors.New(apperrors.CodePlanInvalidSource, "plan source is invalid")
)

// Plan is one insurance plan offered in a category.
type Plan struct {
	ID                  string            `json:"id" yaml:"id"`
	Category            Category          `json:"category" yaml:"category"`
	Source              Source            `json:"source" yaml:"source"`
	Provider            string            `json:"provider,omitempty" yaml:"provider"`
	Name                string            `json:"name,omitempty" yaml:"name"`
	MonthlyPremiumCents int64             `json:"monthly_premium_cents,omitempty" yaml:"monthly_premium_cents"`
	CoverageSummary     string            `json:"coverage_summary,omitempty" yaml:"coverage_summary"`
	Details             map[string]string `json:"details,omitempty" yaml:"details"`
}

// ParseCategory normalizes a category name.
func ParseCategory(value string) (Category, bool) {
	category := Category(strings.ToLower(strings.TrimSpace(value)))
	return category, category.Valid()
}

// Valid reports whether c is a supported category.
func (c Category) Valid() bool {
	switch c {
	case CategoryTravel, CategoryAuto, CategoryPet, CategoryHealth:
		return true
	default:
		return false
	}
}

// Label returns the category's display label for the given language.
func (c Category) Label(tag language.Tag) string {
	return cases.Title(tag).String(string(c))
}

// ParseSource normalizes a source name. Empty input defaults to real.
func ParseSource(value string) (Source, bool) {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return SourceReal, true
	}
	source := Source(value)
	return source, source == SourceMock || source == SourceReal
}

// Normalize trims identifiers and lowercases enum fields without validating.
func Normalize(p Plan) Plan {
	p.ID = strings.TrimSpace(p.ID)
	p.Category = Category(strings.ToLower(strings.TrimSpace(string(p.Category))))
	p.Source = Source(strings.ToLower(strings.TrimSpace(string(p.Source))))
	p.Provider = strings.TrimSpace(p.Provider)
	p.Name = strings.TrimSpace(p.Name)
	return p
}

// Validate checks a normalized plan at an ingestion boundary. The selection
// store assumes its inputs already passed this check.
func Validate(p Plan) error {
	if strings.TrimSpace(p.ID) == "" {
		return ErrMissingID
	}
	if !p.Category.Valid() {
		return apperrors.WithMetadata(apperrors.CodePlanInvalidCategory, "plan category is invalid",
			map[string]string{"PlanID": p.ID, "Category": string(p.Category)})
	}
	if p.Source != SourceMock && p.Source != SourceReal {
		return apperrors.WithMetadata(apperrors.CodePlanInvalidSource, "plan source is invalid",
			map[string]string{"PlanID": p.ID, "Source": string(p.Source)})
	}
	return nil
}

// UniqueCategories returns the distinct categories of plans in first-seen order.
func UniqueCategories(plans []Plan) []Category {
	seen := make(map[Category]struct{}, len(plans))
	categories := make([]Category, 0, len(plans))
	for _, p := range plans {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		categories = append(categories, p.Category)
	}
	return categories
}
