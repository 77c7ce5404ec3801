package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/louisbranch/planmatch/internal/services/compare/catalog/filter"
	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"gopkg.in/yaml.v3"
)

//go:embed fixtures/mock_plans.yaml
var mockPlansYAML string

// planDocument is the YAML layout shared by the mock fixture and catalog
// imports.
type planDocument struct {
	Plans []plan.Plan `yaml:"plans"`
}

// MockCatalog is an immutable set of synthetic plans ordered by ID.
type MockCatalog struct {
	plans []plan.Plan
	byID  map[string]int
}

// DefaultMockCatalog loads the embedded mock plan fixture.
func DefaultMockCatalog() (*MockCatalog, error) {
	return LoadMockCatalog(strings.NewReader(mockPlansYAML))
}

// LoadMockCatalog decodes a plan document and marks every plan as mock.
func LoadMockCatalog(r io.Reader) (*MockCatalog, error) {
	plans, err := decodePlans(r, plan.SourceMock)
	if err != nil {
		return nil, fmt.Errorf("load mock catalog: %w", err)
	}
	slices.SortFunc(plans, func(a, b plan.Plan) int { return strings.Compare(a.ID, b.ID) })
	byID := make(map[string]int, len(plans))
	for i, p := range plans {
		byID[p.ID] = i
	}
	return &MockCatalog{plans: plans, byID: byID}, nil
}

// Len returns the number of mock plans.
func (c *MockCatalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.plans)
}

// Get returns one mock plan by ID.
func (c *MockCatalog) Get(planID string) (plan.Plan, bool) {
	if c == nil {
		return plan.Plan{}, false
	}
	idx, ok := c.byID[strings.TrimSpace(planID)]
	if !ok {
		return plan.Plan{}, false
	}
	return c.plans[idx], true
}

// List returns up to limit plans with IDs after the given cursor that match
// category and f. An empty category matches all categories.
func (c *MockCatalog) List(category plan.Category, f filter.Filter, after string, limit int) []plan.Plan {
	if c == nil || limit <= 0 {
		return nil
	}
	out := make([]plan.Plan, 0, min(limit, len(c.plans)))
	for _, p := range c.plans {
		if after != "" && p.ID <= after {
			continue
		}
		if category != "" && p.Category != category {
			continue
		}
		if !f.Match(p) {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

// decodePlans reads a plan document, forcing every plan to source and
// rejecting invalid plans or duplicate IDs.
func decodePlans(r io.Reader, source plan.Source) ([]plan.Plan, error) {
	var doc planDocument
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode plans: %w", err)
	}

	seen := make(map[string]struct{}, len(doc.Plans))
	plans := make([]plan.Plan, 0, len(doc.Plans))
	for i, p := range doc.Plans {
		p.Source = source
		p = plan.Normalize(p)
		if err := plan.Validate(p); err != nil {
			return nil, fmt.Errorf("plan %d: %w", i, err)
		}
		if _, ok := seen[p.ID]; ok {
			return nil, fmt.Errorf("plan %d: duplicate id %q", i, p.ID)
		}
		seen[p.ID] = struct{}{}
		plans = append(plans, p)
	}
	return plans, nil
}
