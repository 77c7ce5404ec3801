package catalog

import (
	"context"
	"fmt"
	"io"

	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"github.com/louisbranch/planmatch/internal/services/compare/storage"
)

// ImportPlans reads a YAML plan document into the real catalog. The whole
// document is validated before any plan is written. It returns the number of
// plans stored.
func ImportPlans(ctx context.Context, store storage.PlanStore, r io.Reader) (int, error) {
	if store == nil {
		return 0, fmt.Errorf("plan store is required")
	}
	if r == nil {
		return 0, fmt.Errorf("reader is required")
	}
	plans, err := decodePlans(r, plan.SourceReal)
	if err != nil {
		return 0, fmt.Errorf("import plans: %w", err)
	}
	for i, p := range plans {
		if err := store.PutPlan(ctx, p); err != nil {
			return i, fmt.Errorf("import plan %s: %w", p.ID, err)
		}
	}
	return len(plans), nil
}
