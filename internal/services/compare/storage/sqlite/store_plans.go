package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
	"github.com/louisbranch/planmatch/internal/services/compare/storage"
)

const planColumns = `id, category, provider, name, monthly_premium_cents, coverage_summary, details_json`

// PutPlan inserts or replaces one real catalog plan.
func (s *Store) PutPlan(ctx context.Context, p plan.Plan) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	p.Source = plan.SourceReal
	p = plan.Normalize(p)
	if err := plan.Validate(p); err != nil {
		return err
	}
	details := []byte("{}")
	if len(p.Details) > 0 {
		encoded, err := json.Marshal(p.Details)
		if err != nil {
			return fmt.Errorf("encode plan details: %w", err)
		}
		details = encoded
	}
	now := toMillis(s.clock())

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO plans (
		   id, category, provider, name, monthly_premium_cents,
		   coverage_summary, details_json, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
		   category = excluded.category,
		   provider = excluded.provider,
		   name = excluded.name,
		   monthly_premium_cents = excluded.monthly_premium_cents,
		   coverage_summary = excluded.coverage_summary,
		   details_json = excluded.details_json,
		   updated_at = excluded.updated_at`,
		p.ID,
		string(p.Category),
		p.Provider,
		p.Name,
		p.MonthlyPremiumCents,
		p.CoverageSummary,
		string(details),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("put plan: %w", err)
	}
	return nil
}

// GetPlan returns one real catalog plan by ID.
func (s *Store) GetPlan(ctx context.Context, planID string) (plan.Plan, error) {
	if err := s.ready(ctx); err != nil {
		return plan.Plan{}, err
	}
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return plan.Plan{}, fmt.Errorf("plan id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, planID)
	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return plan.Plan{}, storage.ErrNotFound
		}
		return plan.Plan{}, fmt.Errorf("get plan: %w", err)
	}
	return p, nil
}

// ListPlans returns one page of real catalog plans ordered by ID.
func (s *Store) ListPlans(ctx context.Context, query storage.PlanQuery) (storage.PlanPage, error) {
	if err := s.ready(ctx); err != nil {
		return storage.PlanPage{}, err
	}
	if query.PageSize <= 0 {
		return storage.PlanPage{}, fmt.Errorf("page size must be greater than zero")
	}

	var (
		conditions []string
		args       []any
	)
	if query.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(query.Category))
	}
	if where := strings.TrimSpace(query.Where); where != "" {
		conditions = append(conditions, "("+where+")")
		args = append(args, query.Args...)
	}
	if token := strings.TrimSpace(query.PageToken); token != "" {
		conditions = append(conditions, "id > ?")
		args = append(args, token)
	}

	statement := `SELECT ` + planColumns + ` FROM plans`
	if len(conditions) > 0 {
		statement += ` WHERE ` + strings.Join(conditions, " AND ")
	}
	statement += ` ORDER BY id ASC LIMIT ?`
	args = append(args, query.PageSize+1)

	rows, err := s.sqlDB.QueryContext(ctx, statement, args...)
	if err != nil {
		return storage.PlanPage{}, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	page := storage.PlanPage{Plans: make([]plan.Plan, 0, query.PageSize)}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return storage.PlanPage{}, fmt.Errorf("list plans: %w", err)
		}
		page.Plans = append(page.Plans, p)
	}
	if err := rows.Err(); err != nil {
		return storage.PlanPage{}, fmt.Errorf("list plans: %w", err)
	}
	if len(page.Plans) > query.PageSize {
		page.NextPageToken = page.Plans[query.PageSize-1].ID
		page.Plans = page.Plans[:query.PageSize]
	}
	return page, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (plan.Plan, error) {
	var (
		p        plan.Plan
		category string
		details  string
	)
	if err := row.Scan(
		&p.ID,
		&category,
		&p.Provider,
		&p.Name,
		&p.MonthlyPremiumCents,
		&p.CoverageSummary,
		&details,
	); err != nil {
		return plan.Plan{}, err
	}
	p.Category = plan.Category(category)
	p.Source = plan.SourceReal
	if details != "" && details != "{}" {
		if err := json.Unmarshal([]byte(details), &p.Details); err != nil {
			return plan.Plan{}, fmt.Errorf("decode plan details: %w", err)
		}
	}
	return p, nil
}
