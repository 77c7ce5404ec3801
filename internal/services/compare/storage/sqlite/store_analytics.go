package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/planmatch/internal/services/compare/storage"
)

// AppendAnalyticsEvent stores one analytics event.
func (s *Store) AppendAnalyticsEvent(ctx context.Context, evt storage.AnalyticsEvent) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	kind := strings.TrimSpace(evt.Kind)
	planID := strings.TrimSpace(evt.PlanID)
	if kind == "" {
		return fmt.Errorf("event kind is required")
	}
	if planID == "" {
		return fmt.Errorf("plan id is required")
	}
	occurredAt := evt.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = s.clock()
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO analytics_events (kind, plan_id, scope, occurred_at) VALUES (?, ?, ?, ?)`,
		kind,
		planID,
		strings.TrimSpace(evt.Scope),
		toMillis(occurredAt),
	)
	if err != nil {
		return fmt.Errorf("append analytics event: %w", err)
	}
	return nil
}

// ListAnalyticsEvents returns events for one plan in the order they were
// recorded.
func (s *Store) ListAnalyticsEvents(ctx context.Context, planID string) ([]storage.AnalyticsEvent, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	planID = strings.TrimSpace(planID)
	if planID == "" {
		return nil, fmt.Errorf("plan id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT kind, plan_id, scope, occurred_at
		   FROM analytics_events
		  WHERE plan_id = ?
		  ORDER BY id ASC`,
		planID,
	)
	if err != nil {
		return nil, fmt.Errorf("list analytics events: %w", err)
	}
	defer rows.Close()

	var events []storage.AnalyticsEvent
	for rows.Next() {
		var (
			evt        storage.AnalyticsEvent
			occurredAt int64
		)
		if err := rows.Scan(&evt.Kind, &evt.PlanID, &evt.Scope, &occurredAt); err != nil {
			return nil, fmt.Errorf("list analytics events: %w", err)
		}
		evt.OccurredAt = fromMillis(occurredAt)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list analytics events: %w", err)
	}
	return events, nil
}
