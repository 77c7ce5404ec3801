package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Get reads one client setting. Missing settings report false.
func (s *Store) Get(ctx context.Context, scope, key string) (string, bool, error) {
	if err := s.ready(ctx); err != nil {
		return "", false, err
	}
	scope = strings.TrimSpace(scope)
	key = strings.TrimSpace(key)
	if scope == "" {
		return "", false, fmt.Errorf("scope is required")
	}
	if key == "" {
		return "", false, fmt.Errorf("key is required")
	}

	var value string
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT value FROM client_settings WHERE scope = ? AND setting_key = ?`,
		scope,
		key,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("get client setting: %w", err)
	}
	return value, true, nil
}

// Set writes one client setting, replacing any previous value.
func (s *Store) Set(ctx context.Context, scope, key, value string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	scope = strings.TrimSpace(scope)
	key = strings.TrimSpace(key)
	if scope == "" {
		return fmt.Errorf("scope is required")
	}
	if key == "" {
		return fmt.Errorf("key is required")
	}

	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO client_settings (scope, setting_key, value, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (scope, setting_key) DO UPDATE SET
		   value = excluded.value,
		   updated_at = excluded.updated_at`,
		scope,
		key,
		value,
		toMillis(s.clock()),
	)
	if err != nil {
		return fmt.Errorf("set client setting: %w", err)
	}
	return nil
}
