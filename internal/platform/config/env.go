// Package config loads process configuration from the environment.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Prefix is the environment variable prefix shared by planmatch commands.
const Prefix = "PLANMATCH_"

// ParseEnv loads configuration from environment variables into target.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseEnvWithOptions loads configuration using an explicit environment map.
// Tests use it to avoid mutating the process environment.
func ParseEnvWithOptions(target any, environment map[string]string) error {
	if err := env.ParseWithOptions(target, env.Options{Environment: environment}); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// ParseBool parses a persisted boolean-as-string value.
// It accepts the strconv spellings and reports false for anything else.
func ParseBool(value string) (bool, bool) {
	parsed, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		return false, false
	}
	return parsed, true
}
