// Package source resolves which plan catalogs a client sees: synthetic mock
// plans, real provider plans, or both.
//
// The effective mode is derived from a pair of flags. Mixed mode always wins;
// otherwise UseMockPlans picks between the mock and real catalogs:
//
//	UseMockPlans  EnableMixedMode  mode
//	false         false            real
//	true          false            mock
//	false         true             mixed
//	true          true             mixed
package source

import (
	"github.com/louisbranch/planmatch/internal/services/compare/domain/plan"
)

// Mode is the effective plan-data mode.
type Mode string

const (
	ModeMock  Mode = "mock"
	ModeReal  Mode = "real"
	ModeMixed Mode = "mixed"
)

// Persisted client setting keys. The values are booleans rendered as strings.
const (
	KeyUseMockPlans    = "planmatch.useMockPlans"
	KeyEnableMixedMode = "planmatch.enableMixedMode"
)

// Config is the plan source flag pair. The command layer fills the build-time
// defaults from the environment once at startup.
type Config struct {
	UseMockPlans    bool `env:"PLANMATCH_USE_MOCK_PLANS"`
	EnableMixedMode bool `env:"PLANMATCH_ENABLE_MIXED_MODE"`
}

// EffectiveMode computes the mode for c.
func (c Config) EffectiveMode() Mode {
	if c.EnableMixedMode {
		return ModeMixed
	}
	if c.UseMockPlans {
		return ModeMock
	}
	return ModeReal
}

// ShowMock reports whether mock plans are visible under c.
func (c Config) ShowMock() bool {
	return c.UseMockPlans || c.EnableMixedMode
}

// ShowReal reports whether real plans are visible under c. In mixed mode both
// ShowMock and ShowReal hold.
func (c Config) ShowReal() bool {
	return !c.UseMockPlans || c.EnableMixedMode
}

// Visible reports whether p is visible under c, by its catalog source.
func (c Config) Visible(p plan.Plan) bool {
	switch p.Source {
	case plan.SourceMock:
		return c.ShowMock()
	case plan.SourceReal:
		return c.ShowReal()
	default:
		return false
	}
}
