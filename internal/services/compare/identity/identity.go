// Package identity authenticates bearer tokens into principals whose ID
// scopes client settings and selections.
package identity

import (
	"context"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/planmatch/internal/platform/errors"
)

// Principal is an authenticated user.
type Principal struct {
	UserID string
}

// Provider authenticates bearer tokens.
type Provider interface {
	Authenticate(ctx context.Context, bearerToken string) (Principal, error)
}

// StaticProvider maps fixed tokens to principals. It backs local runs and
// tests.
type StaticProvider struct {
	mu     sync.RWMutex
	tokens map[string]Principal
}

// NewStaticProvider returns a provider that accepts exactly the given tokens.
func NewStaticProvider(tokens map[string]string) *StaticProvider {
	p := &StaticProvider{tokens: make(map[string]Principal, len(tokens))}
	for token, userID := range tokens {
		p.Add(token, userID)
	}
	return p
}

// Add registers token for userID.
func (p *StaticProvider) Add(token, userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens[strings.TrimSpace(token)] = Principal{UserID: strings.TrimSpace(userID)}
}

// Authenticate resolves a registered token.
func (p *StaticProvider) Authenticate(ctx context.Context, bearerToken string) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}
	bearerToken = strings.TrimSpace(bearerToken)
	if bearerToken == "" {
		return Principal{}, apperrors.New(apperrors.CodeIdentityTokenInvalid, "bearer token is required")
	}
	p.mu.RLock()
	principal, ok := p.tokens[bearerToken]
	p.mu.RUnlock()
	if !ok || principal.UserID == "" {
		return Principal{}, apperrors.New(apperrors.CodeIdentityTokenInvalid, "bearer token is invalid")
	}
	return principal, nil
}

var (
	_ Provider = (*StaticProvider)(nil)
	_ Provider = (*JWTProvider)(nil)
)
