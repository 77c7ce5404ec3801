package identity

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/louisbranch/planmatch/internal/platform/config"
	apperrors "github.com/louisbranch/planmatch/internal/platform/errors"
)

// jwtEnv holds raw env values before post-parse validation.
type jwtEnv struct {
	Issuer    string `env:"PLANMATCH_IDENTITY_ISSUER"`
	Audience  string `env:"PLANMATCH_IDENTITY_AUDIENCE"`
	PublicKey string `env:"PLANMATCH_IDENTITY_PUBLIC_KEY"`
}

// JWTConfig defines how access tokens are verified.
type JWTConfig struct {
	Issuer   string
	Audience string
	Key      ed25519.PublicKey
	Now      func() time.Time
}

// Configured reports whether every verification field is set.
func (c JWTConfig) Configured() bool {
	return c.Issuer != "" && c.Audience != "" && len(c.Key) == ed25519.PublicKeySize
}

// LoadJWTConfigFromEnv reads token verification configuration. An entirely
// unset environment returns the zero config and no error so callers can fall
// back to anonymous sessions.
func LoadJWTConfigFromEnv(now func() time.Time) (JWTConfig, error) {
	var raw jwtEnv
	if err := config.ParseEnv(&raw); err != nil {
		return JWTConfig{}, fmt.Errorf("parse identity env: %w", err)
	}
	issuer := strings.TrimSpace(raw.Issuer)
	audience := strings.TrimSpace(raw.Audience)
	publicKey := strings.TrimSpace(raw.PublicKey)
	if issuer == "" && audience == "" && publicKey == "" {
		return JWTConfig{}, nil
	}
	if issuer == "" {
		return JWTConfig{}, fmt.Errorf("PLANMATCH_IDENTITY_ISSUER is required")
	}
	if audience == "" {
		return JWTConfig{}, fmt.Errorf("PLANMATCH_IDENTITY_AUDIENCE is required")
	}
	if publicKey == "" {
		return JWTConfig{}, fmt.Errorf("PLANMATCH_IDENTITY_PUBLIC_KEY is required")
	}
	keyBytes, err := decodeBase64(publicKey)
	if err != nil {
		return JWTConfig{}, fmt.Errorf("decode identity public key: %w", err)
	}
	if len(keyBytes) != ed25519.PublicKeySize {
		return JWTConfig{}, fmt.Errorf("identity public key must be %d bytes", ed25519.PublicKeySize)
	}
	if now == nil {
		now = time.Now
	}
	return JWTConfig{
		Issuer:   issuer,
		Audience: audience,
		Key:      ed25519.PublicKey(keyBytes),
		Now:      now,
	}, nil
}

// JWTProvider verifies EdDSA-signed access tokens.
type JWTProvider struct {
	cfg JWTConfig
}

// NewJWTProvider validates cfg and returns a provider.
func NewJWTProvider(cfg JWTConfig) (*JWTProvider, error) {
	if !cfg.Configured() {
		return nil, errors.New("identity verifier is not configured")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &JWTProvider{cfg: cfg}, nil
}

// Authenticate verifies bearerToken and returns its subject.
func (p *JWTProvider) Authenticate(ctx context.Context, bearerToken string) (Principal, error) {
	if err := ctx.Err(); err != nil {
		return Principal{}, err
	}
	if p == nil || !p.cfg.Configured() {
		return Principal{}, errors.New("identity verifier is not configured")
	}
	bearerToken = strings.TrimSpace(bearerToken)
	if bearerToken == "" {
		return Principal{}, apperrors.New(apperrors.CodeIdentityTokenInvalid, "bearer token is required")
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(bearerToken, &parsed, func(token *jwt.Token) (any, error) {
		return p.cfg.Key, nil
	},
		jwt.WithValidMethods([]string{"EdDSA"}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return Principal{}, mapJWTError(err)
	}

	if parsed.Issuer == "" || parsed.Issuer != p.cfg.Issuer {
		return Principal{}, apperrors.WithMetadata(
			apperrors.CodeIdentityTokenMismatch,
			"token issuer mismatch",
			map[string]string{"Field": "issuer"},
		)
	}
	if !slices.Contains(parsed.Audience, p.cfg.Audience) {
		return Principal{}, apperrors.WithMetadata(
			apperrors.CodeIdentityTokenMismatch,
			"token audience mismatch",
			map[string]string{"Field": "audience"},
		)
	}
	if parsed.ExpiresAt == nil {
		return Principal{}, apperrors.New(apperrors.CodeIdentityTokenInvalid, "token exp is required")
	}

	now := p.cfg.Now().UTC()
	if !parsed.ExpiresAt.Time.UTC().After(now) {
		return Principal{}, apperrors.New(apperrors.CodeIdentityTokenExpired, "token is expired")
	}
	if parsed.NotBefore != nil && now.Before(parsed.NotBefore.Time.UTC()) {
		return Principal{}, apperrors.New(apperrors.CodeIdentityTokenInvalid, "token not active yet")
	}

	subject := strings.TrimSpace(parsed.Subject)
	if subject == "" {
		return Principal{}, apperrors.New(apperrors.CodeIdentityTokenInvalid, "token sub is required")
	}
	return Principal{UserID: subject}, nil
}

// mapJWTError translates jwt library errors to application errors.
func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenSignatureInvalid) || errors.Is(err, jwt.ErrEd25519Verification) {
		return apperrors.New(apperrors.CodeIdentityTokenInvalid, "token signature is invalid")
	}
	if errors.Is(err, jwt.ErrTokenUnverifiable) {
		return apperrors.New(apperrors.CodeIdentityTokenInvalid, "token alg is invalid")
	}
	return apperrors.New(apperrors.CodeIdentityTokenInvalid, "token is invalid")
}

func decodeBase64(value string) ([]byte, error) {
	if value == "" {
		return nil, errors.New("empty base64 value")
	}
	decoded, err := base64.RawStdEncoding.DecodeString(value)
	if err == nil {
		return decoded, nil
	}
	return base64.StdEncoding.DecodeString(value)
}
