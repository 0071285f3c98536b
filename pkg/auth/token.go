package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/pkg/config"
)

const clockSkew = 30 * time.Second

var signingMethod = jwt.SigningMethodHS256

func secretOf(cfg config.JWTConfig) ([]byte, error) {
	if cfg.Secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return []byte(cfg.Secret), nil
}

// check enforces what the registered claims validation does not: a subject and a known role.
func (c *AccessTokenClaims) check() error {
	if strings.TrimSpace(c.Subject) == "" {
		return errors.New("jwt subject is required")
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("invalid principal role %q", c.Role)
	}
	return nil
}

// MintAccessToken signs a token shaped like the identity provider's. Local tooling and tests only.
func MintAccessToken(cfg config.JWTConfig, now time.Time, ttl time.Duration, payload AccessTokenPayload) (string, error) {
	key, err := secretOf(cfg)
	if err != nil {
		return "", err
	}
	if cfg.Issuer == "" {
		return "", errors.New("jwt issuer is required")
	}
	if ttl <= 0 {
		return "", errors.New("jwt ttl must be positive")
	}

	claims := &AccessTokenClaims{Email: payload.Email, Role: payload.Role}
	claims.Subject = payload.Subject
	claims.Issuer = cfg.Issuer
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	claims.ID = strings.TrimSpace(payload.JTI)
	if claims.ID == "" {
		claims.ID = uuid.NewString()
	}
	if err := claims.check(); err != nil {
		return "", err
	}

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("signing jwt: %w", err)
	}
	return signed, nil
}

// ParseAccessToken verifies signature, issuer and expiry, then returns the claims.
func ParseAccessToken(cfg config.JWTConfig, raw string) (*AccessTokenClaims, error) {
	key, err := secretOf(cfg)
	if err != nil {
		return nil, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(clockSkew),
	)
	claims := &AccessTokenClaims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return key, nil }); err != nil {
		return nil, err
	}
	if err := claims.check(); err != nil {
		return nil, err
	}
	return claims, nil
}
