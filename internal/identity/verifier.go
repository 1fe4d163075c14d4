package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v2"
	"github.com/golang-jwt/jwt/v5"

	"messaging-service/internal/models"
)

var ErrInvalidToken = errors.New("invalid token")

// Verifier turns a provider-issued bearer token into identity claims.
type Verifier interface {
	Verify(ctx context.Context, token string) (models.Identity, error)
}

// JWKSVerifier validates tokens against the identity provider's JWKS endpoint.
type JWKSVerifier struct {
	jwks     *keyfunc.JWKS
	issuer   string
	audience string
}

// NewJWKSVerifier fetches the key set and keeps it refreshed in the background.
func NewJWKSVerifier(ctx context.Context, jwksURL, issuer, audience string, refreshEvery time.Duration) (*JWKSVerifier, error) {
	if jwksURL == "" {
		return nil, errors.New("jwks url is required")
	}

	jwks, err := keyfunc.Get(jwksURL, keyfunc.Options{
		Ctx:               ctx,
		RefreshInterval:   refreshEvery,
		RefreshUnknownKID: true,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch jwks: %w", err)
	}

	return &JWKSVerifier{jwks: jwks, issuer: issuer, audience: audience}, nil
}

// Verify parses and validates the token and extracts the narrow identity
// contract. Unvalidated provider fields never leave this boundary.
func (v *JWKSVerifier) Verify(ctx context.Context, token string) (models.Identity, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := jwt.MapClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.jwks.Keyfunc, opts...)
	if err != nil || !parsed.Valid {
		return models.Identity{}, ErrInvalidToken
	}

	subject, _ := claims.GetSubject()
	if subject == "" {
		return models.Identity{}, ErrInvalidToken
	}

	return models.Identity{
		Subject:     subject,
		DisplayName: stringClaim(claims, "name"),
		Email:       stringClaim(claims, "email"),
		AvatarURL:   stringClaim(claims, "picture"),
	}, nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	if val, ok := claims[key].(string); ok {
		return val
	}
	return ""
}
