// Package auth verifies access tokens issued by the external identity service.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/herbtrace/backend/internal/domain/shared"
	"github.com/herbtrace/backend/internal/infrastructure/config"
)

// TokenType represents the type of JWT token
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// DefaultLeeway tolerates clock skew against the identity service
const DefaultLeeway = 30 * time.Second

// Common errors
var (
	ErrInvalidToken        = errors.New("invalid token")
	ErrExpiredToken        = errors.New("token has expired")
	ErrInvalidTokenType    = errors.New("invalid token type")
	ErrInvalidClaims       = errors.New("invalid token claims")
	ErrTokenNotYetValid    = errors.New("token is not yet valid")
	ErrMissingUserID       = errors.New("missing user_id in claims")
	ErrInvalidRole         = errors.New("unknown role in claims")
	ErrTokenRevoked        = errors.New("token has been revoked")
	ErrRevocationCheckFail = errors.New("token revocation check failed")
)

// Claims are the access token claims this service relies on
type Claims struct {
	jwt.RegisteredClaims
	UserID    string    `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Role      string    `json:"role"`
	TokenType TokenType `json:"token_type"`
}

// Actor returns the acting identity carried by the token
func (c *Claims) Actor() shared.Actor {
	return shared.Actor{ID: c.UserID, Role: shared.Role(c.Role)}
}

// GetIssuedAtTime returns the token's issued-at time as time.Time
func (c *Claims) GetIssuedAtTime() time.Time {
	if c.IssuedAt != nil {
		return c.IssuedAt.Time
	}
	return time.Time{}
}

// TokenVerifier validates HS256 access tokens. It never issues tokens.
type TokenVerifier struct {
	secret      []byte
	issuer      string
	leeway      time.Duration
	revocations RevocationList
}

// VerifierOption configures a TokenVerifier
type VerifierOption func(*TokenVerifier)

// WithRevocationList makes Verify reject revoked tokens
func WithRevocationList(list RevocationList) VerifierOption {
	return func(v *TokenVerifier) {
		v.revocations = list
	}
}

// WithLeeway overrides the allowed clock skew
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *TokenVerifier) {
		v.leeway = d
	}
}

// NewTokenVerifier creates a new TokenVerifier
func NewTokenVerifier(cfg config.JWTConfig, opts ...VerifierOption) *TokenVerifier {
	v := &TokenVerifier{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		leeway: DefaultLeeway,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify validates an access token and returns its claims
func (v *TokenVerifier) Verify(ctx context.Context, tokenString string) (*Claims, error) {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(v.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return v.secret, nil
	}, parserOpts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		if errors.Is(err, jwt.ErrTokenNotValidYet) {
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	if claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidTokenType
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, ErrMissingUserID
	}
	if !shared.Role(claims.Role).IsValid() {
		return nil, ErrInvalidRole
	}

	if v.revocations != nil {
		if err := v.checkRevocation(ctx, claims); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

// checkRevocation fails closed: a token is rejected when its status cannot be read
func (v *TokenVerifier) checkRevocation(ctx context.Context, claims *Claims) error {
	if claims.ID != "" {
		revoked, err := v.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRevocationCheckFail, err)
		}
		if revoked {
			return ErrTokenRevoked
		}
	}
	invalidated, err := v.revocations.IsUserInvalidated(ctx, claims.UserID, claims.GetIssuedAtTime())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationCheckFail, err)
	}
	if invalidated {
		return ErrTokenRevoked
	}
	return nil
}
