package apiclient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type (
	tokenKey     struct{}
	requestIDKey struct{}
)

// WithToken returns a context carrying the bearer token for outgoing calls.
// An empty token leaves the request anonymous.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, strings.TrimSpace(token))
}

// TokenFrom returns the bearer token stored in ctx, if any.
func TokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// WithRequestID returns a context whose outgoing calls reuse id as their
// X-Request-ID, so a runner request can be traced into the backend.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request ID stored in ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// TokenInfo is what the runner can tell about a token without the signing key.
type TokenInfo struct {
	Subject   string
	ExpiresAt *time.Time
}

// Expired reports whether the token carries an expiry in the past.
func (i TokenInfo) Expired(now time.Time) bool {
	return i.ExpiresAt != nil && !now.Before(*i.ExpiresAt)
}

// InspectToken decodes the claims of a JWT without verifying its signature.
// The backend verifies; the runner only uses this for logging and warnings.
func InspectToken(token string) (TokenInfo, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return TokenInfo{}, fmt.Errorf("parse token: %w", err)
	}

	info := TokenInfo{Subject: claims.Subject}
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		info.ExpiresAt = &exp
	}
	return info, nil
}
