package middleware

import (
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/blake2b"

	"github.com/stemsi/exstem-placement/internal/apiclient"
	"github.com/stemsi/exstem-placement/internal/response"
)

const (
	// ContextKeyToken is the Gin context key for the exam-service token.
	ContextKeyToken = "token"
	// ContextKeyOwner identifies whose sessions a request may touch.
	ContextKeyOwner = "owner"
)

// Token picks up the exam-service bearer token from the Authorization
// header, the auth cookie, or the ?token= query parameter (WebSocket clients
// cannot send headers). The token is forwarded on calls to the exam service;
// it is not verified here. A token whose exp claim has passed is rejected.
func Token(cookieName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c, cookieName)
		if token == "" {
			c.Next()
			return
		}

		owner, expired := ownerOf(token, time.Now())
		if expired {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenExpired)
			return
		}

		c.Set(ContextKeyToken, token)
		c.Set(ContextKeyOwner, owner)
		c.Request = c.Request.WithContext(apiclient.WithToken(c.Request.Context(), token))
		c.Next()
	}
}

// RequireToken rejects requests that carried no token.
func RequireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetOwner(c) == "" {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}
		c.Next()
	}
}

// GetOwner returns the session owner for the request, or "" if anonymous.
func GetOwner(c *gin.Context) string {
	return c.GetString(ContextKeyOwner)
}

// GetToken returns the bearer token for the request, or "".
func GetToken(c *gin.Context) string {
	return c.GetString(ContextKeyToken)
}

func extractToken(c *gin.Context, cookieName string) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token
			}
		}
	}

	if cookieName != "" {
		if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
			return cookie
		}
	}

	return c.Query("token")
}

// ownerOf derives a stable owner key: the JWT subject when the token is a
// JWT, otherwise a digest of the opaque token.
func ownerOf(token string, now time.Time) (owner string, expired bool) {
	if info, err := apiclient.InspectToken(token); err == nil {
		if info.Expired(now) {
			return "", true
		}
		if info.Subject != "" {
			return "sub-" + info.Subject, false
		}
	}
	sum := blake2b.Sum256([]byte(token))
	return "tok-" + hex.EncodeToString(sum[:12]), false
}
