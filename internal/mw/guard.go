package mw

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"axis-blue-backend/internal/backend"
)

// SettingsSource resolves the backing store address.
type SettingsSource interface {
	Settings() (backend.Settings, error)
}

// TokenSource returns the signed-in user's access token.
type TokenSource interface {
	Token() (string, bool)
}

// NeedsConfig writes the response sent while the backing store has no
// address.
func NeedsConfig(c *gin.Context, err error) {
	body := gin.H{"error": "needs configuration", "needs_config": true}
	if err != nil {
		body["detail"] = err.Error()
	}
	c.AbortWithStatusJSON(http.StatusServiceUnavailable, body)
}

// RequireConfig rejects requests until the backing store is configured.
func RequireConfig(settings SettingsSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := settings.Settings(); err != nil {
			if backend.IsConfig(err) {
				NeedsConfig(c, err)
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

// RequireSession rejects requests with no signed-in user and attaches the
// access token to the request context.
func RequireSession(tokens TokenSource) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := tokens.Token()
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not signed in"})
			return
		}
		c.Request = c.Request.WithContext(backend.WithToken(c.Request.Context(), token))
		c.Next()
	}
}
