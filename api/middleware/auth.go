package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/crawlkit/config"
	"github.com/use-agent/crawlkit/models"
)

// IdentityKey is the context key under which Auth stores the caller identity.
const IdentityKey = "api_key"

// Auth returns authentication middleware.
//
// Supports three credential styles:
//
//	X-API-Key: <key>
//	Authorization: Bearer <key>
//	Authorization: Basic <user:password>
//
// If neither API keys nor Basic credentials are configured, the middleware
// is a no-op (open access).
func Auth(cfg config.AuthConfig) gin.HandlerFunc {
	keys := make([][]byte, 0, len(cfg.APIKeys))
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys = append(keys, []byte(k))
		}
	}
	basic := cfg.BasicUser != "" && cfg.BasicPassword != ""

	if len(keys) == 0 && !basic {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		if user, pass, ok := c.Request.BasicAuth(); ok && basic {
			userOK := equal(user, cfg.BasicUser)
			passOK := equal(pass, cfg.BasicPassword)
			if userOK && passOK {
				c.Set(IdentityKey, "basic:"+user)
				c.Next()
				return
			}
			unauthorized(c, "invalid credentials")
			return
		}

		key := extractAPIKey(c)
		if key == "" {
			if basic {
				c.Header("WWW-Authenticate", `Basic realm="crawlkit"`)
			}
			unauthorized(c, "missing credentials: provide X-API-Key, Authorization: Bearer <key> or Basic auth")
			return
		}

		if !validKey(keys, key) {
			unauthorized(c, "invalid API key")
			return
		}

		c.Set(IdentityKey, key)
		c.Next()
	}
}

// extractAPIKey tries X-API-Key first, then Authorization: Bearer.
func extractAPIKey(c *gin.Context) string {
	if key := c.GetHeader("X-API-Key"); key != "" {
		return key
	}
	if auth := c.GetHeader("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

// validKey compares key against every configured key in constant time.
func validKey(keys [][]byte, key string) bool {
	found := 0
	for _, k := range keys {
		found |= subtle.ConstantTimeCompare(k, []byte(key))
	}
	return found == 1
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func unauthorized(c *gin.Context, msg string) {
	slog.Warn("unauthorized request", "path", c.Request.URL.Path, "ip", c.ClientIP())
	c.AbortWithStatusJSON(http.StatusUnauthorized, models.ErrorResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    models.ErrCodeUnauthorized,
			Message: msg,
		},
	})
}
