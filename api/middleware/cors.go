package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/use-agent/crawlkit/config"
)

// CORS returns cross-origin middleware for the configured origins. "*"
// allows any origin. Origins without an http(s) scheme are skipped; with
// nothing left the middleware is a no-op.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}

	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		switch {
		case origin == "*":
			corsCfg.AllowAllOrigins = true
		case strings.HasPrefix(origin, "http://") || strings.HasPrefix(origin, "https://"):
			corsCfg.AllowOrigins = append(corsCfg.AllowOrigins, strings.TrimRight(origin, "/"))
		case origin != "":
			slog.Warn("ignoring CORS origin without http(s) scheme", "origin", origin)
		}
	}

	if corsCfg.AllowAllOrigins {
		// Credentials cannot be combined with a wildcard origin.
		corsCfg.AllowOrigins = nil
		corsCfg.AllowCredentials = false
	} else if len(corsCfg.AllowOrigins) == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return cors.New(corsCfg)
}
