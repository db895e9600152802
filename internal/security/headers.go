// Package security provides response hardening middleware for the inspector
// server.
package security

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// HeadersMiddleware adds security headers to all responses. The server only
// ever returns JSON, so the content security policy forbids everything.
func HeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("Permissions-Policy", "geolocation=(), microphone=(), camera=()")

		// Decoded cookies and signatures are per-visitor data.
		c.Header("Cache-Control", "no-store")

		c.Next()
	}
}

// CORSMiddleware allows browser tooling on the listed origins to call the
// inspector. "*" allows any origin, without credentials.
func CORSMiddleware(allowedOrigins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        24 * time.Hour,
	}
	if len(allowedOrigins) == 0 || slices.Contains(allowedOrigins, "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = allowedOrigins
	}
	return cors.New(cfg)
}
