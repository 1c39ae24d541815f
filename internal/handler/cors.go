package handler

import (
	"slices"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig lists the origins allowed to call the API from a browser.
type CORSConfig struct {
	// Origins may contain "*" to allow any origin.
	Origins []string
	// Credentials lets browsers send the session cookies cross-origin.
	Credentials bool
}

// CORS returns the cross-origin middleware for the API.
//
// Browsers reject a wildcard Access-Control-Allow-Origin on credentialed
// requests, so with Credentials set "*" accepts every origin and echoes it.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	c := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: cfg.Credentials,
		MaxAge:           24 * time.Hour,
	}

	wildcard := len(cfg.Origins) == 0 || slices.Contains(cfg.Origins, "*")
	switch {
	case wildcard && cfg.Credentials:
		c.AllowOriginFunc = func(string) bool { return true }
	case wildcard:
		c.AllowAllOrigins = true
	default:
		c.AllowOrigins = cfg.Origins
	}
	return cors.New(c)
}
