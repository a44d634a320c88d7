package middleware

import (
	"fmt"

	"github.com/gin-gonic/gin"
)

// CacheControl marks responses as publicly cacheable for maxAgeSeconds.
func CacheControl(maxAgeSeconds int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", fmt.Sprintf("public, max-age=%d", maxAgeSeconds))
		c.Next()
	}
}

// NoStore forbids caching of per-session responses.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}
