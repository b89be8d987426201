package middleware

import (
	"net"
	"net/http"

	"github.com/gin-gonic/gin"
)

// AllowFunc reports whether a request passes a check.
type AllowFunc func(*gin.Context) bool

// PrivateIP allows requests from loopback and private addresses.
func PrivateIP() AllowFunc {
	return func(c *gin.Context) bool {
		parsed := net.ParseIP(ClientIP(c))
		if parsed == nil {
			return false
		}
		return parsed.IsLoopback() || parsed.IsPrivate()
	}
}

// Only answers 404 to requests that allow rejects.
func Only(allow AllowFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		if allow != nil && !allow(c) {
			c.AbortWithStatus(http.StatusNotFound)
			return
		}
		c.Next()
	}
}
