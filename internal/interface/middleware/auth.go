package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/storefront-admin/internal/domain/entity"
	"github.com/oksasatya/storefront-admin/pkg/response"
)

// Context keys set by RequireAdmin.
const (
	CtxUserID    = "userID"
	CtxUserEmail = "userEmail"
)

// IdentityLookup returns the identity signed in on a browser's dashboard,
// or nil.
type IdentityLookup interface {
	IdentityFor(clientID string) *entity.Identity
}

// RequireAdmin lets a request through only when the browser's dashboard is
// signed in with an email identity. Run it after ClientID.
func RequireAdmin(lookup IdentityLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientID := c.GetString(CtxClientID)
		if clientID == "" {
			response.Error[any](c, http.StatusUnauthorized, "missing client id", nil)
			return
		}
		id := lookup.IdentityFor(clientID)
		if !id.IsAdmin() {
			response.Error[any](c, http.StatusUnauthorized, "admin sign-in required", nil)
			return
		}
		c.Set(CtxUserID, id.ID)
		c.Set(CtxUserEmail, id.Email)
		c.Next()
	}
}
