package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/oksasatya/storefront-admin/pkg/helpers"
)

// CtxClientID is the gin context key holding the browser's client id.
const CtxClientID = "client_id"

const clientIDLifetime = 365 * 24 * time.Hour

// ClientID makes sure every browser carries a client_id cookie. The id picks
// the browser's dashboard.
func ClientID(cookies *helpers.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(helpers.ClientIDCookie)
		if _, perr := uuid.Parse(id); err != nil || perr != nil {
			id = uuid.NewString()
			cookies.SetClientID(c, id, time.Now().Add(clientIDLifetime))
		}
		c.Set(CtxClientID, id)
		c.Next()
	}
}
