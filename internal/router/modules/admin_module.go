package modules

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	handlers "github.com/oksasatya/storefront-admin/internal/interface/http"
	"github.com/oksasatya/storefront-admin/internal/interface/middleware"
)

// AdminModule wires the dashboard pages and the product search API.
// Pages:  GET /, GET /admin, POST /admin/{login,logout,products,...}, GET /admin/stream
// API:    GET /api/products/search (admin only)
type AdminModule struct {
	Handler    *handlers.AdminHandler
	Redis      *redis.Client
	LoginLimit int
	// PageLimit bounds page and stream loads per IP; each can open a
	// dashboard and an anonymous session.
	PageLimit int
}

func NewAdminModule(h *handlers.AdminHandler, rdb *redis.Client, loginLimit, pageLimit int) *AdminModule {
	return &AdminModule{Handler: h, Redis: rdb, LoginLimit: loginLimit, PageLimit: pageLimit}
}

func (m *AdminModule) Register(rg *gin.RouterGroup) {
	h := m.Handler
	rg.GET("/", h.Index)
	rg.GET("/healthz", h.Health)

	admin := rg.Group("/admin")
	admin.Use(middleware.ClientID(h.Cookies))
	{
		loginLimiter := middleware.RateLimit(m.Redis, m.LoginLimit, time.Minute, middleware.KeyByIPAndPath(), nil)

		pageLimiter := middleware.RateLimit(m.Redis, m.PageLimit, time.Minute, middleware.KeyByIPAndPath(), nil)

		admin.GET("", pageLimiter, h.Page)
		admin.GET("/stream", pageLimiter, h.Stream)
		admin.POST("/login", loginLimiter, h.Login)
		admin.POST("/logout", h.Logout)

		writes := admin.Group("/products")
		writes.Use(middleware.RateLimit(m.Redis, 120, time.Minute, middleware.KeyByClient(), nil))
		writes.POST("", h.SaveProduct)
		writes.POST("/cancel", h.CancelEdit)
		writes.POST("/:id/edit", h.EditProduct)
		writes.POST("/:id/delete", h.DeleteProduct)
	}

	api := rg.Group("/api")
	api.Use(middleware.ClientID(h.Cookies), middleware.RequireAdmin(h.Dashboards))
	api.Use(middleware.RateLimit(m.Redis, 60, time.Minute, middleware.KeyByClient(), nil))
	api.GET("/products/search", h.SearchProducts)
}
