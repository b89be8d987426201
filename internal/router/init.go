package router

import (
	"expvar"

	"github.com/oksasatya/storefront-admin/internal/container"
	handlers "github.com/oksasatya/storefront-admin/internal/interface/http"
	"github.com/oksasatya/storefront-admin/internal/router/modules"
	"github.com/oksasatya/storefront-admin/pkg/helpers"
)

// InitModules builds the HTTP handlers from c, registers their modules and
// returns the dashboard registry so the caller can sweep and close it.
func InitModules(r *Registry, c *container.Container) *handlers.DashboardRegistry {
	cfg := c.Config
	dashboards := handlers.NewDashboardRegistry(c.Auth, c.Products, c.Logger, cfg.RequestTimeout, cfg.DashboardIdleTTL)

	dashboards.MaxEntries = cfg.DashboardMax

	h := handlers.NewAdminHandler(dashboards, helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure), c.Logger)
	if c.Images != nil {
		h.Images = c.Images
	}
	if c.Indexer != nil {
		h.Search = c.Indexer
	}
	h.Notifier = c.Notifier

	r.Add(modules.NewAdminModule(h, c.Redis, cfg.LoginRateLimit, cfg.PageRateLimit))
	if cfg.DebugMetricsEnabled {
		publishDashboardCount(dashboards)
		r.Add(modules.NewDebugModule(c.Redis))
	}
	return dashboards
}

func publishDashboardCount(d *handlers.DashboardRegistry) {
	if expvar.Get("dashboards_open") != nil {
		return
	}
	expvar.Publish("dashboards_open", expvar.Func(func() any { return d.Len() }))
}
