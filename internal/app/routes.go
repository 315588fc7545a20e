package app

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/nine3/versions/internal/middleware"
	"github.com/nine3/versions/internal/modules/content/page"
	"github.com/nine3/versions/internal/modules/versions/actions"
	"github.com/nine3/versions/internal/modules/versions/legacy"
	"github.com/nine3/versions/internal/modules/versions/urls"
	"github.com/nine3/versions/internal/pkg/response"
)

const apiPrefix = "/api/v1"

func (a *App) registerRoutes() {
	r := a.router
	s := a.services
	rdb := a.redis.Raw()
	authMW := middleware.Auth()

	r.NoMethod(response.MethodNotAllowed)

	appInfo := gin.H{
		"name":    "nine3-versions",
		"version": "1.0.0",
		"site":    a.cfg.Site.URL,
	}

	api := r.Group(apiPrefix)
	api.Use(middleware.OptionalAuth())
	api.Use(middleware.Idempotence(rdb, idempotenceSkipPaths(apiPrefix)...))

	api.GET("", func(c *gin.Context) { c.PureJSON(http.StatusOK, appInfo) })
	api.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"data": "pong"}) })
	api.GET("/health", a.health)

	actions.NewHandler(s.Dispatcher, s.Tree).RegisterRoutes(api, authMW)
	legacy.NewHandler(s.Legacy, s.Deps.Meta).RegisterRoutes(api, authMW)
	page.NewHandler(s.Pages).RegisterRoutes(api, authMW)
	publicURLs := urls.NewHandler(s.Deps, s.Resolver, s.Linker, a.logger.Named("urls"))
	publicURLs.RegisterRoutes(api, authMW)

	api.POST("/clean_cache", authMW, func(c *gin.Context) {
		deleted, err := middleware.PurgeHTTPCache(c.Request.Context(), rdb)
		if err != nil {
			response.InternalError(c, err)
			return
		}
		if err := s.Tree.Invalidate(c.Request.Context()); err != nil {
			response.InternalError(c, err)
			return
		}
		response.OK(c, gin.H{"deleted": deleted})
	})

	// Everything outside the API is a public page URL.
	r.NoRoute(
		middleware.OptionalAuth(),
		middleware.RateLimit(rdb, a.cfg.Cache.RateLimit, a.logger),
		middleware.HTTPCache(rdb, middleware.HTTPCacheOptions{
			TTL:             a.cfg.HTTPCacheTTL(),
			EnableCDNHeader: true,
			Disable:         a.cfg.Cache.DisableHTTP || a.cfg.IsDev(),
			SkipPaths:       []string{apiPrefix + "/*"},
		}),
		publicURLs.Serve,
	)
}

func (a *App) health(c *gin.Context) {
	status := gin.H{"uptime": time.Since(processStart).Truncate(time.Second).String()}
	code := http.StatusOK
	if sqlDB, err := a.db.DB(); err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		status["database"] = "down"
		code = http.StatusServiceUnavailable
	} else {
		status["database"] = "up"
	}
	if err := a.redis.Ping(c.Request.Context()); err != nil {
		status["redis"] = "down"
		code = http.StatusServiceUnavailable
	} else {
		status["redis"] = "up"
	}
	c.JSON(code, status)
}

// idempotenceSkipPaths lists the editor actions that are safe, or expected,
// to be repeated with the same body.
func idempotenceSkipPaths(prefix string) []string {
	base := prefix + "/versions/actions/"
	var out []string
	for _, action := range []string{
		actions.ActionView,
		actions.ActionEdit,
		actions.ActionClone,
		actions.ActionClonePage,
		actions.ActionClear,
	} {
		out = append(out, base+action, base+"nine3v-"+action)
	}
	return out
}
