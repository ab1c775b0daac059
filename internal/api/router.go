package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"pond-status-backend/internal/mw"
)

// RouterOptions tunes the router-level middleware.
type RouterOptions struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router. The response cache
// only covers the pond registry; the status endpoint is polled once per
// second and must never serve stale reads.
func NewRouter(handler *Handler, opts RouterOptions) *gin.Engine {
	r := gin.Default()

	if opts.RateLimitPerSec <= 0 {
		opts.RateLimitPerSec = 10
	}
	if opts.RateLimitBurst <= 0 {
		opts.RateLimitBurst = 5
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}

	rateLimiter := mw.RateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst)

	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Lift-net status store: device write, client poll read.
		api.POST("/pond-status/:pond_id", handler.ReportPondStatus)
		api.GET("/pond-status/:pond_id", handler.GetPondStatus)

		// Pond registry.
		api.GET("/ponds", caching, handler.GetPonds)
		api.POST("/ponds", handler.CreatePond)
		api.GET("/ponds/:pond_id", handler.GetPond)
		api.GET("/ponds/:pond_id/lift-events", handler.GetLiftEvents)
		api.GET("/ponds/:pond_id/alerts", handler.GetPondAlerts)
		api.POST("/alerts/:alert_id/read", handler.MarkAlertRead)

		// Push subscriptions.
		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
