package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"geoattend-backend/internal/mw"
)

// RouterConfig carries the middleware tuning knobs.
type RouterConfig struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration
}

// NewRouter creates and configures a new Gin router.
func NewRouter(handler *Handler, cfg RouterConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheStore := cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	caching := mw.Cache(cacheStore, cfg.CacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		// Read-only site listing is cacheable; session state is not.
		api.GET("/sites", caching, handler.GetSites)

		api.GET("/attendance/:user_id", handler.GetAttendanceLogs)
		api.GET("/attendance/:user_id/session", handler.GetSession)
		api.POST("/attendance/:user_id/select-site", handler.SelectSite)
		api.POST("/attendance/:user_id/checkin", handler.CheckIn)
		api.POST("/attendance/:user_id/checkout", handler.CheckOut)
		api.POST("/attendance/:user_id/checkout/confirm", handler.ConfirmCheckOut)
		api.POST("/attendance/:user_id/checkout/decline", handler.DeclineCheckOut)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", handler.PutSubscription)
		api.DELETE("/subscriptions", handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
