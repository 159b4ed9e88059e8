package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"axis-blue-backend/internal/mw"
)

// RouterOptions tunes the middleware stack.
type RouterOptions struct {
	RateLimitPerSec float64
	RateLimitBurst  int
	CacheTTL        time.Duration

	// Limiter is shared so the caller can prune idle clients. One is created
	// when nil.
	Limiter *mw.IPRateLimiter
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, opts RouterOptions) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.Logger(h.logger))
	r.MaxMultipartMemory = h.maxUpload

	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	limiter := opts.Limiter
	if limiter == nil {
		limiter = mw.NewIPRateLimiter(rate.Limit(opts.RateLimitPerSec), opts.RateLimitBurst)
	}
	cacheStore := cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	caching := mw.Cache(cacheStore, opts.CacheTTL)
	requireConfig := mw.RequireConfig(h.backends)
	requireSession := mw.RequireSession(h.auth)

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter))
	{
		api.GET("/health", h.Health)
		api.GET("/env", h.Env)
		api.PUT("/config", h.PutConfig)
		api.DELETE("/config", h.DeleteConfig)

		auth := api.Group("/auth", requireConfig)
		auth.POST("/sign-in", h.SignIn)
		auth.POST("/sign-out", h.SignOut)
		auth.GET("/session", h.GetSession)

		api.GET("/catalog", caching, h.GetCatalog)

		api.GET("/day", h.GetDay)
		api.POST("/day/start", h.StartDay)
		api.POST("/day/end", h.EndDay)
		api.POST("/day/stores", h.AddStore)
		api.POST("/day/stores/catalog/:id", h.AddCatalogStore)
		api.POST("/day/stores/:id/move", h.MoveStore)
		api.DELETE("/day/stores/:id", h.RemoveStore)

		api.GET("/visits", h.ListVisits)
		api.POST("/visits", h.StartVisit)
		api.GET("/visits/:id", h.GetVisit)
		api.POST("/visits/:id/end", h.EndVisit)
		api.PATCH("/visits/:id", h.SaveVisit)
		api.POST("/visits/:id/urgent", h.FlagUrgent)
		api.POST("/visits/:id/captures", h.UploadCapture)
		api.POST("/visits/:id/scans", h.AddScan)
		api.GET("/captures/:id/file", h.GetCaptureFile)

		api.GET("/reports/morning", h.MorningRundown)
		api.GET("/reports/eod", h.EndOfDaySummary)
		api.GET("/reports/handoff", h.Handoff)
		api.GET("/reports/visits/:id", h.VisitReport)
		api.GET("/reports/history", h.ReportHistory)
		api.GET("/export", h.Export)
		api.POST("/import", h.Import)

		api.GET("/queue", h.GetQueue)
		api.POST("/queue/drain", requireConfig, requireSession, h.DrainQueue)

		api.GET("/memory", h.ListMemory)
		api.GET("/memory/:name", h.GetMemory)
		api.PUT("/memory/:name", h.PutMemory)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
