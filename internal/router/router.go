package router

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/booking-api/internal/middleware"
	"github.com/jwalitptl/booking-api/pkg/logger"
	"github.com/jwalitptl/booking-api/pkg/metrics"
)

type Handler interface {
	RegisterRoutes(gin.IRouter)
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	health   Handler
	metricsH Handler
	api      []Handler
}

type RouterConfig struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
}

// NewRouter builds the engine with the core middleware chain. api handlers
// are mounted under /api/v1 behind authentication; health and metrics stay
// public.
func NewRouter(
	auth *middleware.AuthMiddleware,
	health Handler,
	metricsH Handler,
	api []Handler,
	log *logger.Logger,
	m *metrics.Metrics,
	config RouterConfig,
) *Router {
	// Set production mode
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New() // Use New() instead of Default() for more control

	r := &Router{
		engine:   engine,
		auth:     auth,
		health:   health,
		metricsH: metricsH,
		api:      api,
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Recovery(log),
		middleware.Logger(log),
		middleware.ErrorHandler(log),
		middleware.Metrics(m),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(r.engine)
	r.metricsH.RegisterRoutes(r.engine)

	api := r.engine.Group("/api/v1")

	// Add version header
	api.Use(func(c *gin.Context) {
		c.Header("X-API-Version", "1.0")
		c.Next()
	})
	api.Use(r.auth.Authenticate())

	for _, h := range r.api {
		h.RegisterRoutes(api)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
