package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/jwalitptl/rx-scheduler/internal/middleware"
	"github.com/jwalitptl/rx-scheduler/pkg/metrics"
)

// Handler registers its routes under the authenticated API group.
type Handler interface {
	RegisterRoutes(gin.IRouter)
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	health   Handler
	handlers []Handler
}

type RouterConfig struct {
	RateLimit      rate.Limit
	RateBurst      int
	RequestTimeout time.Duration
	MaxBodySize    int64
}

// NewRouter builds the engine with the core middleware chain. health is
// mounted at the root without authentication; handlers go under /api/v1.
func NewRouter(
	auth *middleware.AuthMiddleware,
	health Handler,
	m *metrics.Metrics,
	config RouterConfig,
	handlers ...Handler,
) (*Router, error) {
	if err := middleware.RegisterValidators(middleware.DefaultValidationConfig()); err != nil {
		return nil, err
	}

	engine := gin.New()

	timeout := middleware.DefaultTimeoutConfig()
	if config.RequestTimeout > 0 {
		timeout.Duration = config.RequestTimeout
	}
	sizeLimit := middleware.DefaultSizeLimitConfig()
	if config.MaxBodySize > 0 {
		sizeLimit.MaxBodySize = config.MaxBodySize
	}

	// Add core middlewares
	engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		middleware.Recovery(),
		middleware.Metrics(m),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.Timeout(timeout),
		middleware.ErrorHandler(),
	)

	if config.RateLimit > 0 {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}
	engine.Use(middleware.SizeLimit(sizeLimit))

	return &Router{
		engine:   engine,
		auth:     auth,
		health:   health,
		handlers: handlers,
	}, nil
}

func (r *Router) Setup() *gin.Engine {
	if r.health != nil {
		r.health.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api/v1")
	api.Use(r.auth.Authenticate())
	for _, h := range r.handlers {
		h.RegisterRoutes(api)
	}
	return r.engine
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
