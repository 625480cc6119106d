package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loadengine/backend/internal/infrastructure/logger"
	"github.com/loadengine/backend/internal/infrastructure/telemetry"
	"github.com/loadengine/backend/internal/interfaces/http/dto"
	"github.com/loadengine/backend/internal/interfaces/http/handler"
	"github.com/loadengine/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// EngineConfig holds everything NewEngine mounts
type EngineConfig struct {
	Logger         *zap.Logger
	Metrics        *telemetry.LoadMetrics
	Tracing        middleware.TracingConfig
	TrustedProxies []string
	MaxBodySize    int64
	RequestTimeout time.Duration
	APIVersion     string

	System     *handler.SystemHandler
	Registrars []RouteRegistrar
}

// NewEngine builds the gin engine with the shared middleware chain, the
// health and metrics endpoints and every registered API group
func NewEngine(cfg EngineConfig) (*gin.Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = "v1"
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	// Request ID must come first so every later layer can log it
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(cfg.Logger))
	engine.Use(logger.GinMiddleware(cfg.Logger))
	engine.Use(middleware.TracingWithConfig(cfg.Tracing))
	engine.Use(middleware.SpanEnricher())
	engine.Use(middleware.Secure())
	if cfg.Metrics != nil {
		engine.Use(cfg.Metrics.GinMiddleware())
	}
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	engine.Use(middleware.Timeout(cfg.RequestTimeout))

	if cfg.System != nil {
		engine.GET("/health", cfg.System.Health)
	}
	if cfg.Metrics != nil {
		engine.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
	}
	engine.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.NewErrorResponseWithRequestID(
			dto.ErrCodeNotFound, "route not found", c.GetString(middleware.RequestIDKey)))
	})

	r := NewRouter(engine, WithAPIVersion(cfg.APIVersion))
	for _, registrar := range cfg.Registrars {
		r.Register(registrar)
	}
	r.Setup()

	return engine, nil
}

// LoadRoutes builds the /load group. limit guards the dispatching endpoints
// and may be nil.
func LoadRoutes(loads *handler.LoadHandler, callbacks *handler.CallbackHandler, limit gin.HandlerFunc) *DomainGroup {
	g := NewDomainGroup("/load")
	g.GET("/references/:code", loads.GetByReference)
	g.GET("/orphans", loads.ListOrphans)
	g.POST("/callback/:apiKey", callbacks.Receive)

	dispatching := g.Group("")
	if limit != nil {
		dispatching.Use(limit)
	}
	dispatching.POST("/reload", loads.Reload)
	dispatching.POST("/query", loads.Query)

	return g
}
