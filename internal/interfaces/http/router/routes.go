package router

import (
	"github.com/gin-gonic/gin"
	"github.com/tourism/backoffice/internal/infrastructure/logger"
	"github.com/tourism/backoffice/internal/interfaces/http/handler"
	"github.com/tourism/backoffice/internal/interfaces/http/middleware"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers mounted on the engine
type Handlers struct {
	Sale     *handler.SaleHandler
	Cashback *handler.CashbackHandler
	System   *handler.SystemHandler
}

// EngineConfig configures the middleware stack
type EngineConfig struct {
	Logger         *zap.Logger
	Meter          metric.Meter
	TracingEnabled bool
	ServiceName    string
	CORS           middleware.CORSConfig
	MaxBodySize    int64
	TrustedProxies []string
	// TriggerSecret guards the manual expiry endpoint; empty refuses every call
	TriggerSecret string
}

// NewEngine builds the gin engine with the middleware stack and every route mounted
func NewEngine(cfg EngineConfig, h Handlers) *gin.Engine {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 1 << 20
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
			cfg.Logger.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Order: RequestID, Recovery, Logger, Secure, CORS, Tracing, Metrics, BodyLimit
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(cfg.Logger))
	engine.Use(logger.GinMiddleware(cfg.Logger, "/health"))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(cfg.CORS))
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.ServiceName,
		Enabled:     cfg.TracingEnabled,
	}))
	engine.Use(middleware.SpanErrorMarker())
	engine.Use(middleware.HTTPMetrics(cfg.Meter))
	engine.Use(middleware.BodyLimit(cfg.MaxBodySize))

	engine.GET("/health", h.System.Health)

	Mount(engine.Group(APIPrefix),
		SaleRoutes(h.Sale),
		ClientRoutes(h.Cashback),
		CashbackRoutes(h.Cashback, cfg.TriggerSecret),
		SystemRoutes(h.System),
	)

	return engine
}

// SaleRoutes mounts the sale endpoints under /sales
func SaleRoutes(h *handler.SaleHandler) *Group {
	return NewGroup("/sales").
		POST("", h.Create).
		GET("/:id", h.GetByID).
		PUT("/:id", h.Update).
		POST("/:id/cancel", h.Cancel).
		DELETE("/:id", h.Delete)
}

// ClientRoutes mounts the client cashback balance under /clients
func ClientRoutes(h *handler.CashbackHandler) *Group {
	return NewGroup("/clients").
		GET("/:id/cashback", h.ClientBalance)
}

// CashbackRoutes mounts the maintenance endpoints guarded by X-Cron-Secret
func CashbackRoutes(h *handler.CashbackHandler, secret string) *Group {
	return NewGroup("/cashback", middleware.SharedSecret(middleware.CronSecretHeader, secret)).
		POST("/expire", h.TriggerExpiry)
}

// SystemRoutes mounts the system information endpoint
func SystemRoutes(h *handler.SystemHandler) *Group {
	return NewGroup("/system").
		GET("/info", h.GetSystemInfo)
}

// DefaultCORS overlays the configured lists on the default CORS config
func DefaultCORS(origins, methods, headers []string) middleware.CORSConfig {
	cfg := middleware.DefaultCORSConfig()
	if len(origins) > 0 {
		cfg.AllowOrigins = origins
	}
	if len(methods) > 0 {
		cfg.AllowMethods = methods
	}
	if len(headers) > 0 {
		cfg.AllowHeaders = headers
	}
	return cfg
}
