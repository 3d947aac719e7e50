package router

import (
	"github.com/erp/receivables/internal/infrastructure/logger"
	"github.com/erp/receivables/internal/interfaces/http/handler"
	"github.com/erp/receivables/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// EngineConfig holds the server-wide middleware settings
type EngineConfig struct {
	ServiceName    string
	CORS           middleware.CORSConfig
	TrustedProxies []string
	MaxBodyBytes   int64
	TracingEnabled bool
}

// DefaultMaxBodyBytes caps request bodies when EngineConfig leaves it unset
const DefaultMaxBodyBytes = 1 << 20

// NewEngine creates a gin engine with the global middleware chain, the
// system endpoints and, when gatherer is set, /metrics.
func NewEngine(cfg EngineConfig, log *zap.Logger, system *handler.SystemHandler, metrics *middleware.HTTPMetrics, gatherer prometheus.Gatherer) (*gin.Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, err
	}

	engine.Use(middleware.RequestID())
	if cfg.TracingEnabled {
		engine.Use(middleware.Tracing(cfg.ServiceName))
	}
	engine.Use(logger.Recovery(log), logger.GinMiddleware(log))
	if metrics != nil {
		engine.Use(metrics.Middleware())
	}
	engine.Use(middleware.CORS(cfg.CORS), middleware.BodyLimit(cfg.MaxBodyBytes))

	if system != nil {
		engine.GET("/health", system.Health)
		engine.GET("/system/info", system.GetSystemInfo)
		engine.GET("/system/ping", system.Ping)
	}
	if gatherer != nil {
		engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return engine, nil
}
