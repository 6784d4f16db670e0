// routes.go - Route registration helpers
// This file provides a clean way to register all API routes
package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/floorwatch/backend/internal/gateway"
	"github.com/floorwatch/backend/internal/stats"
	"github.com/floorwatch/backend/internal/store"
	"github.com/floorwatch/backend/internal/view"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Store   *store.Store
	Gateway *gateway.Gateway
	Feed    *gateway.Feed
	Lookups Lookups
	Rules   stats.Rules
	FileURL string
	Version string
	// StreamPhase reports the live-stream phase for health checks.
	StreamPhase func() string

	// AllowOrigins restricts WebSocket upgrades to these browser origins.
	AllowOrigins          []string
	WebSocketMaxMessageKB int
	Logger                *slog.Logger
}

// Handlers holds all handler instances
type Handlers struct {
	Health  HealthHandler
	LiveRun LiveRunHandler
	Actions ActionHandler
	Lookups LookupHandler
	Socket  LiveSocketHandler
}

// NewHandlers creates all handler instances
func NewHandlers(deps *Dependencies) *Handlers {
	liveRun := NewLiveRunHandler(deps.Store, view.NewProjector(deps.Store), deps.Rules, deps.FileURL)
	return &Handlers{
		Health:  NewHealthHandler(deps.Version, deps.Store, deps.StreamPhase),
		LiveRun: liveRun,
		Actions: NewActionHandler(deps.Gateway, deps.Feed),
		Lookups: NewLookupHandler(deps.Lookups),
		Socket:  NewLiveSocketHandler(liveRun, deps.Store, deps.Feed, deps.AllowOrigins, deps.WebSocketMaxMessageKB, deps.Logger),
	}
}

// RegisterRoutes registers all API routes with the Echo instance
func RegisterRoutes(e *echo.Echo, handlers *Handlers) {
	apiGroup := e.Group("/api")

	// Health check
	apiGroup.GET("/health", handlers.Health.HandleHealth)

	// Live-run view
	liveGroup := apiGroup.Group("/live-run")
	liveGroup.GET("", handlers.LiveRun.HandleGetLiveRun)
	liveGroup.GET("/msgpack", handlers.LiveRun.HandleGetLiveRunMsgpack)
	liveGroup.PUT("/filter", handlers.LiveRun.HandleUpdateFilter)
	liveGroup.GET("/summary", handlers.LiveRun.HandleGetSummary)
	liveGroup.GET("/machines/:machineNumber/stats", handlers.LiveRun.HandleGetMachineStats)

	// Operator actions
	liveGroup.PATCH("/current/:machineNumber", handlers.Actions.HandleReassignLiveRun)
	liveGroup.POST("/notes/:machineUid", handlers.Actions.HandleAppendNote)
	liveGroup.GET("/actions/:key", handlers.Actions.HandleGetActionStatus)
	apiGroup.GET("/notifications", handlers.Actions.HandleGetNotifications)

	// Reference data
	apiGroup.GET("/lookups/:kind", handlers.Lookups.HandleGetLookup)

	// WebSocket endpoint
	apiGroup.GET("/ws/live", handlers.Socket.HandleLiveSocket)
}

// MiddlewareConfig carries the server settings middleware depends on
type MiddlewareConfig struct {
	AllowOrigins     []string
	EnableCORS       bool
	BodyLimit        string
	RequestTimeout   time.Duration
	RequestLogging   bool
	ShowErrorDetails bool
	Logger           *slog.Logger
}

// SetupMiddleware configures common middleware
func SetupMiddleware(e *echo.Echo, cfg MiddlewareConfig) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	// Use custom error handler
	e.HTTPErrorHandler = NewErrorHandler(cfg.ShowErrorDetails, log)

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper: func(c echo.Context) bool {
			return !cfg.RequestLogging || c.Request().URL.Path == "/api/health"
		},
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency}
			if v.Error != nil {
				log.Warn("request", append(attrs, "err", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 1024 * 4,
	}))

	if cfg.RequestTimeout > 0 {
		e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
			Timeout: cfg.RequestTimeout,
			Skipper: func(c echo.Context) bool {
				// Action submissions carry their own backend timeout
				path := c.Request().URL.Path
				return strings.HasPrefix(path, "/api/ws/") ||
					strings.HasPrefix(path, "/api/live-run/current/") ||
					strings.HasPrefix(path, "/api/live-run/notes/")
			},
			ErrorMessage: "Request timeout",
		}))
	}

	e.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Skipper: func(c echo.Context) bool {
			return strings.HasPrefix(c.Request().URL.Path, "/api/ws/")
		},
	}))

	if cfg.BodyLimit != "" {
		e.Use(middleware.BodyLimit(cfg.BodyLimit))
	}

	if cfg.EnableCORS {
		origins := cfg.AllowOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins: origins,
			AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
			AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
		}))
	}
}
