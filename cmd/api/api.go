package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/therealutkarshpriyadarshi/substills/internal/background"
	"github.com/therealutkarshpriyadarshi/substills/internal/bridge"
	"github.com/therealutkarshpriyadarshi/substills/internal/content"
	"github.com/therealutkarshpriyadarshi/substills/internal/controller"
	"github.com/therealutkarshpriyadarshi/substills/internal/database"
	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/internal/middleware"
	"github.com/therealutkarshpriyadarshi/substills/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

type historyStore interface {
	CreateCapture(ctx context.Context, capture *models.Capture) error
	GetCapture(ctx context.Context, id string) (*models.Capture, error)
	ListCaptures(ctx context.Context, filter database.CaptureFilter) ([]*models.Capture, error)
	SetObjectKey(ctx context.Context, id, key string) error
	DeleteCapture(ctx context.Context, id string) error
	Stats(ctx context.Context) (*database.CaptureStats, error)
}

type preferenceStore interface {
	EnsureDefaults(ctx context.Context) (bool, error)
	GetPreferences(ctx context.Context) (models.Preferences, error)
	SetPreferences(ctx context.Context, prefs models.Preferences) error
}

type lastCaptureStore interface {
	GetLastCapture(ctx context.Context) (*models.Capture, error)
	SetLastCapture(ctx context.Context, capture *models.Capture) error
}

type objectStore interface {
	SaveCapture(ctx context.Context, capture *models.Capture) (string, error)
	DownloadURL(ctx context.Context, objectName, filename string) (string, error)
	Delete(ctx context.Context, objectName string) error
}

type commandPublisher interface {
	PublishCommand(ctx context.Context, cmd *models.Command) error
}

type healthChecker interface {
	Health(ctx context.Context) error
}

// API serves the agent: the page agent pushes tab snapshots, callers drive
// captures, browse history and edit preferences.
type API struct {
	sessions   *content.Sessions
	screen     *background.StaticScreen
	background *background.Service
	controller *controller.Controller
	prefs      preferenceStore
	last       lastCaptureStore

	// optional
	history  historyStore
	objects  objectStore
	commands commandPublisher
	checks   map[string]healthChecker
	monitor  *monitoring.Monitor

	pageTransport bridge.Transport
	auth          *middleware.BridgeAuth
	limiter       *middleware.RateLimiter
	logger        *logging.Logger
}

// Deps are what main hands to the API; nil optional fields disable features
type Deps struct {
	Sessions    *content.Sessions
	Screen      *background.StaticScreen
	Background  *background.Service
	Preferences preferenceStore
	Last        lastCaptureStore
	History     historyStore
	Objects     objectStore
	Commands    commandPublisher
	Checks      map[string]healthChecker
	Monitor     *monitoring.Monitor
	Auth        *middleware.BridgeAuth
	Limiter     *middleware.RateLimiter
	Logger      *logging.Logger
}

// NewAPI wires the two contexts together over in-process bridge transports
func NewAPI(d Deps, opts controller.Options) *API {
	logger := d.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	auth := d.Auth
	if auth == nil {
		auth = middleware.NewBridgeAuth("")
	}

	api := &API{
		sessions:   d.Sessions,
		screen:     d.Screen,
		background: d.Background,
		prefs:      d.Preferences,
		last:       d.Last,
		history:    d.History,
		objects:    d.Objects,
		commands:   d.Commands,
		checks:     d.Checks,
		monitor:    d.Monitor,
		auth:       auth,
		limiter:    d.Limiter,
		logger:     logger.WithComponent("api"),
	}

	if api.monitor == nil {
		api.monitor = monitoring.NewMonitor().WithTabs(d.Sessions).WithLogger(logger)
		if d.History != nil {
			api.monitor.WithStats(d.History)
		}
	}

	api.pageTransport = bridge.NewInProcess(bridge.PageHandler(api.resolvePage))
	bgClient := bridge.NewBackgroundClient(bridge.NewInProcess(bridge.BackgroundHandler(d.Background)), logger)

	opts.Preferences = d.Preferences
	opts.Last = d.Last
	if d.History != nil {
		opts.History = d.History
	}
	if d.Objects != nil {
		opts.Sink = d.Objects
	}
	if opts.Logger == nil {
		opts.Logger = logger
	}
	api.controller = controller.New(func(tabID string) (bridge.PageService, error) {
		if _, err := api.sessions.Get(tabID); err != nil {
			return nil, err
		}
		return bridge.NewPageClient(api.pageTransport, tabID, logger), nil
	}, bgClient, opts)

	return api
}

func (api *API) resolvePage(tabID string) (bridge.PageService, error) {
	return api.sessions.Get(tabID)
}

func setupRouter(api *API) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.Logger(api.logger))

	// Health check
	router.GET("/health", api.healthCheck)

	// Bridge endpoints for out-of-process callers
	bridge.RegisterRoutes(router, api.auth, api.resolvePage, api.background)

	v1 := router.Group("/api/v1")
	{
		// Tabs: the page agent keeps these current
		tabs := v1.Group("/tabs")
		tabs.GET("", api.auth.Require(), api.listTabs)
		tabs.PUT("/:tab", api.auth.Require(middleware.RolePage), api.loadSnapshot)
		tabs.PUT("/:tab/screen", api.auth.Require(middleware.RolePage), api.updateScreen)
		tabs.DELETE("/:tab", api.auth.Require(middleware.RolePage), api.closeTab)

		// Captures
		driving := v1.Group("", api.auth.Require(middleware.RoleController))
		if api.limiter != nil {
			driving.Use(middleware.RateLimit(api.limiter))
		}
		driving.POST("/tabs/:tab/captures", api.captureTab)
		driving.POST("/tabs/:tab/commands", api.sendCommand)

		captures := v1.Group("/captures", api.auth.Require(middleware.RoleController))
		captures.GET("", api.listCaptures)
		captures.GET("/stats", api.captureStats)
		captures.GET("/last", api.getLastCapture)
		captures.GET("/last/image", api.getLastCaptureImage)
		captures.POST("/last/download", api.downloadLastCapture)
		captures.GET("/:id", api.getCapture)
		captures.GET("/:id/download", api.downloadCapture)
		captures.DELETE("/:id", api.deleteCapture)

		// Status
		v1.GET("/status", api.auth.Require(), api.getStatus)

		// Preferences
		v1.GET("/preferences", api.auth.Require(), api.getPreferences)
		v1.PUT("/preferences", api.auth.Require(middleware.RoleController), api.updatePreferences)
	}

	return router
}

// Health check endpoint
func (api *API) healthCheck(c *gin.Context) {
	status := http.StatusOK
	components := gin.H{}
	for name, check := range api.checks {
		if err := check.Health(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	state := "healthy"
	if status != http.StatusOK {
		state = "unhealthy"
	}
	c.JSON(status, gin.H{
		"status":     state,
		"components": components,
		"tabs":       len(api.sessions.Tabs()),
	})
}

// getStatus samples the monitor's sources and reports them
func (api *API) getStatus(c *gin.Context) {
	if err := api.monitor.Update(c.Request.Context()); err != nil {
		api.logger.WithError(err).Warn("Status is partial")
	}
	c.JSON(http.StatusOK, api.monitor.Status())
}

// statusForError maps the capture error taxonomy onto HTTP statuses
func statusForError(err error) int {
	switch {
	case errors.Is(err, content.ErrUnknownTab), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNoVideo):
		return http.StatusNotFound
	case errors.Is(err, models.ErrNotReady):
		return http.StatusConflict
	case errors.Is(err, models.ErrNoBounds):
		return http.StatusUnprocessableEntity
	case errors.Is(err, models.ErrCaptureDenied):
		return http.StatusForbidden
	case errors.Is(err, controller.ErrUnknownCommand):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func failure(c *gin.Context, err error) {
	c.JSON(statusForError(err), gin.H{
		"success": false,
		"error":   err.Error(),
		"code":    models.ErrorCode(err),
	})
}

func unavailable(c *gin.Context, feature string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": feature + " is not configured"})
}
