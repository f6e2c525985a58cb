package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/therealutkarshpriyadarshi/substills/internal/background"
	"github.com/therealutkarshpriyadarshi/substills/internal/cache"
	"github.com/therealutkarshpriyadarshi/substills/internal/capture"
	"github.com/therealutkarshpriyadarshi/substills/internal/config"
	"github.com/therealutkarshpriyadarshi/substills/internal/content"
	"github.com/therealutkarshpriyadarshi/substills/internal/controller"
	"github.com/therealutkarshpriyadarshi/substills/internal/database"
	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/internal/metrics"
	"github.com/therealutkarshpriyadarshi/substills/internal/middleware"
	"github.com/therealutkarshpriyadarshi/substills/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/substills/internal/queue"
	"github.com/therealutkarshpriyadarshi/substills/internal/storage"
	"github.com/therealutkarshpriyadarshi/substills/internal/tracing"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

func main() {
	// Load configuration
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		bootLogger, _ := logging.NewDefaultLogger()
		bootLogger.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.NewLogger(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		bootLogger, _ := logging.NewDefaultLogger()
		bootLogger.Fatalf("Failed to initialize logger: %v", err)
	}

	// Initialize tracing
	_, tracerCloser, err := tracing.InitTracer(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName + "-api",
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer tracerCloser.Close()

	// Metrics server
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port).WithLogger(logger)
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	defaults, err := preferenceDefaults(cfg.Preferences)
	if err != nil {
		logger.Fatalf("Invalid preference defaults: %v", err)
	}

	deps := Deps{
		Checks: make(map[string]healthChecker),
		Logger: logger,
	}

	// Preferences and the last capture live in Redis when enabled
	if cfg.Redis.Enabled {
		rc, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rc.Close()
		rc.WithDefaults(defaults).WithLastCaptureTTL(cfg.Redis.LastTTL)
		deps.Preferences = rc
		deps.Last = rc
		deps.Checks["redis"] = pinger{rc}
	} else {
		mem := cache.NewMemory(defaults)
		deps.Preferences = mem
		deps.Last = mem
	}
	if _, err := deps.Preferences.EnsureDefaults(ctx); err != nil {
		logger.Fatalf("Failed to store default preferences: %v", err)
	}

	// Capture history
	if cfg.Database.Enabled {
		db, err := database.New(cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
		deps.History = database.NewRepository(db).WithLogger(logger)
		deps.Checks["database"] = db
	}

	// Object storage for downloads
	if cfg.Storage.Enabled {
		stor, err := storage.New(cfg.Storage, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
		deps.Objects = stor
		deps.Checks["storage"] = stor
	}

	// Page context
	deps.Sessions = content.NewSessions(content.Options{
		Detector:    blackDetector(cfg.Capture),
		JPEGQuality: cfg.Capture.JPEGQuality,
		Logger:      logger,
	})

	deps.Monitor = monitoring.NewMonitor().WithTabs(deps.Sessions).WithLogger(logger)
	if deps.History != nil {
		deps.Monitor.WithStats(deps.History)
	}

	// Keyboard shortcuts go to the worker when a queue is configured
	if cfg.Queue.Enabled {
		q, err := queue.New(cfg.Queue, logger)
		if err != nil {
			logger.Fatalf("Failed to connect to queue: %v", err)
		}
		defer q.Close()
		deps.Commands = q
		deps.Monitor.WithQueue(q)
	}
	deps.Monitor.Start(ctx)

	// Privileged context
	var screen background.Screen
	if cfg.Capture.Screen == "display" {
		screen = background.DisplayScreen{Display: cfg.Capture.Display}
	} else {
		deps.Screen = background.NewStaticScreen()
		screen = deps.Screen
	}
	deps.Background = background.NewService(screen, cfg.Capture.JPEGQuality, logger)

	deps.Auth = middleware.NewBridgeAuth(cfg.Auth.BridgeSecret)
	if !deps.Auth.Enabled() {
		logger.Warn("Bridge authentication disabled; set auth.bridgeSecret to enable it")
	}
	if cfg.RateLimit.Enabled {
		deps.Limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
		go deps.Limiter.Cleanup(ctx, time.Minute)
	}

	api := NewAPI(deps, controller.Options{SettleDelay: cfg.Capture.SettleDelay})
	router := setupRouter(api)

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		logger.Infof("Starting API server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if metricsServer != nil {
		metricsServer.Shutdown(shutdownCtx)
	}

	logger.Info("Server stopped")
}

// pinger adapts the cache to the health check
type pinger struct {
	c *cache.Cache
}

func (p pinger) Health(ctx context.Context) error {
	return p.c.Ping(ctx)
}

func preferenceDefaults(cfg config.PreferencesConfig) (models.Preferences, error) {
	format, err := models.ParseFormat(cfg.Format)
	if err != nil {
		return models.Preferences{}, err
	}
	return models.Preferences{
		IncludeSubtitles: cfg.IncludeSubtitles,
		AutoDownload:     cfg.AutoDownload,
		Format:           format,
	}, nil
}

func blackDetector(cfg config.CaptureConfig) capture.BlackDetector {
	detector := capture.NewBlackDetector()
	detector.SampleCount = cfg.BlackSampleCount
	detector.ChannelThreshold = uint8(cfg.BlackChannelThreshold)
	detector.MinNonBlackRatio = cfg.BlackRatio
	return detector
}
