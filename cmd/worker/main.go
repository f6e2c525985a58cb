package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/therealutkarshpriyadarshi/substills/internal/bridge"
	"github.com/therealutkarshpriyadarshi/substills/internal/cache"
	"github.com/therealutkarshpriyadarshi/substills/internal/config"
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

// lockTTL bounds how long a crashed worker can keep a tab locked
const lockTTL = time.Minute

// errTabBusy is returned when another worker holds the tab's lock
var errTabBusy = errors.New("tab is being captured by another worker")

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
	logger = logger.WithComponent("worker")

	_, tracerCloser, err := tracing.InitTracer(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName + "-worker",
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRate:  cfg.Tracing.SampleRate,
	})
	if err != nil {
		logger.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer tracerCloser.Close()

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	monitor := monitoring.NewMonitor().WithLogger(logger)

	opts := controller.Options{SettleDelay: cfg.Capture.SettleDelay, Logger: logger}

	// Redis holds the shared preferences and last capture, and the per-tab
	// locks between workers
	var locks *cache.Cache
	if cfg.Redis.Enabled {
		rc, err := cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rc.Close()
		rc.WithLastCaptureTTL(cfg.Redis.LastTTL)
		opts.Preferences = rc
		opts.Last = rc
		locks = rc
	}

	if cfg.Database.Enabled {
		db, err := database.New(cfg.Database)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			logger.Fatalf("Failed to migrate database: %v", err)
		}
		repo := database.NewRepository(db).WithLogger(logger)
		opts.History = repo
		monitor.WithStats(repo)
	}

	if cfg.Storage.Enabled {
		stor, err := storage.New(cfg.Storage, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
		opts.Sink = stor
	}

	q, err := queue.New(cfg.Queue, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer q.Close()
	monitor.WithQueue(q).Start(ctx)

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port + 1).
			WithLogger(logger).
			WithStatus(func() interface{} { return monitor.Status() })
		go func() {
			if err := metricsServer.Start(); err != nil {
				logger.WithError(err).Error("Metrics server stopped")
			}
		}()
		defer metricsServer.Shutdown(context.Background())
	}

	// Both contexts are reached over the API's bridge endpoints
	auth := middleware.NewBridgeAuth(cfg.Auth.BridgeSecret)
	pageTransport := bridge.NewHTTPTransport(cfg.Bridge.PageURL, "", cfg.Bridge.Timeout)
	bgTransport := bridge.NewHTTPTransport(cfg.Bridge.BackgroundURL, "", cfg.Bridge.Timeout)

	ctrl := controller.New(func(tabID string) (bridge.PageService, error) {
		return bridge.NewPageClient(pageTransport, tabID, logger), nil
	}, bridge.NewBackgroundClient(bgTransport, logger), opts)

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutting down worker gracefully...")
		cancel()
	}()

	// Command handler; commands arrive one at a time
	commandHandler := func(ctx context.Context, cmd *models.Command) error {
		token, err := auth.GenerateToken("worker", middleware.RoleController, cfg.Auth.TokenTTL)
		if err != nil {
			return err
		}
		pageTransport.Token = token
		bgTransport.Token = token

		if locks != nil {
			ok, err := locks.AcquireLock(ctx, "capture:"+cmd.TabID, lockTTL)
			if err != nil {
				return err
			}
			if !ok {
				return errTabBusy
			}
			defer locks.ReleaseLock(context.WithoutCancel(ctx), "capture:"+cmd.TabID)
		}

		captured, err := ctrl.HandleCommand(ctx, *cmd)
		if err != nil {
			return err
		}
		logger.WithCaptureID(captured.ID).WithTabID(cmd.TabID).Infof("Captured %s", captured.Filename)
		return nil
	}

	// Start consuming commands
	logger.Info("Worker started, waiting for commands...")
	if err := q.ConsumeCommands(ctx, commandHandler); err != nil {
		logger.Fatalf("Failed to consume commands: %v", err)
	}

	// Wait for shutdown
	<-ctx.Done()
	logger.Info("Worker stopped")
}
