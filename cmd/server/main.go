package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pv/precog-panel/internal/api"
	"github.com/pv/precog-panel/internal/chart"
	"github.com/pv/precog-panel/internal/config"
	"github.com/pv/precog-panel/internal/logger"
	"github.com/pv/precog-panel/internal/metrics"
	"github.com/pv/precog-panel/internal/monitor"
	"github.com/pv/precog-panel/internal/notify"
	"github.com/pv/precog-panel/internal/poller"
	"github.com/pv/precog-panel/internal/precog"
	"github.com/pv/precog-panel/internal/review"
	"github.com/pv/precog-panel/internal/session"
	"github.com/pv/precog-panel/internal/speech"
	"github.com/pv/precog-panel/internal/storage"
	"github.com/pv/precog-panel/ui"
)

func main() {
	cfg := config.Parse()

	// Initialize logger and metrics
	logger.Init(cfg.LogFormat, config.ParseLogLevel(cfg.LogLevel))
	metrics.Init(nil)

	// Create storage
	var store storage.Storage
	var err error

	switch cfg.Storage {
	case config.StorageSQLite:
		store, err = storage.NewSQLiteStorage(cfg.SQLitePath)
		if err != nil {
			logger.Error("Failed to create SQLite storage", "error", err)
			os.Exit(1)
		}
		logger.Info("Using SQLite storage", "path", cfg.SQLitePath)
	default:
		store = storage.NewMemoryStorage()
		logger.Info("Using in-memory storage")
	}
	defer store.Close()

	settings, err := storage.NewSettings(store)
	if err != nil {
		logger.Error("Failed to load preferences", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Scheduler for the poll, realtime and key refresh tasks
	sched := poller.NewScheduler()
	defer sched.Stop()

	// PRECOG client authenticated by the session key
	client := precog.NewClient(cfg.APIURL, nil, cfg.RequestTimeout)
	sess := session.New(client, sched, cfg.TokenRefresh)
	client.SetTokenSource(sess)

	// External alert sinks
	sinks, closeSinks := notify.OpenSinks(ctx, cfg.Sinks)
	defer closeSinks()
	dispatcher := notify.NewDispatcher(0, sinks...)
	dispatcher.Start()
	defer dispatcher.Stop()

	hub := api.NewSSEHub()
	queue := speech.NewQueue(hub, settings.ReadNotification)
	charts := chart.NewAdapter(client)

	mon := monitor.New(monitor.Deps{
		API:       client,
		Scheduler: sched,
		Dedup:     notify.NewDeduplicator(cfg.PublicURL, precog.Location),
		Alerts:    dispatcher.Publish,
		Push:      hub,
		Speech:    queue,
		Charts:    charts,
		ReadAloud: settings.ReadNotification,
	}, monitor.Options{
		PollInterval: cfg.PollInterval,
		Window:       cfg.Window,
		Location:     precog.Location,
	})
	defer mon.Stop()

	// Create API handlers and server
	handlers := api.NewHandlers(api.Deps{
		Session:      sess,
		Monitor:      mon,
		Client:       client,
		Review:       review.New(client, mon),
		Charts:       charts,
		Settings:     settings,
		Speech:       queue,
		Hub:          hub,
		Location:     precog.Location,
		PollInterval: cfg.PollInterval,
	})
	sess.OnChange(mon.HandleSession)
	sess.OnChange(handlers.PublishSession)

	server := api.NewServer(handlers, ui.Content)

	if cfg.UserName != "" && cfg.Password != "" {
		if err := sess.SetCredentials(cfg.UserName, cfg.Password); err != nil {
			logger.Warn("Startup login failed", "user", cfg.UserName, "error", err)
		}
	}

	// Start HTTP server
	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: server,
	}

	go func() {
		logger.Info("Starting server",
			"addr", cfg.Addr,
			"api_url", cfg.APIURL,
			"public_url", cfg.PublicURL,
			"poll_interval", cfg.PollInterval.String(),
			"sinks", dispatcher.SinkNames(),
		)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// Stop polling before closing connections
	cancel()
	mon.Stop()
	sess.Logout()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Server stopped")
}
