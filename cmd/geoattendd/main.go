package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"geoattend-backend/config"
	"geoattend-backend/internal/api"
	"geoattend-backend/internal/db"
	"geoattend-backend/internal/model"
	"geoattend-backend/internal/notification"
	"geoattend-backend/internal/session"
	"geoattend-backend/internal/sites"
	"geoattend-backend/internal/store"
	"geoattend-backend/internal/syncer"
	"geoattend-backend/internal/watch"
	"geoattend-backend/internal/zone"

	"github.com/SherClockHolmes/webpush-go"
)

func main() {
	// Setup logger
	logger := log.New(os.Stdout, "geoattend ", log.LstdFlags)

	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config/config.yaml" // Default path for local development
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatalf("failed to load configuration from %s: %v", configPath, err)
	}
	logger.Printf("configuration loaded successfully from %s", configPath)

	webpushOptions := webpush.Options{
		VAPIDPublicKey:  cfg.Push.PublicKey,
		VAPIDPrivateKey: cfg.Push.PrivateKey,
		Subscriber:      cfg.Push.Subject,
		TTL:             cfg.Push.TTL,
	}

	// Initialize database
	gormDB, err := db.Init(&cfg.Database)
	if err != nil {
		logger.Fatalf("failed to initialize database: %v", err)
	}
	logger.Println("database initialized successfully")

	// Create a context that can be cancelled
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	appStore := store.NewGormStore(gormDB)
	siteProvider := sites.NewProvider(appStore, time.Duration(cfg.Server.CacheTTLSeconds)*time.Second)
	logger.Println("data store initialized")

	// Notification worker pool for zone and sync alerts
	workerPool := notification.NewWorkerPool(cfg.WorkerPool.Size, gormDB, &webpushOptions)
	workerPool.Start(ctx)

	// Sync agent pushing pending records to the remote endpoint
	agent := syncer.New(&cfg.Sync, appStore, syncer.WithFailureHook(func(err error) {
		workerPool.Dispatch(notification.Alert{Kind: notification.AlertSyncFailed})
	}))
	go agent.Run(ctx)

	// Session controllers, wired to the sync agent and the worker pool
	sessions := session.NewManager(appStore, session.Hooks{
		TriggerSync: agent.Trigger,
		OnTransition: func(userID string, tr zone.Transition) {
			kind := notification.AlertZoneEntered
			if tr.Kind == zone.Exited {
				kind = notification.AlertZoneExited
			}
			workerPool.Dispatch(notification.Alert{Kind: kind, UserID: userID, SiteName: tr.Site.Name})
		},
		OnCheckoutPending: func(userID string, site model.Site) {
			workerPool.Dispatch(notification.Alert{
				Kind:     notification.AlertCheckoutPending,
				UserID:   userID,
				SiteName: site.Name,
			})
		},
	})

	// Position watcher feeding the zone tracker and session controller
	if cfg.Watcher.Enabled {
		if err := runWatcher(ctx, logger, cfg, siteProvider, sessions); err != nil {
			logger.Fatalf("failed to start position watcher: %v", err)
		}
	} else {
		logger.Println("position watcher is disabled")
	}

	// Initialize router
	handler := api.NewHandler(appStore, siteProvider, sessions, &webpushOptions)
	router := api.NewRouter(handler, api.RouterConfig{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
	})
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	// Start the server in a goroutine
	go func() {
		logger.Printf("HTTP server starting on port %d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("HTTP server ListenAndServe: %v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Block until a signal is received.
	<-stop
	logger.Println("Shutdown signal received, stopping services...")

	// Create a deadline to wait for.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Fatalf("HTTP server Shutdown: %v", err)
	}

	logger.Println("Server gracefully stopped")
}

// runWatcher starts the device position stream and pumps transitions
// into the configured user's session controller.
func runWatcher(ctx context.Context, logger *log.Logger, cfg *config.Config, siteProvider *sites.Provider, sessions *session.Manager) error {
	if cfg.Watcher.UserID == "" {
		return errors.New("watcher.user_id must be configured when the watcher is enabled")
	}

	ctrl, err := sessions.Get(ctx, cfg.Watcher.UserID)
	if err != nil {
		return err
	}

	source := watch.NewHTTPSource(&cfg.Watcher)
	watcher := watch.NewWatcher(source, cfg.Watcher.Interval)
	positions, watchErrs := watcher.Watch(ctx)
	tracker := zone.NewTracker()

	go func() {
		for positions != nil || watchErrs != nil {
			select {
			case pos, ok := <-positions:
				if !ok {
					positions = nil
					continue
				}
				siteList, err := siteProvider.Sites(ctx)
				if err != nil {
					logger.Printf("could not load sites for zone evaluation: %v", err)
					continue
				}
				for _, tr := range tracker.Observe(pos, siteList) {
					ctrl.HandleTransition(tr)
				}
			case err, ok := <-watchErrs:
				if !ok {
					watchErrs = nil
					continue
				}
				// No automatic retry: a fresh watcher is the caller's call.
				logger.Printf("position watcher stopped: %v", err)
			}
		}
	}()

	logger.Printf("position watcher started for user %s", cfg.Watcher.UserID)
	return nil
}
