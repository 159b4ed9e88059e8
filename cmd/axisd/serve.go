package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"axis-blue-backend/internal/api"
	"axis-blue-backend/internal/mw"
	"axis-blue-backend/internal/notification"
	"axis-blue-backend/internal/photostore/local"
	"axis-blue-backend/internal/syncer"
	"axis-blue-backend/internal/tracker"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background sync",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, cleanup, err := setup()
			if err != nil {
				return err
			}
			defer cleanup()
			logger.Info("configuration loaded", zap.String("path", configPath))

			a, err := openApp(cfg, logger)
			if err != nil {
				return err
			}
			defer a.close()
			return serve(a)
		},
	}
}

func serve(a *app) error {
	cfg, logger := a.cfg, a.logger

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var webpushOptions *webpush.Options
	var onUrgent func(tracker.Visit, tracker.UrgentIssue)
	var pool *notification.WorkerPool
	if cfg.Push.PublicKey != "" && cfg.Push.PrivateKey != "" {
		webpushOptions = &webpush.Options{
			VAPIDPublicKey:  cfg.Push.PublicKey,
			VAPIDPrivateKey: cfg.Push.PrivateKey,
			Subscriber:      cfg.Push.Subject,
			TTL:             cfg.Push.TTL,
		}
		pool = notification.NewWorkerPool(cfg.WorkerPool.Size, a.db, webpushOptions, logger.Named("notification"))
		pool.Start(ctx)
		onUrgent = pool.OnUrgent
	} else {
		logger.Warn("VAPID keys not configured, urgent alerts disabled")
	}

	tr, err := a.tracker(onUrgent)
	if err != nil {
		return fmt.Errorf("restore session: %w", err)
	}
	photos, err := local.New(cfg.State.PhotoDir, logger.Named("photostore"))
	if err != nil {
		return fmt.Errorf("open photo dir: %w", err)
	}

	syncSvc := syncer.NewService(tr, a.backends, a.auth, syncer.Options{
		Enabled:     cfg.Sync.Enabled,
		Interval:    cfg.Sync.Interval,
		SessionPoll: cfg.Sync.SessionPoll,
		Workers:     cfg.Sync.Workers,
		MaxBackoff:  cfg.Sync.MaxBackoff,
	}, logger.Named("syncer"))
	syncDone := make(chan struct{})
	go func() {
		defer close(syncDone)
		syncSvc.Run(ctx)
	}()

	limiter := mw.NewIPRateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
	go pruneLimiter(ctx, limiter)

	handler := api.NewHandler(api.Deps{
		Tracker:        tr,
		Backends:       a.backends,
		Auth:           a.auth,
		Syncer:         syncSvc,
		Photos:         photos,
		DB:             a.db,
		WebPush:        webpushOptions,
		Logger:         logger.Named("api"),
		MaxUploadBytes: int64(cfg.Server.MaxUploadMB) << 20,
	})
	router := api.NewRouter(handler, api.RouterOptions{
		RateLimitPerSec: cfg.Server.RateLimitPerSec,
		RateLimitBurst:  cfg.Server.RateLimitBurst,
		CacheTTL:        time.Duration(cfg.Server.CacheTTLSeconds) * time.Second,
		Limiter:         limiter,
	})
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("shutdown signal received, stopping services", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("HTTP server failed", zap.Error(err))
		cancel()
		<-syncDone
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP server shutdown: %w", err)
	}

	cancel()
	<-syncDone
	if pool != nil {
		pool.Wait()
	}
	logger.Info("server gracefully stopped")
	return nil
}

func pruneLimiter(ctx context.Context, limiter *mw.IPRateLimiter) {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Prune(30 * time.Minute)
		}
	}
}
