package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/unalkalkan/VoiceReader/internal/api"
	"github.com/unalkalkan/VoiceReader/internal/events"
	"github.com/unalkalkan/VoiceReader/internal/health"
	"github.com/unalkalkan/VoiceReader/internal/library"
)

const shutdownTimeout = 30 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the HTTP API",
		Action: serve,
	}
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	broker := events.NewBroker()
	defer broker.Close()

	healthHandler := health.NewHandler(version)
	healthHandler.Register("storage", health.StorageCheck(a.blobs))
	healthHandler.Register("store", health.PingCheck(a.store))

	router := api.NewRouter(api.Deps{
		Session:     a.session,
		Store:       a.store,
		Engines:     a.engines,
		Importer:    a.importer,
		LibraryDir:  cfg.Library.Dir,
		Blobs:       a.blobs,
		Broker:      broker,
		Health:      healthHandler,
		CORSOrigins: cfg.Server.CORSOrigins,
		Logger:      logger,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(ctx)

	waitBridge := events.BridgeSession(gCtx, broker, a.session)

	if cfg.Library.Watch {
		watcher := library.NewWatcher(a.importer, cfg.Library.Dir, 0, logger)
		g.Go(func() error {
			return watcher.Run(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", addr), slog.String("version", version))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		if ctx.Err() != nil {
			logger.Info("Received shutdown signal")
		}
		logger.Info("Shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return nil
	})

	err = g.Wait()
	waitBridge()
	if err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped")
	return nil
}
