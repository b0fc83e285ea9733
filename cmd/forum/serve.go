package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/edly-io/forum-sub001/internal/config"
	"github.com/edly-io/forum-sub001/internal/logging"
	"github.com/edly-io/forum-sub001/internal/router"
	"github.com/edly-io/forum-sub001/internal/services"
	"github.com/edly-io/forum-sub001/internal/store"
	"github.com/edly-io/forum-sub001/internal/store/docstore"
	"github.com/edly-io/forum-sub001/internal/store/sqlstore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Init(cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.Close(); err != nil {
			log.Error().Err(err).Msg("close store")
		}
	}()

	rec := services.NewReconciler(st, cfg.Reconciler.Interval, cfg.Reconciler.BatchSize)
	if cfg.Reconciler.Enabled {
		rec.Start(ctx)
	}
	svc := services.New(st, rec)

	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	router.RegisterRoutes(engine, svc, cfg.API)

	srv := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("backend", cfg.Storage.Backend).Msg("forum server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// openStore builds the storage backend named by config.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Storage.Backend {
	case config.BackendBadger:
		return docstore.Open(cfg.Storage.BadgerPath, cfg.Storage.BadgerInMemory)
	default:
		return sqlstore.Open(ctx, cfg.Storage.DatabaseURL, cfg.Storage.ConnectAttempts)
	}
}
