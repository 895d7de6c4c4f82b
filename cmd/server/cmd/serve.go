package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"salesmanager/internal/app/server/api"
	"salesmanager/internal/config"
	"salesmanager/internal/infrastructure/migration"
	"salesmanager/internal/infrastructure/storage"
	"salesmanager/migrations"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запустить HTTP сервер",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		store, err := storage.Open(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("open storage: %w", err)
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Error("failed to close storage", "error", err)
			}
		}()

		if cfg.Storage.Driver != config.DriverMemory && viper.GetBool("migrate") {
			m := migration.NewMigration(migrations.FS, cfg.DB.DatabaseURI, migration.DefaultEngine, log)
			if err := m.Up(); err != nil {
				return fmt.Errorf("apply migrations: %w", err)
			}
		}

		service := api.NewService(cfg, store, log)
		srv := &http.Server{
			Addr:         cfg.HTTP.Address,
			Handler:      api.New(cfg, store, service, log),
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info("server started", "address", cfg.HTTP.Address, "env", cfg.Env, "storage", cfg.Storage.Driver)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return fmt.Errorf("listen: %w", err)
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().String("address", "", "адрес HTTP сервера")
	serveCmd.Flags().Bool("migrate", true, "применить миграции перед запуском")
	_ = viper.BindPFlag("run_address", serveCmd.Flags().Lookup("address"))
	_ = viper.BindPFlag("migrate", serveCmd.Flags().Lookup("migrate"))
}
