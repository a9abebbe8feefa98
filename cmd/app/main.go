package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Shishlyannikovvv/dealflow/internal/api"
	"github.com/Shishlyannikovvv/dealflow/internal/config"
	"github.com/Shishlyannikovvv/dealflow/internal/logging"
	"github.com/Shishlyannikovvv/dealflow/internal/metrics"
	"github.com/Shishlyannikovvv/dealflow/internal/service"
	"github.com/Shishlyannikovvv/dealflow/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "dealflow",
		Short:         "Deal relationship reconciliation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (env vars override it)")
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dealflow:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration, builds the logger and opens a migrated database.
func bootstrap(ctx context.Context) (config.Config, *slog.Logger, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	slog.SetDefault(log)

	db, err := storage.Open(ctx, cfg.Database, log)
	if err != nil {
		return config.Config{}, nil, nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return cfg, log, db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create tables, indexes and reference roles, then exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, log, db, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer closeDB(db, log)
			log.Info("migrations applied")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, log, db, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer closeDB(db, log)

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			manager := service.NewManager(storage.NewStore(db), service.Options{
				Logger:  log,
				Metrics: metrics.New(reg),
				Timeout: cfg.OperationTimeout,
			})

			gin.SetMode(gin.ReleaseMode)
			router := api.SetupRouter(api.NewHandler(manager, log), reg)
			srv := &http.Server{
				Addr:              cfg.HTTPAddr,
				Handler:           router,
				ReadHeaderTimeout: 5 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("starting server", "addr", cfg.HTTPAddr)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return fmt.Errorf("server failed: %w", err)
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.OperationTimeout+5*time.Second)
				defer cancel()
				log.Info("shutting down server")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
}

func closeDB(db *gorm.DB, log *slog.Logger) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("closing database", "error", err)
	}
}
