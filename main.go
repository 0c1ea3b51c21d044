package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/serroba/notesync/internal/api"
	"github.com/serroba/notesync/internal/archive"
	"github.com/serroba/notesync/internal/auth"
	"github.com/serroba/notesync/internal/collab"
	"github.com/serroba/notesync/internal/config"
	"github.com/serroba/notesync/internal/logging"
	"github.com/serroba/notesync/internal/note"
	"github.com/serroba/notesync/internal/render"
	"github.com/serroba/notesync/internal/schedule"
	"github.com/serroba/notesync/internal/storage"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "notesync",
		Short:         "real-time collaborative notes server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config yaml (default $"+config.PathEnv+" or "+config.DefaultPath+")")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.FetchPath(configPath))
			if err != nil {
				return err
			}

			return serve(cmd.Context(), cfg)
		},
	}

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.FetchPath(configPath))
			if err != nil {
				return err
			}

			if cfg.Storage.Driver != "postgres" {
				return fmt.Errorf("migrate requires the postgres driver, got %q", cfg.Storage.Driver)
			}

			db, err := openDatabase(cmd.Context(), cfg.Storage)
			if err != nil {
				return err
			}
			defer db.Close()

			return storage.Migrate(cmd.Context(), db)
		},
	}

	var userID, userName string

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint a bearer token for development",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(config.FetchPath(configPath))
			if err != nil {
				return err
			}

			token, err := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL).Generate(userID, userName)
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)

			return err
		},
	}
	tokenCmd.Flags().StringVar(&userID, "user", "", "user id")
	tokenCmd.Flags().StringVar(&userName, "name", "", "display name")
	_ = tokenCmd.MarkFlagRequired("user")

	rootCmd.AddCommand(serveCmd, migrateCmd, tokenCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "notesync:", err)
		stop()
		os.Exit(1)
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	logger, err := logging.New(cfg.Env, cfg.Log)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	store, closeStore, err := openStore(ctx, cfg.Storage, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sink, err := archive.New(ctx, cfg.Archive)
	if err != nil {
		return fmt.Errorf("init archive: %w", err)
	}

	notes := note.NewService(note.Config{
		Store:           store,
		MaxVersions:     cfg.History.MaxVersions,
		ShareAttempts:   cfg.Share.MaxAttempts,
		ShareExpiryDays: cfg.Share.DefaultExpiryDays,
		Cache:           note.NewShareCache(cfg.Share.CacheSize, cfg.Share.CacheTTL),
		Archiver:        sink,
		Renderer:        render.New(),
		Logger:          logger.Named("note"),
	})

	manager := collab.NewManager(collab.ManagerConfig{
		Access:       collab.DocumentAccess{Store: store},
		Logger:       logger.Named("collab"),
		QueueSize:    cfg.Realtime.SendQueueSize,
		WriteTimeout: cfg.Realtime.WriteTimeout,
	})
	notes.SetNotifier(manager)

	scheduler := schedule.NewCronScheduler(logger.Named("schedule"))
	if err := scheduler.AddJob(schedule.NewShareSweepJob(notes, logger.Named("sweep")), cfg.Share.SweepSpec); err != nil {
		return fmt.Errorf("schedule share sweep: %w", err)
	}

	scheduler.Start(ctx)
	defer scheduler.Stop()

	server := api.NewServer(api.ServerConfig{
		Notes:          notes,
		Manager:        manager,
		Tokens:         auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL),
		Logger:         logger.Named("http"),
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           server.Handler(),
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Info("starting server", zap.String("addr", cfg.HTTP.Address), zap.String("storage", cfg.Storage.Driver))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	return nil
}

func openStore(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) (storage.Store, func(), error) {
	if cfg.Driver != "postgres" {
		logger.Warn("using in-memory storage, notes are lost on restart")

		return storage.NewMemoryStore(), func() {}, nil
	}

	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	if cfg.AutoMigrate {
		if err := storage.Migrate(ctx, db); err != nil {
			_ = db.Close()

			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
	}

	return storage.NewPostgresStore(db), func() { _ = db.Close() }, nil
}

func openDatabase(ctx context.Context, cfg config.StorageConfig) (*sqlx.DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := storage.OpenPostgres(connectCtx, cfg.DSN)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLife)

	return db, nil
}
