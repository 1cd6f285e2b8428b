package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"taskmanager/internal/config"
	"taskmanager/internal/server"
	"taskmanager/internal/storage"
	"taskmanager/internal/storage/memory"
	"taskmanager/internal/storage/remote"
	"taskmanager/internal/storage/sqlstore"
	"taskmanager/internal/util"
)

func main() {
	configFlag := flag.String("config", util.EnvOrDefault("config.yaml", "TASKMANAGER_CONFIG", "CONFIG_PATH"), "Path to the YAML config file")
	envFlag := flag.String("env", util.EnvOrDefault(".env", "TASKMANAGER_ENV_FILE"), "Path to an optional .env file")
	flag.Parse()

	if err := config.LoadDotEnv(*envFlag); err != nil {
		fmt.Fprintf(os.Stderr, "cannot load env file: %s\n", err)
		os.Exit(1)
	}
	cfg := config.MustLoad(*configFlag)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.Level()}))
	logger.Info("task manager starting", slog.String("backend", cfg.Store.Backend))

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", slog.String("error", err.Error()))
		os.Exit(1)
	}

	store, err := openStore(cfg, loc, logger)
	if err != nil {
		logger.Error("unable to open store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	srv := server.New(store, logger, cfg.HTTP.StaticDir, server.WithLocation(loc))

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Address,
		Handler:           srv.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped unexpectedly", slog.String("error", err.Error()))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown server", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// openStore builds the backend named in the config.
func openStore(cfg config.Config, loc *time.Location, logger *slog.Logger) (storage.Store, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return memory.New(), nil

	case config.BackendSQLite, config.BackendPostgres:
		var (
			s   *sqlstore.Store
			err error
		)
		if cfg.Store.Backend == config.BackendSQLite {
			s, err = sqlstore.OpenSQLite(cfg.Store.SQLitePath, logger)
		} else {
			s, err = sqlstore.OpenPostgres(cfg.Store.PostgresDSN, logger)
		}
		if err != nil {
			return nil, err
		}
		s.SetLocation(loc)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.SeedCategories(ctx, storage.DefaultCategories()); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil

	case config.BackendRemote:
		client, err := remote.NewClient(remote.Options{
			BaseURL:    cfg.Store.Remote.BaseURL,
			ProjectID:  cfg.Store.Remote.ProjectID,
			PublicKey:  cfg.Store.Remote.PublicKey,
			Timeout:    cfg.Store.Remote.Timeout,
			MaxRetries: cfg.Store.Remote.MaxRetries,
			Logger:     logger,
		})
		if err != nil {
			return nil, err
		}
		s := remote.New(client)
		s.SetLocation(loc)
		return s, nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
}
