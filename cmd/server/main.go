// @title fileinpic API
// @version 1.0
// @description File catalog with password-protected share links.
// @BasePath /
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/rohits-web03/fileinpic/internal/api"
	"github.com/rohits-web03/fileinpic/internal/api/handlers"
	"github.com/rohits-web03/fileinpic/internal/api/middleware"
	"github.com/rohits-web03/fileinpic/internal/config"
	"github.com/rohits-web03/fileinpic/internal/logging"
	"github.com/rohits-web03/fileinpic/internal/metrics"
	"github.com/rohits-web03/fileinpic/internal/repositories"
	"github.com/rohits-web03/fileinpic/internal/services"
)

const presignTTL = 15 * time.Minute

func main() {
	configPath := flag.String("config", "", "path to a YAML config file overriding the environment")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	lg, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	if err != nil {
		log.Fatalf("logging: %v", err)
	}

	if err := run(cfg, lg); err != nil {
		lg.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, lg *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := repositories.OpenDatabase(ctx, cfg.DBDriver, cfg.DBURL, lg)
	if err != nil {
		return err
	}
	defer func() {
		if err := repositories.CloseDatabase(db); err != nil {
			lg.Warn("close database", "error", err)
		}
	}()

	blobs, err := openBlobStore(cfg, db, lg)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var revoker services.Revoker
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis: %w", err)
		}
		revoker = services.NewRedisRevoker(client, "")
		lg.Info("session revocation list in redis")
	} else {
		mem := services.NewMemoryRevoker()
		g.Go(func() error { return mem.Run(gctx, time.Hour) })
		revoker = mem
	}

	sessions, err := services.NewSessionManager(services.SessionOptions{
		JWTSecret:    cfg.JWTSecret,
		Password:     cfg.Password,
		PasswordHash: cfg.PasswordHash,
	}, revoker)
	if err != nil {
		return err
	}

	var google *services.GoogleAuth
	if cfg.GoogleEnabled() {
		google = services.NewGoogleAuth(cfg.Google, cfg.OwnerEmails)
		lg.Info("google sign-in enabled", "owners", len(cfg.OwnerEmails))
	}

	m := metrics.New("fileinpic")
	registry := services.NewShareRegistry(db, lg)
	catalogOpts := services.CatalogOptions{MaxUploadSize: cfg.MaxUploadSize}
	if cfg.StorageBackend == config.BackendR2 && cfg.R2.PresignDownloads {
		catalogOpts.PresignTTL = presignTTL
	}
	catalog := services.NewCatalog(db, blobs, registry, catalogOpts, lg)

	proxies, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return err
	}
	shareLimiter := middleware.NewRateLimiter(cfg.ShareRateLimit, proxies)
	defer shareLimiter.Stop()
	loginLimiter := middleware.NewRateLimiter(10, proxies)
	defer loginLimiter.Stop()

	router := api.SetupRouter(api.Options{
		Config: cfg,
		Handler: handlers.New(handlers.Deps{
			Catalog:  catalog,
			Shares:   registry,
			Sessions: sessions,
			Google:   google,
			Metrics:  m,
			Config:   cfg,
			Logger:   lg,
		}),
		Sessions:     sessions,
		Metrics:      m,
		Logger:       lg,
		ShareLimiter: shareLimiter,
		LoginLimiter: loginLimiter,
		Proxies:      proxies,
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
		// No write timeout: large downloads stream for as long as they need.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	g.Go(func() error {
		lg.Info("starting fileinpic server", "port", cfg.Port, "storage", cfg.StorageBackend, "db", cfg.DBDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		lg.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openBlobStore(cfg config.Config, db *gorm.DB, lg *slog.Logger) (repositories.BlobStore, error) {
	switch cfg.StorageBackend {
	case config.BackendImageHost:
		return repositories.NewImageHostBlobStore(db, repositories.ImageHostOptions{
			BaseURL:    cfg.ImageHost.URL,
			Token:      cfg.ImageHost.Token,
			ChunkSize:  cfg.ImageHost.ChunkSize,
			HTTPClient: &http.Client{Timeout: 2 * time.Minute},
		}, lg)
	case config.BackendR2:
		return repositories.NewR2BlobStore(repositories.R2Options{
			AccessKeyID:     cfg.R2.AccessKeyID,
			SecretAccessKey: cfg.R2.SecretAccessKey,
			AccountID:       cfg.R2.AccountID,
			BucketName:      cfg.R2.BucketName,
			Region:          cfg.R2.Region,
			Endpoint:        cfg.R2.Endpoint,
		}, lg)
	default:
		store, err := repositories.NewLocalBlobStore(cfg.StorageDir)
		if err != nil {
			return nil, err
		}
		lg.Info("local blob storage", "root", store.Root())
		return store, nil
	}
}
