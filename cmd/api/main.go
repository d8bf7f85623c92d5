package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/tubeproxy/internal/api/handler"
	"github.com/hszk-dev/tubeproxy/internal/api/middleware"
	"github.com/hszk-dev/tubeproxy/internal/config"
	"github.com/hszk-dev/tubeproxy/internal/domain/model"
	"github.com/hszk-dev/tubeproxy/internal/domain/repository"
	"github.com/hszk-dev/tubeproxy/internal/extractor"
	"github.com/hszk-dev/tubeproxy/internal/infrastructure/cache"
	"github.com/hszk-dev/tubeproxy/internal/infrastructure/metrics"
	"github.com/hszk-dev/tubeproxy/internal/infrastructure/storage"
	"github.com/hszk-dev/tubeproxy/internal/transcoder"
	"github.com/hszk-dev/tubeproxy/internal/usecase"
)

const startupTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	initCtx, cancelInit := context.WithTimeout(context.Background(), startupTimeout)
	defer cancelInit()

	cookiesFile, err := extractor.ResolveCookiesFile(
		cfg.Extractor.CookiesFile,
		cfg.Extractor.Cookies,
		filepath.Join(cfg.Download.TempDir, "tubeproxy-cookies"),
	)
	if err != nil {
		return fmt.Errorf("failed to prepare cookies: %w", err)
	}
	if cookiesFile != "" {
		logger.Info("using cookie file for extractor", slog.String("path", cookiesFile))
	}

	ytdlp := extractor.NewYtDlp(extractor.YtDlpConfig{
		BinaryPath:  cfg.Extractor.Path,
		Timeout:     cfg.Extractor.Timeout,
		CookiesFile: cookiesFile,
	})

	ffmpegCfg := transcoder.DefaultFFmpegConfig()
	ffmpegCfg.FFmpegPath = cfg.FFmpeg.Path
	ffmpegCfg.AudioBitrate = cfg.FFmpeg.AudioBitrate
	ffmpeg := transcoder.NewFFmpegTranscoder(ffmpegCfg)

	var objectStorage repository.ObjectStorage
	if cfg.MinIO.Enabled() {
		client, err := storage.NewClient(initCtx, storage.ClientConfig{
			Endpoint:       cfg.MinIO.Endpoint,
			PublicEndpoint: cfg.MinIO.PublicEndpoint,
			AccessKey:      cfg.MinIO.AccessKey,
			SecretKey:      cfg.MinIO.SecretKey,
			Bucket:         cfg.MinIO.Bucket,
			UseSSL:         cfg.MinIO.UseSSL,
		})
		if err != nil {
			return fmt.Errorf("failed to connect to minio: %w", err)
		}
		objectStorage = client
		logger.Info("archiving downloads to minio",
			slog.String("endpoint", cfg.MinIO.Endpoint),
			slog.String("bucket", client.Bucket()),
		)
	}

	var infoCache cache.InfoCache
	if cfg.Redis.Enabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()

		if err := rdb.Ping(initCtx).Err(); err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		infoCache = cache.NewRedisInfoCache(rdb)
		logger.Info("caching metadata in redis", slog.String("addr", cfg.Redis.Addr))
	}

	mediaSvc := usecase.NewMediaService(ytdlp, ffmpeg, objectStorage, usecase.MediaServiceConfig{
		TempDir:       cfg.Download.TempDir,
		PresignExpiry: cfg.MinIO.PresignExpiry,
	})

	streams := cache.NewExpiringCache[model.StreamResult](cache.ExpiringCacheConfig{
		TTL:        cfg.StreamCache.TTL,
		MaxEntries: cfg.StreamCache.MaxEntries,
	})
	if err := metrics.RegisterStreamCacheSize(prometheus.DefaultRegisterer, streams.Len); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	svc := usecase.NewCachedMediaService(mediaSvc, streams, infoCache, usecase.CachedMediaServiceConfig{
		InfoCacheTTL: cfg.Redis.InfoTTL,
	})

	r := setupRouter(logger, handler.NewMediaHandler(svc), handler.NewHealthHandler(svc))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			slog.Int("port", cfg.Server.Port),
			slog.Duration("stream_cache_ttl", cfg.StreamCache.TTL),
			slog.Int("stream_cache_max_entries", cfg.StreamCache.MaxEntries),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}

func setupRouter(logger *slog.Logger, media *handler.MediaHandler, health *handler.HealthHandler) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	r.Get("/", handler.Home)
	r.Get("/health", health.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/download", media.Info)
	r.Get("/download/file", media.DownloadFile)
	r.Get("/search", media.Search)
	r.Get("/trending", media.Trending)
	r.Get("/play", media.Play)

	return r
}
